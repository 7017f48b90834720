package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeadLetterMessage captura una petición cuyo procesamiento lanzó un fallo no controlado.
// Solo los marcadores de procesamiento cambian, y los cambia la herramienta de replay.
type DeadLetterMessage struct {
	ID              uuid.UUID       `json:"id" bson:"_id"`
	Type            string          `json:"type" bson:"type"`
	Content         json.RawMessage `json:"content" bson:"content"`
	Error           string          `json:"error" bson:"error"`
	OccurredAt      time.Time       `json:"occurred_at" bson:"occurred_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
	ProcessingError *string         `json:"processing_error,omitempty" bson:"processing_error,omitempty"`
}

func NewDeadLetterMessage(requestType string, content json.RawMessage, cause string, occurredAt time.Time) DeadLetterMessage {
	return DeadLetterMessage{
		ID:         uuid.New(),
		Type:       requestType,
		Content:    content,
		Error:      cause,
		OccurredAt: occurredAt.UTC(),
	}
}

func (m *DeadLetterMessage) MarkAsProcessed(at time.Time) {
	t := at.UTC()
	m.ProcessedAt = &t
	m.ProcessingError = nil
}

func (m *DeadLetterMessage) MarkAsFailed(at time.Time, reason string) {
	t := at.UTC()
	m.ProcessedAt = &t
	m.ProcessingError = &reason
}

type DeadLetterStore interface {
	Append(ctx context.Context, msg DeadLetterMessage) error
}
