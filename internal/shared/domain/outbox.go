package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrOutboxMessageNotPending = errors.New("outbox message not pending")

// OutboxMessage es un evento de dominio persistido en la misma transacción
// que la mutación que lo levantó.
type OutboxMessage struct {
	ID              uuid.UUID       `json:"id"`
	OccurredAt      time.Time       `json:"occurred_at"`
	Type            string          `json:"type"`
	Content         json.RawMessage `json:"content"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	ProcessingError *string         `json:"processing_error,omitempty"`
	Attempts        int             `json:"attempts"`
}

// NewOutboxMessage serializa el evento a JSON.
func NewOutboxMessage(evt DomainEvent, occurredAt time.Time) (OutboxMessage, error) {
	content, err := json.Marshal(evt)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("failed to marshal %s event: %w", evt.EventType(), err)
	}
	return OutboxMessage{
		ID:         uuid.New(),
		OccurredAt: occurredAt.UTC(),
		Type:       evt.EventType(),
		Content:    content,
	}, nil
}

// OutboxRepository es el lado del relay sobre la tabla outbox.
type OutboxRepository interface {
	// Claim reserva hasta limit mensajes pendientes (processed_at nulo y sin lease vigente)
	// para owner durante lease, ordenados por OccurredAt.
	Claim(ctx context.Context, owner string, limit int, lease time.Duration) ([]OutboxMessage, error)

	// MarkProcessed fija processed_at. Devuelve ErrOutboxMessageNotPending si ya estaba fijado.
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkFailed registra el error, incrementa attempts y libera el lease.
	// Con closeAt != nil el mensaje queda cerrado con el error conservado.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, closeAt *time.Time) error
}
