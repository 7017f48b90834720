package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/hexashop/internal/shared/domain"
)

// IntegrationEvent es el sobre con el que viaja un mensaje del outbox fuera del servicio.
// ID es el del mensaje de outbox: los consumidores deduplican por él.
type IntegrationEvent struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"` // contenido específico del evento
}

func FromOutbox(msg domain.OutboxMessage) IntegrationEvent {
	return IntegrationEvent{
		ID:        msg.ID,
		Type:      msg.Type,
		Timestamp: msg.OccurredAt,
		Data:      msg.Content,
	}
}

// PartitionKey agrupa en la misma partición las reentregas de un mismo mensaje.
func (e IntegrationEvent) PartitionKey() string {
	return e.ID.String()
}

func (e IntegrationEvent) EventType() string {
	return e.Type
}
