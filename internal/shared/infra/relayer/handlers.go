package relayer

import (
	"context"
	"encoding/json"

	"github.com/davicafu/hexashop/internal/shared/domain"
	sharedEvents "github.com/davicafu/hexashop/internal/shared/events"
	sharedBus "github.com/davicafu/hexashop/internal/shared/infra/platform/bus"
)

// PublishTo devuelve un handler que envía el mensaje al bus como IntegrationEvent.
func PublishTo(bus sharedBus.EventBus) Handler {
	return func(ctx context.Context, msg domain.OutboxMessage, _ domain.DomainEvent) error {
		return bus.Publish(ctx, sharedEvents.FromOutbox(msg))
	}
}

// MessageHandler es el contrato de los consumidores de eventos de integración.
type MessageHandler interface {
	HandleMessage(ctx context.Context, key string, payload []byte) error
}

// DeliverTo entrega el mensaje directamente a un consumidor local, sin pasar por
// un broker. Se usa cuando el bus no tiene lado de consumo en este proceso.
func DeliverTo(consumer MessageHandler) Handler {
	return func(ctx context.Context, msg domain.OutboxMessage, _ domain.DomainEvent) error {
		evt := sharedEvents.FromOutbox(msg)
		payload, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		return consumer.HandleMessage(ctx, evt.PartitionKey(), payload)
	}
}
