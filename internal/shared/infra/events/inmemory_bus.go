package events

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	sharedBus "github.com/davicafu/hexashop/internal/shared/infra/platform/bus"
)

// Verifica en tiempo de compilación que cumple la interfaz
var _ sharedBus.EventBus = (*InMemoryEventBus)(nil)

// InMemoryEventBus implementa un bus de eventos para UN solo topic dentro del proceso.
// Los suscriptores lentos pierden mensajes cuando su buffer está lleno.
type InMemoryEventBus struct {
	subscribers []chan []byte
	mu          sync.RWMutex
	topic       string
	log         *zap.Logger
}

func NewInMemoryEventBus(topic string, log *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make([]chan []byte, 0),
		topic:       topic,
		log:         log,
	}
}

// Publish serializa el evento y lo entrega a todos los suscriptores sin bloquear.
func (b *InMemoryEventBus) Publish(ctx context.Context, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub <- payload:
		default:
			b.log.Warn("⚠️ Suscriptor lleno, evento descartado", zap.String("topic", b.topic))
		}
	}
	return nil
}

// Subscribe suscribe un nuevo oyente a este bus.
func (b *InMemoryEventBus) Subscribe(bufferSize int) <-chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(chan []byte, bufferSize)
	b.subscribers = append(b.subscribers, sub)
	return sub
}

// Close cierra los canales de los suscriptores. No se debe publicar después.
func (b *InMemoryEventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		close(sub)
	}
	b.subscribers = nil
}

// Consume entrega al handler cada mensaje de sub hasta que ctx se cancela o el canal se cierra.
func Consume(ctx context.Context, sub <-chan []byte, handler MessageHandler, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			if err := handler.HandleMessage(ctx, "", payload); err != nil {
				log.Warn("⚠️ Error procesando evento en memoria", zap.Error(err))
			}
		}
	}
}
