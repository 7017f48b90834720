package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/davicafu/hexashop/internal/shared/domain"
)

var ErrUnknownEventType = errors.New("unknown event type")

// Handler recibe el mensaje de outbox ya decodificado a su evento de dominio.
type Handler func(ctx context.Context, msg domain.OutboxMessage, evt domain.DomainEvent) error

type decoder func(content []byte) (domain.DomainEvent, error)

// Registry asocia cada discriminador de tipo con su decodificador y sus handlers.
// Se construye al arrancar y después solo se lee.
type Registry struct {
	decoders map[string]decoder
	handlers map[string][]Handler
	global   []Handler
}

func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[string]decoder),
		handlers: make(map[string][]Handler),
	}
}

// Register da de alta el tipo de evento E con handlers específicos opcionales.
// El discriminador se toma de E.EventType() sobre su valor cero.
func Register[E domain.DomainEvent](r *Registry, handlers ...Handler) {
	var zero E
	eventType := zero.EventType()
	r.decoders[eventType] = func(content []byte) (domain.DomainEvent, error) {
		var evt E
		if err := json.Unmarshal(content, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	}
	r.handlers[eventType] = append(r.handlers[eventType], handlers...)
}

// Subscribe añade un handler que recibe todos los tipos registrados.
func (r *Registry) Subscribe(h Handler) {
	r.global = append(r.global, h)
}

func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.decoders))
	for t := range r.decoders {
		out = append(out, t)
	}
	return out
}

// Dispatch decodifica el mensaje y lo entrega a cada handler; se detiene en el primer error.
func (r *Registry) Dispatch(ctx context.Context, msg domain.OutboxMessage) error {
	decode, ok := r.decoders[msg.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEventType, msg.Type)
	}

	evt, err := decode(msg.Content)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}

	for _, h := range r.handlers[msg.Type] {
		if err := h(ctx, msg, evt); err != nil {
			return err
		}
	}
	for _, h := range r.global {
		if err := h(ctx, msg, evt); err != nil {
			return err
		}
	}
	return nil
}
