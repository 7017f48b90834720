package domain

// DomainEvent es un hecho de negocio levantado por un agregado.
// EventType es el discriminador que viaja en la fila de outbox.
type DomainEvent interface {
	EventType() string
}

// EventSource expone los eventos pendientes de un agregado a la Unit of Work.
type EventSource interface {
	DomainEvents() []DomainEvent
	ClearDomainEvents()
}

// AggregateRoot se embebe en los agregados para acumular eventos de dominio
// hasta que la Unit of Work los convierte en filas de outbox.
type AggregateRoot struct {
	events []DomainEvent
}

func (a *AggregateRoot) Raise(evt DomainEvent) {
	a.events = append(a.events, evt)
}

func (a *AggregateRoot) DomainEvents() []DomainEvent {
	out := make([]DomainEvent, len(a.events))
	copy(out, a.events)
	return out
}

func (a *AggregateRoot) ClearDomainEvents() {
	a.events = nil
}
