package mocks

import (
	"context"
	"sync"

	"github.com/davicafu/hexashop/internal/shared/domain"
)

// InMemoryIdempotencyStore respeta la unicidad de la clave como lo haría la BBDD.
// BeforeSave permite colar un registro concurrente justo antes del Save.
type InMemoryIdempotencyStore struct {
	Records    map[string]domain.IdempotencyRecord
	GetErr     error
	SaveErr    error
	BeforeSave func()
	Saves      int
	mu         sync.Mutex
}

func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{Records: make(map[string]domain.IdempotencyRecord)}
}

func (s *InMemoryIdempotencyStore) GetByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	rec, ok := s.Records[key]
	if !ok {
		return nil, domain.ErrIdempotencyRecordNotFound
	}
	return &rec, nil
}

func (s *InMemoryIdempotencyStore) Save(ctx context.Context, record domain.IdempotencyRecord) error {
	if s.BeforeSave != nil {
		s.BeforeSave()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Saves++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if _, ok := s.Records[record.IdempotencyKey]; ok {
		return domain.ErrDuplicateIdempotencyKey
	}
	s.Records[record.IdempotencyKey] = record
	return nil
}

// Put inserta un registro directamente, saltándose el contador de Save.
func (s *InMemoryIdempotencyStore) Put(record domain.IdempotencyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Records[record.IdempotencyKey] = record
}

func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Records)
}

// InMemoryDeadLetterStore acumula los mensajes en un slice.
type InMemoryDeadLetterStore struct {
	Messages []domain.DeadLetterMessage
	Err      error
	// CtxErr guarda ctx.Err() en el momento del Append.
	CtxErr error
	mu     sync.Mutex
}

func (s *InMemoryDeadLetterStore) Append(ctx context.Context, msg domain.DeadLetterMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CtxErr = ctx.Err()
	if s.Err != nil {
		return s.Err
	}
	s.Messages = append(s.Messages, msg)
	return nil
}

func (s *InMemoryDeadLetterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Messages)
}

var (
	_ domain.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
	_ domain.DeadLetterStore  = (*InMemoryDeadLetterStore)(nil)
)
