package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/davicafu/hexashop/internal/shared/domain"
)

// MockOutboxRepository simula el lado del relay sobre la tabla outbox
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Claim(ctx context.Context, owner string, limit int, lease time.Duration) ([]domain.OutboxMessage, error) {
	args := m.Called(ctx, owner, limit, lease)
	msgs, _ := args.Get(0).([]domain.OutboxMessage)
	return msgs, args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, closeAt *time.Time) error {
	args := m.Called(ctx, id, reason, closeAt)
	return args.Error(0)
}

// MockPublisher simula un publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event interface{}) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var _ domain.OutboxRepository = (*MockOutboxRepository)(nil)
