package relayer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/hexashop/internal/shared/domain"
	sharedEvents "github.com/davicafu/hexashop/internal/shared/events"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/metrics"
	"github.com/davicafu/hexashop/tests/mocks"
)

type brandCreated struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (brandCreated) EventType() string { return "catalog_brand.created" }

func newMessage(t *testing.T, attempts int) domain.OutboxMessage {
	t.Helper()
	msg, err := domain.NewOutboxMessage(brandCreated{ID: uuid.NewString(), Name: "Acme"}, time.Now())
	require.NoError(t, err)
	msg.Attempts = attempts
	return msg
}

func testConfig() Config {
	return Config{Owner: "relay-1", Interval: time.Hour, BatchSize: 10, Lease: time.Minute, MaxAttempts: 3}
}

func TestRelay_ProcessBatch_Success(t *testing.T) {
	// ARRANGE
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	msg := newMessage(t, 0)

	registry := NewRegistry()
	Register[brandCreated](registry)
	registry.Subscribe(PublishTo(publisher))

	repo.On("Claim", mock.Anything, "relay-1", 10, time.Minute).Return([]domain.OutboxMessage{msg}, nil).Once()
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(evt sharedEvents.IntegrationEvent) bool {
		return evt.ID == msg.ID && evt.Type == "catalog_brand.created"
	})).Return(nil).Once()
	repo.On("MarkProcessed", mock.Anything, msg.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()

	reg := prometheus.NewRegistry()
	relay := NewRelay(repo, registry, testConfig(), metrics.New(reg), zap.NewNop())

	// ACT
	n, err := relay.ProcessBatch(context.Background())

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestRelay_ProcessBatch_HandlerReceivesTypedEvent(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	msg := newMessage(t, 0)

	var got brandCreated
	registry := NewRegistry()
	Register[brandCreated](registry, func(ctx context.Context, _ domain.OutboxMessage, evt domain.DomainEvent) error {
		got = evt.(brandCreated)
		return nil
	})

	repo.On("Claim", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.OutboxMessage{msg}, nil)
	repo.On("MarkProcessed", mock.Anything, msg.ID, mock.Anything).Return(nil)

	_, err := NewRelay(repo, registry, testConfig(), nil, zap.NewNop()).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
}

func TestRelay_ProcessBatch_PublisherFailsRecordsAttempt(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	msg := newMessage(t, 0)

	registry := NewRegistry()
	Register[brandCreated](registry)
	registry.Subscribe(PublishTo(publisher))

	repo.On("Claim", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.OutboxMessage{msg}, nil).Once()
	// ✅ Simulamos el fallo de Publish.
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("kafka is down")).Once()
	repo.On("MarkFailed", mock.Anything, msg.ID, "kafka is down", (*time.Time)(nil)).Return(nil).Once()

	n, err := NewRelay(repo, registry, testConfig(), nil, zap.NewNop()).ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_ProcessBatch_ClosesAfterMaxAttempts(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	msg := newMessage(t, 2) // tercer intento con MaxAttempts=3

	registry := NewRegistry()
	Register[brandCreated](registry)
	registry.Subscribe(PublishTo(publisher))

	repo.On("Claim", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.OutboxMessage{msg}, nil).Once()
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("kafka is down")).Once()
	repo.On("MarkFailed", mock.Anything, msg.ID, "kafka is down", mock.MatchedBy(func(at *time.Time) bool {
		return at != nil
	})).Return(nil).Once()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	_, err := NewRelay(repo, registry, testConfig(), m, zap.NewNop()).ProcessBatch(context.Background())

	require.NoError(t, err)
	repo.AssertExpectations(t)
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "hexashop_outbox_messages_total"))
}

func TestRelay_ProcessBatch_UnknownEventType(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	msg := newMessage(t, 0)
	msg.Type = "unregistered.event"

	registry := NewRegistry() // Registro vacío
	registry.Subscribe(PublishTo(publisher))

	repo.On("Claim", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.OutboxMessage{msg}, nil).Once()
	repo.On("MarkFailed", mock.Anything, msg.ID, mock.MatchedBy(func(reason string) bool {
		return strings.Contains(reason, "unknown event type")
	}), (*time.Time)(nil)).Return(nil).Once()

	_, err := NewRelay(repo, registry, testConfig(), nil, zap.NewNop()).ProcessBatch(context.Background())

	require.NoError(t, err)
	repo.AssertExpectations(t)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestRelay_ProcessBatch_ClaimError(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	repo.On("Claim", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

	n, err := NewRelay(repo, NewRegistry(), testConfig(), nil, zap.NewNop()).ProcessBatch(context.Background())

	assert.EqualError(t, err, "db down")
	assert.Equal(t, 0, n)
}

func TestRelay_ProcessBatch_StopsWhenCancelled(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	first, second := newMessage(t, 0), newMessage(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry()
	Register[brandCreated](registry, func(context.Context, domain.OutboxMessage, domain.DomainEvent) error {
		cancel()
		return nil
	})

	repo.On("Claim", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.OutboxMessage{first, second}, nil).Once()
	repo.On("MarkProcessed", mock.Anything, first.ID, mock.Anything).Return(nil).Once()

	n, err := NewRelay(repo, registry, testConfig(), nil, zap.NewNop()).ProcessBatch(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	repo.AssertNotCalled(t, "MarkProcessed", mock.Anything, second.ID, mock.Anything)
}

func TestRelay_Start_StopsOnCancel(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	repo.On("Claim", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Maybe()

	cfg := testConfig()
	cfg.Interval = 5 * time.Millisecond
	relay := NewRelay(repo, NewRegistry(), cfg, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("el relay no se detuvo")
	}
}

func TestRelay_Start_ZeroIntervalUsesDefault(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 0
	relay := NewRelay(new(mocks.MockOutboxRepository), NewRegistry(), cfg, nil, zap.NewNop())
	assert.Equal(t, 10*time.Second, relay.cfg.Interval)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { relay.Start(ctx) })
}
