package sqlstore_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/hexashop/internal/shared/domain"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/db/sqlite"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/db/sqlstore"
)

type widgetCreated struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (widgetCreated) EventType() string { return "widget.created" }

type widget struct {
	domain.AggregateRoot
	ID   string
	Name string
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, sqlite.InitSchema(db))
	_, err = db.Exec(`CREATE TABLE widgets (id TEXT PRIMARY KEY, name TEXT NOT NULL, version INTEGER NOT NULL)`)
	require.NoError(t, err)
	return db
}

func insertWidget(w *widget) domain.TxOp {
	return func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO widgets (id, name, version) VALUES (?, ?, 1)`, w.ID, w.Name)
		return err
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestUnitOfWork_CommitPersistsChangesAndOutbox(t *testing.T) {
	db := setupDB(t)
	factory := sqlstore.NewUnitOfWorkFactory(db, sqlite.Dialect)

	w := &widget{ID: uuid.NewString(), Name: "bolt"}
	w.Raise(widgetCreated{ID: w.ID, Name: w.Name})

	uow := factory.New()
	uow.Stage(insertWidget(w))
	uow.Track(w)
	require.NoError(t, uow.Commit(context.Background()))

	assert.Equal(t, 1, countRows(t, db, "widgets"))
	assert.Equal(t, 1, countRows(t, db, "outbox_messages"))
	assert.Empty(t, w.DomainEvents(), "los eventos se limpian tras el commit")

	var typ, content string
	require.NoError(t, db.QueryRow(`SELECT type, content FROM outbox_messages`).Scan(&typ, &content))
	assert.Equal(t, "widget.created", typ)
	assert.JSONEq(t, `{"id":"`+w.ID+`","name":"bolt"}`, content)
}

func TestUnitOfWork_EventsKeepRaiseOrder(t *testing.T) {
	db := setupDB(t)
	factory := sqlstore.NewUnitOfWorkFactory(db, sqlite.Dialect)

	a := &widget{ID: uuid.NewString(), Name: "a"}
	b := &widget{ID: uuid.NewString(), Name: "b"}
	a.Raise(widgetCreated{ID: a.ID, Name: "first"})
	a.Raise(widgetCreated{ID: a.ID, Name: "second"})
	b.Raise(widgetCreated{ID: b.ID, Name: "third"})

	uow := factory.New()
	uow.Stage(insertWidget(a))
	uow.Stage(insertWidget(b))
	uow.Track(a)
	uow.Track(b)
	require.NoError(t, uow.Commit(context.Background()))

	claimed, err := sqlstore.NewOutboxRepo(db, sqlite.Dialect).Claim(context.Background(), "relay-a", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 3)
	for i, name := range []string{"first", "second", "third"} {
		var evt widgetCreated
		require.NoError(t, json.Unmarshal(claimed[i].Content, &evt))
		assert.Equal(t, name, evt.Name)
		if i > 0 {
			assert.True(t, claimed[i].OccurredAt.After(claimed[i-1].OccurredAt))
		}
	}
}

func TestUnitOfWork_FailureRollsBackEverything(t *testing.T) {
	db := setupDB(t)
	factory := sqlstore.NewUnitOfWorkFactory(db, sqlite.Dialect)

	w := &widget{ID: uuid.NewString(), Name: "nut"}
	w.Raise(widgetCreated{ID: w.ID, Name: w.Name})

	boom := errors.New("boom")
	uow := factory.New()
	uow.Stage(insertWidget(w))
	uow.Stage(func(ctx context.Context, tx domain.Tx) error { return boom })
	uow.Track(w)

	err := uow.Commit(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countRows(t, db, "widgets"))
	assert.Equal(t, 0, countRows(t, db, "outbox_messages"))
	assert.Len(t, w.DomainEvents(), 1, "los eventos se conservan si el commit falla")
}

func TestUnitOfWork_CancelledBeforeCommit(t *testing.T) {
	db := setupDB(t)
	uow := sqlstore.NewUnitOfWorkFactory(db, sqlite.Dialect).New()
	uow.Stage(insertWidget(&widget{ID: uuid.NewString(), Name: "x"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, uow.Commit(ctx), context.Canceled)
	assert.Equal(t, 0, countRows(t, db, "widgets"))
}

func seedOutbox(t *testing.T, db *sql.DB, n int) []domain.OutboxMessage {
	t.Helper()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	var out []domain.OutboxMessage
	// Se insertan en orden inverso para comprobar el orden por occurred_at
	for i := n - 1; i >= 0; i-- {
		msg, err := domain.NewOutboxMessage(widgetCreated{ID: uuid.NewString()}, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO outbox_messages (id, occurred_at, type, content, attempts) VALUES (?, ?, ?, ?, 0)`,
			msg.ID.String(), msg.OccurredAt, msg.Type, string(msg.Content))
		require.NoError(t, err)
		out = append([]domain.OutboxMessage{msg}, out...)
	}
	return out
}

func TestOutboxRepo_ClaimOrdersAndLeases(t *testing.T) {
	db := setupDB(t)
	repo := sqlstore.NewOutboxRepo(db, sqlite.Dialect)
	seeded := seedOutbox(t, db, 5)
	ctx := context.Background()

	first, err := repo.Claim(ctx, "relay-a", 3, time.Minute)
	require.NoError(t, err)
	require.Len(t, first, 3)
	for i, msg := range first {
		assert.Equal(t, seeded[i].ID, msg.ID)
		assert.Equal(t, "widget.created", msg.Type)
	}

	// Las filas con lease vigente no se vuelven a entregar
	second, err := repo.Claim(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, seeded[3].ID, second[0].ID)
	assert.Equal(t, seeded[4].ID, second[1].ID)

	third, err := repo.Claim(ctx, "relay-c", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestOutboxRepo_ExpiredLeaseIsReclaimable(t *testing.T) {
	db := setupDB(t)
	repo := sqlstore.NewOutboxRepo(db, sqlite.Dialect)
	seedOutbox(t, db, 1)
	ctx := context.Background()

	claimed, err := repo.Claim(ctx, "relay-a", 10, -time.Second)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	again, err := repo.Claim(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, claimed[0].ID, again[0].ID)
}

func TestOutboxRepo_ConcurrentClaimsNeverOverlap(t *testing.T) {
	db := setupDB(t)
	repo := sqlstore.NewOutboxRepo(db, sqlite.Dialect)
	seedOutbox(t, db, 20)

	var mu sync.Mutex
	seen := map[uuid.UUID]int{}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msgs, err := repo.Claim(context.Background(), "relay", 5, time.Minute)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for _, m := range msgs {
				seen[m.ID]++
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, seen, 20)
	for id, n := range seen {
		assert.Equal(t, 1, n, "mensaje %s reclamado más de una vez", id)
	}
}

func TestOutboxRepo_MarkProcessedOnce(t *testing.T) {
	db := setupDB(t)
	repo := sqlstore.NewOutboxRepo(db, sqlite.Dialect)
	msg := seedOutbox(t, db, 1)[0]
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)

	require.NoError(t, repo.MarkProcessed(ctx, msg.ID, at))

	err := repo.MarkProcessed(ctx, msg.ID, at.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrOutboxMessageNotPending)

	got, err := repo.Get(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ProcessedAt)
	assert.True(t, got.ProcessedAt.Equal(at))

	claimed, err := repo.Claim(ctx, "relay", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestOutboxRepo_MarkFailedKeepsPendingUntilClosed(t *testing.T) {
	db := setupDB(t)
	repo := sqlstore.NewOutboxRepo(db, sqlite.Dialect)
	msg := seedOutbox(t, db, 1)[0]
	ctx := context.Background()

	_, err := repo.Claim(ctx, "relay", 10, time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, msg.ID, "broker down", nil))

	got, err := repo.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProcessedAt)
	require.NotNil(t, got.ProcessingError)
	assert.Equal(t, "broker down", *got.ProcessingError)
	assert.Equal(t, 1, got.Attempts)

	// El lease se libera: se puede reclamar de inmediato
	again, err := repo.Claim(ctx, "relay", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, 1, again[0].Attempts)

	closeAt := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkFailed(ctx, msg.ID, "still down", &closeAt))

	got, err = repo.Get(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ProcessedAt)
	assert.Equal(t, "still down", *got.ProcessingError)
	assert.Equal(t, 2, got.Attempts)

	assert.ErrorIs(t, repo.MarkFailed(ctx, msg.ID, "late", nil), domain.ErrOutboxMessageNotPending)
}

func TestIdempotencyStore_SaveAndGet(t *testing.T) {
	db := setupDB(t)
	store := sqlstore.NewIdempotencyStore(db, sqlite.Dialect)
	ctx := context.Background()

	_, err := store.GetByKey(ctx, "k-1")
	assert.ErrorIs(t, err, domain.ErrIdempotencyRecordNotFound)

	rec := domain.IdempotencyRecord{
		IdempotencyKey:     "k-1",
		RequestName:        "CreateWidget",
		SerializedResponse: []byte(`{"isSuccess":true,"value":1}`),
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.GetByKey(ctx, "k-1")
	require.NoError(t, err)
	assert.Equal(t, "CreateWidget", got.RequestName)
	assert.JSONEq(t, string(rec.SerializedResponse), string(got.SerializedResponse))

	rec.SerializedResponse = []byte(`{"isSuccess":true,"value":2}`)
	assert.ErrorIs(t, store.Save(ctx, rec), domain.ErrDuplicateIdempotencyKey)

	got, err = store.GetByKey(ctx, "k-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"isSuccess":true,"value":1}`, string(got.SerializedResponse), "el registro es inmutable")
}

func TestDeadLetterStore_AppendAndListPending(t *testing.T) {
	db := setupDB(t)
	store := sqlstore.NewDeadLetterStore(db, sqlite.Dialect)
	ctx := context.Background()

	first := domain.NewDeadLetterMessage("CreateWidget", []byte(`{"name":"a"}`), "panic: nil map", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	second := domain.NewDeadLetterMessage("CreateWidget", []byte(`{"name":"b"}`), "db exploded", time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC))
	require.NoError(t, store.Append(ctx, second))
	require.NoError(t, store.Append(ctx, first))

	pending, err := store.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, "panic: nil map", pending[0].Error)
	assert.JSONEq(t, `{"name":"a"}`, string(pending[0].Content))
}
