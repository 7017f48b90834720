package clickhouse

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/davicafu/hexashop/internal/shared/domain"
)

// Las consultas del log son SQL estándar, así que se prueban sobre SQLite.
func setupLog(t *testing.T) (*sql.DB, *EventLog) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE catalog_events_log (
			id TEXT, type TEXT, payload TEXT, occurred_at DATETIME, relayed_at DATETIME
		)`)
	require.NoError(t, err)
	return db, NewEventLog(db)
}

type itemDeleted struct {
	ID string `json:"id"`
}

func (itemDeleted) EventType() string { return "catalog_item.deleted" }

type itemCreated struct {
	ID string `json:"id"`
}

func (itemCreated) EventType() string { return "catalog_item.created" }

func TestEventLog_LogAndCountByType(t *testing.T) {
	db, log := setupLog(t)
	ctx := context.Background()
	day := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	var msgs []domain.OutboxMessage
	for _, evt := range []domain.DomainEvent{itemCreated{"1"}, itemCreated{"2"}, itemDeleted{"1"}} {
		msg, err := domain.NewOutboxMessage(evt, day)
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	require.NoError(t, log.Log(ctx, msgs...))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM catalog_events_log`).Scan(&n))
	assert.Equal(t, 3, n)

	counts, err := log.CountByType(ctx, day.Add(-time.Hour), day.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"catalog_item.created": 2, "catalog_item.deleted": 1}, counts)

	empty, err := log.CountByType(ctx, day.Add(time.Hour), day.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEventLog_HandlerLogsSingleMessage(t *testing.T) {
	db, log := setupLog(t)
	msg, err := domain.NewOutboxMessage(itemCreated{"9"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, log.Handler()(context.Background(), msg, itemCreated{"9"}))

	var payload string
	require.NoError(t, db.QueryRow(`SELECT payload FROM catalog_events_log WHERE id = ?`, msg.ID.String()).Scan(&payload))
	assert.JSONEq(t, `{"id":"9"}`, payload)
}
