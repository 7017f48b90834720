package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/davicafu/hexashop/internal/shared/domain"
	"github.com/davicafu/hexashop/internal/shared/infra/relayer"
)

// EventLog guarda en ClickHouse una copia de cada evento relayado para analítica.
type EventLog struct {
	db  *sql.DB
	now func() time.Time
}

func Open(addr, dbName string) (*sql.DB, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}
	return conn, nil
}

func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Handler adapta el log a un handler del relay.
func (l *EventLog) Handler() relayer.Handler {
	return func(ctx context.Context, msg domain.OutboxMessage, _ domain.DomainEvent) error {
		return l.Log(ctx, msg)
	}
}

// Log inserta un lote de mensajes. ClickHouse funciona mejor con inserciones en lotes.
func (l *EventLog) Log(ctx context.Context, msgs ...domain.OutboxMessage) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transient(err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO catalog_events_log (id, type, payload, occurred_at, relayed_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	relayedAt := l.now()
	for _, msg := range msgs {
		if _, err := stmt.ExecContext(ctx,
			msg.ID.String(),
			msg.Type,
			string(msg.Content),
			msg.OccurredAt.UTC(),
			relayedAt,
		); err != nil {
			// Si un registro falla, hacemos rollback de todo el lote.
			tx.Rollback()
			return fmt.Errorf("failed to log event %s: %w", msg.ID, err)
		}
	}
	return tx.Commit()
}

// CountByType cuenta los eventos relayados por tipo en [start, end].
func (l *EventLog) CountByType(ctx context.Context, start, end time.Time) (map[string]uint64, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT type, COUNT(*) AS total
		FROM catalog_events_log
		WHERE occurred_at BETWEEN ? AND ?
		GROUP BY type
	`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]uint64)
	for rows.Next() {
		var eventType string
		var total uint64
		if err := rows.Scan(&eventType, &total); err != nil {
			return nil, err
		}
		out[eventType] = total
	}
	return out, rows.Err()
}

// InitSchema crea la tabla en ClickHouse si no existe.
// Se particiona por mes y se ordena por tipo y fecha.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS catalog_events_log (
			id          UUID,
			type        String,
			payload     String,
			occurred_at DateTime64(3),
			relayed_at  DateTime64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(occurred_at)
		ORDER BY (type, occurred_at);
	`)
	return err
}
