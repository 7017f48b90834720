package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/davicafu/hexashop/internal/shared/infra/platform/db/sqlstore"
)

const uniqueViolation = "23505"

// Dialect reclama filas del outbox con SKIP LOCKED para que varias instancias
// del relay no se bloqueen entre sí.
var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	Numbered:          true,
	LockClause:        "FOR UPDATE SKIP LOCKED",
	IsUniqueViolation: isUniqueViolation,
}

func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ------------------ Inicialización del Esquema ------------------

func InitSchema(db *sql.DB) error {
	stmts := []string{`
    CREATE TABLE IF NOT EXISTS outbox_messages (
        id UUID PRIMARY KEY,
        occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
        type TEXT NOT NULL,
        content JSONB NOT NULL,
        processed_at TIMESTAMP WITH TIME ZONE,
        processing_error TEXT,
        attempts INTEGER NOT NULL DEFAULT 0,
        claimed_by TEXT,
        claimed_until TIMESTAMP WITH TIME ZONE
    )`, `
    CREATE INDEX IF NOT EXISTS idx_outbox_pending
        ON outbox_messages (occurred_at) WHERE processed_at IS NULL`, `
    CREATE TABLE IF NOT EXISTS idempotency_records (
        idempotency_key TEXT PRIMARY KEY,
        request_name TEXT NOT NULL,
        serialized_response JSONB NOT NULL,
        created_at TIMESTAMP WITH TIME ZONE NOT NULL
    )`, `
    CREATE TABLE IF NOT EXISTS dead_letter_messages (
        id UUID PRIMARY KEY,
        type TEXT NOT NULL,
        content JSONB NOT NULL,
        error TEXT NOT NULL,
        occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
        processed_at TIMESTAMP WITH TIME ZONE,
        processing_error TEXT
    )`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init postgres schema: %w", err)
		}
	}
	return nil
}
