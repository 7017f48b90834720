package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/davicafu/hexashop/internal/shared/infra/platform/db/sqlstore"
)

// Dialect usa '?' y no necesita bloqueo de filas: SQLite serializa las escrituras.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite",
	IsUniqueViolation: isUniqueViolation,
}

// Open abre la base y limita el pool a una conexión, necesario con ":memory:".
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	return db, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// ------------------ Inicialización de DB ------------------

// InitSchema crea las tablas del outbox, la idempotencia y los dead letters.
func InitSchema(db *sql.DB) error {
	stmts := []string{`
        CREATE TABLE IF NOT EXISTS outbox_messages (
            id TEXT PRIMARY KEY,
            occurred_at DATETIME NOT NULL,
            type TEXT NOT NULL,
            content TEXT NOT NULL,
            processed_at DATETIME,
            processing_error TEXT,
            attempts INTEGER NOT NULL DEFAULT 0,
            claimed_by TEXT,
            claimed_until DATETIME
        )`, `
        CREATE INDEX IF NOT EXISTS idx_outbox_pending
            ON outbox_messages (processed_at, occurred_at)`, `
        CREATE TABLE IF NOT EXISTS idempotency_records (
            idempotency_key TEXT PRIMARY KEY,
            request_name TEXT NOT NULL,
            serialized_response TEXT NOT NULL,
            created_at DATETIME NOT NULL
        )`, `
        CREATE TABLE IF NOT EXISTS dead_letter_messages (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            content TEXT NOT NULL,
            error TEXT NOT NULL,
            occurred_at DATETIME NOT NULL,
            processed_at DATETIME,
            processing_error TEXT
        )`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return nil
}
