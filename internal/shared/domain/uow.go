package domain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrConcurrencyConflict indica una violación del bloqueo optimista al hacer commit.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrTransient marca fallos de infraestructura que pueden desaparecer reintentando.
	ErrTransient = errors.New("transient failure")
)

// Transient envuelve err para que la política de reintentos lo considere reintentable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrConcurrencyConflict)
}

// Tx es el subconjunto de *sql.Tx que usan las escrituras preparadas.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxOp es una escritura diferida hasta el commit de la Unit of Work.
type TxOp func(ctx context.Context, tx Tx) error

// UnitOfWork agrupa las escrituras de un comando y las filas de outbox de los
// agregados rastreados en una sola transacción. O se persiste todo o nada.
type UnitOfWork interface {
	Stage(op TxOp)
	Track(src EventSource)
	Commit(ctx context.Context) error
}

// UnitOfWorkFactory abre una Unit of Work por comando.
type UnitOfWorkFactory interface {
	New() UnitOfWork
}
