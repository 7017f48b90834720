package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/davicafu/hexashop/internal/shared/domain"
)

// UnitOfWorkFactory abre una UnitOfWork por comando sobre la misma *sql.DB.
type UnitOfWorkFactory struct {
	db      *sql.DB
	dialect Dialect
}

func NewUnitOfWorkFactory(db *sql.DB, dialect Dialect) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{db: db, dialect: dialect}
}

func (f *UnitOfWorkFactory) New() domain.UnitOfWork {
	return &UnitOfWork{db: f.db, dialect: f.dialect}
}

// UnitOfWork ejecuta en Commit las escrituras preparadas y añade una fila de outbox
// por cada evento de los agregados rastreados, todo en una transacción.
type UnitOfWork struct {
	db      *sql.DB
	dialect Dialect
	ops     []domain.TxOp
	sources []domain.EventSource
}

func (u *UnitOfWork) Stage(op domain.TxOp) {
	u.ops = append(u.ops, op)
}

func (u *UnitOfWork) Track(src domain.EventSource) {
	u.sources = append(u.sources, src)
}

func (u *UnitOfWork) Commit(ctx context.Context) (err error) {
	// Cancelación respetada antes de empezar a escribir
	if err := ctx.Err(); err != nil {
		return err
	}

	// occurred_at crece en un microsegundo por evento (la precisión de Postgres)
	// para que el relay los entregue en el orden en que se levantaron.
	now := time.Now().UTC().Truncate(time.Microsecond)
	var messages []domain.OutboxMessage
	for _, src := range u.sources {
		for _, evt := range src.DomainEvents() {
			at := now.Add(time.Duration(len(messages)) * time.Microsecond)
			msg, err := domain.NewOutboxMessage(evt, at)
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
	}

	// Una vez iniciada, la transacción termina aunque el cliente cancele.
	txCtx := context.WithoutCancel(ctx)
	tx, err := u.db.BeginTx(txCtx, nil)
	if err != nil {
		return domain.Transient(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rtx := &reboundTx{tx: tx, dialect: u.dialect}
	for _, op := range u.ops {
		if err = op(txCtx, rtx); err != nil {
			return err
		}
	}
	for _, msg := range messages {
		if err = insertOutboxTx(txCtx, rtx, msg); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return err
		}
		return domain.Transient(fmt.Errorf("commit: %w", err))
	}

	for _, src := range u.sources {
		src.ClearDomainEvents()
	}
	return nil
}

func insertOutboxTx(ctx context.Context, tx domain.Tx, msg domain.OutboxMessage) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_messages (id, occurred_at, type, content, attempts) VALUES (?, ?, ?, ?, 0)`,
		msg.ID.String(), msg.OccurredAt, msg.Type, string(msg.Content),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox message: %w", err)
	}
	return nil
}

// reboundTx adapta los placeholders de las escrituras preparadas al dialecto.
type reboundTx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *reboundTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *reboundTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *reboundTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...)
}

var (
	_ domain.UnitOfWork        = (*UnitOfWork)(nil)
	_ domain.UnitOfWorkFactory = (*UnitOfWorkFactory)(nil)
	_ domain.Tx                = (*reboundTx)(nil)
)
