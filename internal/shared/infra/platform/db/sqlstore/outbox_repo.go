package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/hexashop/internal/shared/domain"
)

// OutboxRepo implementa domain.OutboxRepository con reclamación atómica por lease,
// de modo que varias instancias del relay no despachan la misma fila a la vez.
type OutboxRepo struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewOutboxRepo(db *sql.DB, dialect Dialect) *OutboxRepo {
	return &OutboxRepo{db: db, dialect: dialect, now: func() time.Time { return time.Now().UTC() }}
}

// Claim marca hasta limit mensajes pendientes con un token propio y los devuelve en
// orden de occurred_at. Un mensaje con lease vencido vuelve a ser reclamable.
func (r *OutboxRepo) Claim(ctx context.Context, owner string, limit int, lease time.Duration) ([]domain.OutboxMessage, error) {
	now := r.now()
	token := owner + "/" + uuid.NewString()

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(fmt.Sprintf(`
		UPDATE outbox_messages
		SET claimed_by = ?, claimed_until = ?
		WHERE id IN (
			SELECT id FROM outbox_messages
			WHERE processed_at IS NULL
			  AND (claimed_until IS NULL OR claimed_until < ?)
			ORDER BY occurred_at
			LIMIT ?
			%s
		)`, r.dialect.LockClause)),
		token, now.Add(lease), now, limit,
	)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("claim outbox: %w", err))
	}

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(`
		SELECT id, occurred_at, type, content, attempts
		FROM outbox_messages
		WHERE claimed_by = ? AND processed_at IS NULL
		ORDER BY occurred_at`), token)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("read claimed outbox: %w", err))
	}
	defer rows.Close()

	var messages []domain.OutboxMessage
	for rows.Next() {
		var msg domain.OutboxMessage
		var content string
		if err := rows.Scan(&msg.ID, &msg.OccurredAt, &msg.Type, &content, &msg.Attempts); err != nil {
			return nil, err
		}
		msg.Content = []byte(content)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// MarkProcessed nunca sobreescribe un processed_at ya fijado.
func (r *OutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
		UPDATE outbox_messages
		SET processed_at = ?, processing_error = NULL, claimed_by = NULL, claimed_until = NULL
		WHERE id = ? AND processed_at IS NULL`),
		at.UTC(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res, id)
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string, closeAt *time.Time) error {
	var processedAt interface{}
	if closeAt != nil {
		processedAt = closeAt.UTC()
	}

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
		UPDATE outbox_messages
		SET attempts = attempts + 1, processing_error = ?, processed_at = ?,
		    claimed_by = NULL, claimed_until = NULL
		WHERE id = ? AND processed_at IS NULL`),
		reason, processedAt, id.String(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res, id)
}

// Get lee un mensaje completo; lo usan los tests y las herramientas de operación.
func (r *OutboxRepo) Get(ctx context.Context, id uuid.UUID) (*domain.OutboxMessage, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(`
		SELECT id, occurred_at, type, content, processed_at, processing_error, attempts
		FROM outbox_messages WHERE id = ?`), id.String())

	var msg domain.OutboxMessage
	var content string
	var processedAt sql.NullTime
	var processingError sql.NullString
	if err := row.Scan(&msg.ID, &msg.OccurredAt, &msg.Type, &content, &processedAt, &processingError, &msg.Attempts); err != nil {
		return nil, err
	}
	msg.Content = []byte(content)
	if processedAt.Valid {
		t := processedAt.Time
		msg.ProcessedAt = &t
	}
	if processingError.Valid {
		s := processingError.String
		msg.ProcessingError = &s
	}
	return &msg, nil
}

func expectOneRow(res sql.Result, id uuid.UUID) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", domain.ErrOutboxMessageNotPending, id)
	}
	return nil
}

var _ domain.OutboxRepository = (*OutboxRepo)(nil)
