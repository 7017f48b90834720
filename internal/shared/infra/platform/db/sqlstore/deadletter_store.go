package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/davicafu/hexashop/internal/shared/domain"
)

type DeadLetterStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewDeadLetterStore(db *sql.DB, dialect Dialect) *DeadLetterStore {
	return &DeadLetterStore{db: db, dialect: dialect}
}

func (s *DeadLetterStore) Append(ctx context.Context, msg domain.DeadLetterMessage) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO dead_letter_messages (id, type, content, error, occurred_at)
		VALUES (?, ?, ?, ?, ?)`),
		msg.ID.String(), msg.Type, string(msg.Content), msg.Error, msg.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append dead letter: %w", err)
	}
	return nil
}

// ListPending devuelve los dead letters aún sin procesar, los más antiguos primero.
func (s *DeadLetterStore) ListPending(ctx context.Context, limit int) ([]domain.DeadLetterMessage, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT id, type, content, error, occurred_at
		FROM dead_letter_messages
		WHERE processed_at IS NULL
		ORDER BY occurred_at
		LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DeadLetterMessage
	for rows.Next() {
		var msg domain.DeadLetterMessage
		var content string
		if err := rows.Scan(&msg.ID, &msg.Type, &content, &msg.Error, &msg.OccurredAt); err != nil {
			return nil, err
		}
		msg.Content = []byte(content)
		out = append(out, msg)
	}
	return out, rows.Err()
}

var _ domain.DeadLetterStore = (*DeadLetterStore)(nil)
