package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/davicafu/hexashop/internal/shared/domain"
)

// IdempotencyStore se apoya en la PRIMARY KEY de idempotency_records para la unicidad.
type IdempotencyStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewIdempotencyStore(db *sql.DB, dialect Dialect) *IdempotencyStore {
	return &IdempotencyStore{db: db, dialect: dialect}
}

func (s *IdempotencyStore) GetByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`
		SELECT idempotency_key, request_name, serialized_response, created_at
		FROM idempotency_records WHERE idempotency_key = ?`), key)

	var rec domain.IdempotencyRecord
	var response string
	if err := row.Scan(&rec.IdempotencyKey, &rec.RequestName, &response, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrIdempotencyRecordNotFound
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	rec.SerializedResponse = []byte(response)
	return &rec, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, record domain.IdempotencyRecord) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO idempotency_records (idempotency_key, request_name, serialized_response, created_at)
		VALUES (?, ?, ?, ?)`),
		record.IdempotencyKey, record.RequestName, string(record.SerializedResponse), record.CreatedAt.UTC(),
	)
	if s.dialect.IsUnique(err) {
		return domain.ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return fmt.Errorf("save idempotency record: %w", err)
	}
	return nil
}

var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)
