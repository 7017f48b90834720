package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/davicafu/hexashop/internal/shared/domain"
)

// IdempotencyStore guarda los registros con SET NX: la unicidad de la clave
// la garantiza Redis. Los registros expiran tras ttl.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl, prefix: "idempotency:"}
}

func (s *IdempotencyStore) GetByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrIdempotencyRecordNotFound
		}
		return nil, domain.Transient(err)
	}

	var rec domain.IdempotencyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt idempotency record %s: %w", key, err)
	}
	return &rec, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, record domain.IdempotencyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, s.prefix+record.IdempotencyKey, data, s.ttl).Result()
	if err != nil {
		return domain.Transient(err)
	}
	if !ok {
		return domain.ErrDuplicateIdempotencyKey
	}
	return nil
}

var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)
