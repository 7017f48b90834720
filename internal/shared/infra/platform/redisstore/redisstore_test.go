package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/hexashop/internal/shared/domain"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestIdempotencyStore_SaveAndGet(t *testing.T) {
	_, client := setupRedis(t)
	store := NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	_, err := store.GetByKey(ctx, "k-1")
	assert.ErrorIs(t, err, domain.ErrIdempotencyRecordNotFound)

	rec := domain.IdempotencyRecord{
		IdempotencyKey:     "k-1",
		RequestName:        "CreateCatalogItem",
		SerializedResponse: []byte(`{"isSuccess":true,"value":"abc"}`),
		CreatedAt:          time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.GetByKey(ctx, "k-1")
	require.NoError(t, err)
	assert.Equal(t, rec.RequestName, got.RequestName)
	assert.JSONEq(t, string(rec.SerializedResponse), string(got.SerializedResponse))
}

func TestIdempotencyStore_DuplicateKey(t *testing.T) {
	_, client := setupRedis(t)
	store := NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	rec := domain.IdempotencyRecord{IdempotencyKey: "dup", RequestName: "A", SerializedResponse: []byte(`{}`)}
	require.NoError(t, store.Save(ctx, rec))

	rec.RequestName = "B"
	assert.ErrorIs(t, store.Save(ctx, rec), domain.ErrDuplicateIdempotencyKey)

	got, err := store.GetByKey(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "A", got.RequestName, "el primer registro es inmutable")
}

func TestIdempotencyStore_UnavailableIsTransient(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewIdempotencyStore(client, time.Hour)
	mr.Close()

	_, err := store.GetByKey(context.Background(), "k")
	assert.True(t, domain.IsTransient(err))
}

func TestLease_ExclusiveUntilReleased(t *testing.T) {
	_, client := setupRedis(t)
	lease := NewLease(client, "lease:")
	ctx := context.Background()

	release, ok, err := lease.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lease.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	release2, ok, err := lease.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, release2(ctx))
}

func TestLease_ExpiresWhenOwnerDisappears(t *testing.T) {
	mr, client := setupRedis(t)
	lease := NewLease(client, "lease:")
	ctx := context.Background()

	release, _, err := lease.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	other, ok, err := lease.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// El dueño original ya no puede borrar el lease ajeno
	require.NoError(t, release(ctx))
	_, ok, err = lease.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, other(ctx))
}
