package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// Lease es un lock distribuido con expiración. Solo el dueño del token puede liberarlo,
// y si el dueño muere el lock caduca solo.
type Lease struct {
	client *redis.Client
	prefix string
}

func NewLease(client *redis.Client, prefix string) *Lease {
	return &Lease{client: client, prefix: prefix}
}

// Acquire devuelve acquired=false, sin error, si otro dueño tiene la clave.
func (l *Lease) Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error) {
	if ttl <= 0 {
		return nil, false, errors.New("ttl must be > 0")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		return l.client.Eval(ctx, releaseScript, []string{l.prefix + key}, token).Err()
	}
	return release, true, nil
}
