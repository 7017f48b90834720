package cache

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCacheUnavailable se devuelve mientras el circuito está abierto.
var ErrCacheUnavailable = errors.New("cache unavailable")

// BreakerCache protege una Cache remota con un circuit breaker: tras varios fallos
// seguidos deja de llamarla durante openTimeout y responde ErrCacheUnavailable.
// Un miss no cuenta como fallo.
type BreakerCache struct {
	inner   Cache
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerCache(inner Cache, consecutiveFailures uint32, openTimeout time.Duration, log *zap.Logger) *BreakerCache {
	settings := gobreaker.Settings{
		Name:        "cache",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Cache circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &BreakerCache{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (c *BreakerCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	hit, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.Get(ctx, key, dest)
	})
	if err != nil {
		return false, c.translate(err)
	}
	return hit.(bool), nil
}

func (c *BreakerCache) Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.inner.Set(ctx, key, val, ttl)
	})
	return c.translate(err)
}

func (c *BreakerCache) Delete(ctx context.Context, key string) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.inner.Delete(ctx, key)
	})
	return c.translate(err)
}

// State expone el estado del circuito (closed, half-open, open).
func (c *BreakerCache) State() string {
	return c.breaker.State().String()
}

func (c *BreakerCache) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrCacheUnavailable, err)
	}
	return err
}

var _ Cache = (*BreakerCache)(nil)
