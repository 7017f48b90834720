package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy define intentos y ventana de backoff exponencial con jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy son 3 intentos en total.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0 // el límite lo ponen los intentos

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Retry ejecuta fn hasta MaxAttempts veces. Solo se reintentan los errores
// que retryable acepta; el resto se devuelve en el acto. onRetry puede ser nil.
func Retry(ctx context.Context, p RetryPolicy, retryable func(error) bool, fn func() error, onRetry func(err error, wait time.Duration)) error {
	op := func() error {
		err := fn()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if onRetry == nil {
		onRetry = func(error, time.Duration) {}
	}
	return backoff.RetryNotify(op, p.backOff(ctx), onRetry)
}
