package pipeline

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/davicafu/hexashop/internal/shared/domain"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/cache"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/metrics"
	"github.com/davicafu/hexashop/internal/shared/infra/utils"
)

// StoragePolicy decide qué resultados guarda la idempotencia.
type StoragePolicy int

const (
	// StoreTerminal guarda éxitos y fallos definitivos; los fallos transitorios
	// no se guardan para que el cliente pueda reintentar con la misma clave.
	StoreTerminal StoragePolicy = iota
	// StoreAll guarda cualquier Result, también los fallos transitorios.
	StoreAll
)

func ParseStoragePolicy(s string) StoragePolicy {
	if s == "all" {
		return StoreAll
	}
	return StoreTerminal
}

// KeyLocker es un lease entre instancias sobre la clave de idempotencia.
type KeyLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

type settings struct {
	deadLetters       domain.DeadLetterStore
	deadLetterTimeout time.Duration

	idempotency domain.IdempotencyStore
	locker      KeyLocker
	leaseTTL    time.Duration
	policy      StoragePolicy

	cache      cache.Cache
	defaultTTL time.Duration

	retry      *utils.RetryPolicy
	classifier Classifier

	validate *validator.Validate
	metrics  *metrics.Metrics
}

func defaultSettings() settings {
	return settings{
		deadLetterTimeout: 5 * time.Second,
		leaseTTL:          10 * time.Second,
		policy:            StoreTerminal,
		defaultTTL:        time.Minute,
		classifier:        DefaultClassifier,
		validate:          validator.New(),
	}
}

type Option func(*settings)

func WithDeadLetters(store domain.DeadLetterStore) Option {
	return func(s *settings) { s.deadLetters = store }
}

func WithIdempotency(store domain.IdempotencyStore, policy StoragePolicy) Option {
	return func(s *settings) {
		s.idempotency = store
		s.policy = policy
	}
}

// WithKeyLease añade un lease distribuido por clave además del single flight local.
func WithKeyLease(locker KeyLocker, ttl time.Duration) Option {
	return func(s *settings) {
		s.locker = locker
		if ttl > 0 {
			s.leaseTTL = ttl
		}
	}
}

// WithCache activa el cache-aside. defaultTTL se aplica a queries sin Expiration.
func WithCache(c cache.Cache, defaultTTL time.Duration) Option {
	return func(s *settings) {
		s.cache = c
		if defaultTTL > 0 {
			s.defaultTTL = defaultTTL
		}
	}
}

func WithRetry(policy utils.RetryPolicy, classifier Classifier) Option {
	return func(s *settings) {
		s.retry = &policy
		if classifier != nil {
			s.classifier = classifier
		}
	}
}

func WithValidator(v *validator.Validate) Option {
	return func(s *settings) { s.validate = v }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}
