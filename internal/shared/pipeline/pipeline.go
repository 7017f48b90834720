// Package pipeline ejecuta comandos y queries a través de una cadena fija de behaviors:
// dead letters, logging, validación, idempotencia, caché y reintentos, en ese orden,
// alrededor del handler.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/hexashop/internal/shared/result"
)

// Kind distingue comandos (mutan estado) de queries (solo lectura).
type Kind int

const (
	KindCommand Kind = iota
	KindQuery
)

func (k Kind) String() string {
	if k == KindQuery {
		return "query"
	}
	return "command"
}

// Descriptor declara qué capacidades opcionales tiene una petición.
type Descriptor struct {
	Name string
	Kind Kind

	// IdempotencyKey activa la idempotencia para comandos cuando no está vacía.
	IdempotencyKey string

	// CacheKey activa el cache-aside para queries cuando no está vacía.
	// Expiration nil (o <= 0) usa el TTL por defecto.
	CacheKey   string
	Expiration *time.Duration

	// Retry activa el stage de reintentos.
	Retry bool
}

// Request es cualquier comando o query que el pipeline sabe describir.
type Request interface {
	Describe() Descriptor
}

// Handler es la lógica de negocio de una petición. Un Result fallido es un resultado
// de negocio; un error (o un panic) es un fallo no controlado.
type Handler[R Request, T any] func(ctx context.Context, req R) (result.Result[T], error)

// Call es la petición en vuelo tal y como la ven los behaviors.
type Call struct {
	Request Request
	Desc    Descriptor

	decode func(data []byte) (result.Outcome, error)
	fail   func(err result.Error) result.Outcome
}

// Decode reconstruye un Result del tipo concreto de la petición desde JSON.
func (c *Call) Decode(data []byte) (result.Outcome, error) {
	return c.decode(data)
}

// Fail construye un Result fallido del tipo concreto de la petición.
func (c *Call) Fail(err result.Error) result.Outcome {
	return c.fail(err)
}

// Next invoca el resto de la cadena.
type Next func(ctx context.Context) (result.Outcome, error)

type Behavior interface {
	Handle(ctx context.Context, call *Call, next Next) (result.Outcome, error)
}

var ErrUnexpectedOutcome = errors.New("unexpected outcome type")

// Pipeline es inmutable tras New y seguro para uso concurrente.
type Pipeline struct {
	behaviors []Behavior
	log       *zap.Logger
}

// New construye la cadena en su orden fijo. Los stages cuyo colaborador no se
// configura (store de idempotencia, caché, dead letters, política de reintentos)
// no se incluyen.
func New(log *zap.Logger, opts ...Option) *Pipeline {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	var chain []Behavior
	if cfg.deadLetters != nil {
		chain = append(chain, newDeadLetterBehavior(cfg.deadLetters, cfg.deadLetterTimeout, cfg.metrics, log))
	}
	chain = append(chain, newLoggingBehavior(cfg.metrics, log))
	chain = append(chain, newValidationBehavior(cfg.validate))
	if cfg.idempotency != nil {
		chain = append(chain, newIdempotencyBehavior(cfg.idempotency, cfg.locker, cfg.leaseTTL, cfg.policy, cfg.metrics, log))
	}
	if cfg.cache != nil {
		chain = append(chain, newCachingBehavior(cfg.cache, cfg.defaultTTL, cfg.metrics, log))
	}
	if cfg.retry != nil {
		chain = append(chain, newRetryBehavior(*cfg.retry, cfg.classifier, cfg.metrics, log))
	}

	return &Pipeline{behaviors: chain, log: log}
}

// Execute ejecuta req a través de la cadena y termina en handler.
func Execute[R Request, T any](ctx context.Context, p *Pipeline, req R, handler Handler[R, T]) (result.Result[T], error) {
	call := &Call{
		Request: req,
		Desc:    req.Describe(),
		decode: func(data []byte) (result.Outcome, error) {
			var r result.Result[T]
			if err := json.Unmarshal(data, &r); err != nil {
				return nil, err
			}
			return r, nil
		},
		fail: func(err result.Error) result.Outcome {
			return result.Failure[T](err)
		},
	}

	terminal := func(ctx context.Context) (result.Outcome, error) {
		r, err := handler(ctx, req)
		if err != nil {
			return nil, err
		}
		return r, nil
	}

	out, err := p.run(ctx, call, terminal)
	if err != nil {
		return result.Result[T]{}, err
	}
	r, ok := out.(result.Result[T])
	if !ok {
		return result.Result[T]{}, fmt.Errorf("%w: %T for %s", ErrUnexpectedOutcome, out, call.Desc.Name)
	}
	return r, nil
}

func (p *Pipeline) run(ctx context.Context, call *Call, terminal Next) (result.Outcome, error) {
	next := terminal
	for i := len(p.behaviors) - 1; i >= 0; i-- {
		b, inner := p.behaviors[i], next
		next = func(ctx context.Context) (result.Outcome, error) {
			return b.Handle(ctx, call, inner)
		}
	}
	return next(ctx)
}
