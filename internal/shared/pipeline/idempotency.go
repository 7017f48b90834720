package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/davicafu/hexashop/internal/shared/domain"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/metrics"
	"github.com/davicafu/hexashop/internal/shared/result"
)

// CodeInProgress se devuelve cuando otra instancia sigue procesando la misma clave.
// Es transitorio: el cliente puede reintentar con la misma clave.
const CodeInProgress = result.CodeConcurrency

type idempotencyBehavior struct {
	store    domain.IdempotencyStore
	locker   KeyLocker
	leaseTTL time.Duration
	policy   StoragePolicy
	group    singleflight.Group
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func newIdempotencyBehavior(store domain.IdempotencyStore, locker KeyLocker, leaseTTL time.Duration, policy StoragePolicy, m *metrics.Metrics, log *zap.Logger) *idempotencyBehavior {
	return &idempotencyBehavior{store: store, locker: locker, leaseTTL: leaseTTL, policy: policy, metrics: m, log: log}
}

// flight es lo que comparte una ejecución single flight con sus duplicados.
type flight struct {
	name string
	out  result.Outcome
}

// Handle aplica la idempotencia a comandos con clave:
//  1. duplicados concurrentes en esta instancia comparten una sola ejecución (single flight);
//  2. si hay lease, las demás instancias esperan a que termine;
//  3. si ya existe un registro se devuelve sin invocar al handler;
//  4. si no, se ejecuta y se guarda; si otra petición ganó el Save, se devuelve lo suyo.
//
// El vuelo se identifica solo por la clave, igual que el registro en el store.
func (b *idempotencyBehavior) Handle(ctx context.Context, call *Call, next Next) (result.Outcome, error) {
	if call.Desc.Kind != KindCommand || call.Desc.IdempotencyKey == "" {
		return next(ctx)
	}

	key := call.Desc.IdempotencyKey
	for {
		ran := false
		v, err, _ := b.group.Do(key, func() (v interface{}, err error) {
			ran = true
			// Un panic dentro de singleflight se relanza en cada duplicado en espera;
			// se convierte en error aquí para que solo lo vea el dead letter.
			defer func() {
				if r := recover(); r != nil {
					v, err = nil, fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
				}
			}()
			out, err := b.execute(ctx, call, next)
			if err != nil {
				return nil, err
			}
			return flight{name: call.Desc.Name, out: out}, nil
		})

		if ran {
			if err != nil {
				return nil, err
			}
			return v.(flight).out, nil
		}

		// Duplicado que esperó a otro llamante.
		if err != nil {
			if isContextErr(err) && ctx.Err() == nil {
				// Canceló el otro cliente, no este: se vuelve a intentar con el contexto propio.
				continue
			}
			return nil, err
		}

		shared := v.(flight)
		if shared.name == call.Desc.Name {
			return shared.out, nil
		}

		// La clave la estaba usando otro comando: el registro guardado decide (KeyReused).
		out, found, err := b.lookup(ctx, call)
		if err != nil || found {
			return out, err
		}
		// El otro comando no dejó registro (fallo transitorio): esta petición se ejecuta.
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (b *idempotencyBehavior) execute(ctx context.Context, call *Call, next Next) (result.Outcome, error) {
	key := call.Desc.IdempotencyKey

	if b.locker != nil {
		release, acquired, err := b.acquire(ctx, key)
		if err != nil {
			return nil, err
		}
		if !acquired {
			// Puede que la otra instancia ya haya terminado mientras esperábamos
			if out, found, err := b.lookup(ctx, call); err != nil || found {
				return out, err
			}
			return call.Fail(result.NewError(CodeInProgress, "a request with the same idempotency key is in progress")), nil
		}
		if release != nil {
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					b.log.Warn("Failed to release idempotency lease", zap.String("key", key), zap.Error(err))
				}
			}()
		}
	}

	if out, found, err := b.lookup(ctx, call); err != nil || found {
		return out, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := next(ctx)
	if err != nil {
		return nil, err
	}
	if !b.shouldStore(out) {
		return out, nil
	}

	// El handler ya ha hecho commit: el registro se escribe aunque el cliente cancele.
	saveCtx := context.WithoutCancel(ctx)
	stored, err := b.save(saveCtx, call, out)
	if err != nil {
		b.log.Error("Failed to save idempotency record",
			zap.String("request", call.Desc.Name),
			zap.String("key", key),
			zap.Error(err))
		return out, nil
	}
	return stored, nil
}

// acquire espera a que el lease quede libre durante como mucho leaseTTL.
// Si el locker falla se continúa sin él: la unicidad del store sigue cerrando la carrera.
func (b *idempotencyBehavior) acquire(ctx context.Context, key string) (func(context.Context) error, bool, error) {
	deadline := time.Now().Add(b.leaseTTL)
	wait := 25 * time.Millisecond

	for {
		release, acquired, err := b.locker.Acquire(ctx, key, b.leaseTTL)
		if err != nil {
			b.log.Warn("Idempotency lease unavailable, relying on store uniqueness", zap.String("key", key), zap.Error(err))
			return nil, true, nil
		}
		if acquired {
			return release, true, nil
		}
		if time.Now().Add(wait).After(deadline) {
			return nil, false, nil
		}

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(wait):
		}
		if wait < 400*time.Millisecond {
			wait *= 2
		}
	}
}

func (b *idempotencyBehavior) lookup(ctx context.Context, call *Call) (result.Outcome, bool, error) {
	rec, err := b.store.GetByKey(ctx, call.Desc.IdempotencyKey)
	if errors.Is(err, domain.ErrIdempotencyRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency lookup: %w", err)
	}

	b.metrics.IdempotencyHit(call.Desc.Name)
	if rec.RequestName != call.Desc.Name {
		return call.Fail(result.NewError(result.CodeKeyReused,
			fmt.Sprintf("idempotency key already used by %s", rec.RequestName))), true, nil
	}

	out, err := call.Decode(rec.SerializedResponse)
	if err != nil {
		return nil, false, fmt.Errorf("decode idempotency record %s: %w", rec.IdempotencyKey, err)
	}
	b.log.Info("🔁 Duplicate command answered from idempotency record",
		zap.String("request", call.Desc.Name),
		zap.String("key", rec.IdempotencyKey))
	return out, true, nil
}

func (b *idempotencyBehavior) save(ctx context.Context, call *Call, out result.Outcome) (result.Outcome, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}

	err = b.store.Save(ctx, domain.IdempotencyRecord{
		IdempotencyKey:     call.Desc.IdempotencyKey,
		RequestName:        call.Desc.Name,
		SerializedResponse: data,
		CreatedAt:          time.Now().UTC(),
	})
	if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
		// Otra petición con la misma clave guardó antes: su resultado es el que vale.
		stored, found, lerr := b.lookup(ctx, call)
		if lerr != nil {
			return nil, lerr
		}
		if found {
			return stored, nil
		}
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *idempotencyBehavior) shouldStore(out result.Outcome) bool {
	if out.IsSuccess() || b.policy == StoreAll {
		return true
	}
	return !out.Failure().Transient()
}
