package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/hexashop/internal/shared/domain"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/metrics"
	"github.com/davicafu/hexashop/internal/shared/result"
)

// ErrPanic envuelve un panic recuperado dentro de la cadena.
var ErrPanic = errors.New("panic while handling request")

// deadLetterBehavior guarda en el store de dead letters cualquier fallo no controlado
// de un comando y devuelve el error original. Nunca se traga el error.
type deadLetterBehavior struct {
	store   domain.DeadLetterStore
	timeout time.Duration
	metrics *metrics.Metrics
	log     *zap.Logger
}

func newDeadLetterBehavior(store domain.DeadLetterStore, timeout time.Duration, m *metrics.Metrics, log *zap.Logger) *deadLetterBehavior {
	return &deadLetterBehavior{store: store, timeout: timeout, metrics: m, log: log}
}

func (b *deadLetterBehavior) Handle(ctx context.Context, call *Call, next Next) (out result.Outcome, err error) {
	if call.Desc.Kind != KindCommand {
		return next(ctx)
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
			b.capture(ctx, call, err)
		}
	}()

	out, err = next(ctx)
	if err != nil && !cancelledByCaller(ctx, err) {
		b.capture(ctx, call, err)
	}
	return out, err
}

func (b *deadLetterBehavior) capture(ctx context.Context, call *Call, cause error) {
	content, err := json.Marshal(call.Request)
	if err != nil {
		content, _ = json.Marshal(map[string]string{"unserializable": err.Error()})
	}
	msg := domain.NewDeadLetterMessage(call.Desc.Name, content, cause.Error(), time.Now())

	// La escritura no depende de la cancelación de la petición: una vez empezada termina.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	if err := b.store.Append(writeCtx, msg); err != nil {
		b.metrics.DeadLetter(call.Desc.Name, "lost")
		b.log.Error("❌ No se pudo guardar el dead letter",
			zap.String("request", call.Desc.Name),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}

	b.metrics.DeadLetter(call.Desc.Name, "stored")
	b.log.Warn("📥 Petición enviada a dead letters",
		zap.String("request", call.Desc.Name),
		zap.String("dead_letter_id", msg.ID.String()),
		zap.NamedError("cause", cause))
}

// cancelledByCaller distingue la cancelación del propio cliente de un fallo real.
func cancelledByCaller(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
