package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/hexashop/internal/shared/infra/platform/metrics"
	"github.com/davicafu/hexashop/internal/shared/result"
)

type traceKey struct{}

// WithTraceID propaga un trace id (p. ej. el X-Request-ID de HTTP) a la cadena.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

type loggingBehavior struct {
	metrics *metrics.Metrics
	log     *zap.Logger
}

func newLoggingBehavior(m *metrics.Metrics, log *zap.Logger) *loggingBehavior {
	return &loggingBehavior{metrics: m, log: log}
}

func (b *loggingBehavior) Handle(ctx context.Context, call *Call, next Next) (result.Outcome, error) {
	traceID := TraceID(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = WithTraceID(ctx, traceID)
	}

	log := b.log.With(
		zap.String("request", call.Desc.Name),
		zap.String("kind", call.Desc.Kind.String()),
		zap.String("trace_id", traceID),
	)
	log.Debug("Processing request")

	start := time.Now()
	out, err := next(ctx)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		b.metrics.ObserveRequest(call.Desc.Name, "fault", elapsed)
		log.Error("Request faulted", zap.Duration("elapsed", elapsed), zap.Error(err))
	case out.IsSuccess():
		b.metrics.ObserveRequest(call.Desc.Name, "success", elapsed)
		log.Info("Request completed", zap.Duration("elapsed", elapsed))
	default:
		b.metrics.ObserveRequest(call.Desc.Name, "failure", elapsed)
		log.Warn("Request completed with failure",
			zap.Duration("elapsed", elapsed),
			zap.String("error_code", out.Failure().Code),
			zap.String("error_message", out.Failure().Message))
	}
	return out, err
}
