package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/hexashop/internal/shared/domain"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/metrics"
	"github.com/davicafu/hexashop/internal/shared/infra/utils"
	"github.com/davicafu/hexashop/internal/shared/result"
)

// Classifier decide si un intento merece repetirse. Recibe el Result (nil si hubo error)
// y el error del intento.
type Classifier func(out result.Outcome, err error) bool

// DefaultClassifier reintenta errores transitorios y conflictos de concurrencia, y
// Results fallidos con código transitorio. Todo lo demás es fatal.
func DefaultClassifier(out result.Outcome, err error) bool {
	if err != nil {
		return domain.IsTransient(err)
	}
	return out != nil && !out.IsSuccess() && out.Failure().Transient()
}

// errRetryableOutcome transporta un Result transitorio por el bucle de reintentos.
var errRetryableOutcome = errors.New("retryable outcome")

type retryBehavior struct {
	policy     utils.RetryPolicy
	classifier Classifier
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func newRetryBehavior(policy utils.RetryPolicy, classifier Classifier, m *metrics.Metrics, log *zap.Logger) *retryBehavior {
	return &retryBehavior{policy: policy, classifier: classifier, metrics: m, log: log}
}

func (b *retryBehavior) Handle(ctx context.Context, call *Call, next Next) (result.Outcome, error) {
	if !call.Desc.Retry {
		return next(ctx)
	}

	var last result.Outcome
	attempt := func() error {
		out, err := next(ctx)
		last = out
		if err != nil {
			return err
		}
		if b.classifier(out, nil) {
			return errRetryableOutcome
		}
		return nil
	}
	retryable := func(err error) bool {
		return errors.Is(err, errRetryableOutcome) || b.classifier(nil, err)
	}
	onRetry := func(err error, wait time.Duration) {
		b.metrics.Retry(call.Desc.Name)
		b.log.Warn("Retrying request",
			zap.String("request", call.Desc.Name),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	err := utils.Retry(ctx, b.policy, retryable, attempt, onRetry)
	if errors.Is(err, errRetryableOutcome) {
		return last, nil
	}
	if err != nil {
		return nil, err
	}
	return last, nil
}
