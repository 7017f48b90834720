package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/hexashop/internal/shared/infra/platform/cache"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/metrics"
	"github.com/davicafu/hexashop/internal/shared/result"
)

// cachingBehavior implementa cache-aside para queries con CacheKey. Solo se cachean
// éxitos. La caché es un acelerador: sus errores se registran y cuentan como miss.
type cachingBehavior struct {
	cache      cache.Cache
	defaultTTL time.Duration
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func newCachingBehavior(c cache.Cache, defaultTTL time.Duration, m *metrics.Metrics, log *zap.Logger) *cachingBehavior {
	return &cachingBehavior{cache: c, defaultTTL: defaultTTL, metrics: m, log: log}
}

func (b *cachingBehavior) Handle(ctx context.Context, call *Call, next Next) (result.Outcome, error) {
	if call.Desc.Kind != KindQuery || call.Desc.CacheKey == "" {
		return next(ctx)
	}
	key := call.Desc.CacheKey

	var raw json.RawMessage
	hit, err := b.cache.Get(ctx, key, &raw)
	switch {
	case err != nil:
		b.metrics.CacheLookup(call.Desc.Name, "error")
		b.log.Warn("Cache lookup failed, falling back to handler", zap.String("key", key), zap.Error(err))
	case hit:
		out, derr := call.Decode(raw)
		if derr == nil {
			b.metrics.CacheLookup(call.Desc.Name, "hit")
			return out, nil
		}
		b.metrics.CacheLookup(call.Desc.Name, "error")
		b.log.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(derr))
	default:
		b.metrics.CacheLookup(call.Desc.Name, "miss")
	}

	out, err := next(ctx)
	if err != nil || !out.IsSuccess() {
		return out, err
	}

	if err := b.cache.Set(ctx, key, out, b.ttlFor(call.Desc)); err != nil {
		b.log.Warn("Cache update failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

// ttlFor nunca devuelve un TTL infinito.
func (b *cachingBehavior) ttlFor(desc Descriptor) time.Duration {
	if desc.Expiration != nil && *desc.Expiration > 0 {
		return *desc.Expiration
	}
	return b.defaultTTL
}
