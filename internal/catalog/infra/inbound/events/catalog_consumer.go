package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	catalogDomain "github.com/davicafu/hexashop/internal/catalog/domain"
	sharedDomain "github.com/davicafu/hexashop/internal/shared/domain"
	sharedEvents "github.com/davicafu/hexashop/internal/shared/events"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/cache"
	sharedUtils "github.com/davicafu/hexashop/internal/shared/infra/utils"
)

// ConsumerRequestName identifica los registros de deduplicación del consumidor
// en el store de idempotencia.
const ConsumerRequestName = "CatalogCacheEviction"

// CatalogConsumer invalida la caché local a partir de los eventos del catálogo
// relayados desde el outbox. La entrega es al menos una vez, así que deduplica
// por el id del mensaje de outbox.
type CatalogConsumer struct {
	store    sharedDomain.IdempotencyStore
	cache    cache.Cache
	instance string
	timeout  time.Duration
	log      *zap.Logger
}

// NewCatalogConsumer es el constructor. instance separa la deduplicación de cada
// réplica, porque cada una tiene su propia caché que invalidar.
func NewCatalogConsumer(store sharedDomain.IdempotencyStore, c cache.Cache, instance string, logger *zap.Logger) *CatalogConsumer {
	return &CatalogConsumer{
		store:    store,
		cache:    c,
		instance: instance,
		timeout:  500 * time.Millisecond,
		log:      logger,
	}
}

// HandleMessage es el punto de entrada para un nuevo mensaje/evento. Devuelve error
// solo cuando reintentar tiene sentido; los payloads ilegibles se descartan.
func (c *CatalogConsumer) HandleMessage(ctx context.Context, key string, payload []byte) error {
	var base sharedEvents.IntegrationEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		c.log.Warn("Failed to unmarshal integration event for catalog", zap.String("key", key), zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	dedupKey := fmt.Sprintf("evict:%s:%s", c.instance, base.ID)
	if _, err := c.store.GetByKey(ctx, dedupKey); err == nil {
		c.log.Info("Evento duplicado ignorado", zap.String("message_id", base.ID.String()), zap.String("type", base.Type))
		return nil
	} else if !errors.Is(err, sharedDomain.ErrIdempotencyRecordNotFound) {
		return err
	}

	if err := c.dispatch(ctx, base); err != nil {
		c.log.Warn("Failed to process catalog event",
			zap.String("message_id", base.ID.String()),
			zap.String("type", base.Type),
			zap.Error(err))
		return err
	}

	err := c.store.Save(ctx, sharedDomain.IdempotencyRecord{
		IdempotencyKey:     dedupKey,
		RequestName:        ConsumerRequestName,
		SerializedResponse: []byte(`{"isSuccess":true}`),
		CreatedAt:          time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, sharedDomain.ErrDuplicateIdempotencyKey) {
		// La invalidación ya se hizo y repetirla es inocua.
		c.log.Warn("⚠️ Failed to record processed catalog event", zap.String("message_id", base.ID.String()), zap.Error(err))
	}
	return nil
}

func (c *CatalogConsumer) dispatch(ctx context.Context, base sharedEvents.IntegrationEvent) error {
	switch base.Type {
	case catalogDomain.CatalogItemCreatedType:
		// Los listados paginados expiran solos.
		return sharedUtils.UnmarshalAndHandle(c.log, base.Data, func(evt catalogDomain.CatalogItemCreated) error {
			c.log.Info("Catalog item created via event", zap.String("item_id", evt.ID.String()))
			return nil
		})

	case catalogDomain.CatalogItemUpdatedType:
		return sharedUtils.UnmarshalAndHandle(c.log, base.Data, func(evt catalogDomain.CatalogItemUpdated) error {
			if evt.PriceChanged() {
				c.log.Info("💲 Catalog price changed",
					zap.String("item_id", evt.ID.String()),
					zap.Float64("old_price", evt.OldPrice),
					zap.Float64("new_price", evt.Price))
			}
			return c.evict(ctx, catalogDomain.ItemCacheKey(evt.ID))
		})

	case catalogDomain.CatalogItemDeletedType:
		return sharedUtils.UnmarshalAndHandle(c.log, base.Data, func(evt catalogDomain.CatalogItemDeleted) error {
			return c.evict(ctx, catalogDomain.ItemCacheKey(evt.ID))
		})

	case catalogDomain.CatalogBrandCreatedType:
		return sharedUtils.UnmarshalAndHandle(c.log, base.Data, func(evt catalogDomain.CatalogBrandCreated) error {
			return c.evict(ctx, catalogDomain.BrandsCacheKey)
		})

	default:
		c.log.Warn("Unknown catalog event type", zap.String("type", base.Type), zap.String("message_id", base.ID.String()))
		return nil
	}
}

func (c *CatalogConsumer) evict(ctx context.Context, key string) error {
	if err := c.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("evict %s: %w", key, err)
	}
	c.log.Debug("🧹 Cache entry evicted", zap.String("key", key))
	return nil
}
