package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/redis/rueidis"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	catalogDomain "github.com/davicafu/hexashop/internal/catalog/domain"
	config "github.com/davicafu/hexashop/internal/config"
	sharedDomain "github.com/davicafu/hexashop/internal/shared/domain"
	"github.com/davicafu/hexashop/internal/shared/infra/analytics/clickhouse"
	infraEvents "github.com/davicafu/hexashop/internal/shared/infra/events"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/cache"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/db/mongodb"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/db/postgres"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/db/sqlite"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/db/sqlstore"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/filesystem"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/redisstore"
	"github.com/davicafu/hexashop/internal/shared/infra/relayer"
)

const (
	breakerOpenTimeout = 30 * time.Second
	inMemorySubBuffer  = 64
)

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, sqlstore.Dialect, error) {
	if cfg.DBDriver == "postgres" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, sqlstore.Dialect{}, err
		}
		if err := postgres.InitSchema(db); err != nil {
			db.Close()
			return nil, sqlstore.Dialect{}, err
		}
		return db, postgres.Dialect, nil
	}

	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, sqlstore.Dialect{}, err
	}
	if err := sqlite.InitSchema(db); err != nil {
		db.Close()
		return nil, sqlstore.Dialect{}, err
	}
	return db, sqlite.Dialect, nil
}

// redisInfra agrupa lo que depende de Redis. Sin Redis, la caché cae a memoria y
// no hay lease entre instancias.
type redisInfra struct {
	client *redis.Client
	cache  cache.Cache
	lease  *redisstore.Lease
	close  func()
}

func connectRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) *redisInfra {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️ Redis no disponible, cache en memoria", zap.Error(err))
		_ = rdb.Close()
		mem := cache.NewInMemoryCache(cfg.CacheDefaultTTL, 3*cfg.CacheDefaultTTL)
		return &redisInfra{
			cache: mem,
			close: mem.Stop,
		}
	}

	log.Info("✅ Redis conectado, cache habilitado")
	inner := cache.NewRedisCache(rdb, cfg.CacheDefaultTTL, "hexashop:cache:")
	return &redisInfra{
		client: rdb,
		cache:  cache.NewBreakerCache(inner, cfg.CacheBreakerTrip, breakerOpenTimeout, log),
		lease:  redisstore.NewLease(rdb, "hexashop:lease:"),
		close:  func() { _ = rdb.Close() },
	}
}

func buildIdempotencyStore(cfg *config.Config, db *sql.DB, dialect sqlstore.Dialect, infra *redisInfra) (sharedDomain.IdempotencyStore, error) {
	if cfg.IdempotencyStore == "redis" {
		if infra.client == nil {
			return nil, fmt.Errorf("IDEMPOTENCY_STORE=redis but redis at %s is unreachable", cfg.RedisAddr)
		}
		return redisstore.NewIdempotencyStore(infra.client, cfg.IdempotencyTTL), nil
	}
	return sqlstore.NewIdempotencyStore(db, dialect), nil
}

func buildDeadLetterStore(ctx context.Context, cfg *config.Config, db *sql.DB, dialect sqlstore.Dialect) (sharedDomain.DeadLetterStore, func(), error) {
	switch cfg.DeadLetterSink {
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		store, err := mongodb.NewDeadLetterStore(ctx, client, cfg.MongoDB)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return store, func() { _ = client.Disconnect(context.Background()) }, nil
	case "file":
		return filesystem.NewJSONLDeadLetterStore(cfg.DeadLetterFile), func() {}, nil
	default:
		return sqlstore.NewDeadLetterStore(db, dialect), func() {}, nil
	}
}

// wireEventBus engancha el relay al bus configurado y arranca, si lo hay, su lado
// de consumo en g.
func wireEventBus(ctx context.Context, g *errgroup.Group, cfg *config.Config, registry *relayer.Registry, consumer relayer.MessageHandler, log *zap.Logger) (func(), error) {
	switch cfg.EventBus {
	case "kafka":
		log.Info("🚀 Usando Kafka como bus de eventos", zap.Strings("brokers", cfg.KafkaBrokers))
		writer := &kafka.Writer{
			Addr:     kafka.TCP(cfg.KafkaBrokers...),
			Topic:    cfg.KafkaTopic,
			Balancer: &kafka.Hash{},
		}
		registry.Subscribe(relayer.PublishTo(infraEvents.NewKafkaPublisher(writer, log)))

		// Cada instancia tiene su propia caché: un grupo por instancia para recibirlo todo.
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			GroupID:  cfg.KafkaGroupID + "-" + cfg.InstanceID,
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		})
		adapter := infraEvents.NewConsumerAdapter(reader, consumer, log)
		g.Go(func() error {
			adapter.Start(ctx)
			return nil
		})
		return func() {
			_ = adapter.Close()
			_ = writer.Close()
		}, nil

	case "redis-streams":
		log.Info("🚀 Usando Redis Streams como bus de eventos", zap.String("stream", cfg.StreamKey))
		client, err := rueidis.NewClient(rueidis.ClientOption{InitAddress: []string{cfg.RedisAddr}})
		if err != nil {
			return nil, fmt.Errorf("connect redis streams: %w", err)
		}
		registry.Subscribe(relayer.PublishTo(infraEvents.NewRedisStreamPublisher(client, cfg.StreamKey, log)))
		// El stream es para consumidores externos; la caché local se invalida aquí mismo.
		registry.Subscribe(relayer.DeliverTo(consumer))
		return client.Close, nil

	default:
		log.Info("⚡️Usando bus de eventos en memoria (canales de Go)")
		bus := infraEvents.NewInMemoryEventBus(catalogDomain.CatalogTopic, log)
		registry.Subscribe(relayer.PublishTo(bus))

		sub := bus.Subscribe(inMemorySubBuffer)
		log.Info("🎧 Iniciando listener en memoria para eventos del catálogo")
		g.Go(func() error {
			infraEvents.Consume(ctx, sub, consumer, log)
			return nil
		})
		return bus.Close, nil
	}
}

// wireAnalytics registra cada mensaje relayado en ClickHouse si está configurado.
func wireAnalytics(cfg *config.Config, registry *relayer.Registry, log *zap.Logger) (func(), error) {
	if cfg.ClickHouseAddr == "" {
		return func() {}, nil
	}
	db, err := clickhouse.Open(cfg.ClickHouseAddr, cfg.ClickHouseDB)
	if err != nil {
		return nil, err
	}
	if err := clickhouse.InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	registry.Subscribe(clickhouse.NewEventLog(db).Handler())
	log.Info("📊 Registro de eventos en ClickHouse habilitado", zap.String("addr", cfg.ClickHouseAddr))
	return func() { _ = db.Close() }, nil
}
