package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	catalogApp "github.com/davicafu/hexashop/internal/catalog/application"
	catalogDomain "github.com/davicafu/hexashop/internal/catalog/domain"
	catalogEvents "github.com/davicafu/hexashop/internal/catalog/infra/inbound/events"
	catalogHttp "github.com/davicafu/hexashop/internal/catalog/infra/inbound/http"
	"github.com/davicafu/hexashop/internal/catalog/infra/outbound/db/sqlrepo"
	config "github.com/davicafu/hexashop/internal/config"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/db/sqlstore"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/metrics"
	"github.com/davicafu/hexashop/internal/shared/infra/relayer"
	"github.com/davicafu/hexashop/internal/shared/infra/utils"
	"github.com/davicafu/hexashop/internal/shared/pipeline"
	"github.com/davicafu/hexashop/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// ---------------- Main ----------------
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Init("info")
		logger.Logger().Fatal("invalid configuration", zap.Error(err))
	}

	logger.Init(cfg.LogLevel) // inicializa zap
	log := logger.Logger()    // obtiene logger estructurado
	defer log.Sync()          // flush buffers al salir

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("💥 hexashop stopped with error", zap.Error(err))
	}
	log.Info("👋 hexashop stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// ---------------- Métricas ----------------
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ---------------- DB ----------------
	db, dialect, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlrepo.InitSchema(db, dialect); err != nil {
		return err
	}
	log.Info("✅ Base de datos lista", zap.String("driver", cfg.DBDriver))

	// ---------------- Redis / caché ----------------
	infra := connectRedis(ctx, cfg, log)
	defer infra.close()

	// ---------------- Pipeline ----------------
	idempotency, err := buildIdempotencyStore(cfg, db, dialect, infra)
	if err != nil {
		return err
	}
	deadLetters, closeDeadLetters, err := buildDeadLetterStore(ctx, cfg, db, dialect)
	if err != nil {
		return err
	}
	defer closeDeadLetters()

	opts := []pipeline.Option{
		pipeline.WithMetrics(m),
		pipeline.WithDeadLetters(deadLetters),
		pipeline.WithIdempotency(idempotency, pipeline.ParseStoragePolicy(cfg.IdempotencyPolicy)),
		pipeline.WithCache(infra.cache, cfg.CacheDefaultTTL),
		pipeline.WithRetry(utils.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		}, nil),
	}
	if infra.lease != nil {
		opts = append(opts, pipeline.WithKeyLease(infra.lease, cfg.IdempotencyLease))
	}
	p := pipeline.New(log, opts...)

	// --------------- Servicio --------------
	repo := sqlrepo.NewCatalogRepo(db, dialect)
	catalogService := catalogApp.NewCatalogService(p, repo, sqlstore.NewUnitOfWorkFactory(db, dialect), infra.cache, log)

	g, ctx := errgroup.WithContext(ctx)

	// ---------------- Events ---------------
	consumer := catalogEvents.NewCatalogConsumer(idempotency, infra.cache, cfg.InstanceID, log)
	registry := relayer.NewRegistry()
	relayer.Register[catalogDomain.CatalogItemCreated](registry)
	relayer.Register[catalogDomain.CatalogItemUpdated](registry)
	relayer.Register[catalogDomain.CatalogItemDeleted](registry)
	relayer.Register[catalogDomain.CatalogBrandCreated](registry)

	closeBus, err := wireEventBus(ctx, g, cfg, registry, consumer, log)
	if err != nil {
		return err
	}
	defer closeBus()

	closeAnalytics, err := wireAnalytics(cfg, registry, log)
	if err != nil {
		return err
	}
	defer closeAnalytics()

	// ------------ Outbox Relay ------------
	relay := relayer.NewRelay(sqlstore.NewOutboxRepo(db, dialect), registry, relayer.Config{
		Owner:       cfg.InstanceID,
		Interval:    cfg.OutboxInterval,
		BatchSize:   cfg.OutboxBatchSize,
		Lease:       cfg.OutboxLease,
		MaxAttempts: cfg.OutboxMaxAttempts,
	}, m, log)
	g.Go(func() error {
		relay.Start(ctx)
		return nil
	})

	// ---------------- HTTP ----------------
	router := gin.Default()
	catalogHttp.RegisterCatalogRoutes(router, catalogHttp.NewCatalogHandler(catalogService))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "instance": cfg.InstanceID})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler(reg)))

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}
	g.Go(func() error {
		log.Info("🚀 Server running", zap.String("url", "http://localhost:"+cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
