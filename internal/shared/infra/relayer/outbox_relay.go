package relayer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/hexashop/internal/shared/domain"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/metrics"
)

type Config struct {
	Owner       string
	Interval    time.Duration
	BatchSize   int
	Lease       time.Duration
	MaxAttempts int
}

// Relay procesa los mensajes pendientes de la tabla outbox de forma genérica.
// Cada mensaje reclamado se entrega a sus handlers y se marca como procesado
// o como fallido; tras MaxAttempts fallos queda cerrado con el error conservado.
type Relay struct {
	repo     domain.OutboxRepository
	registry *Registry
	cfg      Config
	now      func() time.Time
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewRelay(repo domain.OutboxRepository, registry *Registry, cfg Config, m *metrics.Metrics, log *zap.Logger) *Relay {
	// time.NewTicker no admite intervalos <= 0
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Relay{
		repo:     repo,
		registry: registry,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		metrics:  m,
		log:      log,
	}
}

// Start inicia el bucle de polling y bloquea hasta que ctx se cancela.
func (r *Relay) Start(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.log.Info("🚀 Outbox relay iniciado",
		zap.Duration("interval", r.cfg.Interval),
		zap.String("owner", r.cfg.Owner),
	)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("🛑 Outbox relay detenido.")
			return
		case <-ticker.C:
			r.log.Debug("🔄 Ejecutando polling de outbox")
			if _, err := r.ProcessBatch(ctx); err != nil {
				r.log.Warn("⚠️ Error al reclamar mensajes pendientes", zap.Error(err))
			}
		}
	}
}

// ProcessBatch devuelve cuántos mensajes se publicaron con éxito.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	messages, err := r.repo.Claim(ctx, r.cfg.Owner, r.cfg.BatchSize, r.cfg.Lease)
	if err != nil {
		return 0, err
	}
	if len(messages) > 0 {
		r.log.Info(fmt.Sprintf("📬 %d mensajes de outbox reclamados", len(messages)))
	}

	processed := 0
	for _, msg := range messages {
		// Los mensajes no tocados vuelven a estar disponibles cuando vence el lease
		if ctx.Err() != nil {
			break
		}
		if r.relay(ctx, msg) {
			processed++
		}
	}
	return processed, nil
}

func (r *Relay) relay(ctx context.Context, msg domain.OutboxMessage) bool {
	fields := []zap.Field{
		zap.String("message_id", msg.ID.String()),
		zap.String("type", msg.Type),
	}

	dispatchErr := r.registry.Dispatch(ctx, msg)

	// El resultado se registra aunque el ciclo se esté cancelando
	markCtx := context.WithoutCancel(ctx)

	if dispatchErr == nil {
		if err := r.repo.MarkProcessed(markCtx, msg.ID, r.now()); err != nil {
			r.log.Warn("⚠️ No se pudo marcar mensaje como procesado", append(fields, zap.Error(err))...)
			return false
		}
		r.metrics.Outbox(msg.Type, "processed")
		r.log.Info("✅ Mensaje publicado y marcado", fields...)
		return true
	}

	var closeAt *time.Time
	status := "failed"
	if msg.Attempts+1 >= r.cfg.MaxAttempts {
		at := r.now()
		closeAt = &at
		status = "abandoned"
	}

	if err := r.repo.MarkFailed(markCtx, msg.ID, dispatchErr.Error(), closeAt); err != nil {
		r.log.Error("❌ No se pudo registrar el fallo del mensaje", append(fields, zap.Error(err))...)
		return false
	}
	r.metrics.Outbox(msg.Type, status)

	fields = append(fields, zap.Int("attempt", msg.Attempts+1), zap.Error(dispatchErr))
	if closeAt != nil {
		r.log.Error("❌ Mensaje cerrado tras agotar reintentos", fields...)
	} else {
		r.log.Warn("⚠️ No se pudo publicar mensaje, se reintentará", fields...)
	}
	return false
}
