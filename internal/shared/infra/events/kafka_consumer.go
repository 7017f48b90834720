package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler define la interfaz que debe cumplir cualquier consumidor de eventos.
// Un error deja el mensaje sin confirmar para que se vuelva a entregar.
type MessageHandler interface {
	HandleMessage(ctx context.Context, key string, payload []byte) error
}

// ConsumerAdapter es el "oído" que escucha en Kafka. Confirma el offset solo
// después de que el handler termine bien (at-least-once).
type ConsumerAdapter struct {
	reader     *kafka.Reader
	handler    MessageHandler
	retryDelay time.Duration
	log        *zap.Logger
}

func NewConsumerAdapter(reader *kafka.Reader, handler MessageHandler, log *zap.Logger) *ConsumerAdapter {
	return &ConsumerAdapter{
		reader:     reader,
		handler:    handler,
		retryDelay: time.Second,
		log:        log,
	}
}

// Start bloquea hasta que ctx se cancela.
func (c *ConsumerAdapter) Start(ctx context.Context) {
	c.log.Info("🎧 Iniciando consumidor de Kafka...",
		zap.String("topic", c.reader.Config().Topic),
		zap.Strings("brokers", c.reader.Config().Brokers),
	)

	for {
		// FetchMessage es una llamada bloqueante.
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			// Si el contexto se cancela, el error es normal y salimos limpiamente.
			if ctx.Err() != nil {
				c.log.Info("Consumidor de Kafka detenido.", zap.String("topic", c.reader.Config().Topic))
				return
			}
			c.log.Error("Error al leer mensaje de Kafka", zap.Error(err))
			continue
		}

		if !c.handle(ctx, msg) {
			return
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("Error al confirmar offset", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// handle reintenta el mismo mensaje hasta que el handler lo acepta; el reader
// no vuelve a entregar un mensaje leído aunque no se confirme.
func (c *ConsumerAdapter) handle(ctx context.Context, msg kafka.Message) bool {
	for {
		err := c.handler.HandleMessage(ctx, string(msg.Key), msg.Value)
		if err == nil {
			return true
		}
		c.log.Warn("⚠️ Mensaje no procesado, se reintentará",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *ConsumerAdapter) Close() error {
	return c.reader.Close()
}
