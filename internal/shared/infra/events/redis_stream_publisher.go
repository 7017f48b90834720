package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/hexashop/internal/shared/infra/platform/bus"
)

// RedisStreamPublisher publica cada evento como una entrada de un Redis Stream.
type RedisStreamPublisher struct {
	client    rueidis.Client
	streamKey string
	log       *zap.Logger
}

func NewRedisStreamPublisher(client rueidis.Client, streamKey string, log *zap.Logger) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, streamKey: streamKey, log: log}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var eventType, key string
	if typed, ok := event.(sharedBus.Typed); ok {
		eventType = typed.EventType()
	}
	if keyer, ok := event.(sharedBus.Keyer); ok {
		key = keyer.PartitionKey()
	}

	cmd := p.client.B().Xadd().Key(p.streamKey).Id("*").
		FieldValue().FieldValue("event_type", eventType).
		FieldValue("key", key).
		FieldValue("payload", string(payload)).
		Build()

	if err := p.client.Do(ctx, cmd).Error(); err != nil {
		p.log.Error("Error publishing to Redis stream", zap.String("stream", p.streamKey), zap.Error(err))
		return fmt.Errorf("xadd %s: %w", p.streamKey, err)
	}
	return nil
}

var _ sharedBus.EventBus = (*RedisStreamPublisher)(nil)
