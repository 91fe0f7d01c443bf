package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/charlesng35/gatepass/pkg/logger"
)

const (
	redisChannel   = "gatepass:live"
	publishTimeout = 5 * time.Second
)

type redisEnvelope struct {
	Origin  string  `json:"origin"`
	Stream  string  `json:"stream"`
	Message Message `json:"message"`
}

// RedisBridge relays live feed messages through Redis pub/sub so operators
// connected to any instance see every scan.
type RedisBridge struct {
	client *redis.Client
	local  Broadcaster
	origin string
	log    *zap.Logger
}

// NewRedisBridge wraps a local broadcaster with Redis fan-out.
func NewRedisBridge(client *redis.Client, local Broadcaster) *RedisBridge {
	return &RedisBridge{
		client: client,
		local:  local,
		origin: uuid.NewString(),
		log:    logger.WithModule("realtime.redis"),
	}
}

// BroadcastStream delivers locally, then publishes for the other instances.
func (b *RedisBridge) BroadcastStream(stream string, message Message) {
	b.local.BroadcastStream(stream, message)

	body, err := json.Marshal(redisEnvelope{Origin: b.origin, Stream: stream, Message: message})
	if err != nil {
		b.log.Warn("encode live feed message", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, redisChannel, body).Err(); err != nil {
		b.log.Warn("publish live feed message", zap.String("stream", stream), zap.Error(err))
	}
}

// Run relays messages from other instances until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("realtime: subscribe: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.relay(msg.Payload)
		}
	}
}

func (b *RedisBridge) relay(payload string) {
	var envelope redisEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		b.log.Debug("discarding malformed live feed message", zap.Error(err))
		return
	}
	if envelope.Origin == b.origin {
		return
	}
	b.local.BroadcastStream(envelope.Stream, envelope.Message)
}
