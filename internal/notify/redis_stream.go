package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"docvault/pkg/domain"
)

// RedisStreamNotifier publishes events to a Redis stream consumed by the
// notification workers.
type RedisStreamNotifier struct {
	client *redis.Client
	stream string
	maxLen int64
}

// RedisStreamConfig configures the Redis-backed event bus.
type RedisStreamConfig struct {
	Addr     string
	Password string
	Stream   string
	MaxLen   int64
}

// NewRedisStreamNotifier connects the publisher. The stream is trimmed
// approximately to MaxLen entries.
func NewRedisStreamNotifier(cfg RedisStreamConfig) (*RedisStreamNotifier, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "docvault:notifications"
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisStreamNotifier{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream: stream,
		maxLen: maxLen,
	}, nil
}

// Publish appends the event to the stream.
func (n *RedisStreamNotifier) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: n.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":   event.ID,
			"kind":       event.Kind,
			"request_id": event.RequestID,
			"owner_id":   event.OwnerID,
			"payload":    string(payload),
		},
	}).Err()
}
