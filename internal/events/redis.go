package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"webtraffic/internal/config"
	"webtraffic/internal/metrics"
)

// streamMaxLen caps the stream length (approximate trimming)
const streamMaxLen = 1000

// RedisPublisher appends run events to a Redis stream as a JSON "data" field.
type RedisPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisPublisher connects to Redis and checks the connection.
func NewRedisPublisher(ctx context.Context, cfg config.RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
		MaxRetries:  1,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisPublisher{client: client, stream: cfg.Stream}, nil
}

// Publish adds the event to the stream.
func (p *RedisPublisher) Publish(ctx context.Context, event RunEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	metrics.RecordEventPublish(err)
	if err != nil {
		return fmt.Errorf("failed to publish to redis stream %s: %w", p.stream, err)
	}
	return nil
}

// Recent returns up to count events, newest first.
func (p *RedisPublisher) Recent(ctx context.Context, count int64) ([]RunEvent, error) {
	messages, err := p.client.XRevRangeN(ctx, p.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read redis stream %s: %w", p.stream, err)
	}
	return decodeMessages(messages), nil
}

func decodeMessages(messages []redis.XMessage) []RunEvent {
	out := make([]RunEvent, 0, len(messages))
	for _, m := range messages {
		dataStr, ok := m.Values["data"].(string)
		if !ok {
			log.Printf("Warning: stream message %s has no 'data' field", m.ID)
			continue
		}
		var e RunEvent
		if err := json.Unmarshal([]byte(dataStr), &e); err != nil {
			log.Printf("Failed to parse stream message %s: %v", m.ID, err)
			continue
		}
		out = append(out, e)
	}
	return out
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// NewPublisher returns a Redis publisher when enabled and reachable, and a
// NopPublisher otherwise. Redis being down never stops the service.
func NewPublisher(ctx context.Context, cfg config.RedisConfig) Publisher {
	if !cfg.Enabled {
		return NopPublisher{}
	}

	pub, err := NewRedisPublisher(ctx, cfg)
	if err != nil {
		log.Printf("Warning: forecast events disabled: %v", err)
		return NopPublisher{}
	}
	log.Printf("✓ Publishing forecast runs to redis stream %s", cfg.Stream)
	return pub
}
