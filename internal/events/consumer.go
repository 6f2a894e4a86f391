package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Consumer reads run events through a Redis consumer group.
type Consumer struct {
	client *redis.Client
	stream string
	group  string
	name   string
}

// NewConsumer creates the consumer group if it does not exist yet.
func NewConsumer(ctx context.Context, client *redis.Client, stream, group, name string) (*Consumer, error) {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("failed to create consumer group %s: %w", group, err)
	}
	return &Consumer{client: client, stream: stream, group: group, name: name}, nil
}

func isBusyGroup(err error) bool {
	return strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// Run delivers events to handle until ctx is cancelled. Messages are
// acknowledged once handle returns nil. Failed ones stay in the pending list
// and are not retried by Run, which only reads new entries.
func (c *Consumer) Run(ctx context.Context, handle func(RunEvent) error) error {
	for {
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{c.stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			log.Printf("Error reading from redis: %v", err)
			time.Sleep(time.Second)
			continue
		}

		for _, s := range streams {
			for _, m := range s.Messages {
				decoded := decodeMessages([]redis.XMessage{m})
				if len(decoded) == 0 {
					// otherwise it would sit in the pending list for good
					log.Printf("Dropping undecodable event %s", m.ID)
					c.ack(ctx, m.ID)
					continue
				}
				if err := handle(decoded[0]); err != nil {
					log.Printf("Failed to handle event %s, leaving it pending: %v", m.ID, err)
					continue
				}
				c.ack(ctx, m.ID)
			}
		}
	}
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		log.Printf("Failed to acknowledge event %s: %v", id, err)
	}
}
