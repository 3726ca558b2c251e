package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/questbot/internal/domain"
)

// streamMaxLen caps event streams via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// EventBus implements domain.EventBus: Pub/Sub for live consumers and a
// trimmed stream for anyone replaying recent history.
type EventBus struct {
	c *Client
}

// NewEventBus creates an EventBus backed by c.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{c: c}
}

// Publish sends payload on a Pub/Sub channel.
func (eb *EventBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := eb.c.Underlying().Publish(ctx, eb.c.key(channel), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// StreamAppend appends payload to stream, trimming to about 10,000 entries.
func (eb *EventBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: eb.c.key(stream),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}
	if err := eb.c.Underlying().XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count payloads appended to stream after lastID
// ("0" reads from the start).
func (eb *EventBus) StreamRead(ctx context.Context, stream, lastID string, count int) ([][]byte, string, error) {
	results, err := eb.c.Underlying().XRead(ctx, &redis.XReadArgs{
		Streams: []string{eb.c.key(stream), lastID},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if err == redis.Nil {
		return nil, lastID, nil
	}
	if err != nil {
		return nil, lastID, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var out [][]byte
	next := lastID
	for _, s := range results {
		for _, msg := range s.Messages {
			next = msg.ID
			switch v := msg.Values["payload"].(type) {
			case string:
				out = append(out, []byte(v))
			case []byte:
				out = append(out, v)
			}
		}
	}
	return out, next, nil
}

var _ domain.EventBus = (*EventBus)(nil)
