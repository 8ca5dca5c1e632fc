package notification

import (
	"context"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"pricewatch/internal/model"
)

// FiredChannel is the pub/sub channel external delivery workers subscribe to.
const FiredChannel = "pub:alerts:fired"

// RedisSink publishes fired-alert events to Redis pub/sub so out-of-process
// delivery workers (the chat bot, broadcast tooling) can pick them up.
type RedisSink struct {
	client *goredis.Client
}

// NewRedisSink creates a sink publishing on an existing Redis client.
func NewRedisSink(client *goredis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Notify(ctx context.Context, ev model.Event) error {
	if err := s.client.Publish(ctx, FiredChannel, ev.JSON()).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
