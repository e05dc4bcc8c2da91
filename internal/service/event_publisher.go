package service

import (
	"context"
	"fmt"
	"time"

	rediscommon "bloodbank/common/redis"
	"bloodbank/internal/domain"

	"github.com/go-redis/redis/v8"
)

const eventStreamMaxLen = 10000

// EventPublisher announces inventory changes to the other instances.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.InventoryEvent) error
}

// StreamEventPublisher XADDs events to a Redis stream.
type StreamEventPublisher struct {
	client *redis.Client
	stream string
	origin string
}

func NewStreamEventPublisher(client *redis.Client, stream, origin string) *StreamEventPublisher {
	return &StreamEventPublisher{client: client, stream: stream, origin: origin}
}

func (p *StreamEventPublisher) Publish(ctx context.Context, event domain.InventoryEvent) error {
	if event.Origin == "" {
		event.Origin = p.origin
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	if _, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, eventStreamMaxLen, event); err != nil {
		return fmt.Errorf("failed to publish inventory event: %w", err)
	}
	return nil
}

// NoopEventPublisher single-instance deployments without redis.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, domain.InventoryEvent) error { return nil }
