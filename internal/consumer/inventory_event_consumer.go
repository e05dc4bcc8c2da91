package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rediscommon "bloodbank/common/redis"
	"bloodbank/internal/domain"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Invalidator applies a remote inventory change to the local caches.
type Invalidator interface {
	ApplyEvent(event domain.InventoryEvent)
}

// InventoryEventConsumer reads the inventory event stream with a consumer group of
// its own, so every instance sees every event.
type InventoryEventConsumer struct {
	redisClient  *redis.Client
	invalidator  Invalidator
	logger       *zap.Logger
	stream       string
	groupName    string
	consumerName string
	batchSize    int64
	block        time.Duration
}

// NewInventoryEventConsumer instanceID names both the group and the consumer.
func NewInventoryEventConsumer(
	redisClient *redis.Client,
	invalidator Invalidator,
	logger *zap.Logger,
	stream string,
	instanceID string,
) *InventoryEventConsumer {
	return &InventoryEventConsumer{
		redisClient:  redisClient,
		invalidator:  invalidator,
		logger:       logger,
		stream:       stream,
		groupName:    "bloodbank-cache-" + instanceID,
		consumerName: instanceID,
		batchSize:    100,
		block:        2 * time.Second,
	}
}

// Start consumes until ctx is cancelled, backing off exponentially on read errors.
// The per-instance group is removed on exit.
func (c *InventoryEventConsumer) Start(ctx context.Context) error {
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, c.stream, c.groupName); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rediscommon.DestroyConsumerGroup(cleanupCtx, c.redisClient, c.stream, c.groupName); err != nil {
			c.logger.Warn("Failed to destroy consumer group", zap.String("consumer_group", c.groupName), zap.Error(err))
		}
	}()

	c.logger.Info("Inventory event consumer started",
		zap.String("stream", c.stream),
		zap.String("consumer_group", c.groupName),
		zap.String("consumer_name", c.consumerName),
	)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := c.consumeEvents(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume events",
				zap.Error(err),
				zap.Duration("backoff", backoffDuration),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoffDuration):
				backoffDuration *= 2
				if backoffDuration > maxBackoff {
					backoffDuration = maxBackoff
				}
			}
			continue
		}
		backoffDuration = time.Second
	}
}

func (c *InventoryEventConsumer) consumeEvents(ctx context.Context) error {
	messages, err := rediscommon.ReadFromStream(ctx, c.redisClient, c.stream, c.groupName, c.consumerName, c.batchSize, c.block)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		if err := c.processEvent(msg); err != nil {
			// malformed entries are acked too; they can never be applied
			c.logger.Error("Failed to process event", zap.String("message_id", msg.ID), zap.Error(err))
		}
		if err := rediscommon.AckMessage(ctx, c.redisClient, c.stream, c.groupName, msg.ID); err != nil {
			c.logger.Warn("Failed to ack message", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
	return nil
}

func (c *InventoryEventConsumer) processEvent(msg rediscommon.StreamMessage) error {
	event, err := parseEvent(msg)
	if err != nil {
		return fmt.Errorf("failed to parse event: %w", err)
	}

	// the publishing instance invalidated its own caches already
	if event.Origin == c.consumerName {
		return nil
	}

	c.logger.Debug("Applying inventory event",
		zap.String("event_type", event.EventType),
		zap.Int64("hospital_id", event.HospitalID),
		zap.String("component_type", string(event.ComponentType)),
		zap.String("origin", event.Origin),
	)
	c.invalidator.ApplyEvent(*event)
	return nil
}

func parseEvent(msg rediscommon.StreamMessage) (*domain.InventoryEvent, error) {
	raw, ok := msg.Values["data"]
	if !ok {
		return nil, fmt.Errorf("missing data field")
	}
	data, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected data type %T", raw)
	}
	var event domain.InventoryEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, err
	}
	return &event, nil
}
