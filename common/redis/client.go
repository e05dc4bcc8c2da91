package redis

import (
	"context"

	"bloodbank/common/config"

	"github.com/go-redis/redis/v8"
)

// Client alias so callers do not import go-redis directly.
type Client = redis.Client

// NewRedisClient creates a go-redis client.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping checks connectivity.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close closes the client.
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
