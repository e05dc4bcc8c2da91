package store

import (
	"context"
	"errors"
	"time"

	"bloodbank/internal/cache"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

// KV small string store shared by auth (revoked session ids) and anything else
// that needs to survive across instances when redis is available.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

// MemoryKV process-local KV on top of the TTL cache.
// A zero ttl keeps the entry for the default TTL given at construction.
type MemoryKV struct {
	c *cache.TTLCache[string]
}

func NewMemoryKV(clock cache.Clock, defaultTTL time.Duration) *MemoryKV {
	return &MemoryKV{c: cache.NewWithDefaultTTL[string](clock, defaultTTL)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.c.Set(key, value, ttl)
	return nil
}

