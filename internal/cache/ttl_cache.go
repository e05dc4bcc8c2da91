package cache

import (
	"sync"
	"time"
)

// DefaultTTL applied when Set is called with ttl <= 0 and the cache has no default of its own.
const DefaultTTL = 60 * time.Second

// Clock time source; tests inject a fake.
type Clock func() time.Time

type entry[T any] struct {
	data      T
	timestamp time.Time
	ttl       time.Duration
}

// TTLCache in-process key/value cache with per-entry expiry.
// Expired entries are evicted on read only; there is no sweep and no capacity bound
// (keys are hospital x component combinations). Entries are replaced wholesale, never
// mutated in place.
type TTLCache[T any] struct {
	mu         sync.RWMutex
	entries    map[string]entry[T]
	now        Clock
	defaultTTL time.Duration
}

// New creates a cache; nil clock means time.Now.
func New[T any](clock Clock) *TTLCache[T] {
	return NewWithDefaultTTL[T](clock, DefaultTTL)
}

// NewWithDefaultTTL like New, with defaultTTL used by Set calls that pass ttl <= 0.
func NewWithDefaultTTL[T any](clock Clock, defaultTTL time.Duration) *TTLCache[T] {
	if clock == nil {
		clock = time.Now
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &TTLCache[T]{
		entries:    map[string]entry[T]{},
		now:        clock,
		defaultTTL: defaultTTL,
	}
}

// Get returns the value and true, or the zero value and false when missing or expired.
func (c *TTLCache[T]) Get(key string) (T, bool) {
	var zero T

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}

	if c.now().Sub(e.timestamp) > e.ttl {
		c.mu.Lock()
		// re-check: a concurrent Set may have replaced the entry
		if cur, ok := c.entries[key]; ok && cur.timestamp.Equal(e.timestamp) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.data, true
}

// Set stores data under key for ttl (the cache default when ttl <= 0).
func (c *TTLCache[T]) Set(key string, data T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.entries[key] = entry[T]{data: data, timestamp: c.now(), ttl: ttl}
	c.mu.Unlock()
}

// Invalidate removes one key.
func (c *TTLCache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll clears the cache.
func (c *TTLCache[T]) InvalidateAll() {
	c.mu.Lock()
	c.entries = map[string]entry[T]{}
	c.mu.Unlock()
}

// Len number of stored entries, expired ones included until read.
func (c *TTLCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
