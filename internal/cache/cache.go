// Package cache provides a generic in-memory TTL cache.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fd1az/token-price-engine/internal/clock"
)

type item[V any] struct {
	value     V
	storedAt  time.Time
	expiresAt time.Time
}

// Entry is a cached value with its timestamps, returned even when expired.
type Entry[V any] struct {
	Value     V
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	clock           clock.Clock
	cleanupInterval time.Duration
}

// WithClock sets the time source used for expiry.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithCleanupInterval starts a janitor that drops expired entries.
// Without it, expired entries stay until overwritten.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *options) {
		o.cleanupInterval = d
	}
}

// Cache is a concurrency-safe map with per-entry expiry.
type Cache[K comparable, V any] struct {
	mu         sync.RWMutex
	items      map[K]item[V]
	defaultTTL time.Duration
	clock      clock.Clock

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a cache whose entries expire after defaultTTL unless Set
// is given an explicit ttl.
func New[K comparable, V any](defaultTTL time.Duration, opts ...Option) *Cache[K, V] {
	o := options{clock: clock.Real()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[K, V]{
		items:      make(map[K]item[V]),
		defaultTTL: defaultTTL,
		clock:      o.clock,
		stop:       make(chan struct{}),
	}

	if o.cleanupInterval > 0 {
		go c.janitor(o.cleanupInterval)
	}

	return c
}

// Get returns the value if present and not expired.
func (c *Cache[K, V]) Get(_ context.Context, key K) (V, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || !c.clock.Now().Before(it.expiresAt) {
		var zero V
		return zero, false
	}
	return it.value, true
}

// Peek returns the entry regardless of expiry.
func (c *Cache[K, V]) Peek(_ context.Context, key K) (Entry[V], bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return Entry[V]{}, false
	}
	return Entry[V]{Value: it.value, StoredAt: it.storedAt, ExpiresAt: it.expiresAt}, true
}

// Set stores value under key. A non-positive ttl uses the default.
func (c *Cache[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.clock.Now()

	c.mu.Lock()
	c.items[key] = item[V]{value: value, storedAt: now, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key.
func (c *Cache[K, V]) Delete(_ context.Context, key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor, if any.
func (c *Cache[K, V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache[K, V]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.deleteExpired()
		}
	}
}

func (c *Cache[K, V]) deleteExpired() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, it := range c.items {
		if !now.Before(it.expiresAt) {
			delete(c.items, k)
		}
	}
}
