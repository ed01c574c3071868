// Package cache is an in-memory key-value cache with per-entry expiry. The
// server keeps the latest reading of each device and the latest status of each
// domain in it between polls.
package cache

import (
	"context"
	"sync"
	"time"
)

type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]

	// Overridden in tests.
	now func() time.Time
}

type entry[V any] struct {
	value V
	exp   time.Time
}

func New[V any]() *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// Set stores value under key until ttl has elapsed. A non-positive ttl stores
// an entry that never expires.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	e := entry[V]{value: value}
	if ttl > 0 {
		e.exp = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = e
}

// Get returns the value stored under key and whether it was present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var val V

	e, ok := c.entries[key]
	if !ok {
		return val, false
	}

	// Present and unexpired
	if !c.expired(e) {
		return e.value, true
	}

	// Expired
	delete(c.entries, key)
	return val, false
}

// Keys returns the keys of all unexpired entries in no particular order.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for k, e := range c.entries {
		if !c.expired(e) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len counts entries including expired ones that have not been cleaned yet.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *Cache[V]) expired(e entry[V]) bool {
	return !e.exp.IsZero() && !c.now().Before(e.exp)
}

// Clean removes expired entries.
func (c *Cache[V]) Clean() {
	c.mu.Lock()
	defer c.mu.Unlock()

	toRemove := []string{}

	for k, e := range c.entries {
		if c.expired(e) {
			toRemove = append(toRemove, k)
		}
	}

	for _, k := range toRemove {
		delete(c.entries, k)
	}
}

// Janitor calls Clean every interval until ctx is done. A non-positive
// interval disables it; expired entries are then dropped only on Get.
func (c *Cache[V]) Janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Clean()
		}
	}
}
