// Package dedupe provides the TTL-keyed cache that collapses concurrent
// duplicate resolution requests. Check-and-insert is atomic: two callers
// racing on the same key observe exactly one create.
package dedupe

import (
	"sync"
	"time"
)

type entry[V any] struct {
	val V
	// zero expiry pins the entry until it is replaced or deleted
	expiresAt time.Time
}

// Cache is a mutex-guarded map with per-entry TTL.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
	now     func() time.Time
}

// New creates an empty cache.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}
}

// GetOrCreate returns the live value for key, or installs create() and
// returns it with isNew=true. A value installed through GetOrCreate has no
// expiry; the owner replaces it via Set once a TTL is known, or removes it
// with Delete.
func (c *Cache[K, V]) GetOrCreate(key K, create func() V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && c.live(e) {
		return e.val, false
	}

	v := create()
	c.entries[key] = entry[V]{val: v}
	return v, true
}

// Get returns the live value for key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.live(e) {
		if ok {
			delete(c.entries, key)
		}
		var zero V
		return zero, false
	}
	return e.val, true
}

// Set stores value under key. ttl <= 0 pins the entry.
func (c *Cache[K, V]) Set(key K, val V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry[V]{val: val}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
}

// Delete removes key immediately. Used for failed and cancelled resolutions
// so a retry is not blocked by a stale entry.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Purge drops all expired entries and returns how many were removed.
func (c *Cache[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if !c.live(e) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired included.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[K, V]) live(e entry[V]) bool {
	return e.expiresAt.IsZero() || c.now().Before(e.expiresAt)
}
