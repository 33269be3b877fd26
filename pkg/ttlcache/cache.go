// Package ttlcache is a small in-process key/value cache with per-entry time-to-live.
//
// Expiry is lazy: Get evicts an expired entry and reports a miss. ClearExpired
// and the janitor goroutine only reclaim memory. Concurrent misses on the same
// key may both compute in GetOrCompute; the last write wins.
package ttlcache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSweepInterval is the janitor period used when StartJanitor gets a non-positive interval.
const DefaultSweepInterval = 10 * time.Minute

// Entry is one cached value with the time it was stored and its time-to-live.
type Entry[T any] struct {
	Value     T
	CreatedAt time.Time
	TTL       time.Duration
}

// Expired reports whether the entry is no longer valid at now.
// A non-positive ttl is expired immediately.
func (e Entry[T]) Expired(now time.Time) bool {
	return e.TTL <= 0 || now.Sub(e.CreatedAt) > e.TTL
}

// Stats reports cache performance counters.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Cache is a mutex-guarded map of entries. The zero value is not usable; call New.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]Entry[T]
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates an empty cache.
func New[T any](opts ...Option) *Cache[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{
		entries: make(map[string]Entry[T]),
		now:     o.now,
	}
}

// Set stores value under key for ttl.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = Entry[T]{Value: value, CreatedAt: c.now(), TTL: ttl}
	c.mu.Unlock()
}

// Get returns the value for key. Expired entries are evicted and reported as a miss.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && entry.Expired(c.now()) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		var zero T
		return zero, false
	}
	c.hits.Add(1)
	return entry.Value, true
}

// Delete removes key.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeletePrefix removes every key starting with prefix and returns how many were removed.
func (c *Cache[T]) DeletePrefix(prefix string) int {
	return c.DeleteFunc(func(key string) bool { return strings.HasPrefix(key, prefix) })
}

// DeleteFunc removes every key for which match returns true and returns how many were removed.
func (c *Cache[T]) DeleteFunc(match func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if match(key) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear removes every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry[T])
	c.mu.Unlock()
}

// ClearExpired evicts all expired entries and returns how many were removed.
func (c *Cache[T]) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the hit and miss counters.
func (c *Cache[T]) Stats() Stats {
	return Stats{Entries: c.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// GetOrCompute returns the cached value for key, or calls compute and caches its
// result for ttl. Errors from compute are returned and nothing is cached.
func (c *Cache[T]) GetOrCompute(key string, ttl time.Duration, compute func() (T, error)) (T, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(key, value, ttl)
	return value, nil
}

// StartJanitor runs ClearExpired every interval until ctx is cancelled.
// The returned channel is closed once the goroutine has exited.
func (c *Cache[T]) StartJanitor(ctx context.Context, interval time.Duration, onSweep func(removed int)) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := c.ClearExpired()
				if onSweep != nil {
					onSweep(removed)
				}
			}
		}
	}()
	return done
}
