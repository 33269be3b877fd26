package cache

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/providers"
	"github.com/zatekoja/knowledgeanalytics/pkg/ttlcache"
)

// MemoryAdapter implements CacheProvider in process on top of ttlcache. It is
// used in local mode and whenever Redis is not configured.
type MemoryAdapter struct {
	cache *ttlcache.Cache[[]byte]
}

var _ providers.CacheProvider = (*MemoryAdapter)(nil)

// NewMemoryAdapter creates an empty in-memory cache
func NewMemoryAdapter(opts ...ttlcache.Option) *MemoryAdapter {
	return &MemoryAdapter{cache: ttlcache.New[[]byte](opts...)}
}

// Get retrieves a copy of the cached value
func (a *MemoryAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	value, ok := a.cache.Get(key)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return append([]byte(nil), value...), nil
}

// Set stores a copy of value
func (a *MemoryAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	a.cache.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Delete removes a value from cache
func (a *MemoryAdapter) Delete(ctx context.Context, key string) error {
	a.cache.Delete(key)
	return nil
}

// Exists checks if a live entry exists for key
func (a *MemoryAdapter) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := a.cache.Get(key)
	return ok, nil
}

// DeletePattern removes every key matching a glob pattern
func (a *MemoryAdapter) DeletePattern(ctx context.Context, pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid cache pattern %q: %w", pattern, err)
	}
	a.cache.DeleteFunc(func(key string) bool {
		ok, _ := path.Match(pattern, key)
		return ok
	})
	return nil
}

// ClearExpired drops expired entries and returns how many were removed
func (a *MemoryAdapter) ClearExpired() int {
	return a.cache.ClearExpired()
}

// Stats returns entry and hit/miss counts
func (a *MemoryAdapter) Stats() ttlcache.Stats {
	return a.cache.Stats()
}
