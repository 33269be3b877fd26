package services

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/providers"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/observability"
)

// DefaultViewTTL is how long computed analytics views are served from cache.
const DefaultViewTTL = 5 * time.Minute

// ViewCache serves computed read models from a CacheProvider. A nil *ViewCache
// always computes. Cache failures of any kind degrade to a fresh computation.
type ViewCache struct {
	provider providers.CacheProvider
	ttl      time.Duration
	metrics  *observability.Metrics
}

// NewViewCache wraps provider. A non-positive ttl falls back to DefaultViewTTL.
func NewViewCache(provider providers.CacheProvider, ttl time.Duration, metrics *observability.Metrics) *ViewCache {
	if ttl <= 0 {
		ttl = DefaultViewTTL
	}
	return &ViewCache{provider: provider, ttl: ttl, metrics: metrics}
}

// GetOrCompute returns the view cached under key or computes, stores and
// returns it. Errors from compute are returned and nothing is cached.
func GetOrCompute[T any](ctx context.Context, vc *ViewCache, kind, key string, compute func(context.Context) (T, error)) (T, error) {
	if vc == nil || vc.provider == nil {
		return compute(ctx)
	}
	logger := observability.LoggerFromContext(ctx)

	data, err := vc.provider.Get(ctx, key)
	switch {
	case err == nil:
		var cached T
		decodeErr := sonic.Unmarshal(data, &cached)
		if decodeErr == nil {
			vc.metrics.RecordCacheResult(ctx, kind, true)
			return cached, nil
		}
		logger.Warn().Err(decodeErr).Str("key", key).Msg("discarding undecodable cached view")
	case !errors.Is(err, providers.ErrCacheMiss):
		logger.Warn().Err(err).Str("key", key).Msg("view cache read failed, computing fresh")
	}
	vc.metrics.RecordCacheResult(ctx, kind, false)

	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	encoded, err := sonic.Marshal(value)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("failed to encode view for cache")
		return value, nil
	}
	if err := vc.provider.Set(ctx, key, encoded, vc.ttl); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("failed to store view in cache")
	}
	return value, nil
}
