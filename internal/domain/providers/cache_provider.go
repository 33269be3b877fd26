package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss is returned by CacheProvider.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider defines the interface for caching operations
type CacheProvider interface {
	// Get retrieves a value from cache. Absent or expired keys return ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration. A ttl <= 0 stores nothing readable.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// DeletePattern removes every key matching a glob pattern such as "analytics:r1:*"
	DeletePattern(ctx context.Context, pattern string) error
}

// Cache view kinds.
const (
	CacheKindRestaurant  = "restaurant"
	CacheKindCategory    = "category"
	CacheKindTimeRange   = "timerange"
	CacheKindComparative = "comparative"
	CacheKindPredictive  = "predictive"
)

const analyticsKeyPrefix = "analytics:"

// AnalyticsCacheKey builds analytics:{restaurantId}:{kind}:{paramsHash}. The hash is a
// short sha256 prefix of the joined params so keys stay bounded and stable.
func AnalyticsCacheKey(restaurantID, kind string, params ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(params, "|")))
	return analyticsKeyPrefix + restaurantID + ":" + kind + ":" + hex.EncodeToString(sum[:8])
}

// globEscaper backslash-escapes the metacharacters shared by path.Match and Redis MATCH.
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// AnalyticsCachePattern matches every cached view of one restaurant. The id is
// matched literally.
func AnalyticsCachePattern(restaurantID string) string {
	return analyticsKeyPrefix + globEscaper.Replace(restaurantID) + ":*"
}
