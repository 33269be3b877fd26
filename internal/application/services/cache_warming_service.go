package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/providers"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/repositories"
)

// ExpiredSweeper reclaims expired entries of an in-process cache
type ExpiredSweeper interface {
	ClearExpired() int
}

// CacheWarmingService precomputes the dashboard views of every restaurant so
// the first request after a deploy or an expiry does not pay for the rollup.
type CacheWarmingService struct {
	analyticsRepo repositories.UserAnalyticsRepository
	cache         providers.CacheProvider
	restaurants   *RestaurantAnalyticsService
	trends        *TrendEngine
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(
	analyticsRepo repositories.UserAnalyticsRepository,
	cache providers.CacheProvider,
	restaurants *RestaurantAnalyticsService,
	trends *TrendEngine,
) *CacheWarmingService {
	return &CacheWarmingService{
		analyticsRepo: analyticsRepo,
		cache:         cache,
		restaurants:   restaurants,
		trends:        trends,
	}
}

// WarmCache refreshes the views of every known restaurant and returns how many
// restaurants were warmed. One failing restaurant does not stop the others.
func (s *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	restaurantIDs, err := s.analyticsRepo.ListRestaurantIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list restaurants: %w", err)
	}

	warmed := 0
	for _, restaurantID := range restaurantIDs {
		if ctx.Err() != nil {
			return warmed, ctx.Err()
		}
		if err := s.WarmRestaurant(ctx, restaurantID); err != nil {
			log.Warn().Err(err).Str("restaurant_id", restaurantID).Msg("failed to warm restaurant views")
			continue
		}
		warmed++
	}

	log.Info().Int("restaurants", warmed).Int("known", len(restaurantIDs)).Msg("cache warming completed")
	return warmed, nil
}

// WarmRestaurant drops a restaurant's views and recomputes the restaurant rollup
// and the predictive insights.
func (s *CacheWarmingService) WarmRestaurant(ctx context.Context, restaurantID string) error {
	if err := s.cache.DeletePattern(ctx, providers.AnalyticsCachePattern(restaurantID)); err != nil {
		log.Warn().Err(err).Str("restaurant_id", restaurantID).Msg("failed to drop stale views before warming")
	}
	if _, err := s.restaurants.GetRestaurantAnalytics(ctx, restaurantID); err != nil {
		return fmt.Errorf("restaurant analytics: %w", err)
	}
	if _, err := s.trends.GetPredictiveInsights(ctx, restaurantID); err != nil {
		return fmt.Errorf("predictive insights: %w", err)
	}
	return nil
}

// StartPeriodicWarming warms once, then every interval until ctx is cancelled.
// The returned channel is closed when the loop has exited.
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := s.WarmCache(ctx); err != nil {
			log.Warn().Err(err).Msg("initial cache warming failed")
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopping cache warming service")
				return
			case <-ticker.C:
				if _, err := s.WarmCache(ctx); err != nil {
					log.Warn().Err(err).Msg("periodic cache warming failed")
				}
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("started periodic cache warming")
	return done
}

// StartExpirySweep runs sweeper.ClearExpired every interval until ctx is
// cancelled. Expiry is already enforced on read; the sweep only frees memory.
func StartExpirySweep(ctx context.Context, sweeper ExpiredSweeper, interval time.Duration) <-chan struct{} {
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
				if removed := sweeper.ClearExpired(); removed > 0 {
					log.Debug().Int("removed", removed).Msg("swept expired cache entries")
				}
			}
		}
	}()
	return done
}
