package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/knowledgeanalytics/internal/adapters/memory"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/providers"
)

func newTestWarmingService(t *testing.T, cache providers.CacheProvider, records ...*entities.UserKnowledgeAnalytics) *CacheWarmingService {
	t.Helper()
	repo := memory.NewUserAnalyticsRepository()
	for _, r := range records {
		require.NoError(t, repo.Create(context.Background(), r))
	}
	views := NewViewCache(cache, time.Minute, nil)
	restaurants := NewRestaurantAnalyticsService(repo, views)
	trends := NewTrendEngine(repo, memory.NewAttemptRepository(), WithTrendViewCache(views), WithTrendClock(fixedClock))
	return NewCacheWarmingService(repo, cache, restaurants, trends)
}

func TestCacheWarmingService_WarmCache(t *testing.T) {
	cache := NewMockCacheProvider()
	svc := newTestWarmingService(t, cache,
		statsRecord("u1", "r1", map[entities.KnowledgeCategory]counts{entities.CategoryFood: {2, 1}}),
		statsRecord("u2", "r2", map[entities.KnowledgeCategory]counts{entities.CategoryWine: {2, 2}}),
	)

	warmed, err := svc.WarmCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, warmed)

	for _, rid := range []string{"r1", "r2"} {
		for _, kind := range []string{providers.CacheKindRestaurant, providers.CacheKindPredictive} {
			ok, err := cache.Exists(context.Background(), providers.AnalyticsCacheKey(rid, kind))
			require.NoError(t, err)
			assert.True(t, ok, rid+" "+kind)
		}
	}
	assert.Contains(t, cache.DeletedPatterns(), "analytics:r1:*")
}

func TestCacheWarmingService_ListError(t *testing.T) {
	repo := new(MockUserAnalyticsRepository)
	repo.On("ListRestaurantIDs", mock.Anything).Return(nil, errors.New("db down"))
	svc := NewCacheWarmingService(repo, NewMockCacheProvider(), nil, nil)

	_, err := svc.WarmCache(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestCacheWarmingService_ContinuesPastFailingRestaurant(t *testing.T) {
	repo := new(MockUserAnalyticsRepository)
	repo.On("ListRestaurantIDs", mock.Anything).Return([]string{"bad", "good"}, nil)
	repo.On("ListByRestaurant", mock.Anything, "bad").Return(nil, errors.New("timeout"))
	repo.On("ListByRestaurant", mock.Anything, "good").Return([]*entities.UserKnowledgeAnalytics{}, nil)

	cache := NewMockCacheProvider()
	views := NewViewCache(cache, time.Minute, nil)
	svc := NewCacheWarmingService(repo, cache,
		NewRestaurantAnalyticsService(repo, views),
		NewTrendEngine(repo, memory.NewAttemptRepository(), WithTrendViewCache(views), WithTrendClock(fixedClock)))

	warmed, err := svc.WarmCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, warmed)
}

func TestCacheWarmingService_StartPeriodicWarmingStops(t *testing.T) {
	cache := NewMockCacheProvider()
	svc := newTestWarmingService(t, cache,
		statsRecord("u1", "r1", map[entities.KnowledgeCategory]counts{entities.CategoryFood: {2, 1}}),
	)
	ctx, cancel := context.WithCancel(context.Background())

	done := svc.StartPeriodicWarming(ctx, time.Hour)
	assert.Eventually(t, func() bool { return cache.SetCount() >= 2 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("warming loop did not stop")
	}
}

type countingSweeper struct{ calls atomic.Int32 }

func (c *countingSweeper) ClearExpired() int {
	c.calls.Add(1)
	return 1
}

func TestStartExpirySweep(t *testing.T) {
	sweeper := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())

	done := StartExpirySweep(ctx, sweeper, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
