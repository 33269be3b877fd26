// Package app wires configuration into storage, cache, event and service
// components shared by the binaries under cmd/.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/knowledgeanalytics/internal/adapters/cache"
	"github.com/zatekoja/knowledgeanalytics/internal/adapters/database"
	"github.com/zatekoja/knowledgeanalytics/internal/adapters/events"
	"github.com/zatekoja/knowledgeanalytics/internal/adapters/memory"
	"github.com/zatekoja/knowledgeanalytics/internal/application/services"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/providers"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/repositories"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/clients/redis"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/observability"
	"github.com/zatekoja/knowledgeanalytics/pkg/config"
)

// App holds the wired components. Optional parts are nil when disabled.
type App struct {
	Config  *config.Config
	Metrics *observability.Metrics

	Analytics repositories.UserAnalyticsRepository
	Attempts  repositories.AttemptRepository
	Questions repositories.QuestionRepository

	Cache    providers.CacheProvider
	Sweeper  services.ExpiredSweeper
	EventBus providers.EventBus

	Categorizer  *services.KnowledgeCategorizer
	Aggregator   *services.StatsAggregator
	Restaurants  *services.RestaurantAnalyticsService
	Trends       *services.TrendEngine
	Tagging      *services.QuestionTaggingService
	Replay       *services.AttemptReplayService
	Invalidation *services.CacheInvalidationService
	Warming      *services.CacheWarmingService

	closers []func() error
}

// New connects the configured drivers and builds every service. An unreachable
// Redis degrades to the in-memory cache without cross-process invalidation.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	metrics, err := observability.InitMetrics()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	a.Metrics = metrics

	if err := a.initStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.initCache(ctx)

	views := services.NewViewCache(a.Cache, cfg.Analytics.ViewTTL, metrics)
	opts := []services.StatsAggregatorOption{
		services.WithAggregatorCache(a.Cache),
		services.WithAggregatorMetrics(metrics),
	}
	if a.EventBus != nil {
		opts = append(opts, services.WithAggregatorEventBus(a.EventBus))
	}

	a.Categorizer = services.NewKnowledgeCategorizer()
	a.Aggregator = services.NewStatsAggregator(a.Analytics, opts...)
	a.Restaurants = services.NewRestaurantAnalyticsService(a.Analytics, views)
	a.Trends = services.NewTrendEngine(a.Analytics, a.Attempts, services.WithTrendViewCache(views))
	a.Tagging = services.NewQuestionTaggingService(a.Questions, a.Categorizer, metrics, cfg.Analytics.Workers, cfg.Analytics.ReviewThreshold)
	a.Replay = services.NewAttemptReplayService(a.Attempts, a.Aggregator, cfg.Analytics.Workers)
	a.Warming = services.NewCacheWarmingService(a.Analytics, a.Cache, a.Restaurants, a.Trends)
	if a.EventBus != nil {
		a.Invalidation = services.NewCacheInvalidationService(a.Cache, a.EventBus)
	}
	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	switch a.Config.App.StorageDriver {
	case "memory":
		a.Analytics = memory.NewUserAnalyticsRepository()
		a.Attempts = memory.NewAttemptRepository()
		a.Questions = memory.NewQuestionRepository()
		log.Info().Msg("using in-memory storage")
		return nil
	case "postgres":
		client, err := postgres.NewClient(ctx, &a.Config.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		timed := database.WithQueryMetrics(a.Metrics)
		a.Analytics = database.NewUserAnalyticsAdapter(client, timed)
		a.Attempts = database.NewAttemptAdapter(client, timed)
		a.Questions = database.NewQuestionAdapter(client, timed)
		log.Info().Str("host", a.Config.Database.Host).Msg("PostgreSQL storage initialized")
		return nil
	}
	return fmt.Errorf("unknown storage driver %q", a.Config.App.StorageDriver)
}

func (a *App) initCache(ctx context.Context) {
	if a.Config.App.CacheDriver == "redis" {
		client, err := redis.NewClient(ctx, &a.Config.Redis)
		if err == nil {
			a.closers = append(a.closers, client.Close)
			a.Cache = cache.NewRedisAdapter(client)
			if a.Config.Redis.EventsEnabled {
				bus := events.NewRedisEventBus(client)
				a.closers = append(a.closers, bus.Close)
				a.EventBus = bus
			}
			log.Info().Str("addr", a.Config.Redis.RedisAddr()).Bool("events", a.EventBus != nil).Msg("Redis cache initialized")
			return
		}
		log.Warn().Err(err).Msg("Redis unavailable, falling back to in-memory views")
	}

	adapter := cache.NewMemoryAdapter()
	a.Cache = adapter
	a.Sweeper = adapter
}

// Close releases connections in reverse order of creation
func (a *App) Close() error {
	if a.Invalidation != nil {
		a.Invalidation.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
