package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/providers"
)

const invalidationTimeout = 5 * time.Second

// CacheInvalidationService drops a restaurant's cached views whenever another
// process announces a change to that restaurant's statistics.
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for events and invalidating cache
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelAnalytics)
	if err != nil {
		return fmt.Errorf("failed to subscribe to analytics events: %w", err)
	}

	s.started = true
	go s.processEvents(eventChan)
	log.Info().Str("channel", providers.EventChannelAnalytics).Msg("cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if s.started {
		<-s.done
	}
	log.Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.AnalyticsEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.AnalyticsEvent) {
	switch event.EventType {
	case entities.AnalyticsEventAttemptRecorded, entities.AnalyticsEventRestaurantReset:
	default:
		log.Debug().Str("event_type", string(event.EventType)).Msg("ignoring analytics event")
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, invalidationTimeout)
	defer cancel()

	if err := s.InvalidateRestaurant(ctx, event.RestaurantID); err != nil {
		log.Warn().Err(err).
			Str("event_id", event.ID).
			Str("restaurant_id", event.RestaurantID).
			Msg("failed to invalidate analytics views")
		return
	}
	log.Debug().
		Str("event_id", event.ID).
		Str("event_type", string(event.EventType)).
		Str("restaurant_id", event.RestaurantID).
		Msg("invalidated analytics views")
}

// InvalidateRestaurant deletes every cached view of one restaurant
func (s *CacheInvalidationService) InvalidateRestaurant(ctx context.Context, restaurantID string) error {
	if restaurantID == "" {
		return nil
	}
	if err := s.cache.DeletePattern(ctx, providers.AnalyticsCachePattern(restaurantID)); err != nil {
		return fmt.Errorf("failed to invalidate restaurant %s: %w", restaurantID, err)
	}
	return nil
}

// InvalidateAll deletes every cached analytics view. Meant for maintenance.
func (s *CacheInvalidationService) InvalidateAll(ctx context.Context) error {
	if err := s.cache.DeletePattern(ctx, "analytics:*"); err != nil {
		return fmt.Errorf("failed to invalidate analytics views: %w", err)
	}
	log.Info().Msg("invalidated all analytics views")
	return nil
}
