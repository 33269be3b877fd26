package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/providers"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/repositories"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/knowledgeanalytics/pkg/errors"
	"github.com/zatekoja/knowledgeanalytics/pkg/retry"
)

// StatsAggregator folds quiz attempts into per-user, per-restaurant running
// statistics. Recording is idempotent per attempt id. Attempts of one user are
// serialized in process; across processes the repository's version check makes
// a lost update surface as a conflict, which is retried from a fresh read.
type StatsAggregator struct {
	repo     repositories.UserAnalyticsRepository
	cache    providers.CacheProvider
	eventBus providers.EventBus
	metrics  *observability.Metrics
	locks    *keyedMutex
	retryCfg retry.Config
	now      func() time.Time
}

// StatsAggregatorOption configures optional collaborators
type StatsAggregatorOption func(*StatsAggregator)

// WithAggregatorCache invalidates a restaurant's cached views after each change.
func WithAggregatorCache(cache providers.CacheProvider) StatsAggregatorOption {
	return func(a *StatsAggregator) { a.cache = cache }
}

// WithAggregatorEventBus publishes change events so other processes drop their views.
func WithAggregatorEventBus(bus providers.EventBus) StatsAggregatorOption {
	return func(a *StatsAggregator) { a.eventBus = bus }
}

// WithAggregatorMetrics records attempt counters.
func WithAggregatorMetrics(m *observability.Metrics) StatsAggregatorOption {
	return func(a *StatsAggregator) { a.metrics = m }
}

// WithAggregatorClock overrides the clock used for created/updated timestamps.
func WithAggregatorClock(now func() time.Time) StatsAggregatorOption {
	return func(a *StatsAggregator) { a.now = now }
}

// WithAggregatorRetry overrides the conflict retry policy.
func WithAggregatorRetry(cfg retry.Config) StatsAggregatorOption {
	return func(a *StatsAggregator) { a.retryCfg = cfg }
}

// NewStatsAggregator creates an aggregator backed by repo
func NewStatsAggregator(repo repositories.UserAnalyticsRepository, opts ...StatsAggregatorOption) *StatsAggregator {
	a := &StatsAggregator{
		repo:     repo,
		locks:    newKeyedMutex(),
		retryCfg: retry.ConflictConfig(apperrors.IsConflict),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.retryCfg.RetryIf == nil {
		a.retryCfg.RetryIf = apperrors.IsConflict
	}
	return a
}

// RecordAttempt folds attempt into its user's record. It reports whether the
// attempt changed anything; a second call with the same attempt id returns
// false and leaves the record untouched. Questions without a resolved category
// are skipped. Persistence errors are returned and nothing is partially written.
func (a *StatsAggregator) RecordAttempt(ctx context.Context, attempt *entities.QuizAttempt) (bool, error) {
	if err := validateAttempt(attempt); err != nil {
		return false, err
	}

	unlock := a.locks.Lock(attempt.UserID + "|" + attempt.RestaurantID)
	defer unlock()

	logger := observability.LoggerFromContext(ctx).With().
		Str("attempt_id", attempt.ID).
		Str("user_id", attempt.UserID).
		Str("restaurant_id", attempt.RestaurantID).
		Logger()

	var applied bool
	err := retry.DoWithLog(ctx, a.retryCfg, "record attempt", func() error {
		var err error
		applied, err = a.applyAttempt(ctx, attempt)
		return err
	}, func(n int, err error, next time.Duration) {
		logger.Debug().Err(err).Int("retry", n).Dur("next_delay", next).Msg("analytics record changed concurrently, retrying")
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to record attempt")
		return false, err
	}

	a.metrics.RecordAttempt(ctx, attempt.RestaurantID, applied)
	if !applied {
		logger.Debug().Msg("attempt already processed")
		return false, nil
	}

	logger.Debug().Int("questions", len(attempt.Questions)).Msg("attempt recorded")
	a.afterChange(ctx, entities.AnalyticsEventAttemptRecorded, attempt.RestaurantID, func(e *entities.AnalyticsEvent) {
		e.UserID = attempt.UserID
		e.AttemptID = attempt.ID
	})
	return true, nil
}

// applyAttempt performs one read-modify-write cycle. The stored record is only
// replaced by a copy that already contains both the new counters and the attempt id.
func (a *StatsAggregator) applyAttempt(ctx context.Context, attempt *entities.QuizAttempt) (bool, error) {
	existing, err := a.repo.FindByUserAndRestaurant(ctx, attempt.UserID, attempt.RestaurantID)
	isNew := false
	switch {
	case apperrors.IsNotFound(err):
		existing = entities.NewUserKnowledgeAnalytics(attempt.UserID, attempt.RestaurantID, a.now())
		isNew = true
	case err != nil:
		return false, fmt.Errorf("load analytics for user %s: %w", attempt.UserID, err)
	}

	if existing.HasProcessed(attempt.ID) {
		return false, nil
	}

	updated := existing.Clone()
	for _, q := range attempt.Questions {
		if !q.KnowledgeCategory.IsValid() {
			continue
		}
		updated.RecordAnswer(q.KnowledgeCategory, q.IsCorrect, attempt.AttemptDate)
	}
	updated.MarkProcessed(attempt.ID)
	updated.UpdatedAt = a.now()

	if isNew {
		err = a.repo.Create(ctx, updated)
	} else {
		err = a.repo.Save(ctx, updated)
	}
	if err != nil {
		return false, fmt.Errorf("persist analytics for user %s: %w", attempt.UserID, err)
	}
	return true, nil
}

// GetUserAnalytics returns the record of a user, or nil without error when the
// user has no recorded attempts in the restaurant.
func (a *StatsAggregator) GetUserAnalytics(ctx context.Context, userID, restaurantID string) (*entities.UserKnowledgeAnalytics, error) {
	record, err := a.repo.FindByUserAndRestaurant(ctx, userID, restaurantID)
	if apperrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ResetRestaurant deletes every record of a restaurant. It is the only operation
// that removes statistics.
func (a *StatsAggregator) ResetRestaurant(ctx context.Context, restaurantID string) (int, error) {
	if restaurantID == "" {
		return 0, apperrors.NewValidationError("restaurant id is required")
	}
	removed, err := a.repo.DeleteByRestaurant(ctx, restaurantID)
	if err != nil {
		return 0, fmt.Errorf("reset analytics for restaurant %s: %w", restaurantID, err)
	}

	observability.LoggerFromContext(ctx).Info().
		Str("restaurant_id", restaurantID).
		Int("records_removed", removed).
		Msg("restaurant analytics reset")
	a.afterChange(ctx, entities.AnalyticsEventRestaurantReset, restaurantID, nil)
	return removed, nil
}

// afterChange drops the restaurant's cached views and announces the change.
// Both steps are best effort: views also expire on their own.
func (a *StatsAggregator) afterChange(ctx context.Context, eventType entities.AnalyticsEventType, restaurantID string, decorate func(*entities.AnalyticsEvent)) {
	logger := observability.LoggerFromContext(ctx)

	if a.cache != nil {
		if err := a.cache.DeletePattern(ctx, providers.AnalyticsCachePattern(restaurantID)); err != nil {
			logger.Warn().Err(err).Str("restaurant_id", restaurantID).Msg("failed to invalidate analytics views")
		}
	}

	if a.eventBus != nil {
		event := entities.NewAnalyticsEvent(eventType, restaurantID)
		if decorate != nil {
			decorate(event)
		}
		if err := a.eventBus.Publish(ctx, providers.EventChannelAnalytics, event); err != nil {
			logger.Warn().Err(err).Str("restaurant_id", restaurantID).Msg("failed to publish analytics event")
		}
	}
}

func validateAttempt(attempt *entities.QuizAttempt) error {
	switch {
	case attempt == nil:
		return apperrors.NewValidationError("attempt is required")
	case attempt.ID == "":
		return apperrors.NewValidationError("attempt id is required")
	case attempt.UserID == "":
		return apperrors.NewValidationError("attempt user id is required")
	case attempt.RestaurantID == "":
		return apperrors.NewValidationError("attempt restaurant id is required")
	}
	return nil
}

// StrongestCategory returns the category with the highest accuracy among those
// with at least one answered question. Ties go to the earlier category. With no
// data at all the result is food, which carries no meaning.
func StrongestCategory(record *entities.UserKnowledgeAnalytics) entities.KnowledgeCategory {
	return pickCategory(record, func(candidate, best float64) bool { return candidate > best })
}

// WeakestCategory returns the category with the lowest accuracy among those with
// at least one answered question, so an untouched category is never reported as
// weak. Ties go to the earlier category; with no data the result is food.
func WeakestCategory(record *entities.UserKnowledgeAnalytics) entities.KnowledgeCategory {
	return pickCategory(record, func(candidate, best float64) bool { return candidate < best })
}

func pickCategory(record *entities.UserKnowledgeAnalytics, better func(candidate, best float64) bool) entities.KnowledgeCategory {
	best := entities.CategoryFood
	if record == nil {
		return best
	}
	found := false
	bestAccuracy := 0.0
	for _, c := range entities.AllCategories {
		stats := record.Stats(c)
		if !stats.HasData() {
			continue
		}
		if !found || better(stats.Accuracy(), bestAccuracy) {
			best, bestAccuracy, found = c, stats.Accuracy(), true
		}
	}
	return best
}
