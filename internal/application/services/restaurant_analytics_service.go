package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/providers"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/repositories"
	apperrors "github.com/zatekoja/knowledgeanalytics/pkg/errors"
)

const (
	topPerformerAccuracy = 80.0
	insightListLimit     = 5
)

// RestaurantAnalyticsService builds restaurant-wide read models from the running
// per-user statistics.
type RestaurantAnalyticsService struct {
	repo  repositories.UserAnalyticsRepository
	views *ViewCache
	now   func() time.Time
}

// NewRestaurantAnalyticsService creates the service. views may be nil.
func NewRestaurantAnalyticsService(repo repositories.UserAnalyticsRepository, views *ViewCache) *RestaurantAnalyticsService {
	return &RestaurantAnalyticsService{repo: repo, views: views, now: time.Now}
}

// GetRestaurantAnalytics rolls every staff record of a restaurant up into one
// view. A restaurant without records gets the zero shape with all four
// categories present.
func (s *RestaurantAnalyticsService) GetRestaurantAnalytics(ctx context.Context, restaurantID string) (*entities.RestaurantAnalytics, error) {
	if restaurantID == "" {
		return nil, apperrors.NewValidationError("restaurant id is required")
	}

	key := providers.AnalyticsCacheKey(restaurantID, providers.CacheKindRestaurant)
	return GetOrCompute(ctx, s.views, providers.CacheKindRestaurant, key, func(ctx context.Context) (*entities.RestaurantAnalytics, error) {
		records, err := s.repo.ListByRestaurant(ctx, restaurantID)
		if err != nil {
			return nil, fmt.Errorf("list analytics for restaurant %s: %w", restaurantID, err)
		}
		return buildRestaurantAnalytics(restaurantID, records, s.now()), nil
	})
}

func buildRestaurantAnalytics(restaurantID string, records []*entities.UserKnowledgeAnalytics, now time.Time) *entities.RestaurantAnalytics {
	rollups := rollupCategories(records)

	// The restaurant as a whole is ranked like a single member holding everyone's answers.
	combined := &entities.UserKnowledgeAnalytics{RestaurantID: restaurantID}
	for i, r := range rollups {
		combined.Categories[i] = entities.CategoryStats{TotalQuestions: r.TotalQuestions, CorrectAnswers: r.CorrectAnswers}
	}

	active := 0
	for _, r := range records {
		if r.TotalQuestionsAnswered() > 0 {
			active++
		}
	}

	return &entities.RestaurantAnalytics{
		RestaurantID:           restaurantID,
		TotalStaff:             len(records),
		ActiveStaff:            active,
		TotalQuestionsAnswered: combined.TotalQuestionsAnswered(),
		OverallAccuracy:        combined.OverallAccuracy(),
		Categories:             rollups[:],
		StrongestCategory:      StrongestCategory(combined),
		WeakestCategory:        WeakestCategory(combined),
		GeneratedAt:            now,
	}
}

// GetCategoryInsights details one category of a restaurant: participation,
// average staff accuracy, and the best and weakest staff members.
func (s *RestaurantAnalyticsService) GetCategoryInsights(ctx context.Context, restaurantID string, category entities.KnowledgeCategory) (*entities.CategoryInsight, error) {
	if restaurantID == "" {
		return nil, apperrors.NewValidationError("restaurant id is required")
	}
	if !category.IsValid() {
		return nil, apperrors.NewValidationError("a resolved knowledge category is required")
	}

	key := providers.AnalyticsCacheKey(restaurantID, providers.CacheKindCategory, category.String())
	return GetOrCompute(ctx, s.views, providers.CacheKindCategory, key, func(ctx context.Context) (*entities.CategoryInsight, error) {
		records, err := s.repo.ListByRestaurant(ctx, restaurantID)
		if err != nil {
			return nil, fmt.Errorf("list analytics for restaurant %s: %w", restaurantID, err)
		}
		return buildCategoryInsight(restaurantID, category, records, s.now()), nil
	})
}

func buildCategoryInsight(restaurantID string, category entities.KnowledgeCategory, records []*entities.UserKnowledgeAnalytics, now time.Time) *entities.CategoryInsight {
	scores := staffScores(records, category)
	avg, below := averageAndBelow(scores)

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Accuracy != scores[j].Accuracy {
			return scores[i].Accuracy > scores[j].Accuracy
		}
		return scores[i].TotalQuestions > scores[j].TotalQuestions
	})

	top := make([]entities.StaffCategoryScore, 0, insightListLimit)
	for _, sc := range scores {
		if len(top) == insightListLimit || sc.Accuracy < topPerformerAccuracy {
			break
		}
		top = append(top, sc)
	}

	struggling := make([]entities.StaffCategoryScore, 0, insightListLimit)
	for i := len(scores) - 1; i >= 0 && len(struggling) < insightListLimit; i-- {
		if scores[i].Accuracy >= TargetAccuracy {
			break
		}
		struggling = append(struggling, scores[i])
	}

	return &entities.CategoryInsight{
		RestaurantID:     restaurantID,
		Category:         category,
		StaffWithData:    len(scores),
		AverageAccuracy:  avg,
		StaffBelowTarget: below,
		TopPerformers:    top,
		Struggling:       struggling,
		GeneratedAt:      now,
	}
}

// rollupCategories sums the counters of every record per category.
func rollupCategories(records []*entities.UserKnowledgeAnalytics) [entities.NumCategories]entities.CategoryRollup {
	var out [entities.NumCategories]entities.CategoryRollup
	for i, c := range entities.AllCategories {
		out[i].Category = c
	}
	for _, r := range records {
		for i, st := range r.Categories {
			if !st.HasData() {
				continue
			}
			out[i].TotalQuestions += st.TotalQuestions
			out[i].CorrectAnswers += st.CorrectAnswers
			out[i].StaffWithData++
		}
	}
	for i := range out {
		out[i].Accuracy = percent(out[i].CorrectAnswers, out[i].TotalQuestions)
	}
	return out
}

// staffScores lists the members with answers in category, in record order.
func staffScores(records []*entities.UserKnowledgeAnalytics, category entities.KnowledgeCategory) []entities.StaffCategoryScore {
	var out []entities.StaffCategoryScore
	for _, r := range records {
		st := r.Stats(category)
		if !st.HasData() {
			continue
		}
		out = append(out, entities.StaffCategoryScore{
			UserID:         r.UserID,
			TotalQuestions: st.TotalQuestions,
			Accuracy:       st.Accuracy(),
		})
	}
	return out
}

// averageAndBelow returns the unweighted mean accuracy and how many members are below TargetAccuracy.
func averageAndBelow(scores []entities.StaffCategoryScore) (float64, int) {
	if len(scores) == 0 {
		return 0, 0
	}
	sum, below := 0.0, 0
	for _, sc := range scores {
		sum += sc.Accuracy
		if sc.Accuracy < TargetAccuracy {
			below++
		}
	}
	return sum / float64(len(scores)), below
}
