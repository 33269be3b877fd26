package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/providers"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/repositories"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/knowledgeanalytics/pkg/errors"
)

// Heuristic thresholds for predictive insights. Coaching recommendations are
// tuned to these exact values; they are not statistical estimates.
const (
	// TargetAccuracy is the accuracy every staff member is coached towards.
	TargetAccuracy = 70.0

	atRiskAccuracy        = 70.0
	highRiskAccuracy      = 50.0
	elevatedRiskAccuracy  = 60.0
	elevatedRiskQuestions = 20

	declineCategoryAccuracy  = 60.0
	declineCategoryQuestions = 5
	declineCategoryCount     = 2

	forecastTrendWeight       = 0.3
	forecastDirectionBand     = 5.0
	forecastConfidencePerUser = 10.0
	forecastMaxConfidence     = 90.0

	priorityHighAccuracy   = 60.0
	priorityHighShare      = 0.5
	priorityMediumAccuracy = 75.0
	priorityMediumShare    = 0.25
)

// trendWindow is the length of each of the two windows whose accuracy delta is
// the forecast trend.
const trendWindow = 30 * 24 * time.Hour

// TrendEngine computes period comparisons, naive forecasts and coaching
// priorities for a restaurant. Time-range views aggregate raw attempts, the
// rest reads the running per-user statistics.
type TrendEngine struct {
	analytics repositories.UserAnalyticsRepository
	attempts  repositories.AttemptRepository
	views     *ViewCache
	now       func() time.Time
}

// TrendEngineOption configures optional collaborators
type TrendEngineOption func(*TrendEngine)

// WithTrendViewCache serves results through views.
func WithTrendViewCache(views *ViewCache) TrendEngineOption {
	return func(e *TrendEngine) { e.views = views }
}

// WithTrendClock overrides the clock that anchors periods.
func WithTrendClock(now func() time.Time) TrendEngineOption {
	return func(e *TrendEngine) { e.now = now }
}

// NewTrendEngine creates a trend engine
func NewTrendEngine(analytics repositories.UserAnalyticsRepository, attempts repositories.AttemptRepository, opts ...TrendEngineOption) *TrendEngine {
	e := &TrendEngine{analytics: analytics, attempts: attempts, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetTimeRangeAnalytics aggregates the attempts of a restaurant dated inside
// [start, end]. A restaurant without attempts yields the all-zero shape.
func (e *TrendEngine) GetTimeRangeAnalytics(ctx context.Context, restaurantID string, start, end time.Time) (*entities.TimeRangeAnalytics, error) {
	if restaurantID == "" {
		return nil, apperrors.NewValidationError("restaurant id is required")
	}
	if end.Before(start) {
		return nil, apperrors.NewValidationError("time range end is before its start")
	}

	key := providers.AnalyticsCacheKey(restaurantID, providers.CacheKindTimeRange,
		start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
	return GetOrCompute(ctx, e.views, providers.CacheKindTimeRange, key, func(ctx context.Context) (*entities.TimeRangeAnalytics, error) {
		return e.timeRange(ctx, restaurantID, start, end)
	})
}

func (e *TrendEngine) timeRange(ctx context.Context, restaurantID string, start, end time.Time) (*entities.TimeRangeAnalytics, error) {
	filter := repositories.AttemptFilter{RestaurantID: restaurantID, Start: start, End: end}
	attempts, err := e.attempts.ListByRestaurant(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list attempts for restaurant %s: %w", restaurantID, err)
	}
	return aggregateAttempts(restaurantID, filter, attempts), nil
}

// aggregateAttempts folds attempts inside filter's range into a time-range view.
// Only questions with a resolved category are counted.
func aggregateAttempts(restaurantID string, filter repositories.AttemptFilter, attempts []*entities.QuizAttempt) *entities.TimeRangeAnalytics {
	var (
		totals  [entities.NumCategories]int
		correct [entities.NumCategories]int
		staff   = make(map[string]struct{})
		count   int
	)
	for _, attempt := range attempts {
		if !filter.Contains(attempt.AttemptDate) {
			continue
		}
		count++
		staff[attempt.UserID] = struct{}{}
		for _, q := range attempt.Questions {
			if !q.KnowledgeCategory.IsValid() {
				continue
			}
			i := q.KnowledgeCategory.Index()
			totals[i]++
			if q.IsCorrect {
				correct[i]++
			}
		}
	}

	result := &entities.TimeRangeAnalytics{
		RestaurantID:       restaurantID,
		Start:              filter.Start,
		End:                filter.End,
		TotalAttempts:      count,
		StaffParticipation: len(staff),
		CategoryBreakdown:  make([]entities.CategoryBreakdown, 0, entities.NumCategories),
	}
	allCorrect := 0
	for i, c := range entities.AllCategories {
		result.TotalQuestions += totals[i]
		allCorrect += correct[i]
		result.CategoryBreakdown = append(result.CategoryBreakdown, entities.CategoryBreakdown{
			Category:       c,
			TotalQuestions: totals[i],
			CorrectAnswers: correct[i],
			Accuracy:       percent(correct[i], totals[i]),
		})
	}
	result.AverageAccuracy = percent(allCorrect, result.TotalQuestions)
	return result
}

// GetComparativeAnalytics compares the current period of the given kind with
// the immediately preceding one. Improvements are zero whenever the previous
// value is zero.
func (e *TrendEngine) GetComparativeAnalytics(ctx context.Context, restaurantID string, timeframe entities.Timeframe) (*entities.ComparativeAnalytics, error) {
	if restaurantID == "" {
		return nil, apperrors.NewValidationError("restaurant id is required")
	}
	if _, err := entities.ParseTimeframe(string(timeframe)); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	key := providers.AnalyticsCacheKey(restaurantID, providers.CacheKindComparative, string(timeframe))
	return GetOrCompute(ctx, e.views, providers.CacheKindComparative, key, func(ctx context.Context) (*entities.ComparativeAnalytics, error) {
		return e.comparative(ctx, restaurantID, timeframe)
	})
}

func (e *TrendEngine) comparative(ctx context.Context, restaurantID string, timeframe entities.Timeframe) (*entities.ComparativeAnalytics, error) {
	current, previous := PeriodWindows(timeframe, e.now())

	cur, err := e.timeRange(ctx, restaurantID, current.Start, current.End)
	if err != nil {
		return nil, err
	}
	prev, err := e.timeRange(ctx, restaurantID, previous.Start, previous.End)
	if err != nil {
		return nil, err
	}

	result := &entities.ComparativeAnalytics{
		RestaurantID:         restaurantID,
		Timeframe:            timeframe,
		Current:              *cur,
		Previous:             *prev,
		AccuracyImprovement:  improvement(cur.AverageAccuracy, prev.AverageAccuracy),
		QuestionVolumeChange: improvement(float64(cur.TotalQuestions), float64(prev.TotalQuestions)),
		ParticipationChange:  improvement(float64(cur.StaffParticipation), float64(prev.StaffParticipation)),
		CategoryImprovements: make([]entities.CategoryImprovement, 0, entities.NumCategories),
	}
	for _, c := range entities.AllCategories {
		cb, pb := cur.Breakdown(c), prev.Breakdown(c)
		result.CategoryImprovements = append(result.CategoryImprovements, entities.CategoryImprovement{
			Category:           c,
			CurrentAccuracy:    cb.Accuracy,
			PreviousAccuracy:   pb.Accuracy,
			ImprovementPercent: improvement(cb.Accuracy, pb.Accuracy),
			CurrentQuestions:   cb.TotalQuestions,
			PreviousQuestions:  pb.TotalQuestions,
		})
	}
	return result, nil
}

// Window is a closed time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// PeriodWindows returns the current period ending at now and the period right
// before it. A week is the rolling seven days up to now; months, quarters and
// years start at their calendar boundary in now's location and the previous
// window is the whole preceding calendar period.
func PeriodWindows(timeframe entities.Timeframe, now time.Time) (current, previous Window) {
	const instant = time.Nanosecond
	loc := now.Location()

	var start, prevStart time.Time
	switch timeframe {
	case entities.TimeframeMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		prevStart = start.AddDate(0, -1, 0)
	case entities.TimeframeQuarter:
		firstMonth := time.Month((int(now.Month())-1)/3*3 + 1)
		start = time.Date(now.Year(), firstMonth, 1, 0, 0, 0, 0, loc)
		prevStart = start.AddDate(0, -3, 0)
	case entities.TimeframeYear:
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
		prevStart = start.AddDate(-1, 0, 0)
	default:
		start = now.AddDate(0, 0, -7)
		prevStart = start.AddDate(0, 0, -7)
	}

	return Window{Start: start, End: now}, Window{Start: prevStart, End: start.Add(-instant)}
}

// GetPredictiveInsights flags at-risk staff, projects each category's accuracy
// and ranks categories for training.
func (e *TrendEngine) GetPredictiveInsights(ctx context.Context, restaurantID string) (*entities.PredictiveInsights, error) {
	if restaurantID == "" {
		return nil, apperrors.NewValidationError("restaurant id is required")
	}

	key := providers.AnalyticsCacheKey(restaurantID, providers.CacheKindPredictive)
	return GetOrCompute(ctx, e.views, providers.CacheKindPredictive, key, func(ctx context.Context) (*entities.PredictiveInsights, error) {
		return e.predictive(ctx, restaurantID)
	})
}

func (e *TrendEngine) predictive(ctx context.Context, restaurantID string) (*entities.PredictiveInsights, error) {
	ctx, span := observability.StartSpan(ctx, "TrendEngine.GetPredictiveInsights")
	defer span.End()

	records, err := e.analytics.ListByRestaurant(ctx, restaurantID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("list analytics for restaurant %s: %w", restaurantID, err)
	}

	now := e.now()
	recentStart := now.Add(-trendWindow)
	filter := repositories.AttemptFilter{RestaurantID: restaurantID, Start: recentStart.Add(-trendWindow), End: now}
	attempts, err := e.attempts.ListByRestaurant(ctx, filter)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("list attempts for restaurant %s: %w", restaurantID, err)
	}
	recent := aggregateAttempts(restaurantID, repositories.AttemptFilter{Start: recentStart, End: now}, attempts)
	earlier := aggregateAttempts(restaurantID, repositories.AttemptFilter{Start: filter.Start, End: recentStart.Add(-time.Nanosecond)}, attempts)

	return &entities.PredictiveInsights{
		RestaurantID:       restaurantID,
		GeneratedAt:        now,
		AtRiskStaff:        AtRiskStaffOf(records),
		CategoryForecasts:  forecastCategories(records, recent, earlier),
		TrainingPriorities: TrainingPrioritiesOf(records),
	}, nil
}

// AtRiskStaffOf returns the staff whose overall accuracy is below 70 or who show
// a decline pattern, highest risk first. Records without answers are ignored.
func AtRiskStaffOf(records []*entities.UserKnowledgeAnalytics) []entities.AtRiskStaff {
	out := make([]entities.AtRiskStaff, 0)
	for _, r := range records {
		total := r.TotalQuestionsAnswered()
		if total == 0 {
			continue
		}
		overall := r.OverallAccuracy()

		var weak []entities.KnowledgeCategory
		for _, c := range entities.AllCategories {
			s := r.Stats(c)
			if s.TotalQuestions > declineCategoryQuestions && s.Accuracy() < declineCategoryAccuracy {
				weak = append(weak, c)
			}
		}
		decline := len(weak) >= declineCategoryCount

		if overall >= atRiskAccuracy && !decline {
			continue
		}
		out = append(out, entities.AtRiskStaff{
			UserID:          r.UserID,
			OverallAccuracy: overall,
			TotalQuestions:  total,
			RiskLevel:       riskLevel(overall, total, decline),
			DeclinePattern:  decline,
			WeakCategories:  weak,
			WeakestCategory: WeakestCategory(r),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := riskRank(out[i].RiskLevel), riskRank(out[j].RiskLevel)
		if ri != rj {
			return ri > rj
		}
		if out[i].OverallAccuracy != out[j].OverallAccuracy {
			return out[i].OverallAccuracy < out[j].OverallAccuracy
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func riskLevel(accuracy float64, totalQuestions int, decline bool) entities.RiskLevel {
	switch {
	case accuracy < highRiskAccuracy || (accuracy < elevatedRiskAccuracy && totalQuestions > elevatedRiskQuestions):
		return entities.RiskHigh
	case accuracy < atRiskAccuracy || decline:
		return entities.RiskMedium
	default:
		return entities.RiskLow
	}
}

func riskRank(level entities.RiskLevel) int {
	switch level {
	case entities.RiskHigh:
		return 2
	case entities.RiskMedium:
		return 1
	}
	return 0
}

// forecastCategories projects each category from the restaurant-wide running
// accuracy and the delta between the last two 30-day windows.
func forecastCategories(records []*entities.UserKnowledgeAnalytics, recent, earlier *entities.TimeRangeAnalytics) []entities.CategoryForecast {
	rollups := rollupCategories(records)
	out := make([]entities.CategoryForecast, 0, entities.NumCategories)
	for i, c := range entities.AllCategories {
		trend := 0.0
		rb, eb := recent.Breakdown(c), earlier.Breakdown(c)
		if rb.TotalQuestions > 0 && eb.TotalQuestions > 0 {
			trend = rb.Accuracy - eb.Accuracy
		}
		out = append(out, ForecastCategory(c, rollups[i].Accuracy, trend, rollups[i].StaffWithData))
	}
	return out
}

// ForecastCategory applies the naive linear projection
// predicted = clamp(0, 100, current + trend*0.3) with a ±5 direction band and a
// confidence of ten points per participating staff member, capped at 90.
func ForecastCategory(category entities.KnowledgeCategory, current, trend float64, staff int) entities.CategoryForecast {
	direction := entities.TrendStable
	switch {
	case trend > forecastDirectionBand:
		direction = entities.TrendImproving
	case trend < -forecastDirectionBand:
		direction = entities.TrendDeclining
	}
	return entities.CategoryForecast{
		Category:           category,
		CurrentAccuracy:    current,
		Trend:              trend,
		PredictedAccuracy:  clamp(current+trend*forecastTrendWeight, 0, 100),
		Direction:          direction,
		Confidence:         min(forecastMaxConfidence, float64(staff)*forecastConfidencePerUser),
		ParticipatingStaff: staff,
	}
}

// TrainingPrioritiesOf ranks the categories that have data by
// (100 - average staff accuracy) + share of staff below target * 100.
func TrainingPrioritiesOf(records []*entities.UserKnowledgeAnalytics) []entities.TrainingPriority {
	out := make([]entities.TrainingPriority, 0, entities.NumCategories)
	for _, c := range entities.AllCategories {
		scores := staffScores(records, c)
		if len(scores) == 0 {
			continue
		}
		avg, below := averageAndBelow(scores)
		share := float64(below) / float64(len(scores))

		p := entities.TrainingPriority{
			Category:         c,
			AverageAccuracy:  avg,
			StaffBelowTarget: below,
			StaffWithData:    len(scores),
			BelowTargetShare: share,
			Score:            (100 - avg) + share*100,
			Priority:         trainingPriority(avg, share),
		}
		p.Recommendation = recommendation(p)
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func trainingPriority(avg, belowShare float64) entities.Priority {
	switch {
	case avg < priorityHighAccuracy || belowShare > priorityHighShare:
		return entities.PriorityHigh
	case avg < priorityMediumAccuracy || belowShare > priorityMediumShare:
		return entities.PriorityMedium
	default:
		return entities.PriorityLow
	}
}

func recommendation(p entities.TrainingPriority) string {
	switch p.Priority {
	case entities.PriorityHigh:
		return fmt.Sprintf("Schedule focused %s training: %d of %d staff are below %.0f%% accuracy",
			p.Category, p.StaffBelowTarget, p.StaffWithData, TargetAccuracy)
	case entities.PriorityMedium:
		return fmt.Sprintf("Add %s refreshers to upcoming quizzes", p.Category)
	default:
		return fmt.Sprintf("Maintain current %s training", p.Category)
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// improvement is the percentage change from previous to current, 0 when previous is 0.
func improvement(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
