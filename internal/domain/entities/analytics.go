package entities

import (
	"fmt"
	"time"
)

// Timeframe selects the period used by comparative analytics.
type Timeframe string

const (
	TimeframeWeek    Timeframe = "week"
	TimeframeMonth   Timeframe = "month"
	TimeframeQuarter Timeframe = "quarter"
	TimeframeYear    Timeframe = "year"
)

// ParseTimeframe validates a timeframe name.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(s); tf {
	case TimeframeWeek, TimeframeMonth, TimeframeQuarter, TimeframeYear:
		return tf, nil
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// CategoryBreakdown is the aggregate of one category over a set of answers.
type CategoryBreakdown struct {
	Category       KnowledgeCategory `json:"category"`
	TotalQuestions int               `json:"total_questions"`
	CorrectAnswers int               `json:"correct_answers"`
	Accuracy       float64           `json:"accuracy"`
}

// TimeRangeAnalytics aggregates raw attempts of one restaurant inside [Start, End].
type TimeRangeAnalytics struct {
	RestaurantID       string              `json:"restaurant_id"`
	Start              time.Time           `json:"start"`
	End                time.Time           `json:"end"`
	TotalAttempts      int                 `json:"total_attempts"`
	TotalQuestions     int                 `json:"total_questions"`
	AverageAccuracy    float64             `json:"average_accuracy"`
	StaffParticipation int                 `json:"staff_participation"`
	CategoryBreakdown  []CategoryBreakdown `json:"category_breakdown"`
}

// Breakdown returns the entry for one category.
func (t *TimeRangeAnalytics) Breakdown(c KnowledgeCategory) CategoryBreakdown {
	for _, b := range t.CategoryBreakdown {
		if b.Category == c {
			return b
		}
	}
	return CategoryBreakdown{Category: c}
}

// CategoryImprovement compares one category across two periods.
type CategoryImprovement struct {
	Category           KnowledgeCategory `json:"category"`
	CurrentAccuracy    float64           `json:"current_accuracy"`
	PreviousAccuracy   float64           `json:"previous_accuracy"`
	ImprovementPercent float64           `json:"improvement_percent"`
	CurrentQuestions   int               `json:"current_questions"`
	PreviousQuestions  int               `json:"previous_questions"`
}

// ComparativeAnalytics compares the current period with the immediately preceding one.
type ComparativeAnalytics struct {
	RestaurantID         string                `json:"restaurant_id"`
	Timeframe            Timeframe             `json:"timeframe"`
	Current              TimeRangeAnalytics    `json:"current"`
	Previous             TimeRangeAnalytics    `json:"previous"`
	AccuracyImprovement  float64               `json:"accuracy_improvement"`
	QuestionVolumeChange float64               `json:"question_volume_change"`
	ParticipationChange  float64               `json:"participation_change"`
	CategoryImprovements []CategoryImprovement `json:"category_improvements"`
}

// RiskLevel grades how urgently a staff member needs coaching.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// TrendDirection labels a category forecast.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// Priority grades a training recommendation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// AtRiskStaff is a staff member flagged for coaching.
type AtRiskStaff struct {
	UserID          string              `json:"user_id"`
	OverallAccuracy float64             `json:"overall_accuracy"`
	TotalQuestions  int                 `json:"total_questions"`
	RiskLevel       RiskLevel           `json:"risk_level"`
	DeclinePattern  bool                `json:"decline_pattern"`
	WeakCategories  []KnowledgeCategory `json:"weak_categories"`
	WeakestCategory KnowledgeCategory   `json:"weakest_category"`
}

// CategoryForecast is a naive linear projection of a category's accuracy.
type CategoryForecast struct {
	Category           KnowledgeCategory `json:"category"`
	CurrentAccuracy    float64           `json:"current_accuracy"`
	Trend              float64           `json:"trend"`
	PredictedAccuracy  float64           `json:"predicted_accuracy"`
	Direction          TrendDirection    `json:"direction"`
	Confidence         float64           `json:"confidence"`
	ParticipatingStaff int               `json:"participating_staff"`
}

// TrainingPriority ranks a category for coaching effort.
type TrainingPriority struct {
	Category         KnowledgeCategory `json:"category"`
	AverageAccuracy  float64           `json:"average_accuracy"`
	StaffBelowTarget int               `json:"staff_below_target"`
	StaffWithData    int               `json:"staff_with_data"`
	BelowTargetShare float64           `json:"below_target_share"`
	Score            float64           `json:"score"`
	Priority         Priority          `json:"priority"`
	Recommendation   string            `json:"recommendation"`
}

// PredictiveInsights bundles the coaching-oriented outputs for a restaurant.
type PredictiveInsights struct {
	RestaurantID       string             `json:"restaurant_id"`
	GeneratedAt        time.Time          `json:"generated_at"`
	AtRiskStaff        []AtRiskStaff      `json:"at_risk_staff"`
	CategoryForecasts  []CategoryForecast `json:"category_forecasts"`
	TrainingPriorities []TrainingPriority `json:"training_priorities"`
}

// CategoryRollup aggregates one category across all staff of a restaurant.
type CategoryRollup struct {
	Category       KnowledgeCategory `json:"category"`
	TotalQuestions int               `json:"total_questions"`
	CorrectAnswers int               `json:"correct_answers"`
	Accuracy       float64           `json:"accuracy"`
	StaffWithData  int               `json:"staff_with_data"`
}

// RestaurantAnalytics is the restaurant-wide rollup of the running statistics.
type RestaurantAnalytics struct {
	RestaurantID           string            `json:"restaurant_id"`
	TotalStaff             int               `json:"total_staff"`
	ActiveStaff            int               `json:"active_staff"`
	TotalQuestionsAnswered int               `json:"total_questions_answered"`
	OverallAccuracy        float64           `json:"overall_accuracy"`
	Categories             []CategoryRollup  `json:"categories"`
	StrongestCategory      KnowledgeCategory `json:"strongest_category"`
	WeakestCategory        KnowledgeCategory `json:"weakest_category"`
	GeneratedAt            time.Time         `json:"generated_at"`
}

// StaffCategoryScore is one staff member's standing in a category.
type StaffCategoryScore struct {
	UserID         string  `json:"user_id"`
	TotalQuestions int     `json:"total_questions"`
	Accuracy       float64 `json:"accuracy"`
}

// CategoryInsight details one category inside a restaurant.
type CategoryInsight struct {
	RestaurantID     string               `json:"restaurant_id"`
	Category         KnowledgeCategory    `json:"category"`
	StaffWithData    int                  `json:"staff_with_data"`
	AverageAccuracy  float64              `json:"average_accuracy"`
	StaffBelowTarget int                  `json:"staff_below_target"`
	TopPerformers    []StaffCategoryScore `json:"top_performers"`
	Struggling       []StaffCategoryScore `json:"struggling"`
	GeneratedAt      time.Time            `json:"generated_at"`
}
