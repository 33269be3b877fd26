package entities

import (
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// CategoryStats holds one user's running totals in one knowledge category.
// Accuracy is always derived from the counters and never stored.
type CategoryStats struct {
	TotalQuestions  int        `json:"total_questions"`
	CorrectAnswers  int        `json:"correct_answers"`
	LastAttemptDate *time.Time `json:"last_attempt_date,omitempty"`
}

// Accuracy returns CorrectAnswers/TotalQuestions*100, or 0 without data.
func (s CategoryStats) Accuracy() float64 {
	if s.TotalQuestions == 0 {
		return 0
	}
	return float64(s.CorrectAnswers) / float64(s.TotalQuestions) * 100
}

// HasData reports whether at least one question was answered in the category.
func (s CategoryStats) HasData() bool {
	return s.TotalQuestions > 0
}

// MarshalJSON adds the derived accuracy to the serialized form.
func (s CategoryStats) MarshalJSON() ([]byte, error) {
	type plain CategoryStats
	return sonic.ConfigStd.Marshal(struct {
		plain
		Accuracy float64 `json:"accuracy"`
	}{plain(s), s.Accuracy()})
}

// UserKnowledgeAnalytics is the running statistics record for one user in one restaurant.
type UserKnowledgeAnalytics struct {
	ID                  string
	UserID              string
	RestaurantID        string
	Categories          [NumCategories]CategoryStats
	ProcessedAttemptIDs map[string]struct{}
	// Version is bumped by every successful save and guards concurrent writers.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUserKnowledgeAnalytics creates an empty record for a (user, restaurant) pair.
func NewUserKnowledgeAnalytics(userID, restaurantID string, now time.Time) *UserKnowledgeAnalytics {
	return &UserKnowledgeAnalytics{
		ID:                  uuid.New().String(),
		UserID:              userID,
		RestaurantID:        restaurantID,
		ProcessedAttemptIDs: make(map[string]struct{}),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Stats returns the statistics of one category.
func (a *UserKnowledgeAnalytics) Stats(c KnowledgeCategory) CategoryStats {
	return a.Categories[c.Index()]
}

// HasProcessed reports whether the attempt was already folded into this record.
func (a *UserKnowledgeAnalytics) HasProcessed(attemptID string) bool {
	_, ok := a.ProcessedAttemptIDs[attemptID]
	return ok
}

// MarkProcessed adds an attempt id to the idempotency guard.
func (a *UserKnowledgeAnalytics) MarkProcessed(attemptID string) {
	if a.ProcessedAttemptIDs == nil {
		a.ProcessedAttemptIDs = make(map[string]struct{})
	}
	a.ProcessedAttemptIDs[attemptID] = struct{}{}
}

// ProcessedAttemptIDList returns the processed attempt ids in sorted order.
func (a *UserKnowledgeAnalytics) ProcessedAttemptIDList() []string {
	ids := make([]string, 0, len(a.ProcessedAttemptIDs))
	for id := range a.ProcessedAttemptIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RecordAnswer folds one answered question into the category counters.
// LastAttemptDate only moves forward.
func (a *UserKnowledgeAnalytics) RecordAnswer(c KnowledgeCategory, correct bool, at time.Time) {
	s := &a.Categories[c.Index()]
	s.TotalQuestions++
	if correct {
		s.CorrectAnswers++
	}
	if !at.IsZero() && (s.LastAttemptDate == nil || at.After(*s.LastAttemptDate)) {
		t := at
		s.LastAttemptDate = &t
	}
}

// TotalQuestionsAnswered sums the question counts across categories.
func (a *UserKnowledgeAnalytics) TotalQuestionsAnswered() int {
	total := 0
	for _, s := range a.Categories {
		total += s.TotalQuestions
	}
	return total
}

// OverallAccuracy is the question-count-weighted average of the category accuracies.
func (a *UserKnowledgeAnalytics) OverallAccuracy() float64 {
	total := a.TotalQuestionsAnswered()
	if total == 0 {
		return 0
	}
	weighted := 0.0
	for _, s := range a.Categories {
		weighted += s.Accuracy() * float64(s.TotalQuestions)
	}
	return weighted / float64(total)
}

// Clone returns a deep copy.
func (a *UserKnowledgeAnalytics) Clone() *UserKnowledgeAnalytics {
	c := *a
	for i, s := range a.Categories {
		if s.LastAttemptDate != nil {
			t := *s.LastAttemptDate
			c.Categories[i].LastAttemptDate = &t
		}
	}
	c.ProcessedAttemptIDs = make(map[string]struct{}, len(a.ProcessedAttemptIDs))
	for id := range a.ProcessedAttemptIDs {
		c.ProcessedAttemptIDs[id] = struct{}{}
	}
	return &c
}

type userKnowledgeAnalyticsJSON struct {
	ID                     string                              `json:"id"`
	UserID                 string                              `json:"user_id"`
	RestaurantID           string                              `json:"restaurant_id"`
	CategoryStats          map[KnowledgeCategory]CategoryStats `json:"category_stats"`
	OverallAccuracy        float64                             `json:"overall_accuracy"`
	TotalQuestionsAnswered int                                 `json:"total_questions_answered"`
	ProcessedAttemptIDs    []string                            `json:"processed_attempt_ids"`
	Version                int                                 `json:"version"`
	CreatedAt              time.Time                           `json:"created_at"`
	UpdatedAt              time.Time                           `json:"updated_at"`
}

// MarshalJSON renders the record with sorted category names as keys and derived totals.
func (a *UserKnowledgeAnalytics) MarshalJSON() ([]byte, error) {
	stats := make(map[KnowledgeCategory]CategoryStats, NumCategories)
	for _, c := range AllCategories {
		stats[c] = a.Stats(c)
	}
	return sonic.ConfigStd.Marshal(userKnowledgeAnalyticsJSON{
		ID:                     a.ID,
		UserID:                 a.UserID,
		RestaurantID:           a.RestaurantID,
		CategoryStats:          stats,
		OverallAccuracy:        a.OverallAccuracy(),
		TotalQuestionsAnswered: a.TotalQuestionsAnswered(),
		ProcessedAttemptIDs:    a.ProcessedAttemptIDList(),
		Version:                a.Version,
		CreatedAt:              a.CreatedAt,
		UpdatedAt:              a.UpdatedAt,
	})
}

// UnmarshalJSON restores a record; derived fields in the payload are ignored.
func (a *UserKnowledgeAnalytics) UnmarshalJSON(data []byte) error {
	var raw userKnowledgeAnalyticsJSON
	if err := sonic.ConfigStd.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = UserKnowledgeAnalytics{
		ID:                  raw.ID,
		UserID:              raw.UserID,
		RestaurantID:        raw.RestaurantID,
		ProcessedAttemptIDs: make(map[string]struct{}, len(raw.ProcessedAttemptIDs)),
		Version:             raw.Version,
		CreatedAt:           raw.CreatedAt,
		UpdatedAt:           raw.UpdatedAt,
	}
	for c, s := range raw.CategoryStats {
		if c.IsValid() {
			a.Categories[c.Index()] = s
		}
	}
	for _, id := range raw.ProcessedAttemptIDs {
		a.ProcessedAttemptIDs[id] = struct{}{}
	}
	return nil
}
