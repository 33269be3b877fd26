package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
)

// AttemptRepository is the read-only attempt store.
type AttemptRepository interface {
	// GetByID retrieves an attempt with its questions
	GetByID(ctx context.Context, id string) (*entities.QuizAttempt, error)

	// ListByRestaurant returns attempts whose attempt date lies in filter's closed range
	ListByRestaurant(ctx context.Context, filter AttemptFilter) ([]*entities.QuizAttempt, error)
}

// AttemptFilter scopes attempt listings. Zero times leave that side of the range open.
type AttemptFilter struct {
	RestaurantID string
	Start        time.Time
	End          time.Time
	UserID       string
}

// Contains reports whether t falls inside the filter's date range.
func (f AttemptFilter) Contains(t time.Time) bool {
	if !f.Start.IsZero() && t.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && t.After(f.End) {
		return false
	}
	return true
}
