package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/repositories"
	apperrors "github.com/zatekoja/knowledgeanalytics/pkg/errors"
)

// AttemptRepository is an in-memory attempt store
type AttemptRepository struct {
	mu       sync.RWMutex
	attempts map[string]*entities.QuizAttempt
}

// NewAttemptRepository creates a store seeded with attempts
func NewAttemptRepository(attempts ...*entities.QuizAttempt) *AttemptRepository {
	r := &AttemptRepository{attempts: make(map[string]*entities.QuizAttempt)}
	r.Add(attempts...)
	return r
}

var _ repositories.AttemptRepository = (*AttemptRepository)(nil)

// Add stores attempts, replacing any with the same id
func (r *AttemptRepository) Add(attempts ...*entities.QuizAttempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range attempts {
		r.attempts[a.ID] = cloneAttempt(a)
	}
}

// GetByID retrieves an attempt
func (r *AttemptRepository) GetByID(ctx context.Context, id string) (*entities.QuizAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.attempts[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("attempt %s not found", id))
	}
	return cloneAttempt(a), nil
}

// ListByRestaurant returns matching attempts ordered by attempt date, then id
func (r *AttemptRepository) ListByRestaurant(ctx context.Context, filter repositories.AttemptFilter) ([]*entities.QuizAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.QuizAttempt
	for _, a := range r.attempts {
		if a.RestaurantID != filter.RestaurantID || !filter.Contains(a.AttemptDate) {
			continue
		}
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		out = append(out, cloneAttempt(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AttemptDate.Equal(out[j].AttemptDate) {
			return out[i].AttemptDate.Before(out[j].AttemptDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func cloneAttempt(a *entities.QuizAttempt) *entities.QuizAttempt {
	c := *a
	c.Questions = append([]entities.AttemptQuestion(nil), a.Questions...)
	return &c
}
