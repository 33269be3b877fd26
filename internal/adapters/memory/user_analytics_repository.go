// Package memory holds process-local repository implementations used by the
// local storage driver and by service tests.
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

// UserAnalyticsRepository keeps records in a map and applies the same version
// checks as the Postgres adapter. Stored records are copies; callers never share
// memory with the store.
type UserAnalyticsRepository struct {
	mu      sync.RWMutex
	records map[string]*entities.UserKnowledgeAnalytics
}

// NewUserAnalyticsRepository creates an empty repository
func NewUserAnalyticsRepository() *UserAnalyticsRepository {
	return &UserAnalyticsRepository{records: make(map[string]*entities.UserKnowledgeAnalytics)}
}

var _ repositories.UserAnalyticsRepository = (*UserAnalyticsRepository)(nil)

func recordKey(userID, restaurantID string) string {
	return restaurantID + "\x00" + userID
}

// FindByUserAndRestaurant returns a copy of the stored record
func (r *UserAnalyticsRepository) FindByUserAndRestaurant(ctx context.Context, userID, restaurantID string) (*entities.UserKnowledgeAnalytics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[recordKey(userID, restaurantID)]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("analytics for user %s in restaurant %s not found", userID, restaurantID))
	}
	return record.Clone(), nil
}

// Create inserts a new record with version 1
func (r *UserAnalyticsRepository) Create(ctx context.Context, record *entities.UserKnowledgeAnalytics) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := recordKey(record.UserID, record.RestaurantID)
	if _, exists := r.records[key]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("analytics for user %s in restaurant %s already exists", record.UserID, record.RestaurantID))
	}
	record.Version = 1
	r.records[key] = record.Clone()
	return nil
}

// Save replaces the record when the stored version matches
func (r *UserAnalyticsRepository) Save(ctx context.Context, record *entities.UserKnowledgeAnalytics) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := recordKey(record.UserID, record.RestaurantID)
	stored, exists := r.records[key]
	if !exists || stored.Version != record.Version {
		return apperrors.NewConflictError(fmt.Sprintf("analytics for user %s in restaurant %s changed concurrently", record.UserID, record.RestaurantID))
	}
	record.Version++
	r.records[key] = record.Clone()
	return nil
}

// ListByRestaurant returns copies of every record of a restaurant ordered by user id
func (r *UserAnalyticsRepository) ListByRestaurant(ctx context.Context, restaurantID string) ([]*entities.UserKnowledgeAnalytics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.UserKnowledgeAnalytics
	for _, record := range r.records {
		if record.RestaurantID == restaurantID {
			out = append(out, record.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// ListRestaurantIDs returns the distinct restaurant ids in sorted order
func (r *UserAnalyticsRepository) ListRestaurantIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, record := range r.records {
		seen[record.RestaurantID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteByRestaurant removes every record of a restaurant
func (r *UserAnalyticsRepository) DeleteByRestaurant(ctx context.Context, restaurantID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, record := range r.records {
		if record.RestaurantID == restaurantID {
			delete(r.records, key)
			removed++
		}
	}
	return removed, nil
}
