package repositories

import (
	"context"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
)

// UserAnalyticsRepository persists the running statistics records.
//
// Implementations must write the counters and the processed attempt ids of a
// record in one atomic operation.
type UserAnalyticsRepository interface {
	// FindByUserAndRestaurant returns the record or a NotFound AppError
	FindByUserAndRestaurant(ctx context.Context, userID, restaurantID string) (*entities.UserKnowledgeAnalytics, error)

	// Create inserts a new record with Version 1. It returns a Conflict AppError
	// when a record for the same (user, restaurant) pair already exists.
	Create(ctx context.Context, record *entities.UserKnowledgeAnalytics) error

	// Save replaces a record if its stored version still equals record.Version,
	// then bumps record.Version. A stale version yields a Conflict AppError.
	Save(ctx context.Context, record *entities.UserKnowledgeAnalytics) error

	// ListByRestaurant returns every record of a restaurant ordered by user id
	ListByRestaurant(ctx context.Context, restaurantID string) ([]*entities.UserKnowledgeAnalytics, error)

	// ListRestaurantIDs returns the distinct restaurants that have records
	ListRestaurantIDs(ctx context.Context) ([]string, error)

	// DeleteByRestaurant removes all records of a restaurant and returns how many were removed
	DeleteByRestaurant(ctx context.Context, restaurantID string) (int, error)
}
