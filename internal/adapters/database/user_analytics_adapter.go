package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/repositories"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/knowledgeanalytics/pkg/errors"
)

const userAnalyticsTable = "user_knowledge_analytics"

var userAnalyticsColumns = []interface{}{
	"id", "user_id", "restaurant_id", "category_stats",
	"processed_attempt_ids", "version", "created_at", "updated_at",
}

// storedCategoryStats is the jsonb form of one category. Accuracy is derived
// on read and never persisted.
type storedCategoryStats struct {
	TotalQuestions  int        `json:"total_questions"`
	CorrectAnswers  int        `json:"correct_answers"`
	LastAttemptDate *time.Time `json:"last_attempt_date,omitempty"`
}

// UserAnalyticsAdapter implements UserAnalyticsRepository on Postgres. One row
// holds a record's counters and processed attempt ids so both change in the
// same statement.
type UserAnalyticsAdapter struct {
	queryObserver
	client  *postgres.Client
	dialect goqu.DialectWrapper
}

// NewUserAnalyticsAdapter creates a new user analytics adapter
func NewUserAnalyticsAdapter(client *postgres.Client, opts ...Option) repositories.UserAnalyticsRepository {
	return &UserAnalyticsAdapter{
		queryObserver: newQueryObserver(opts),
		client:        client,
		dialect:       client.Dialect(),
	}
}

// FindByUserAndRestaurant retrieves the record of a user in a restaurant
func (a *UserAnalyticsAdapter) FindByUserAndRestaurant(ctx context.Context, userID, restaurantID string) (*entities.UserKnowledgeAnalytics, error) {
	defer a.observe(ctx, "user_knowledge_analytics.find", time.Now())

	query, args, err := a.dialect.From(userAnalyticsTable).
		Prepared(true).
		Select(userAnalyticsColumns...).
		Where(goqu.Ex{"user_id": userID, "restaurant_id": restaurantID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	record, err := scanUserAnalytics(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("analytics for user %s in restaurant %s not found", userID, restaurantID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get user analytics", err)
	}
	return record, nil
}

// Create inserts a new record with version 1
func (a *UserAnalyticsAdapter) Create(ctx context.Context, record *entities.UserKnowledgeAnalytics) error {
	defer a.observe(ctx, "user_knowledge_analytics.create", time.Now())

	stats, err := encodeCategoryStats(record)
	if err != nil {
		return apperrors.NewInternalError("failed to encode category stats", err)
	}

	query, args, err := a.dialect.Insert(userAnalyticsTable).
		Prepared(true).
		Rows(goqu.Record{
			"id":                    record.ID,
			"user_id":               record.UserID,
			"restaurant_id":         record.RestaurantID,
			"category_stats":        stats,
			"processed_attempt_ids": pq.Array(record.ProcessedAttemptIDList()),
			"version":               1,
			"created_at":            record.CreatedAt,
			"updated_at":            record.UpdatedAt,
		}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError(fmt.Sprintf("analytics for user %s in restaurant %s already exists", record.UserID, record.RestaurantID))
		}
		return apperrors.NewInternalError("failed to create user analytics", err)
	}
	record.Version = 1
	return nil
}

// Save replaces the row only while its version still matches record.Version
func (a *UserAnalyticsAdapter) Save(ctx context.Context, record *entities.UserKnowledgeAnalytics) error {
	defer a.observe(ctx, "user_knowledge_analytics.save", time.Now())

	stats, err := encodeCategoryStats(record)
	if err != nil {
		return apperrors.NewInternalError("failed to encode category stats", err)
	}

	query, args, err := a.dialect.Update(userAnalyticsTable).
		Prepared(true).
		Set(goqu.Record{
			"category_stats":        stats,
			"processed_attempt_ids": pq.Array(record.ProcessedAttemptIDList()),
			"version":               goqu.L("version + 1"),
			"updated_at":            record.UpdatedAt,
		}).
		Where(goqu.Ex{
			"user_id":       record.UserID,
			"restaurant_id": record.RestaurantID,
			"version":       record.Version,
		}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to save user analytics", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to read affected rows", err)
	}
	if affected == 0 {
		return apperrors.NewConflictError(fmt.Sprintf("analytics for user %s in restaurant %s changed concurrently", record.UserID, record.RestaurantID))
	}
	record.Version++
	return nil
}

// ListByRestaurant returns every record of a restaurant ordered by user id
func (a *UserAnalyticsAdapter) ListByRestaurant(ctx context.Context, restaurantID string) ([]*entities.UserKnowledgeAnalytics, error) {
	defer a.observe(ctx, "user_knowledge_analytics.list", time.Now())

	query, args, err := a.dialect.From(userAnalyticsTable).
		Prepared(true).
		Select(userAnalyticsColumns...).
		Where(goqu.Ex{"restaurant_id": restaurantID}).
		Order(goqu.C("user_id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list user analytics", err)
	}
	defer rows.Close()

	records := []*entities.UserKnowledgeAnalytics{}
	for rows.Next() {
		record, err := scanUserAnalytics(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan user analytics", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate user analytics", err)
	}
	return records, nil
}

// ListRestaurantIDs returns the distinct restaurants that have records
func (a *UserAnalyticsAdapter) ListRestaurantIDs(ctx context.Context) ([]string, error) {
	defer a.observe(ctx, "user_knowledge_analytics.restaurants", time.Now())

	query, args, err := a.dialect.From(userAnalyticsTable).
		Prepared(true).
		Select("restaurant_id").
		Distinct().
		Order(goqu.C("restaurant_id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	ids := []string{}
	if err := a.client.DB().SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list restaurant ids", err)
	}
	return ids, nil
}

// DeleteByRestaurant removes all records of a restaurant
func (a *UserAnalyticsAdapter) DeleteByRestaurant(ctx context.Context, restaurantID string) (int, error) {
	defer a.observe(ctx, "user_knowledge_analytics.delete", time.Now())

	query, args, err := a.dialect.Delete(userAnalyticsTable).
		Prepared(true).
		Where(goqu.Ex{"restaurant_id": restaurantID}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to delete user analytics", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to read affected rows", err)
	}
	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserAnalytics(row rowScanner) (*entities.UserKnowledgeAnalytics, error) {
	record := &entities.UserKnowledgeAnalytics{}
	var stats []byte
	var processed []string

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.RestaurantID,
		&stats,
		pq.Array(&processed),
		&record.Version,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeCategoryStats(stats, record); err != nil {
		return nil, fmt.Errorf("decode category stats of %s: %w", record.ID, err)
	}
	record.ProcessedAttemptIDs = make(map[string]struct{}, len(processed))
	for _, id := range processed {
		record.ProcessedAttemptIDs[id] = struct{}{}
	}
	return record, nil
}

func encodeCategoryStats(record *entities.UserKnowledgeAnalytics) (string, error) {
	stored := make(map[string]storedCategoryStats, entities.NumCategories)
	for _, c := range entities.AllCategories {
		s := record.Stats(c)
		stored[c.String()] = storedCategoryStats{
			TotalQuestions:  s.TotalQuestions,
			CorrectAnswers:  s.CorrectAnswers,
			LastAttemptDate: s.LastAttemptDate,
		}
	}
	data, err := sonic.Marshal(stored)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeCategoryStats ignores category names it does not know.
func decodeCategoryStats(data []byte, record *entities.UserKnowledgeAnalytics) error {
	if len(data) == 0 {
		return nil
	}
	var stored map[string]storedCategoryStats
	if err := sonic.Unmarshal(data, &stored); err != nil {
		return err
	}
	for name, s := range stored {
		c, err := entities.ParseKnowledgeCategory(name)
		if err != nil || !c.IsValid() {
			continue
		}
		record.Categories[c.Index()] = entities.CategoryStats{
			TotalQuestions:  s.TotalQuestions,
			CorrectAnswers:  s.CorrectAnswers,
			LastAttemptDate: s.LastAttemptDate,
		}
	}
	return nil
}
