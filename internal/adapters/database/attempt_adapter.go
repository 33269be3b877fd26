package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/repositories"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/knowledgeanalytics/pkg/errors"
)

const (
	attemptsTable         = "quiz_attempts"
	attemptQuestionsTable = "quiz_attempt_questions"
)

var (
	attemptColumns         = []interface{}{"id", "user_id", "restaurant_id", "attempt_date"}
	attemptQuestionColumns = []interface{}{"attempt_id", "question_id", "knowledge_category", "is_correct"}
)

type attemptRow struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	RestaurantID string    `db:"restaurant_id"`
	AttemptDate  time.Time `db:"attempt_date"`
}

type attemptQuestionRow struct {
	AttemptID         string         `db:"attempt_id"`
	QuestionID        string         `db:"question_id"`
	KnowledgeCategory sql.NullString `db:"knowledge_category"`
	IsCorrect         bool           `db:"is_correct"`
}

// AttemptAdapter implements AttemptRepository. Queries are built with goqu
// and scanned into structs with sqlx.
type AttemptAdapter struct {
	queryObserver
	client  *postgres.Client
	dialect goqu.DialectWrapper
}

// NewAttemptAdapter creates a new attempt adapter
func NewAttemptAdapter(client *postgres.Client, opts ...Option) repositories.AttemptRepository {
	return &AttemptAdapter{
		queryObserver: newQueryObserver(opts),
		client:        client,
		dialect:       client.Dialect(),
	}
}

// GetByID retrieves an attempt with its questions
func (a *AttemptAdapter) GetByID(ctx context.Context, id string) (*entities.QuizAttempt, error) {
	defer a.observe(ctx, "quiz_attempts.get", time.Now())

	query, args, err := a.dialect.From(attemptsTable).
		Prepared(true).
		Select(attemptColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var row attemptRow
	err = a.client.DB().GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("attempt %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get attempt", err)
	}

	attempts, err := a.withQuestions(ctx, []attemptRow{row})
	if err != nil {
		return nil, err
	}
	return attempts[0], nil
}

// ListByRestaurant returns the attempts of a restaurant in the filter's closed
// date range, ordered by attempt date.
func (a *AttemptAdapter) ListByRestaurant(ctx context.Context, filter repositories.AttemptFilter) ([]*entities.QuizAttempt, error) {
	defer a.observe(ctx, "quiz_attempts.list", time.Now())

	where := []goqu.Expression{goqu.C("restaurant_id").Eq(filter.RestaurantID)}
	if !filter.Start.IsZero() {
		where = append(where, goqu.C("attempt_date").Gte(filter.Start))
	}
	if !filter.End.IsZero() {
		where = append(where, goqu.C("attempt_date").Lte(filter.End))
	}
	if filter.UserID != "" {
		where = append(where, goqu.C("user_id").Eq(filter.UserID))
	}

	query, args, err := a.dialect.From(attemptsTable).
		Prepared(true).
		Select(attemptColumns...).
		Where(where...).
		Order(goqu.C("attempt_date").Asc(), goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var rows []attemptRow
	if err := a.client.DB().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list attempts", err)
	}
	if len(rows) == 0 {
		return []*entities.QuizAttempt{}, nil
	}
	return a.withQuestions(ctx, rows)
}

// withQuestions loads the questions of every attempt in one query.
func (a *AttemptAdapter) withQuestions(ctx context.Context, rows []attemptRow) ([]*entities.QuizAttempt, error) {
	ids := make([]string, len(rows))
	byID := make(map[string]*entities.QuizAttempt, len(rows))
	attempts := make([]*entities.QuizAttempt, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
		attempts[i] = &entities.QuizAttempt{
			ID:           r.ID,
			UserID:       r.UserID,
			RestaurantID: r.RestaurantID,
			AttemptDate:  r.AttemptDate,
			Questions:    []entities.AttemptQuestion{},
		}
		byID[r.ID] = attempts[i]
	}

	query, args, err := a.dialect.From(attemptQuestionsTable).
		Prepared(true).
		Select(attemptQuestionColumns...).
		Where(goqu.C("attempt_id").In(ids)).
		Order(goqu.C("attempt_id").Asc(), goqu.C("position").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var questions []attemptQuestionRow
	if err := a.client.DB().SelectContext(ctx, &questions, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list attempt questions", err)
	}

	for _, q := range questions {
		attempt, ok := byID[q.AttemptID]
		if !ok {
			continue
		}
		category, err := entities.ParseKnowledgeCategory(q.KnowledgeCategory.String)
		if err != nil {
			log.Warn().Err(err).Str("attempt_id", q.AttemptID).Str("question_id", q.QuestionID).Msg("unknown stored knowledge category")
			category = entities.CategoryUnknown
		}
		attempt.Questions = append(attempt.Questions, entities.AttemptQuestion{
			QuestionID:        q.QuestionID,
			KnowledgeCategory: category,
			IsCorrect:         q.IsCorrect,
		})
	}
	return attempts, nil
}
