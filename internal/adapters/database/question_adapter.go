package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/repositories"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/knowledgeanalytics/pkg/errors"
)

const (
	questionsTable          = "questions"
	defaultQuestionPageSize = 100
)

var questionColumns = []interface{}{
	"id", "restaurant_id", "question_text", "categories", "knowledge_category",
	"knowledge_category_confidence", "knowledge_category_assigned_by", "knowledge_category_assigned_at",
}

// QuestionAdapter implements QuestionRepository
type QuestionAdapter struct {
	queryObserver
	client  *postgres.Client
	dialect goqu.DialectWrapper
}

// NewQuestionAdapter creates a new question adapter
func NewQuestionAdapter(client *postgres.Client, opts ...Option) repositories.QuestionRepository {
	return &QuestionAdapter{
		queryObserver: newQueryObserver(opts),
		client:        client,
		dialect:       client.Dialect(),
	}
}

// GetByID retrieves a question by ID
func (a *QuestionAdapter) GetByID(ctx context.Context, id string) (*entities.Question, error) {
	defer a.observe(ctx, "questions.get", time.Now())

	query, args, err := a.dialect.From(questionsTable).
		Prepared(true).
		Select(questionColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	q, err := scanQuestion(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("question %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get question", err)
	}
	return q, nil
}

// ListForClassification returns one keyset page of a restaurant's questions ordered by id
func (a *QuestionAdapter) ListForClassification(ctx context.Context, filter repositories.QuestionFilter) ([]*entities.Question, error) {
	defer a.observe(ctx, "questions.list", time.Now())

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQuestionPageSize
	}

	where := []goqu.Expression{goqu.C("restaurant_id").Eq(filter.RestaurantID)}
	if filter.AfterID != "" {
		where = append(where, goqu.C("id").Gt(filter.AfterID))
	}
	if filter.OnlyUntagged {
		where = append(where, goqu.C("knowledge_category").IsNull())
	}

	query, args, err := a.dialect.From(questionsTable).
		Prepared(true).
		Select(questionColumns...).
		Where(where...).
		Order(goqu.C("id").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list questions", err)
	}
	defer rows.Close()

	questions := []*entities.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan question", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate questions", err)
	}
	return questions, nil
}

// UpdateKnowledgeCategory writes a classification result back to the question
func (a *QuestionAdapter) UpdateKnowledgeCategory(ctx context.Context, assignment entities.CategoryAssignment) error {
	defer a.observe(ctx, "questions.update_category", time.Now())

	category := sql.NullString{String: assignment.KnowledgeCategory.String(), Valid: assignment.KnowledgeCategory.IsValid()}

	query, args, err := a.dialect.Update(questionsTable).
		Prepared(true).
		Set(goqu.Record{
			"knowledge_category":             category,
			"knowledge_category_confidence":  assignment.Confidence,
			"knowledge_category_assigned_by": assignment.AssignedBy,
			"knowledge_category_assigned_at": assignment.AssignedAt,
		}).
		Where(goqu.Ex{"id": assignment.QuestionID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update question category", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to read affected rows", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("question %s not found", assignment.QuestionID))
	}
	return nil
}

func scanQuestion(row rowScanner) (*entities.Question, error) {
	q := &entities.Question{}
	var category, assignedBy sql.NullString
	var confidence sql.NullFloat64
	var assignedAt sql.NullTime

	err := row.Scan(
		&q.ID,
		&q.RestaurantID,
		&q.QuestionText,
		pq.Array(&q.Categories),
		&category,
		&confidence,
		&assignedBy,
		&assignedAt,
	)
	if err != nil {
		return nil, err
	}

	// An unrecognised stored category is treated as untagged.
	q.KnowledgeCategory, _ = entities.ParseKnowledgeCategory(category.String)
	q.CategoryConfidence = confidence.Float64
	q.CategoryAssignedBy = assignedBy.String
	if assignedAt.Valid {
		at := assignedAt.Time
		q.CategoryAssignedAt = &at
	}
	return q, nil
}
