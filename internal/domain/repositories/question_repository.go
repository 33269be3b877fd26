package repositories

import (
	"context"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
)

// QuestionRepository is the question store the tagging service reads from and writes back to.
type QuestionRepository interface {
	// GetByID retrieves a question
	GetByID(ctx context.Context, id string) (*entities.Question, error)

	// ListForClassification pages through the questions of a restaurant ordered by id
	ListForClassification(ctx context.Context, filter QuestionFilter) ([]*entities.Question, error)

	// UpdateKnowledgeCategory writes a classification result back to the question
	UpdateKnowledgeCategory(ctx context.Context, assignment entities.CategoryAssignment) error
}

// QuestionFilter defines filters for listing questions
type QuestionFilter struct {
	RestaurantID string
	// OnlyUntagged restricts the listing to questions without a knowledge category
	OnlyUntagged bool
	// AfterID is the keyset cursor: only ids greater than it are returned
	AfterID string
	Limit   int
}
