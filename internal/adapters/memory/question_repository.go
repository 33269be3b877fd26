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

const defaultQuestionPageSize = 100

// QuestionRepository is an in-memory question store
type QuestionRepository struct {
	mu        sync.RWMutex
	questions map[string]*entities.Question
}

// NewQuestionRepository creates a store seeded with questions
func NewQuestionRepository(questions ...*entities.Question) *QuestionRepository {
	r := &QuestionRepository{questions: make(map[string]*entities.Question)}
	r.Add(questions...)
	return r
}

var _ repositories.QuestionRepository = (*QuestionRepository)(nil)

// Add stores questions, replacing any with the same id
func (r *QuestionRepository) Add(questions ...*entities.Question) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range questions {
		r.questions[q.ID] = cloneQuestion(q)
	}
}

// GetByID retrieves a question
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*entities.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.questions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("question %s not found", id))
	}
	return cloneQuestion(q), nil
}

// ListForClassification returns one keyset page ordered by id
func (r *QuestionRepository) ListForClassification(ctx context.Context, filter repositories.QuestionFilter) ([]*entities.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQuestionPageSize
	}

	var matched []*entities.Question
	for _, q := range r.questions {
		if q.RestaurantID != filter.RestaurantID || q.ID <= filter.AfterID {
			continue
		}
		if filter.OnlyUntagged && q.KnowledgeCategory.IsValid() {
			continue
		}
		matched = append(matched, q)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*entities.Question, len(matched))
	for i, q := range matched {
		out[i] = cloneQuestion(q)
	}
	return out, nil
}

// UpdateKnowledgeCategory writes a classification back to the question
func (r *QuestionRepository) UpdateKnowledgeCategory(ctx context.Context, assignment entities.CategoryAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.questions[assignment.QuestionID]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("question %s not found", assignment.QuestionID))
	}
	at := assignment.AssignedAt
	q.KnowledgeCategory = assignment.KnowledgeCategory
	q.CategoryConfidence = assignment.Confidence
	q.CategoryAssignedBy = assignment.AssignedBy
	q.CategoryAssignedAt = &at
	return nil
}

func cloneQuestion(q *entities.Question) *entities.Question {
	c := *q
	c.Categories = append([]string(nil), q.Categories...)
	if q.CategoryAssignedAt != nil {
		at := *q.CategoryAssignedAt
		c.CategoryAssignedAt = &at
	}
	return &c
}
