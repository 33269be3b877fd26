package entities

import "time"

// Question is a quiz question as served by the question store.
type Question struct {
	ID                 string            `json:"id" db:"id"`
	RestaurantID       string            `json:"restaurant_id" db:"restaurant_id"`
	QuestionText       string            `json:"question_text" db:"question_text"`
	Categories         []string          `json:"categories,omitempty" db:"categories"`
	KnowledgeCategory  KnowledgeCategory `json:"knowledge_category" db:"knowledge_category"`
	CategoryConfidence float64           `json:"knowledge_category_confidence" db:"knowledge_category_confidence"`
	CategoryAssignedBy string            `json:"knowledge_category_assigned_by,omitempty" db:"knowledge_category_assigned_by"`
	CategoryAssignedAt *time.Time        `json:"knowledge_category_assigned_at,omitempty" db:"knowledge_category_assigned_at"`
}

// Assignment sources for a question's knowledge category.
const (
	AssignedByCategorizer = "categorizer"
	AssignedByManual      = "manual"
)

// CategoryAssignment is the update written back to the question store after classification.
type CategoryAssignment struct {
	QuestionID        string            `json:"question_id"`
	KnowledgeCategory KnowledgeCategory `json:"knowledge_category"`
	Confidence        float64           `json:"confidence"`
	AssignedBy        string            `json:"assigned_by"`
	AssignedAt        time.Time         `json:"assigned_at"`
}
