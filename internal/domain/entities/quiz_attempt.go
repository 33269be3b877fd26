package entities

import "time"

// QuizAttempt is one completed quiz submission. The engine only reads it.
type QuizAttempt struct {
	ID           string            `json:"id" db:"id"`
	UserID       string            `json:"user_id" db:"user_id"`
	RestaurantID string            `json:"restaurant_id" db:"restaurant_id"`
	Questions    []AttemptQuestion `json:"questions"`
	AttemptDate  time.Time         `json:"attempt_date" db:"attempt_date"`
}

// AttemptQuestion is a single answered question inside an attempt.
type AttemptQuestion struct {
	QuestionID        string            `json:"question_id" db:"question_id"`
	KnowledgeCategory KnowledgeCategory `json:"knowledge_category" db:"knowledge_category"`
	IsCorrect         bool              `json:"is_correct" db:"is_correct"`
}
