package messaging

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	apperrors "github.com/zatekoja/knowledgeanalytics/pkg/errors"
)

var validate = validator.New()

// AttemptMessage is the wire form of a completed quiz attempt on the attempts topic
type AttemptMessage struct {
	AttemptID    string                   `json:"attempt_id" validate:"required"`
	UserID       string                   `json:"user_id" validate:"required"`
	RestaurantID string                   `json:"restaurant_id" validate:"required"`
	AttemptDate  time.Time                `json:"attempt_date" validate:"required"`
	Questions    []AttemptQuestionMessage `json:"questions" validate:"dive"`
}

// AttemptQuestionMessage is one answered question. An empty or unknown
// category is accepted and left unresolved.
type AttemptQuestionMessage struct {
	QuestionID        string `json:"question_id" validate:"required"`
	KnowledgeCategory string `json:"knowledge_category"`
	IsCorrect         bool   `json:"is_correct"`
}

// NewAttemptMessage converts an attempt into its wire form
func NewAttemptMessage(attempt *entities.QuizAttempt) *AttemptMessage {
	msg := &AttemptMessage{
		AttemptID:    attempt.ID,
		UserID:       attempt.UserID,
		RestaurantID: attempt.RestaurantID,
		AttemptDate:  attempt.AttemptDate,
		Questions:    make([]AttemptQuestionMessage, len(attempt.Questions)),
	}
	for i, q := range attempt.Questions {
		msg.Questions[i] = AttemptQuestionMessage{
			QuestionID:        q.QuestionID,
			KnowledgeCategory: q.KnowledgeCategory.String(),
			IsCorrect:         q.IsCorrect,
		}
	}
	return msg
}

// DecodeAttemptMessage parses and validates a message value. Every failure is
// a validation error since redelivering the same bytes cannot succeed.
func DecodeAttemptMessage(value []byte) (*AttemptMessage, error) {
	var msg AttemptMessage
	if err := sonic.Unmarshal(value, &msg); err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("malformed attempt message: %v", err))
	}
	if err := validate.Struct(&msg); err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid attempt message: %v", err))
	}
	return &msg, nil
}

// ToAttempt converts the message into the domain attempt
func (m *AttemptMessage) ToAttempt() *entities.QuizAttempt {
	attempt := &entities.QuizAttempt{
		ID:           m.AttemptID,
		UserID:       m.UserID,
		RestaurantID: m.RestaurantID,
		AttemptDate:  m.AttemptDate,
		Questions:    make([]entities.AttemptQuestion, len(m.Questions)),
	}
	for i, q := range m.Questions {
		category, err := entities.ParseKnowledgeCategory(q.KnowledgeCategory)
		if err != nil {
			category = entities.CategoryUnknown
		}
		attempt.Questions[i] = entities.AttemptQuestion{
			QuestionID:        q.QuestionID,
			KnowledgeCategory: category,
			IsCorrect:         q.IsCorrect,
		}
	}
	return attempt
}
