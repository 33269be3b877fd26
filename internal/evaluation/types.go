package evaluation

import (
	"github.com/zatekoja/knowledgeanalytics/internal/application/services"
)

// Difficulty grades how ambiguous a golden question is for keyword scoring.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"   // one obvious domain
	DifficultyMedium Difficulty = "medium" // vocabulary of two domains
	DifficultyHard   Difficulty = "hard"   // relies on overrides or context hints
)

// IsValid checks if the difficulty is one of the defined constants.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// GoldenQuestion is a labelled quiz question with the category a trainer expects.
type GoldenQuestion struct {
	ID         string                          `json:"id" yaml:"id"`
	Question   string                          `json:"question" yaml:"question"`
	Category   string                          `json:"category" yaml:"category"`
	Difficulty Difficulty                      `json:"difficulty" yaml:"difficulty"`
	Context    *services.ClassificationContext `json:"context,omitempty" yaml:"context,omitempty"`
}

// EvalResult holds the evaluation outcome for a single question.
type EvalResult struct {
	QuestionID   string     `json:"question_id"`
	Question     string     `json:"question"`
	Difficulty   Difficulty `json:"difficulty"`
	Expected     string     `json:"expected"`
	Predicted    string     `json:"predicted"`
	Confidence   float64    `json:"confidence"`
	AutoAccepted bool       `json:"auto_accepted"`
	Correct      bool       `json:"correct"`
}

// EvalSummary holds aggregate metrics across all golden questions.
type EvalSummary struct {
	TotalQuestions   int     `json:"total_questions"`
	Correct          int     `json:"correct"`
	Accuracy         float64 `json:"accuracy"`
	MeanConfidence   float64 `json:"mean_confidence"`
	FlaggedForReview int     `json:"flagged_for_review"`
	// AutoAcceptedAccuracy is the accuracy among results the guardrails would accept without review.
	AutoAcceptedAccuracy float64                           `json:"auto_accepted_accuracy"`
	ByCategory           map[string]*CategorySummary       `json:"by_category"`
	ByDifficulty         map[Difficulty]*DifficultySummary `json:"by_difficulty"`
	Misclassified        []EvalResult                      `json:"misclassified"`
}

// CategorySummary holds the per-category classification metrics.
type CategorySummary struct {
	Support   int     `json:"support"`
	Predicted int     `json:"predicted"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// DifficultySummary holds accuracy grouped by difficulty.
type DifficultySummary struct {
	Count    int     `json:"count"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}
