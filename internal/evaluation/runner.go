package evaluation

import (
	"context"
	"fmt"

	"github.com/zatekoja/knowledgeanalytics/internal/application/services"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
)

// Classifier is satisfied by *services.KnowledgeCategorizer.
type Classifier interface {
	Classify(questionText string, hints *services.ClassificationContext) services.ClassificationResult
}

// Runner runs evaluation across a set of golden questions.
type Runner struct {
	classifier Classifier
	guardrails *Guardrails
}

func NewRunner(classifier Classifier, guardrails *Guardrails) *Runner {
	if guardrails == nil {
		guardrails = NewGuardrails(GuardrailConfig{MinAutoAcceptConfidence: services.DefaultReviewThreshold})
	}
	return &Runner{classifier: classifier, guardrails: guardrails}
}

// Run classifies every question. The set must already be valid; an entry with
// an unknown category is reported as an error.
func (r *Runner) Run(ctx context.Context, questions []GoldenQuestion) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalQuestions: len(questions),
		ByCategory:     make(map[string]*CategorySummary, entities.NumCategories),
		ByDifficulty:   make(map[Difficulty]*DifficultySummary),
		Misclassified:  []EvalResult{},
	}

	var matrix ConfusionMatrix
	var confidenceSum float64
	autoAccepted, autoAcceptedCorrect := 0, 0

	for _, gq := range questions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		expected, err := entities.ParseKnowledgeCategory(gq.Category)
		if err != nil || !expected.IsValid() {
			return nil, fmt.Errorf("question %q: invalid category %q", gq.ID, gq.Category)
		}

		result := r.classifier.Classify(r.guardrails.LimitQuestion(gq.Question), gq.Context)
		res := EvalResult{
			QuestionID:   gq.ID,
			Question:     gq.Question,
			Difficulty:   gq.Difficulty,
			Expected:     expected.String(),
			Predicted:    result.Category.String(),
			Confidence:   result.Confidence,
			AutoAccepted: r.guardrails.ShouldAutoAccept(result),
			Correct:      result.Category == expected,
		}

		matrix.Add(expected, result.Category)
		confidenceSum += res.Confidence
		if res.Correct {
			summary.Correct++
		} else {
			summary.Misclassified = append(summary.Misclassified, res)
		}
		if res.AutoAccepted {
			autoAccepted++
			if res.Correct {
				autoAcceptedCorrect++
			}
		} else {
			summary.FlaggedForReview++
		}
		r.updateDifficulty(summary, res)
	}

	r.finalizeSummary(summary, &matrix, confidenceSum, autoAccepted, autoAcceptedCorrect)
	return summary, nil
}

func (r *Runner) updateDifficulty(s *EvalSummary, res EvalResult) {
	if _, ok := s.ByDifficulty[res.Difficulty]; !ok {
		s.ByDifficulty[res.Difficulty] = &DifficultySummary{}
	}
	ds := s.ByDifficulty[res.Difficulty]
	ds.Count++
	if res.Correct {
		ds.Correct++
	}
}

func (r *Runner) finalizeSummary(s *EvalSummary, m *ConfusionMatrix, confidenceSum float64, autoAccepted, autoAcceptedCorrect int) {
	if s.TotalQuestions > 0 {
		n := float64(s.TotalQuestions)
		s.Accuracy = float64(s.Correct) / n
		s.MeanConfidence = confidenceSum / n
	}
	if autoAccepted > 0 {
		s.AutoAcceptedAccuracy = float64(autoAcceptedCorrect) / float64(autoAccepted)
	}

	for _, c := range entities.AllCategories {
		precision, recall := m.Precision(c), m.Recall(c)
		s.ByCategory[c.String()] = &CategorySummary{
			Support:   m.Support(c),
			Predicted: m.Predicted(c),
			Precision: precision,
			Recall:    recall,
			F1:        F1(precision, recall),
		}
	}

	for _, ds := range s.ByDifficulty {
		if ds.Count > 0 {
			ds.Accuracy = float64(ds.Correct) / float64(ds.Count)
		}
	}
}
