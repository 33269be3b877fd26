package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/repositories"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/observability"
)

const (
	// DefaultReviewThreshold is the confidence at or below which a tag is flagged for review.
	DefaultReviewThreshold = 0.6
	taggingPageSize        = 100
)

// TagResult reports the outcome of tagging one question
type TagResult struct {
	QuestionID  string               `json:"question_id"`
	Result      ClassificationResult `json:"result"`
	NeedsReview bool                 `json:"needs_review"`
	// Skipped is set when the question carries a manual tag, which is never overwritten.
	Skipped bool `json:"skipped"`
}

// TaggingSummary counts the outcomes of a bulk re-tag
type TaggingSummary struct {
	Processed     int `json:"processed"`
	Tagged        int `json:"tagged"`
	LowConfidence int `json:"low_confidence"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
}

// QuestionTaggingService classifies stored questions and writes the knowledge
// category back to the question store.
type QuestionTaggingService struct {
	questions       repositories.QuestionRepository
	categorizer     *KnowledgeCategorizer
	metrics         *observability.Metrics
	workerCount     int
	reviewThreshold float64
	now             func() time.Time
}

// NewQuestionTaggingService creates a tagging service. workers < 1 means one worker.
func NewQuestionTaggingService(
	questions repositories.QuestionRepository,
	categorizer *KnowledgeCategorizer,
	metrics *observability.Metrics,
	workers int,
	reviewThreshold float64,
) *QuestionTaggingService {
	if workers <= 0 {
		workers = 1
	}
	return &QuestionTaggingService{
		questions:       questions,
		categorizer:     categorizer,
		metrics:         metrics,
		workerCount:     workers,
		reviewThreshold: reviewThreshold,
		now:             time.Now,
	}
}

// TagQuestion classifies one question and stores the result. Low-confidence
// results are stored too; the caller decides what to do with NeedsReview.
func (s *QuestionTaggingService) TagQuestion(ctx context.Context, questionID string) (*TagResult, error) {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question %s: %w", questionID, err)
	}
	return s.tag(ctx, question)
}

func (s *QuestionTaggingService) tag(ctx context.Context, question *entities.Question) (*TagResult, error) {
	if question.CategoryAssignedBy == entities.AssignedByManual && question.KnowledgeCategory.IsValid() {
		return &TagResult{QuestionID: question.ID, Skipped: true}, nil
	}

	var hints *ClassificationContext
	if len(question.Categories) > 0 {
		hints = &ClassificationContext{ExistingCategories: question.Categories}
	}
	result := s.categorizer.Classify(question.QuestionText, hints)
	needsReview := result.NeedsReview(s.reviewThreshold)

	assignment := entities.CategoryAssignment{
		QuestionID:        question.ID,
		KnowledgeCategory: result.Category,
		Confidence:        result.Confidence,
		AssignedBy:        entities.AssignedByCategorizer,
		AssignedAt:        s.now(),
	}
	if err := s.questions.UpdateKnowledgeCategory(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to store category for question %s: %w", question.ID, err)
	}

	s.metrics.RecordClassification(ctx, result.Category.String(), needsReview)
	if needsReview {
		log.Info().
			Str("question_id", question.ID).
			Str("category", result.Category.String()).
			Float64("confidence", result.Confidence).
			Msg("classification flagged for manual review")
	}

	return &TagResult{QuestionID: question.ID, Result: result, NeedsReview: needsReview}, nil
}

// RetagRestaurant classifies every question of a restaurant, or only the
// untagged ones, with a pool of workers.
func (s *QuestionTaggingService) RetagRestaurant(ctx context.Context, restaurantID string, onlyUntagged bool) (*TaggingSummary, error) {
	var processed, tagged, lowConfidence, skipped, failed int64

	questionChan := make(chan *entities.Question, taggingPageSize)
	var wg sync.WaitGroup

	for i := 0; i < s.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range questionChan {
				res, err := s.tag(ctx, q)
				atomic.AddInt64(&processed, 1)
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
					log.Warn().Err(err).Str("question_id", q.ID).Msg("failed to tag question")
				case res.Skipped:
					atomic.AddInt64(&skipped, 1)
				default:
					atomic.AddInt64(&tagged, 1)
					if res.NeedsReview {
						atomic.AddInt64(&lowConfidence, 1)
					}
				}
			}
		}()
	}

	// Workers must have drained before counters are read on every exit path.
	finish := func() {
		close(questionChan)
		wg.Wait()
	}

	filter := repositories.QuestionFilter{RestaurantID: restaurantID, OnlyUntagged: onlyUntagged, Limit: taggingPageSize}
	for {
		page, err := s.questions.ListForClassification(ctx, filter)
		if err != nil {
			finish()
			return nil, fmt.Errorf("failed to list questions for restaurant %s: %w", restaurantID, err)
		}
		for _, q := range page {
			select {
			case questionChan <- q:
			case <-ctx.Done():
				finish()
				return nil, ctx.Err()
			}
		}
		if len(page) < taggingPageSize {
			break
		}
		filter.AfterID = page[len(page)-1].ID
	}
	finish()

	summary := &TaggingSummary{
		Processed:     int(processed),
		Tagged:        int(tagged),
		LowConfidence: int(lowConfidence),
		Skipped:       int(skipped),
		Failed:        int(failed),
	}
	log.Info().
		Str("restaurant_id", restaurantID).
		Int("processed", summary.Processed).
		Int("tagged", summary.Tagged).
		Int("low_confidence", summary.LowConfidence).
		Int("failed", summary.Failed).
		Msg("question re-tag finished")
	return summary, nil
}
