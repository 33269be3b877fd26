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
)

// AttemptRecorder folds one attempt into the running statistics
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt *entities.QuizAttempt) (bool, error)
}

// ReplaySummary counts the outcomes of a replay
type ReplaySummary struct {
	Processed  int `json:"processed"`
	Applied    int `json:"applied"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// AttemptReplayService feeds stored attempts back through the aggregator. Every
// attempt is recorded at most once, so overlapping or repeated replays are safe.
type AttemptReplayService struct {
	attempts    repositories.AttemptRepository
	recorder    AttemptRecorder
	workerCount int
}

// NewAttemptReplayService creates a replay service. workers < 1 means one worker.
func NewAttemptReplayService(attempts repositories.AttemptRepository, recorder AttemptRecorder, workers int) *AttemptReplayService {
	if workers <= 0 {
		workers = 1
	}
	return &AttemptReplayService{attempts: attempts, recorder: recorder, workerCount: workers}
}

// ReplayAttempt loads one attempt by id and records it
func (s *AttemptReplayService) ReplayAttempt(ctx context.Context, attemptID string) (bool, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return false, fmt.Errorf("failed to get attempt %s: %w", attemptID, err)
	}
	return s.recorder.RecordAttempt(ctx, attempt)
}

// ReplayRange records every attempt of a restaurant dated inside [start, end].
// Zero times leave that side open. Individual failures are counted, not fatal.
func (s *AttemptReplayService) ReplayRange(ctx context.Context, restaurantID string, start, end time.Time) (*ReplaySummary, error) {
	attempts, err := s.attempts.ListByRestaurant(ctx, repositories.AttemptFilter{RestaurantID: restaurantID, Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts for restaurant %s: %w", restaurantID, err)
	}

	var processed, applied, duplicates, failed int64
	attemptChan := make(chan *entities.QuizAttempt, s.workerCount)
	var wg sync.WaitGroup

	for i := 0; i < s.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for attempt := range attemptChan {
				ok, err := s.recorder.RecordAttempt(ctx, attempt)
				atomic.AddInt64(&processed, 1)
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
					log.Warn().Err(err).Str("attempt_id", attempt.ID).Msg("failed to replay attempt")
				case ok:
					atomic.AddInt64(&applied, 1)
				default:
					atomic.AddInt64(&duplicates, 1)
				}
			}
		}()
	}

	var cancelled error
feed:
	for _, attempt := range attempts {
		select {
		case attemptChan <- attempt:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(attemptChan)
	wg.Wait()

	summary := &ReplaySummary{
		Processed:  int(processed),
		Applied:    int(applied),
		Duplicates: int(duplicates),
		Failed:     int(failed),
	}
	if cancelled != nil {
		return summary, cancelled
	}

	log.Info().
		Str("restaurant_id", restaurantID).
		Int("processed", summary.Processed).
		Int("applied", summary.Applied).
		Int("duplicates", summary.Duplicates).
		Int("failed", summary.Failed).
		Msg("attempt replay finished")
	return summary, nil
}
