package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/knowledgeanalytics/internal/adapters/messaging"
	"github.com/zatekoja/knowledgeanalytics/internal/app"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/repositories"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/clients/kafka"
	"github.com/zatekoja/knowledgeanalytics/pkg/config"
)

const dateLayout = "2006-01-02"

func main() {
	var restaurantID, attemptID, from, to string
	var workers int
	var publish bool

	flag.StringVar(&restaurantID, "restaurant", "", "Restaurant whose stored attempts are replayed")
	flag.StringVar(&attemptID, "attempt", "", "Single attempt ID to replay")
	flag.StringVar(&from, "from", "", "First attempt date to include (YYYY-MM-DD)")
	flag.StringVar(&to, "to", "", "Last attempt date to include (YYYY-MM-DD)")
	flag.IntVar(&workers, "workers", 0, "Number of concurrent workers (default from ANALYTICS_WORKERS)")
	flag.BoolVar(&publish, "publish", false, "Publish attempts to the attempts topic instead of recording them directly")
	flag.Parse()

	if restaurantID == "" && attemptID == "" {
		fmt.Fprintln(os.Stderr, "one of -restaurant or -attempt is required")
		flag.Usage()
		os.Exit(2)
	}
	start, end, err := parseRange(from, to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if workers > 0 {
		cfg.Analytics.Workers = workers
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	flush := app.InitTelemetry(ctx, cfg, "backfill")
	defer flush()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer a.Close()

	began := time.Now()

	if publish {
		if err := publishAttempts(ctx, cfg, a, restaurantID, attemptID, start, end); err != nil {
			log.Fatal().Err(err).Msg("failed to publish attempts")
		}
		log.Info().Dur("elapsed", time.Since(began)).Msg("publish complete")
		return
	}

	if attemptID != "" {
		applied, err := a.Replay.ReplayAttempt(ctx, attemptID)
		if err != nil {
			log.Fatal().Err(err).Str("attempt_id", attemptID).Msg("failed to replay attempt")
		}
		log.Info().Str("attempt_id", attemptID).Bool("applied", applied).Msg("attempt replayed")
		return
	}

	log.Info().
		Str("restaurant_id", restaurantID).
		Int("workers", cfg.Analytics.Workers).
		Str("from", from).
		Str("to", to).
		Msg("starting replay")
	summary, err := a.Replay.ReplayRange(ctx, restaurantID, start, end)
	if err != nil {
		log.Error().Err(err).Msg("replay failed")
	}
	if summary != nil {
		log.Info().
			Dur("elapsed", time.Since(began)).
			Int("processed", summary.Processed).
			Int("applied", summary.Applied).
			Int("duplicates", summary.Duplicates).
			Int("failed", summary.Failed).
			Msg("replay complete")
	}
}

// publishAttempts sends stored attempts to the attempts topic so the worker
// records them. The consumer side skips attempts it has already applied.
func publishAttempts(ctx context.Context, cfg *config.Config, a *app.App, restaurantID, attemptID string, start, end time.Time) error {
	writer, err := kafka.NewWriter(&cfg.Kafka, cfg.Kafka.Topic)
	if err != nil {
		return err
	}
	publisher := messaging.NewAttemptPublisher(writer)
	defer publisher.Close()

	if attemptID != "" {
		attempt, err := a.Attempts.GetByID(ctx, attemptID)
		if err != nil {
			return fmt.Errorf("failed to get attempt %s: %w", attemptID, err)
		}
		return publisher.Publish(ctx, attempt)
	}

	attempts, err := a.Attempts.ListByRestaurant(ctx, repositories.AttemptFilter{RestaurantID: restaurantID, Start: start, End: end})
	if err != nil {
		return fmt.Errorf("failed to list attempts for restaurant %s: %w", restaurantID, err)
	}
	if err := publisher.Publish(ctx, attempts...); err != nil {
		return err
	}
	log.Info().Str("restaurant_id", restaurantID).Int("attempts", len(attempts)).Msg("attempts published")
	return nil
}

// parseRange turns the inclusive date flags into timestamps. The end date
// covers the whole day.
func parseRange(from, to string) (time.Time, time.Time, error) {
	var start, end time.Time
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return start, end, fmt.Errorf("invalid -from date %q: %w", from, err)
		}
		start = t
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return start, end, fmt.Errorf("invalid -to date %q: %w", to, err)
		}
		end = t.Add(24*time.Hour - time.Nanosecond)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("-to %s is before -from %s", to, from)
	}
	return start, end, nil
}
