package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/knowledgeanalytics/internal/app"
	"github.com/zatekoja/knowledgeanalytics/pkg/config"
)

func main() {
	var restaurantID, questionID string
	var onlyUntagged bool
	var workers int

	flag.StringVar(&restaurantID, "restaurant", "", "Restaurant whose questions are re-tagged")
	flag.StringVar(&questionID, "question", "", "Single question ID to tag")
	flag.BoolVar(&onlyUntagged, "only-untagged", true, "Skip questions that already carry a category")
	flag.IntVar(&workers, "workers", 0, "Number of concurrent workers (default from ANALYTICS_WORKERS)")
	flag.Parse()

	if restaurantID == "" && questionID == "" {
		fmt.Fprintln(os.Stderr, "one of -restaurant or -question is required")
		flag.Usage()
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

	flush := app.InitTelemetry(ctx, cfg, "retag")
	defer flush()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer a.Close()

	start := time.Now()
	var out interface{}
	if questionID != "" {
		result, err := a.Tagging.TagQuestion(ctx, questionID)
		if err != nil {
			log.Fatal().Err(err).Str("question_id", questionID).Msg("failed to tag question")
		}
		out = result
	} else {
		log.Info().Str("restaurant_id", restaurantID).Int("workers", cfg.Analytics.Workers).Bool("only_untagged", onlyUntagged).Msg("starting retag")
		summary, err := a.Tagging.RetagRestaurant(ctx, restaurantID, onlyUntagged)
		if err != nil {
			log.Error().Err(err).Msg("retag interrupted")
		}
		out = summary
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("retag finished")

	data, _ := sonic.ConfigStd.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))
}
