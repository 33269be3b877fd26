package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/knowledgeanalytics/internal/application/services"
	"github.com/zatekoja/knowledgeanalytics/internal/evaluation"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/observability"
)

func main() {
	var goldenPath string
	var minConfidence, minAccuracy float64
	var maxRunes int

	flag.StringVar(&goldenPath, "golden", "config/golden_questions.yaml", "Golden question set (YAML or JSON)")
	flag.Float64Var(&minConfidence, "min-confidence", services.DefaultReviewThreshold, "Confidence above which a result is auto-accepted")
	flag.Float64Var(&minAccuracy, "min-accuracy", 0, "Exit non-zero when overall accuracy (0-1) is below this")
	flag.IntVar(&maxRunes, "max-question-runes", 0, "Truncate question text to this many runes (0 uses the default)")
	flag.Parse()

	observability.InitLogger("knowledge-analytics-evaluate", "development", "info")

	questions, err := evaluation.LoadGoldenQuestions(goldenPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load golden questions")
	}
	if err := evaluation.ValidateGoldenQuestions(questions); err != nil {
		log.Fatal().Err(err).Msg("invalid golden question set")
	}

	guardrails := evaluation.NewGuardrails(evaluation.GuardrailConfig{
		MinAutoAcceptConfidence: minConfidence,
		MaxQuestionRunes:        maxRunes,
	})
	runner := evaluation.NewRunner(services.NewKnowledgeCategorizer(), guardrails)
	summary, err := runner.Run(context.Background(), questions)
	if err != nil {
		log.Fatal().Err(err).Msg("evaluation failed")
	}

	out, _ := sonic.ConfigStd.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	if summary.Accuracy < minAccuracy {
		log.Error().
			Float64("accuracy", summary.Accuracy).
			Float64("min_accuracy", minAccuracy).
			Msg("accuracy below threshold")
		os.Exit(1)
	}
}
