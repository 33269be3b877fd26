package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/knowledgeanalytics/internal/adapters/messaging"
	"github.com/zatekoja/knowledgeanalytics/internal/app"
	"github.com/zatekoja/knowledgeanalytics/internal/application/services"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/clients/kafka"
	"github.com/zatekoja/knowledgeanalytics/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	flush := app.InitTelemetry(ctx, cfg, "worker")
	defer flush()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer a.Close()

	if a.Invalidation != nil {
		if err := a.Invalidation.Start(); err != nil {
			log.Warn().Err(err).Msg("cache invalidation listener not started")
		}
	}

	warmingDone := a.Warming.StartPeriodicWarming(ctx, cfg.Analytics.WarmInterval)
	if a.Sweeper != nil {
		services.StartExpirySweep(ctx, a.Sweeper, cfg.Analytics.SweepInterval)
	}

	if !cfg.Kafka.Enabled {
		log.Info().Msg("attempt consumer disabled, running periodic jobs only")
		<-ctx.Done()
		<-warmingDone
		return
	}

	reader, err := kafka.NewReader(&cfg.Kafka)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create attempt reader")
	}
	var deadLetter messaging.MessageWriter
	if cfg.Kafka.DeadLetterTopic != "" {
		writer, err := kafka.NewWriter(&cfg.Kafka, cfg.Kafka.DeadLetterTopic)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create dead-letter writer")
		}
		deadLetter = writer
	}

	consumer := messaging.NewAttemptConsumer(reader, a.Aggregator, deadLetter)
	defer consumer.Close()

	log.Info().Str("topic", cfg.Kafka.Topic).Str("group", cfg.Kafka.GroupID).Msg("consuming attempts")
	if err := consumer.Run(ctx); err != nil {
		log.Error().Err(err).Msg("attempt consumer stopped with error")
		cancel()
		<-warmingDone
		os.Exit(1)
	}
	<-warmingDone
}
