package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/observability"
	"github.com/zatekoja/knowledgeanalytics/pkg/config"
)

// InitTelemetry configures the global logger and, when enabled, the trace
// and metric exporters. The returned function flushes pending spans and
// metrics; it is never nil.
func InitTelemetry(ctx context.Context, cfg *config.Config, component string) func() {
	observability.InitLogger(cfg.OTEL.ServiceName+"-"+component, cfg.App.Env, cfg.App.LogLevel)

	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint == "" {
		return func() {}
	}
	shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
	if err != nil {
		log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		return func() {}
	}
	log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("error shutting down OpenTelemetry")
		}
	}
}
