package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/knowledgeanalytics/pkg/errors"
	"github.com/zatekoja/knowledgeanalytics/pkg/retry"
)

// MessageReader is the subset of *kafka.Reader the consumer needs
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageWriter is the subset of *kafka.Writer used for publishing
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AttemptHandler applies one attempt. The stats aggregator satisfies it.
type AttemptHandler interface {
	RecordAttempt(ctx context.Context, attempt *entities.QuizAttempt) (bool, error)
}

// Header keys set on dead-lettered messages
const (
	HeaderDeadLetterReason = "dead_letter_reason"
	HeaderSourceTopic      = "source_topic"
)

// AttemptConsumer reads attempt-completed messages and folds them into the
// running statistics. An offset is committed only after its message has been
// applied, skipped as a duplicate, or dead-lettered, so delivery is at least
// once and recording idempotency absorbs the redeliveries.
type AttemptConsumer struct {
	reader     MessageReader
	handler    AttemptHandler
	deadLetter MessageWriter
	retryCfg   retry.Config
}

// NewAttemptConsumer creates a consumer. deadLetter may be nil, in which case a
// message that keeps failing stops the consumer without committing it.
func NewAttemptConsumer(reader MessageReader, handler AttemptHandler, deadLetter MessageWriter) *AttemptConsumer {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 5
	cfg.MaxTotalTimeout = 30 * time.Second
	cfg.RetryIf = func(err error) bool { return !apperrors.IsValidation(err) }
	return &AttemptConsumer{
		reader:     reader,
		handler:    handler,
		deadLetter: deadLetter,
		retryCfg:   cfg,
	}
}

// WithRetry overrides the per-message retry policy
func (c *AttemptConsumer) WithRetry(cfg retry.Config) *AttemptConsumer {
	if cfg.RetryIf == nil {
		cfg.RetryIf = c.retryCfg.RetryIf
	}
	c.retryCfg = cfg
	return c
}

// Run consumes until ctx is cancelled, which is reported as a nil error.
func (c *AttemptConsumer) Run(ctx context.Context) error {
	log.Info().Msg("attempt consumer started")
	defer log.Info().Msg("attempt consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch attempt message: %w", err)
		}

		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d on partition %d: %w", msg.Offset, msg.Partition, err)
		}
	}
}

// process returns nil when the message may be committed.
func (c *AttemptConsumer) process(ctx context.Context, msg kafka.Message) error {
	logger := log.With().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger()
	ctx = observability.ContextWithLogger(ctx, logger)

	decoded, err := DecodeAttemptMessage(msg.Value)
	if err != nil {
		logger.Warn().Err(err).Msg("rejecting attempt message")
		return c.toDeadLetter(ctx, msg, err)
	}

	attempt := decoded.ToAttempt()
	var applied bool
	err = retry.DoWithLog(ctx, c.retryCfg, "apply attempt message", func() error {
		var err error
		applied, err = c.handler.RecordAttempt(ctx, attempt)
		return err
	}, func(n int, err error, next time.Duration) {
		logger.Warn().Err(err).Int("retry", n).Dur("next_delay", next).Str("attempt_id", attempt.ID).Msg("attempt message failed, retrying")
	})
	if err != nil {
		logger.Error().Err(err).Str("attempt_id", attempt.ID).Msg("attempt message could not be applied")
		return c.toDeadLetter(ctx, msg, err)
	}

	logger.Debug().Str("attempt_id", attempt.ID).Bool("applied", applied).Msg("attempt message consumed")
	return nil
}

func (c *AttemptConsumer) toDeadLetter(ctx context.Context, msg kafka.Message, cause error) error {
	if c.deadLetter == nil {
		if apperrors.IsValidation(cause) {
			return nil
		}
		return cause
	}

	dead := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header(nil), msg.Headers...),
			kafka.Header{Key: HeaderDeadLetterReason, Value: []byte(cause.Error())},
			kafka.Header{Key: HeaderSourceTopic, Value: []byte(msg.Topic)},
		),
	}
	if err := c.deadLetter.WriteMessages(ctx, dead); err != nil {
		return errors.Join(cause, fmt.Errorf("dead-letter message: %w", err))
	}
	return nil
}

// Close closes the reader and the dead-letter writer
func (c *AttemptConsumer) Close() error {
	var errs []error
	if err := c.reader.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.deadLetter != nil {
		if err := c.deadLetter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
