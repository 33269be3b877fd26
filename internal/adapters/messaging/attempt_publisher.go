package messaging

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
)

// AttemptPublisher writes attempts to the attempts topic keyed by user id, so
// every attempt of a user is consumed in order by one partition owner.
type AttemptPublisher struct {
	writer MessageWriter
}

// NewAttemptPublisher creates a publisher over writer
func NewAttemptPublisher(writer MessageWriter) *AttemptPublisher {
	return &AttemptPublisher{writer: writer}
}

// Publish writes attempts in one batch
func (p *AttemptPublisher) Publish(ctx context.Context, attempts ...*entities.QuizAttempt) error {
	if len(attempts) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(attempts))
	for _, attempt := range attempts {
		value, err := sonic.Marshal(NewAttemptMessage(attempt))
		if err != nil {
			return fmt.Errorf("encode attempt %s: %w", attempt.ID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(attempt.UserID), Value: value})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d attempts: %w", len(msgs), err)
	}
	return nil
}

// Close closes the underlying writer
func (p *AttemptPublisher) Close() error {
	return p.writer.Close()
}
