package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	apperrors "github.com/zatekoja/knowledgeanalytics/pkg/errors"
	"github.com/zatekoja/knowledgeanalytics/pkg/retry"
)

// fakeReader serves queued messages, then blocks until the context ends
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	fetchErr  error
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErr != nil {
		r.mu.Unlock()
		return kafka.Message{}, r.fetchErr
	}
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) Committed() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kafka.Message(nil), r.committed...)
}

type fakeWriter struct {
	mu      sync.Mutex
	written []kafka.Message
	err     error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) Written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.written...)
}

// fakeHandler returns errs[i] for the i-th call and nil afterwards
type fakeHandler struct {
	mu       sync.Mutex
	errs     []error
	attempts []*entities.QuizAttempt
}

func (h *fakeHandler) RecordAttempt(ctx context.Context, attempt *entities.QuizAttempt) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = append(h.attempts, attempt)
	if n := len(h.attempts) - 1; n < len(h.errs) && h.errs[n] != nil {
		return false, h.errs[n]
	}
	return true, nil
}

func (h *fakeHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.attempts)
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
}

func attemptValue(t *testing.T, id string) []byte {
	t.Helper()
	value, err := sonic.Marshal(NewAttemptMessage(&entities.QuizAttempt{
		ID:           id,
		UserID:       "u1",
		RestaurantID: "r1",
		AttemptDate:  time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		Questions: []entities.AttemptQuestion{
			{QuestionID: "q1", KnowledgeCategory: entities.CategoryWine, IsCorrect: true},
			{QuestionID: "q2", KnowledgeCategory: entities.CategoryUnknown},
		},
	}))
	require.NoError(t, err)
	return value
}

// runUntilDrained runs the consumer until every queued message is committed.
func runUntilDrained(t *testing.T, c *AttemptConsumer, reader *fakeReader, want int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.Committed()) == want }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestAttemptConsumer_AppliesAndCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Topic: "attempts", Offset: 1, Value: attemptValue(t, "a1")},
		{Topic: "attempts", Offset: 2, Value: attemptValue(t, "a2")},
	}}
	handler := &fakeHandler{}
	consumer := NewAttemptConsumer(reader, handler, nil)

	runUntilDrained(t, consumer, reader, 2)

	require.Equal(t, 2, handler.Calls())
	got := handler.attempts[0]
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, entities.CategoryWine, got.Questions[0].KnowledgeCategory)
	assert.True(t, got.Questions[0].IsCorrect)
	assert.Equal(t, entities.CategoryUnknown, got.Questions[1].KnowledgeCategory)
	assert.Equal(t, int64(2), reader.Committed()[1].Offset)
}

func TestAttemptConsumer_DeadLettersInvalidMessages(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Topic: "attempts", Key: []byte("u1"), Value: []byte("{not json")},
		{Topic: "attempts", Value: []byte(`{"attempt_id":"a1","restaurant_id":"r1","attempt_date":"2024-06-01T10:00:00Z"}`)},
	}}
	handler := &fakeHandler{}
	dlq := &fakeWriter{}
	consumer := NewAttemptConsumer(reader, handler, dlq)

	runUntilDrained(t, consumer, reader, 2)

	assert.Zero(t, handler.Calls())
	written := dlq.Written()
	require.Len(t, written, 2)
	assert.Equal(t, []byte("u1"), written[0].Key)
	assert.Equal(t, HeaderDeadLetterReason, written[0].Headers[0].Key)
	assert.Contains(t, string(written[0].Headers[0].Value), "malformed")
	assert.Equal(t, []byte("attempts"), written[0].Headers[1].Value)
	assert.Contains(t, string(written[1].Headers[0].Value), "UserID")
}

func TestAttemptConsumer_SkipsInvalidWithoutDeadLetter(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Value: []byte("[]")}, {Value: attemptValue(t, "a1")}}}
	handler := &fakeHandler{}

	runUntilDrained(t, NewAttemptConsumer(reader, handler, nil), reader, 2)
	assert.Equal(t, 1, handler.Calls())
}

func TestAttemptConsumer_RetriesTransientFailures(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Value: attemptValue(t, "a1")}}}
	handler := &fakeHandler{errs: []error{errors.New("db timeout")}}
	consumer := NewAttemptConsumer(reader, handler, nil).WithRetry(fastRetry())

	runUntilDrained(t, consumer, reader, 1)
	assert.Equal(t, 2, handler.Calls())
}

func TestAttemptConsumer_PersistentFailure(t *testing.T) {
	failing := []error{errors.New("down"), errors.New("down"), errors.New("down")}

	t.Run("dead-lettered and committed", func(t *testing.T) {
		reader := &fakeReader{queue: []kafka.Message{{Value: attemptValue(t, "a1")}}}
		handler := &fakeHandler{errs: failing}
		dlq := &fakeWriter{}
		consumer := NewAttemptConsumer(reader, handler, dlq).WithRetry(fastRetry())

		runUntilDrained(t, consumer, reader, 1)
		assert.Equal(t, 3, handler.Calls())
		assert.Len(t, dlq.Written(), 1)
	})

	t.Run("stops without dead letter", func(t *testing.T) {
		reader := &fakeReader{queue: []kafka.Message{{Value: attemptValue(t, "a1")}}}
		handler := &fakeHandler{errs: failing}
		consumer := NewAttemptConsumer(reader, handler, nil).WithRetry(fastRetry())

		err := consumer.Run(context.Background())
		assert.ErrorContains(t, err, "down")
		assert.Empty(t, reader.Committed())
	})

	t.Run("validation errors are not retried", func(t *testing.T) {
		reader := &fakeReader{queue: []kafka.Message{{Value: attemptValue(t, "a1")}}}
		handler := &fakeHandler{errs: []error{apperrors.NewValidationError("bad attempt")}}
		consumer := NewAttemptConsumer(reader, handler, nil).WithRetry(fastRetry())

		runUntilDrained(t, consumer, reader, 1)
		assert.Equal(t, 1, handler.Calls())
	})

	t.Run("dead letter write failure stops the consumer", func(t *testing.T) {
		reader := &fakeReader{queue: []kafka.Message{{Value: attemptValue(t, "a1")}}}
		handler := &fakeHandler{errs: failing}
		dlq := &fakeWriter{err: errors.New("broker gone")}
		consumer := NewAttemptConsumer(reader, handler, dlq).WithRetry(fastRetry())

		err := consumer.Run(context.Background())
		assert.ErrorContains(t, err, "broker gone")
		assert.Empty(t, reader.Committed())
	})
}

func TestAttemptConsumer_FetchError(t *testing.T) {
	reader := &fakeReader{fetchErr: errors.New("rebalance failed")}
	err := NewAttemptConsumer(reader, &fakeHandler{}, nil).Run(context.Background())
	assert.ErrorContains(t, err, "rebalance failed")
}

func TestAttemptConsumer_Close(t *testing.T) {
	reader := &fakeReader{}
	require.NoError(t, NewAttemptConsumer(reader, &fakeHandler{}, &fakeWriter{}).Close())
	assert.True(t, reader.closed)
}

func TestDecodeAttemptMessage(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not json", "nope"},
		{"missing attempt id", `{"user_id":"u1","restaurant_id":"r1","attempt_date":"2024-06-01T10:00:00Z"}`},
		{"missing date", `{"attempt_id":"a1","user_id":"u1","restaurant_id":"r1"}`},
		{"question without id", `{"attempt_id":"a1","user_id":"u1","restaurant_id":"r1","attempt_date":"2024-06-01T10:00:00Z","questions":[{"is_correct":true}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAttemptMessage([]byte(tt.value))
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
		})
	}

	msg, err := DecodeAttemptMessage([]byte(`{"attempt_id":"a1","user_id":"u1","restaurant_id":"r1","attempt_date":"2024-06-01T10:00:00Z","questions":[{"question_id":"q1","knowledge_category":"sommelier"}]}`))
	require.NoError(t, err)
	assert.Equal(t, entities.CategoryUnknown, msg.ToAttempt().Questions[0].KnowledgeCategory)
}

func TestAttemptPublisher_KeysByUser(t *testing.T) {
	writer := &fakeWriter{}
	publisher := NewAttemptPublisher(writer)
	attempts := []*entities.QuizAttempt{
		{ID: "a1", UserID: "u1", RestaurantID: "r1", AttemptDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "a2", UserID: "u2", RestaurantID: "r1", AttemptDate: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
			Questions: []entities.AttemptQuestion{{QuestionID: "q1", KnowledgeCategory: entities.CategoryFood}}},
	}

	require.NoError(t, publisher.Publish(context.Background(), attempts...))
	require.NoError(t, publisher.Publish(context.Background()))

	written := writer.Written()
	require.Len(t, written, 2)
	assert.Equal(t, []byte("u2"), written[1].Key)

	decoded, err := DecodeAttemptMessage(written[1].Value)
	require.NoError(t, err)
	assert.Equal(t, attempts[1], decoded.ToAttempt())
}
