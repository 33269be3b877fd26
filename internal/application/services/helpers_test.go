package services

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/providers"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// MockCacheProvider is a map-backed cache that records deleted patterns
type MockCacheProvider struct {
	mu       sync.RWMutex
	data     map[string][]byte
	patterns []string
	getErr   error
	setErr   error
	sets     int
}

func NewMockCacheProvider() *MockCacheProvider {
	return &MockCacheProvider{data: make(map[string][]byte)}
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if val, ok := m.data[key]; ok {
		return val, nil
	}
	return nil, providers.ErrCacheMiss
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.data[key] = value
	return nil
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheProvider) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *MockCacheProvider) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, pattern)
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *MockCacheProvider) DeletedPatterns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.patterns...)
}

func (m *MockCacheProvider) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

func (m *MockCacheProvider) SetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sets
}

// MockEventBus fans published events out to in-process subscribers
type MockEventBus struct {
	mu          sync.Mutex
	subscribers map[string][]chan *entities.AnalyticsEvent
	published   []*entities.AnalyticsEvent
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{subscribers: make(map[string][]chan *entities.AnalyticsEvent)}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.AnalyticsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, event)
	for _, ch := range m.subscribers[channel] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AnalyticsEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *entities.AnalyticsEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers[channel] {
		close(ch)
	}
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, channels := range m.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	m.subscribers = make(map[string][]chan *entities.AnalyticsEvent)
	return nil
}

func (m *MockEventBus) Published() []*entities.AnalyticsEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entities.AnalyticsEvent(nil), m.published...)
}

func (m *MockEventBus) SubscriberCount(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers[channel])
}

// MockUserAnalyticsRepository is a testify mock for error-path tests
type MockUserAnalyticsRepository struct {
	mock.Mock
}

func (m *MockUserAnalyticsRepository) FindByUserAndRestaurant(ctx context.Context, userID, restaurantID string) (*entities.UserKnowledgeAnalytics, error) {
	args := m.Called(ctx, userID, restaurantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.UserKnowledgeAnalytics), args.Error(1)
}

func (m *MockUserAnalyticsRepository) Create(ctx context.Context, record *entities.UserKnowledgeAnalytics) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockUserAnalyticsRepository) Save(ctx context.Context, record *entities.UserKnowledgeAnalytics) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockUserAnalyticsRepository) ListByRestaurant(ctx context.Context, restaurantID string) ([]*entities.UserKnowledgeAnalytics, error) {
	args := m.Called(ctx, restaurantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.UserKnowledgeAnalytics), args.Error(1)
}

func (m *MockUserAnalyticsRepository) ListRestaurantIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockUserAnalyticsRepository) DeleteByRestaurant(ctx context.Context, restaurantID string) (int, error) {
	args := m.Called(ctx, restaurantID)
	return args.Int(0), args.Error(1)
}

func attemptOf(id, userID, restaurantID string, at time.Time, questions ...entities.AttemptQuestion) *entities.QuizAttempt {
	return &entities.QuizAttempt{
		ID:           id,
		UserID:       userID,
		RestaurantID: restaurantID,
		Questions:    questions,
		AttemptDate:  at,
	}
}

func answer(c entities.KnowledgeCategory, correct bool) entities.AttemptQuestion {
	return entities.AttemptQuestion{QuestionID: "q-" + c.String(), KnowledgeCategory: c, IsCorrect: correct}
}

// answers builds n answers in category c of which the first correct are right.
func answers(c entities.KnowledgeCategory, n, correct int) []entities.AttemptQuestion {
	out := make([]entities.AttemptQuestion, n)
	for i := range out {
		out[i] = answer(c, i < correct)
	}
	return out
}

// counts is {total, correct} for one category
type counts [2]int

// statsRecord builds a record holding the given per-category counters.
func statsRecord(userID, restaurantID string, stats map[entities.KnowledgeCategory]counts) *entities.UserKnowledgeAnalytics {
	r := entities.NewUserKnowledgeAnalytics(userID, restaurantID, testNow)
	for c, n := range stats {
		r.Categories[c.Index()] = entities.CategoryStats{TotalQuestions: n[0], CorrectAnswers: n[1]}
	}
	return r
}
