package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/repositories"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/knowledgeanalytics/pkg/errors"
)

func TestAttemptAdapter_GetByID(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewAttemptAdapter(client)

	mock.ExpectQuery(`SELECT "id", "user_id", "restaurant_id", "attempt_date" FROM "quiz_attempts" WHERE \("id" = \$1\)`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "restaurant_id", "attempt_date"}).
			AddRow("a1", "u1", "r1", testTime))
	mock.ExpectQuery(`FROM "quiz_attempt_questions" WHERE \("attempt_id" IN \(\$1\)\) ORDER BY "attempt_id" ASC, "position" ASC`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"attempt_id", "question_id", "knowledge_category", "is_correct"}).
			AddRow("a1", "q1", "wine", true).
			AddRow("a1", "q2", nil, false).
			AddRow("a1", "q3", "dessert", true))

	attempt, err := adapter.GetByID(context.Background(), "a1")
	require.NoError(t, err)

	assert.Equal(t, "u1", attempt.UserID)
	assert.Equal(t, testTime, attempt.AttemptDate)
	require.Len(t, attempt.Questions, 3)
	assert.Equal(t, entities.CategoryWine, attempt.Questions[0].KnowledgeCategory)
	assert.True(t, attempt.Questions[0].IsCorrect)
	assert.Equal(t, entities.CategoryUnknown, attempt.Questions[1].KnowledgeCategory)
	assert.Equal(t, entities.CategoryUnknown, attempt.Questions[2].KnowledgeCategory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptAdapter_GetByIDNotFound(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewAttemptAdapter(client)

	mock.ExpectQuery(`FROM "quiz_attempts"`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "restaurant_id", "attempt_date"}))

	_, err := adapter.GetByID(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestAttemptAdapter_ListByRestaurant(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewAttemptAdapter(client)

	start := testTime.Add(-24 * time.Hour)
	mock.ExpectQuery(`FROM "quiz_attempts" WHERE .*"restaurant_id" = \$1.*"attempt_date" >= \$2.*"attempt_date" <= \$3.* ORDER BY "attempt_date" ASC, "id" ASC`).
		WithArgs("r1", start, testTime).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "restaurant_id", "attempt_date"}).
			AddRow("a1", "u1", "r1", start).
			AddRow("a2", "u2", "r1", testTime))
	mock.ExpectQuery(`FROM "quiz_attempt_questions" WHERE \("attempt_id" IN \(\$1, \$2\)\)`).
		WithArgs("a1", "a2").
		WillReturnRows(sqlmock.NewRows([]string{"attempt_id", "question_id", "knowledge_category", "is_correct"}).
			AddRow("a2", "q1", "food", true))

	attempts, err := adapter.ListByRestaurant(context.Background(), repositories.AttemptFilter{
		RestaurantID: "r1",
		Start:        start,
		End:          testTime,
	})
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Empty(t, attempts[0].Questions)
	require.Len(t, attempts[1].Questions, 1)
	assert.Equal(t, entities.CategoryFood, attempts[1].Questions[0].KnowledgeCategory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptAdapter_ListByRestaurantEmptySkipsQuestions(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewAttemptAdapter(client)

	mock.ExpectQuery(`FROM "quiz_attempts" WHERE .*"restaurant_id" = \$1.*"user_id" = \$2.* ORDER BY`).
		WithArgs("r1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "restaurant_id", "attempt_date"}))

	attempts, err := adapter.ListByRestaurant(context.Background(), repositories.AttemptFilter{RestaurantID: "r1", UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptAdapter_RecordsQueryDuration(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	metrics, err := observability.NewMetrics(provider.Meter("database-test"))
	require.NoError(t, err)

	client, mock := setupMockClient(t)
	adapter := NewAttemptAdapter(client, WithQueryMetrics(metrics))

	mock.ExpectQuery(`FROM "quiz_attempts"`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "restaurant_id", "attempt_date"}))

	_, err = adapter.ListByRestaurant(ctx, repositories.AttemptFilter{RestaurantID: "r1"})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	assert.Equal(t, []string{"quiz_attempts.list"}, queryOperations(t, rm))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// queryOperations lists the db.operation attribute of every recorded query
func queryOperations(t *testing.T, rm metricdata.ResourceMetrics) []string {
	t.Helper()
	var ops []string
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "db.query.duration" {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			for _, dp := range hist.DataPoints {
				op, _ := dp.Attributes.Value("db.operation")
				ops = append(ops, op.AsString())
			}
		}
	}
	return ops
}
