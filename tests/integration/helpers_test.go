//go:build integration

package integration

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/clients/redis"
	"github.com/zatekoja/knowledgeanalytics/pkg/config"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func requireRedis(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	cfg := &config.RedisConfig{
		Host:     getEnv("TEST_REDIS_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_REDIS_PORT", 6379),
		Password: getEnv("TEST_REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("TEST_REDIS_DB", 0),
	}

	client, err := redis.NewClient(context.Background(), cfg)
	require.NoError(t, err, "Failed to create redis client")
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func requirePostgres(t *testing.T) *postgres.Client {
	t.Helper()
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}

	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "knowledge_analytics_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	client, err := postgres.NewClient(context.Background(), cfg)
	require.NoError(t, err, "Failed to create postgres client")
	t.Cleanup(func() { _ = client.Close() })

	db := client.DB().DB
	runMigrations(t, db, "../../migrations/0001_knowledge_analytics.sql")
	cleanupAnalyticsData(t, db)
	return client
}

func runMigrations(t *testing.T, db *sql.DB, paths ...string) {
	t.Helper()
	for _, path := range paths {
		migrationSQL, err := os.ReadFile(path)
		require.NoError(t, err)
		_, err = db.Exec(string(migrationSQL))
		require.NoError(t, err)
	}
}

func cleanupAnalyticsData(t *testing.T, db *sql.DB) {
	t.Helper()
	tables := []string{
		"quiz_attempt_questions",
		"quiz_attempts",
		"questions",
		"user_knowledge_analytics",
	}
	for _, table := range tables {
		_, err := db.Exec("DELETE FROM " + table)
		require.NoError(t, err)
	}
}

func insertAttempt(t *testing.T, db *sql.DB, attempt *entities.QuizAttempt) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO quiz_attempts (id, user_id, restaurant_id, attempt_date) VALUES ($1, $2, $3, $4)`,
		attempt.ID, attempt.UserID, attempt.RestaurantID, attempt.AttemptDate,
	)
	require.NoError(t, err)

	for i, q := range attempt.Questions {
		var category sql.NullString
		if q.KnowledgeCategory.IsValid() {
			category = sql.NullString{String: q.KnowledgeCategory.String(), Valid: true}
		}
		_, err := db.Exec(
			`INSERT INTO quiz_attempt_questions (attempt_id, position, question_id, knowledge_category, is_correct)
			 VALUES ($1, $2, $3, $4, $5)`,
			attempt.ID, i, q.QuestionID, category, q.IsCorrect,
		)
		require.NoError(t, err)
	}
}

func insertQuestion(t *testing.T, db *sql.DB, id, restaurantID, text string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO questions (id, restaurant_id, question_text) VALUES ($1, $2, $3)`,
		id, restaurantID, text,
	)
	require.NoError(t, err)
}

func waitForAnalyticsEvent(t *testing.T, ch <-chan *entities.AnalyticsEvent) *entities.AnalyticsEvent {
	t.Helper()
	select {
	case event := <-ch:
		require.NotNil(t, event)
		return event
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for analytics event")
		return nil
	}
}
