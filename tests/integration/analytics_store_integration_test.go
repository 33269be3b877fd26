//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/knowledgeanalytics/internal/adapters/database"
	"github.com/zatekoja/knowledgeanalytics/internal/application/services"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	apperrors "github.com/zatekoja/knowledgeanalytics/pkg/errors"
)

func TestUserAnalyticsAdapter_VersionedSaveIntegration(t *testing.T) {
	client := requirePostgres(t)
	repo := database.NewUserAnalyticsAdapter(client)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	record := entities.NewUserKnowledgeAnalytics("u1", "r1", now)
	record.RecordAnswer(entities.CategoryWine, true, now)
	record.MarkProcessed("a1")
	require.NoError(t, repo.Create(ctx, record))
	assert.Equal(t, 1, record.Version)

	err := repo.Create(ctx, entities.NewUserKnowledgeAnalytics("u1", "r1", now))
	assert.True(t, apperrors.IsConflict(err), "duplicate create must conflict, got %v", err)

	first, err := repo.FindByUserAndRestaurant(ctx, "u1", "r1")
	require.NoError(t, err)
	second, err := repo.FindByUserAndRestaurant(ctx, "u1", "r1")
	require.NoError(t, err)

	first.RecordAnswer(entities.CategoryFood, false, now)
	require.NoError(t, repo.Save(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.RecordAnswer(entities.CategoryFood, true, now)
	err = repo.Save(ctx, second)
	assert.True(t, apperrors.IsConflict(err), "stale save must conflict, got %v", err)

	stored, err := repo.FindByUserAndRestaurant(ctx, "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Stats(entities.CategoryWine).CorrectAnswers)
	assert.Equal(t, 1, stored.Stats(entities.CategoryFood).TotalQuestions)
	assert.Equal(t, 0, stored.Stats(entities.CategoryFood).CorrectAnswers)
	assert.True(t, stored.HasProcessed("a1"))

	ids, err := repo.ListRestaurantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)

	removed, err := repo.DeleteByRestaurant(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = repo.FindByUserAndRestaurant(ctx, "u1", "r1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestReplayStoredAttemptsIntegration(t *testing.T) {
	client := requirePostgres(t)
	ctx := context.Background()
	db := client.DB().DB

	day := time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC)
	insertAttempt(t, db, &entities.QuizAttempt{
		ID: "a1", UserID: "u1", RestaurantID: "r1", AttemptDate: day,
		Questions: []entities.AttemptQuestion{
			{QuestionID: "q1", KnowledgeCategory: entities.CategoryWine, IsCorrect: true},
			{QuestionID: "q2", KnowledgeCategory: entities.CategoryFood, IsCorrect: false},
			{QuestionID: "q3", IsCorrect: true},
		},
	})
	insertAttempt(t, db, &entities.QuizAttempt{
		ID: "a2", UserID: "u2", RestaurantID: "r1", AttemptDate: day.Add(time.Hour),
		Questions: []entities.AttemptQuestion{
			{QuestionID: "q1", KnowledgeCategory: entities.CategoryWine, IsCorrect: false},
		},
	})

	analytics := database.NewUserAnalyticsAdapter(client)
	aggregator := services.NewStatsAggregator(analytics)
	replay := services.NewAttemptReplayService(database.NewAttemptAdapter(client), aggregator, 2)

	summary, err := replay.ReplayRange(ctx, "r1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Applied)

	again, err := replay.ReplayRange(ctx, "r1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, again.Duplicates)
	assert.Equal(t, 0, again.Applied)

	restaurants := services.NewRestaurantAnalyticsService(analytics, nil)
	view, err := restaurants.GetRestaurantAnalytics(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalStaff)
	assert.Equal(t, 3, view.TotalQuestionsAnswered)
}

func TestQuestionTaggingIntegration(t *testing.T) {
	client := requirePostgres(t)
	ctx := context.Background()
	db := client.DB().DB

	insertQuestion(t, db, "q1", "r1", "Which wine pairs best with the lamb?")
	insertQuestion(t, db, "q2", "r1", "How do you make a mojito?")

	questions := database.NewQuestionAdapter(client)
	tagging := services.NewQuestionTaggingService(questions, services.NewKnowledgeCategorizer(), nil, 2, services.DefaultReviewThreshold)

	summary, err := tagging.RetagRestaurant(ctx, "r1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Tagged)

	q1, err := questions.GetByID(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, entities.CategoryWine, q1.KnowledgeCategory)
	assert.Equal(t, entities.AssignedByCategorizer, q1.CategoryAssignedBy)
	require.NotNil(t, q1.CategoryAssignedAt)

	q2, err := questions.GetByID(ctx, "q2")
	require.NoError(t, err)
	assert.Equal(t, entities.CategoryBeverage, q2.KnowledgeCategory)
}
