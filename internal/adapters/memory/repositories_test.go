package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/repositories"
	apperrors "github.com/zatekoja/knowledgeanalytics/pkg/errors"
)

var baseTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestUserAnalyticsRepository_CreateAndVersionedSave(t *testing.T) {
	ctx := context.Background()
	repo := NewUserAnalyticsRepository()

	record := entities.NewUserKnowledgeAnalytics("u1", "r1", baseTime)
	require.NoError(t, repo.Create(ctx, record))
	assert.Equal(t, 1, record.Version)

	dup := entities.NewUserKnowledgeAnalytics("u1", "r1", baseTime)
	assert.True(t, apperrors.IsConflict(repo.Create(ctx, dup)))

	first, err := repo.FindByUserAndRestaurant(ctx, "u1", "r1")
	require.NoError(t, err)
	second, err := repo.FindByUserAndRestaurant(ctx, "u1", "r1")
	require.NoError(t, err)

	first.RecordAnswer(entities.CategoryWine, true, baseTime)
	require.NoError(t, repo.Save(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.RecordAnswer(entities.CategoryFood, true, baseTime)
	assert.True(t, apperrors.IsConflict(repo.Save(ctx, second)), "stale version must be rejected")

	stored, err := repo.FindByUserAndRestaurant(ctx, "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Stats(entities.CategoryWine).TotalQuestions)
	assert.Zero(t, stored.Stats(entities.CategoryFood).TotalQuestions)
}

func TestUserAnalyticsRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewUserAnalyticsRepository()
	require.NoError(t, repo.Create(ctx, entities.NewUserKnowledgeAnalytics("u1", "r1", baseTime)))

	got, err := repo.FindByUserAndRestaurant(ctx, "u1", "r1")
	require.NoError(t, err)
	got.MarkProcessed("a1")

	again, err := repo.FindByUserAndRestaurant(ctx, "u1", "r1")
	require.NoError(t, err)
	assert.False(t, again.HasProcessed("a1"))
}

func TestUserAnalyticsRepository_ListingAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewUserAnalyticsRepository()
	for _, pair := range [][2]string{{"u2", "r1"}, {"u1", "r1"}, {"u1", "r2"}} {
		require.NoError(t, repo.Create(ctx, entities.NewUserKnowledgeAnalytics(pair[0], pair[1], baseTime)))
	}

	list, err := repo.ListByRestaurant(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "u1", list[0].UserID)

	ids, err := repo.ListRestaurantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids)

	removed, err := repo.DeleteByRestaurant(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = repo.FindByUserAndRestaurant(ctx, "u1", "r1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestAttemptRepository_ListByRestaurant(t *testing.T) {
	ctx := context.Background()
	repo := NewAttemptRepository(
		&entities.QuizAttempt{ID: "a2", UserID: "u1", RestaurantID: "r1", AttemptDate: baseTime.Add(48 * time.Hour)},
		&entities.QuizAttempt{ID: "a1", UserID: "u2", RestaurantID: "r1", AttemptDate: baseTime},
		&entities.QuizAttempt{ID: "a3", UserID: "u1", RestaurantID: "r2", AttemptDate: baseTime},
	)

	all, err := repo.ListByRestaurant(ctx, repositories.AttemptFilter{RestaurantID: "r1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a1", all[0].ID)

	bounded, err := repo.ListByRestaurant(ctx, repositories.AttemptFilter{
		RestaurantID: "r1",
		Start:        baseTime,
		End:          baseTime.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, bounded, 1)
	assert.Equal(t, "a1", bounded[0].ID, "start bound is inclusive")

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestQuestionRepository_PagingAndUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewQuestionRepository(
		&entities.Question{ID: "q1", RestaurantID: "r1", QuestionText: "one"},
		&entities.Question{ID: "q2", RestaurantID: "r1", QuestionText: "two", KnowledgeCategory: entities.CategoryWine},
		&entities.Question{ID: "q3", RestaurantID: "r1", QuestionText: "three"},
	)

	page, err := repo.ListForClassification(ctx, repositories.QuestionFilter{RestaurantID: "r1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)

	next, err := repo.ListForClassification(ctx, repositories.QuestionFilter{RestaurantID: "r1", AfterID: page[1].ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "q3", next[0].ID)

	untagged, err := repo.ListForClassification(ctx, repositories.QuestionFilter{RestaurantID: "r1", OnlyUntagged: true})
	require.NoError(t, err)
	assert.Len(t, untagged, 2)

	require.NoError(t, repo.UpdateKnowledgeCategory(ctx, entities.CategoryAssignment{
		QuestionID:        "q1",
		KnowledgeCategory: entities.CategoryFood,
		Confidence:        0.9,
		AssignedBy:        entities.AssignedByCategorizer,
		AssignedAt:        baseTime,
	}))
	q, err := repo.GetByID(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, entities.CategoryFood, q.KnowledgeCategory)
	require.NotNil(t, q.CategoryAssignedAt)
	assert.True(t, baseTime.Equal(*q.CategoryAssignedAt))

	err = repo.UpdateKnowledgeCategory(ctx, entities.CategoryAssignment{QuestionID: "nope"})
	assert.True(t, apperrors.IsNotFound(err))
}
