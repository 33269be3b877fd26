package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/knowledgeanalytics/internal/adapters/database"
	"github.com/zatekoja/knowledgeanalytics/internal/application/services"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/knowledgeanalytics/pkg/config"
)

const (
	seedRestaurant = "demo-bistro"
	seedDays       = 60
)

var seedQuestions = []string{
	"What allergens are in the grilled salmon?",
	"How is the ribeye steak cooked for medium rare?",
	"Which dessert on the menu is gluten free?",
	"How do you make a mojito?",
	"Which espresso drinks can be made with oat milk?",
	"What garnish goes on an old fashioned?",
	"Which wine pairs best with the lamb?",
	"How long should the cabernet be decanted?",
	"What grape is used in our house chianti?",
	"What is the handwashing procedure before a shift?",
	"Who do you report a guest complaint to?",
	"What are the steps of the closing checklist?",
}

// staff members and the chance each answers a question correctly
var seedStaff = map[string]float64{
	"staff-ana":   0.9,
	"staff-ben":   0.75,
	"staff-chloe": 0.6,
	"staff-dev":   0.45,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()
	db := pgClient.DB()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := db.ExecContext(ctx, `
			TRUNCATE TABLE
				quiz_attempt_questions,
				quiz_attempts,
				questions,
				user_knowledge_analytics
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	// 1. Seed questions, untagged
	questionIDs := make([]string, len(seedQuestions))
	for i, text := range seedQuestions {
		questionIDs[i] = fmt.Sprintf("%s-q%02d", seedRestaurant, i+1)
		_, err := db.ExecContext(ctx,
			`INSERT INTO questions (id, restaurant_id, question_text) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			questionIDs[i], seedRestaurant, text,
		)
		if err != nil {
			log.Printf("Failed to create question %s: %v", questionIDs[i], err)
		}
	}

	// 2. Tag them so attempts carry categories
	questionRepo := database.NewQuestionAdapter(pgClient)
	tagging := services.NewQuestionTaggingService(questionRepo, services.NewKnowledgeCategorizer(), nil, 2, cfg.Analytics.ReviewThreshold)
	tagSummary, err := tagging.RetagRestaurant(ctx, seedRestaurant, true)
	if err != nil {
		log.Fatalf("Failed to tag questions: %v", err)
	}
	log.Printf("Tagged %d questions (%d flagged for review)", tagSummary.Tagged, tagSummary.LowConfidence)

	categories := make(map[string]entities.KnowledgeCategory, len(questionIDs))
	for _, id := range questionIDs {
		q, err := questionRepo.GetByID(ctx, id)
		if err != nil {
			log.Fatalf("Failed to load question %s: %v", id, err)
		}
		categories[id] = q.KnowledgeCategory
	}

	// 3. Seed one attempt per staff member every other day
	rng := rand.New(rand.NewSource(42))
	start := time.Now().UTC().AddDate(0, 0, -seedDays)
	created := 0
	for userID, skill := range seedStaff {
		for day := 0; day < seedDays; day += 2 {
			attemptID := uuid.New().String()
			attemptDate := start.AddDate(0, 0, day).Add(time.Duration(rng.Intn(8)+10) * time.Hour)
			if err := insertAttempt(ctx, db.DB, attemptID, userID, attemptDate); err != nil {
				log.Printf("Failed to create attempt for %s: %v", userID, err)
				continue
			}
			// Accuracy drifts upward over the period so trends have something to show.
			p := skill + 0.1*float64(day)/seedDays
			for pos, idx := range rng.Perm(len(questionIDs))[:5] {
				qid := questionIDs[idx]
				correct := rng.Float64() < p
				_, err := db.ExecContext(ctx,
					`INSERT INTO quiz_attempt_questions (attempt_id, position, question_id, knowledge_category, is_correct)
					 VALUES ($1, $2, $3, $4, $5)`,
					attemptID, pos, qid, categoryValue(categories[qid]), correct,
				)
				if err != nil {
					log.Printf("Failed to create attempt question: %v", err)
				}
			}
			created++
		}
	}
	log.Printf("Created %d attempts", created)

	// 4. Fold the attempts into analytics
	aggregator := services.NewStatsAggregator(database.NewUserAnalyticsAdapter(pgClient))
	replay := services.NewAttemptReplayService(database.NewAttemptAdapter(pgClient), aggregator, cfg.Analytics.Workers)
	summary, err := replay.ReplayRange(ctx, seedRestaurant, time.Time{}, time.Time{})
	if err != nil {
		log.Fatalf("Failed to replay attempts: %v", err)
	}
	log.Printf("Seeding complete: %d applied, %d duplicates, %d failed", summary.Applied, summary.Duplicates, summary.Failed)
}

func insertAttempt(ctx context.Context, db *sql.DB, id, userID string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO quiz_attempts (id, user_id, restaurant_id, attempt_date) VALUES ($1, $2, $3, $4)`,
		id, userID, seedRestaurant, at,
	)
	return err
}

func categoryValue(c entities.KnowledgeCategory) sql.NullString {
	if !c.IsValid() {
		return sql.NullString{}
	}
	return sql.NullString{String: c.String(), Valid: true}
}
