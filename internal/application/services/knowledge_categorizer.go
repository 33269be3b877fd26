package services

import (
	"fmt"
	"strings"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
)

// Confidence band boundaries used in the reasoning text.
const (
	highConfidenceBand     = 0.8
	moderateConfidenceBand = 0.6
	maxConfidence          = 0.95
)

// ClassificationContext carries optional hints about where a question came from.
type ClassificationContext struct {
	MenuCategories     []string `json:"menu_categories,omitempty" yaml:"menu_categories,omitempty"`
	SOPCategoryName    string   `json:"sop_category_name,omitempty" yaml:"sop_category_name,omitempty"`
	ExistingCategories []string `json:"existing_categories,omitempty" yaml:"existing_categories,omitempty"`
}

// ClassificationResult is the outcome of classifying one question.
type ClassificationResult struct {
	Category   entities.KnowledgeCategory `json:"category"`
	Confidence float64                    `json:"confidence"`
	Reasoning  string                     `json:"reasoning"`
	// Scores are the per-category scores divided by the maximum, indexed by KnowledgeCategory.Index().
	Scores [entities.NumCategories]float64 `json:"scores"`
}

// NeedsReview reports whether the result should go to a human before it is trusted.
func (r ClassificationResult) NeedsReview(threshold float64) bool {
	return r.Confidence <= threshold
}

// Score returns the normalized score of one category.
func (r ClassificationResult) Score(c entities.KnowledgeCategory) float64 {
	return r.Scores[c.Index()]
}

// KnowledgeCategorizer assigns free-text quiz questions to a knowledge category
// with weighted keyword scoring and a fixed set of override rules. It holds no
// state and is safe for concurrent use.
type KnowledgeCategorizer struct{}

// NewKnowledgeCategorizer creates a categorizer.
func NewKnowledgeCategorizer() *KnowledgeCategorizer {
	return &KnowledgeCategorizer{}
}

// Classify scores questionText against every category. hints may be nil.
func (c *KnowledgeCategorizer) Classify(questionText string, hints *ClassificationContext) ClassificationResult {
	text := strings.ToLower(strings.TrimSpace(questionText))
	if text == "" {
		return buildResult([entities.NumCategories]float64{})
	}

	var scores [entities.NumCategories]float64
	for i, kw := range knowledgeKeywords {
		scores[i] = primaryKeywordWeight*float64(countMatches(text, kw.primary)) +
			secondaryKeywordWeight*float64(countMatches(text, kw.secondary))
	}

	applyOverrides(text, &scores)
	if hints != nil {
		applyContextBoosts(hints, &scores)
	}

	if top := maxScore(scores); top > 0 {
		for i := range scores {
			scores[i] /= top
		}
	}
	return buildResult(scores)
}

// applyOverrides runs the semantic override rules. A wine pairing phrase wins
// over a cocktail phrase, which wins over the food rules; the food preparation
// rule only runs when neither of the first two fired.
func applyOverrides(text string, scores *[entities.NumCategories]float64) {
	switch {
	case containsAny(text, winePairingPhrases):
		scores[entities.CategoryWine.Index()] += winePairingBoost
		return
	case containsAny(text, cocktailPrepPhrases):
		scores[entities.CategoryBeverage.Index()] += cocktailPrepBoost
		return
	}

	wineAsIngredient := containsAny(text, wineAsIngredientPhrases)
	if wineAsIngredient || containsAny(text, strongFoodIndicators) {
		scores[entities.CategoryFood.Index()] += strongFoodBoost
		if wineAsIngredient {
			wine := &scores[entities.CategoryWine.Index()]
			*wine -= wineIngredientPenalty
			if *wine < 0 {
				*wine = 0
			}
		}
	}

	if containsAny(text, foodPrepPhrases) && !containsAny(text, beveragePrepPhrases) {
		scores[entities.CategoryFood.Index()] += foodPrepBoost
	}
}

func applyContextBoosts(hints *ClassificationContext, scores *[entities.NumCategories]float64) {
	for _, menu := range hints.MenuCategories {
		menu = strings.ToLower(menu)
		switch {
		case containsAny(menu, knowledgeKeywords[entities.CategoryWine.Index()].primary):
			scores[entities.CategoryWine.Index()] += wineMenuBoost
		case containsAny(menu, beverageMenuTerms):
			scores[entities.CategoryBeverage.Index()] += beverageMenuBoost
		default:
			scores[entities.CategoryFood.Index()] += foodMenuBoost
		}
	}

	if sop := strings.ToLower(hints.SOPCategoryName); sop != "" && containsAny(sop, procedureSOPTerms) {
		scores[entities.CategoryProcedures.Index()] += procedureSOPBoost
	}

	for _, tag := range hints.ExistingCategories {
		tag = strings.ToLower(tag)
		if strings.Contains(tag, "wine") {
			scores[entities.CategoryWine.Index()] += tagNudge
		}
		if containsAny(tag, beverageTagTerms) {
			scores[entities.CategoryBeverage.Index()] += tagNudge
		}
	}
}

// buildResult picks the first maximum in category order and derives confidence
// from the margin between the two best scores.
func buildResult(scores [entities.NumCategories]float64) ClassificationResult {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}

	second := 0.0
	for i, s := range scores {
		if i != best && s > second {
			second = s
		}
	}

	confidence := 0.0
	if top := scores[best]; top > 0 {
		confidence = (top - second) / top
		if confidence > maxConfidence {
			confidence = maxConfidence
		}
	}

	category := entities.AllCategories[best]
	return ClassificationResult{
		Category:   category,
		Confidence: confidence,
		Reasoning:  fmt.Sprintf("Classified as %s with %s confidence", category, confidenceBand(confidence)),
		Scores:     scores,
	}
}

func confidenceBand(confidence float64) string {
	switch {
	case confidence > highConfidenceBand:
		return "high"
	case confidence > moderateConfidenceBand:
		return "moderate"
	default:
		return "low - may need manual review"
	}
}

func countMatches(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func maxScore(scores [entities.NumCategories]float64) float64 {
	top := 0.0
	for _, s := range scores {
		if s > top {
			top = s
		}
	}
	return top
}
