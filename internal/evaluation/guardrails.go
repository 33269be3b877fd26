package evaluation

import "github.com/zatekoja/knowledgeanalytics/internal/application/services"

const defaultMaxQuestionRunes = 1000

type GuardrailConfig struct {
	// MinAutoAcceptConfidence is the confidence a tag must exceed to skip manual review.
	MinAutoAcceptConfidence float64
	MaxQuestionRunes        int
}

type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MaxQuestionRunes <= 0 {
		config.MaxQuestionRunes = defaultMaxQuestionRunes
	}
	return &Guardrails{config: config}
}

// ShouldAutoAccept mirrors ClassificationResult.NeedsReview: a confidence equal
// to the threshold still goes to review.
func (g *Guardrails) ShouldAutoAccept(result services.ClassificationResult) bool {
	return !result.NeedsReview(g.config.MinAutoAcceptConfidence)
}

// LimitQuestion truncates overly long question text before classification.
func (g *Guardrails) LimitQuestion(text string) string {
	runes := []rune(text)
	if len(runes) > g.config.MaxQuestionRunes {
		return string(runes[:g.config.MaxQuestionRunes])
	}
	return text
}
