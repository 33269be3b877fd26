package evaluation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v2"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
)

// LoadGoldenQuestions reads a golden question set. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON.
func LoadGoldenQuestions(path string) ([]GoldenQuestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden questions file: %w", err)
	}

	var questions []GoldenQuestion
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &questions)
	default:
		err = sonic.Unmarshal(data, &questions)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse golden questions: %w", err)
	}

	return questions, nil
}

// ValidateGoldenQuestions checks that all golden questions have required fields and valid values.
func ValidateGoldenQuestions(questions []GoldenQuestion) error {
	seen := make(map[string]struct{}, len(questions))

	for i, q := range questions {
		if q.ID == "" {
			return fmt.Errorf("question at index %d: missing id", i)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("question at index %d: duplicate id %q", i, q.ID)
		}
		seen[q.ID] = struct{}{}

		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("question %q: missing question text", q.ID)
		}
		if c, err := entities.ParseKnowledgeCategory(q.Category); err != nil || !c.IsValid() {
			return fmt.Errorf("question %q: invalid category %q", q.ID, q.Category)
		}
		if !q.Difficulty.IsValid() {
			return fmt.Errorf("question %q: invalid difficulty %q (must be easy/medium/hard)", q.ID, q.Difficulty)
		}
	}

	return nil
}
