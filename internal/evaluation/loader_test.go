package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGoldenQuestions_JSON(t *testing.T) {
	content := `[
		{"id": "g1", "question": "Which wine pairs best with our duck confit?", "category": "wine", "difficulty": "medium"},
		{"id": "g2", "question": "Which one is the house favourite?", "category": "wine", "difficulty": "hard",
		 "context": {"menu_categories": ["Wine List"]}}
	]`
	path := writeTempFile(t, "golden.json", content)

	questions, err := LoadGoldenQuestions(path)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "g1", questions[0].ID)
	assert.Equal(t, DifficultyMedium, questions[0].Difficulty)
	assert.Nil(t, questions[0].Context)
	require.NotNil(t, questions[1].Context)
	assert.Equal(t, []string{"Wine List"}, questions[1].Context.MenuCategories)
}

func TestLoadGoldenQuestions_YAML(t *testing.T) {
	content := `
- id: g1
  question: What is the handwashing policy before starting a shift?
  category: procedures
  difficulty: easy
- id: g2
  question: What should you do first?
  category: procedures
  difficulty: hard
  context:
    sop_category_name: Kitchen Safety
`
	path := writeTempFile(t, "golden.yaml", content)

	questions, err := LoadGoldenQuestions(path)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "procedures", questions[0].Category)
	require.NotNil(t, questions[1].Context)
	assert.Equal(t, "Kitchen Safety", questions[1].Context.SOPCategoryName)
	assert.NoError(t, ValidateGoldenQuestions(questions))
}

func TestLoadGoldenQuestions_Errors(t *testing.T) {
	_, err := LoadGoldenQuestions("/nonexistent/path.json")
	assert.Error(t, err)

	_, err = LoadGoldenQuestions(writeTempFile(t, "bad.json", `not valid json`))
	assert.Error(t, err)

	_, err = LoadGoldenQuestions(writeTempFile(t, "bad.yml", "- id: [unclosed"))
	assert.Error(t, err)

	questions, err := LoadGoldenQuestions(writeTempFile(t, "empty.json", `[]`))
	require.NoError(t, err)
	assert.Empty(t, questions)
}

func TestValidateGoldenQuestions(t *testing.T) {
	valid := GoldenQuestion{ID: "g1", Question: "text", Category: "food", Difficulty: DifficultyEasy}

	tests := []struct {
		name      string
		questions []GoldenQuestion
		wantErr   bool
	}{
		{"valid", []GoldenQuestion{valid}, false},
		{"missing id", []GoldenQuestion{{Question: "text", Category: "food", Difficulty: DifficultyEasy}}, true},
		{"blank question", []GoldenQuestion{{ID: "g1", Question: "  ", Category: "food", Difficulty: DifficultyEasy}}, true},
		{"unknown category", []GoldenQuestion{{ID: "g1", Question: "text", Category: "dessert", Difficulty: DifficultyEasy}}, true},
		{"empty category", []GoldenQuestion{{ID: "g1", Question: "text", Difficulty: DifficultyEasy}}, true},
		{"bad difficulty", []GoldenQuestion{{ID: "g1", Question: "text", Category: "food", Difficulty: "impossible"}}, true},
		{"duplicate ids", []GoldenQuestion{valid, valid}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGoldenQuestions(tt.questions)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
