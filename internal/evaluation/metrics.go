package evaluation

import "github.com/zatekoja/knowledgeanalytics/internal/domain/entities"

// ConfusionMatrix counts golden labels (rows) against predictions (columns),
// both indexed by KnowledgeCategory.Index().
type ConfusionMatrix [entities.NumCategories][entities.NumCategories]int

// Add records one prediction. Unresolved categories are ignored.
func (m *ConfusionMatrix) Add(expected, predicted entities.KnowledgeCategory) {
	if !expected.IsValid() || !predicted.IsValid() {
		return
	}
	m[expected.Index()][predicted.Index()]++
}

// Support is the number of golden questions labelled c.
func (m *ConfusionMatrix) Support(c entities.KnowledgeCategory) int {
	total := 0
	for _, n := range m[c.Index()] {
		total += n
	}
	return total
}

// Predicted is the number of questions classified as c.
func (m *ConfusionMatrix) Predicted(c entities.KnowledgeCategory) int {
	total := 0
	for row := range m {
		total += m[row][c.Index()]
	}
	return total
}

// Precision is the share of predictions of c that were right. Returns 0.0 if c was never predicted.
func (m *ConfusionMatrix) Precision(c entities.KnowledgeCategory) float64 {
	predicted := m.Predicted(c)
	if predicted == 0 {
		return 0.0
	}
	return float64(m[c.Index()][c.Index()]) / float64(predicted)
}

// Recall is the share of questions labelled c that were found. Returns 0.0 if c has no support.
func (m *ConfusionMatrix) Recall(c entities.KnowledgeCategory) float64 {
	support := m.Support(c)
	if support == 0 {
		return 0.0
	}
	return float64(m[c.Index()][c.Index()]) / float64(support)
}

// F1 is the harmonic mean of precision and recall, 0.0 when both are zero.
func F1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0.0
	}
	return 2 * precision * recall / (precision + recall)
}
