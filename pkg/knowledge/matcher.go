package knowledge

import (
	"sort"

	"support-assistant/pkg/models"
)

// Matcher answers similarity queries over a fixed corpus. It is safe for
// concurrent use because the corpus is never mutated after construction.
type Matcher struct {
	records []models.KnowledgeRecord
}

// NewMatcher copies the records and fills in any missing normalized question
func NewMatcher(records []models.KnowledgeRecord) *Matcher {
	owned := make([]models.KnowledgeRecord, len(records))
	for i, r := range records {
		if r.NormalizedQuestion == "" {
			r.NormalizedQuestion = Normalize(r.Question)
		}
		owned[i] = r
	}
	return &Matcher{records: owned}
}

// Search returns at most limit results, highest score first. Equal scores keep corpus order.
func (m *Matcher) Search(query string, limit int) []models.MatchResult {
	normalized := Normalize(query)
	if normalized == "" || limit <= 0 || len(m.records) == 0 {
		return []models.MatchResult{}
	}

	results := make([]models.MatchResult, len(m.records))
	for i, r := range m.records {
		results[i] = models.MatchResult{
			Record: r,
			Score:  Similarity(normalized, r.NormalizedQuestion),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
