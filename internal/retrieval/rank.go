package retrieval

import (
	"cmp"
	"slices"

	"github.com/rich7420/community-ai-agent-sub001/internal/embedding"
	"github.com/rich7420/community-ai-agent-sub001/internal/models"
)

// Rank scores candidates against query and returns at most k of them,
// ordered by score desc, then timestamp desc, then id asc. Candidates
// without an embedding are dropped, as are scores below minScore.
//
// Scores are recomputed from the stored vectors so ordering does not depend
// on the store's own float arithmetic.
func Rank(query []float32, candidates []models.ScoredRecord, minScore float64, k int) []models.ScoredRecord {
	ranked := make([]models.ScoredRecord, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if !c.HasEmbedding() {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}

		c.Score = embedding.Similarity(query, c.Embedding)
		if c.Score < minScore {
			continue
		}
		ranked = append(ranked, c)
	}

	slices.SortStableFunc(ranked, compareRanked)
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

func compareRanked(a, b models.ScoredRecord) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
