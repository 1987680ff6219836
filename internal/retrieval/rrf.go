package retrieval

import (
	"sort"

	"ArticleWatch/internal/domain"
)

// Fusion holds the Reciprocal Rank Fusion parameters.
type Fusion struct {
	VectorWeight  float64
	LexicalWeight float64
	K             int
	TopK          int
}

// FusionFromSettings reads fusion parameters, raising K and TopK to at least 1.
func FusionFromSettings(s domain.RagSettings) Fusion {
	return Fusion{
		VectorWeight:  s.VectorWeight,
		LexicalWeight: s.FTSWeight,
		K:             max(1, s.RRFK),
		TopK:          max(1, s.HybridTopK),
	}
}

// Fuse merges two ranked lists. Each chunk scores weight/(K+rank) per list it
// appears in, with 1-based ranks. Chunks found only lexically carry similarity 0.
// Equal scores keep first-seen order, vector list first.
func (f Fusion) Fuse(vector, lexical []domain.ChunkMatch) []domain.ChunkMatch {
	scores := f.Scores(vector, lexical)

	seen := make(map[string]struct{}, len(scores))
	merged := make([]domain.ChunkMatch, 0, len(scores))
	for _, c := range vector {
		if _, ok := seen[c.ChunkID]; !ok {
			seen[c.ChunkID] = struct{}{}
			merged = append(merged, c)
		}
	}
	for _, c := range lexical {
		if _, ok := seen[c.ChunkID]; !ok {
			seen[c.ChunkID] = struct{}{}
			c.Similarity = 0
			merged = append(merged, c)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return scores[merged[i].ChunkID] > scores[merged[j].ChunkID]
	})
	return merged[:min(len(merged), max(1, f.TopK))]
}

// Scores returns the fused score of every chunk, keyed by chunk ID.
func (f Fusion) Scores(vector, lexical []domain.ChunkMatch) map[string]float64 {
	k := float64(max(1, f.K))
	out := make(map[string]float64, len(vector)+len(lexical))
	for i, c := range vector {
		out[c.ChunkID] += f.VectorWeight / (k + float64(i+1))
	}
	for i, c := range lexical {
		out[c.ChunkID] += f.LexicalWeight / (k + float64(i+1))
	}
	return out
}
