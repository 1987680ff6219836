package retrieval

import "ArticleWatch/internal/domain"

// GroundingThreshold is the similarity the fused chunks must reach to ground an
// answer when the relevance guard is disabled.
const GroundingThreshold = 0.4

// Mode is how a query gets answered.
type Mode int

const (
	// ModeGuarded returns the guard message without calling the model.
	ModeGuarded Mode = iota
	// ModeGrounded answers from the retrieved chunks with citations.
	ModeGrounded
	// ModeGeneral answers from general knowledge without citations.
	ModeGeneral
)

func (m Mode) String() string {
	switch m {
	case ModeGuarded:
		return "guarded"
	case ModeGrounded:
		return "grounded"
	case ModeGeneral:
		return "general"
	}
	return "unknown"
}

// Decide applies the relevance guard to a search result.
func Decide(res Result, settings domain.RagSettings) Mode {
	if settings.UseSimilarityGuard {
		if len(res.Chunks) == 0 || res.BestVectorSimilarity < settings.SimilarityThreshold {
			return ModeGuarded
		}
		return ModeGrounded
	}
	if len(res.Chunks) == 0 || res.BestSimilarityInChunks < GroundingThreshold {
		return ModeGeneral
	}
	return ModeGrounded
}
