package domain

// RagSettings controls retrieval and answering behaviour. It is shared by every query.
type RagSettings struct {
	UseSimilarityGuard  bool    `json:"use_similarity_guard"`
	ContextTurns        int     `json:"context_turns"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	GuardMessage        string  `json:"guard_message"`
	MatchCount          int     `json:"match_count"`
	MatchThreshold      float64 `json:"match_threshold"`
	FTSWeight           float64 `json:"fts_weight"`
	VectorWeight        float64 `json:"vector_weight"`
	RRFK                int     `json:"rrf_k"`
	HybridTopK          int     `json:"hybrid_top_k"`
}
