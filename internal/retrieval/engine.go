// Package retrieval answers corpus queries with hybrid vector and lexical search.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
)

// Result is a fused chunk list plus the similarity signals used by the answer policy.
type Result struct {
	Chunks []domain.ChunkMatch

	// BestVectorSimilarity is the top vector hit before fusion. The relevance guard reads it.
	BestVectorSimilarity float64

	// BestSimilarityInChunks is the highest similarity left after fusion.
	BestSimilarityInChunks float64

	// LexicalUsed reports whether lexical results took part in the fusion.
	LexicalUsed bool
}

// Engine runs the hybrid search.
type Engine struct {
	embedder ports.Embedder
	corpus   ports.Corpus
	logger   *slog.Logger
}

// NewEngine wires the embedding capability and the corpus.
func NewEngine(embedder ports.Embedder, corpus ports.Corpus, logger *slog.Logger) *Engine {
	return &Engine{embedder: embedder, corpus: corpus, logger: logging.OrDiscard(logger)}
}

// Search embeds the query, retrieves vector and lexical candidates in lang and
// fuses them. Lexical failures degrade to vector-only results; embedding and
// vector failures are returned.
func (e *Engine) Search(ctx context.Context, query string, lang domain.Language, settings domain.RagSettings) (Result, error) {
	if e.embedder == nil || e.corpus == nil {
		return Result{}, errors.New("retrieval engine is not configured")
	}
	query = strings.TrimSpace(query)
	fusion := FusionFromSettings(settings)
	useLexical := settings.FTSWeight > 0 && query != ""

	count := fusion.TopK
	if useLexical {
		count = 2 * fusion.TopK
	}
	count = max(settings.MatchCount, count)

	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}
	vector, err := e.corpus.NearestNeighbors(ctx, embedding, settings.MatchThreshold, count, lang)
	if err != nil {
		return Result{}, fmt.Errorf("vector search: %w", err)
	}

	res := Result{}
	if len(vector) > 0 {
		res.BestVectorSimilarity = vector[0].Similarity
	}
	e.logger.Debug("vector search done",
		"lang", lang,
		"requested", count,
		"count", len(vector),
		"best_similarity", res.BestVectorSimilarity,
	)

	if !useLexical {
		res.Chunks = vector[:min(len(vector), fusion.TopK)]
		res.BestSimilarityInChunks = bestSimilarity(res.Chunks)
		return res, nil
	}

	lexical, err := e.corpus.LexicalSearch(ctx, query, 2*fusion.TopK, lang)
	if err != nil {
		e.logger.Warn("lexical search failed, using vector results only", "error", err)
		res.Chunks = vector[:min(len(vector), fusion.TopK)]
		res.BestSimilarityInChunks = bestSimilarity(res.Chunks)
		return res, nil
	}

	res.Chunks = fusion.Fuse(vector, lexical)
	res.BestSimilarityInChunks = bestSimilarity(res.Chunks)
	res.LexicalUsed = true
	e.logger.Debug("fusion done",
		"vector", len(vector),
		"lexical", len(lexical),
		"fused", len(res.Chunks),
		"best_in_chunks", res.BestSimilarityInChunks,
	)
	return res, nil
}

func bestSimilarity(chunks []domain.ChunkMatch) float64 {
	var best float64
	for _, c := range chunks {
		best = max(best, c.Similarity)
	}
	return best
}
