// Package scoring rates discovery candidates against the ingested corpus.
package scoring

import (
	"context"
	"log/slog"
	"strings"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
)

const (
	maxSimilarityInput  = 4000
	similarityThreshold = 0.01
)

// Heuristic scores a candidate from its URL and title alone.
type Heuristic func(rawURL, title string) float64

// BaselineHeuristic is the placeholder heuristic: every candidate scores 0.
func BaselineHeuristic(string, string) float64 { return 0 }

// Scorer computes the heuristic and corpus-similarity scores of a candidate.
type Scorer struct {
	heuristic Heuristic
	embedder  ports.Embedder
	corpus    ports.Corpus
	logger    *slog.Logger
}

// New wires a scorer. A nil heuristic falls back to BaselineHeuristic.
func New(heuristic Heuristic, embedder ports.Embedder, corpus ports.Corpus, logger *slog.Logger) *Scorer {
	if heuristic == nil {
		heuristic = BaselineHeuristic
	}
	return &Scorer{heuristic: heuristic, embedder: embedder, corpus: corpus, logger: logging.OrDiscard(logger)}
}

// Score never fails; similarity problems are logged and score 0.
func (s *Scorer) Score(ctx context.Context, rawURL, title, abstract string) domain.Scores {
	text := strings.TrimSpace(abstract)
	if text == "" {
		text = strings.TrimSpace(title)
	}
	scores := domain.Scores{
		Heuristic:  s.heuristic(rawURL, title),
		Similarity: s.similarity(ctx, text),
	}
	s.logger.Debug("scored",
		"url", logging.Clip(rawURL, 50),
		"heuristic", scores.Heuristic,
		"similarity", scores.Similarity,
	)
	return scores
}

func (s *Scorer) similarity(ctx context.Context, text string) float64 {
	if text == "" || s.embedder == nil || s.corpus == nil {
		return 0
	}
	if runes := []rune(text); len(runes) > maxSimilarityInput {
		text = string(runes[:maxSimilarityInput])
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("similarity embed failed", "error", err)
		return 0
	}
	matches, err := s.corpus.NearestNeighbors(ctx, embedding, similarityThreshold, 1, domain.LangEnglish)
	if err != nil {
		s.logger.Warn("similarity lookup failed", "error", err)
		return 0
	}
	if len(matches) == 0 {
		return 0
	}
	return matches[0].Similarity
}
