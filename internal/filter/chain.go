package filter

import (
	"context"
	"log/slog"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/logging"
)

// Classifier selects the candidates worth extracting.
type Classifier interface {
	Classify(ctx context.Context, candidates []domain.Candidate) ([]domain.Candidate, error)
}

// Chain runs the candidate stages in order: prefilter, existing-URL dedup,
// article-first sort, classification, quotas.
type Chain struct {
	classifier Classifier
	quotas     Quotas
	logger     *slog.Logger
}

// NewChain wires the classifier and quotas.
func NewChain(classifier Classifier, quotas Quotas, logger *slog.Logger) *Chain {
	return &Chain{classifier: classifier, quotas: quotas, logger: logging.OrDiscard(logger)}
}

// Run reduces raw candidates to the bounded list to extract. A classifier error is
// returned as is and must abort the run.
func (c *Chain) Run(ctx context.Context, candidates []domain.Candidate, existing map[string]struct{}) ([]domain.Candidate, error) {
	filtered := Prefilter(candidates)
	c.logger.Debug("after prefilter", "in", len(candidates), "out", len(filtered))

	fresh := RemoveExisting(filtered, existing)
	c.logger.Debug("after existing dedup", "in", len(filtered), "out", len(fresh))

	sorted := SortArticleFirst(fresh)

	kept := sorted
	if c.classifier != nil {
		var err error
		kept, err = c.classifier.Classify(ctx, sorted)
		if err != nil {
			return nil, err
		}
	}

	out := c.quotas.Apply(kept)
	c.logger.Info("candidate chain done",
		"raw", len(candidates),
		"classified", len(kept),
		"out", len(out),
		"max_per_run", c.quotas.MaxPerRun,
		"max_per_source", c.quotas.MaxPerSource,
	)
	return out, nil
}
