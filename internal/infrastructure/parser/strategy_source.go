package parser

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
	"ArticleWatch/internal/scanner"
)

const defaultFetchConcurrency = 8

// StrategySource implements ports.CandidateSource via registered extractor strategies.
type StrategySource struct {
	registry    *scanner.Registry
	fetcher     ports.PageFetcher
	concurrency int
	logger      *slog.Logger
}

var _ ports.CandidateSource = (*StrategySource)(nil)

// NewStrategySource wires the extractor registry with a page fetcher.
func NewStrategySource(reg *scanner.Registry, fetcher ports.PageFetcher, concurrency int, log *slog.Logger) *StrategySource {
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}
	return &StrategySource{
		registry:    reg,
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      logging.OrDiscard(log),
	}
}

// Collect fetches every source page concurrently and extracts candidate URLs.
// A source that cannot be fetched or parsed contributes nothing; it never fails the batch.
// Candidates keep source order, then page order.
func (s *StrategySource) Collect(ctx context.Context, sources []domain.Source) []domain.Candidate {
	s.logger.Debug("collect candidates", "sources", len(sources))

	perSource := make([][]string, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			perSource[i] = s.collectOne(gctx, src)
			return nil
		})
	}
	_ = g.Wait()

	var out []domain.Candidate
	for i, urls := range perSource {
		for _, u := range urls {
			out = append(out, domain.Candidate{SourceID: sources[i].ID, URL: u})
		}
	}
	s.logger.Info("candidates extracted", "sources", len(sources), "total", len(out))
	return out
}

func (s *StrategySource) collectOne(ctx context.Context, src domain.Source) []string {
	if s.registry == nil || s.fetcher == nil {
		return nil
	}
	extractor, err := s.registry.Resolve(src.FetchStrategy)
	if err != nil {
		s.logger.Warn("unknown fetch strategy", "source", src.ID, "strategy", src.FetchStrategy, "error", err)
		return nil
	}

	body, err := s.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		s.logger.Warn("source fetch failed", "source", src.ID, "url", logging.Clip(src.URL, 60), "error", err)
		return nil
	}

	urls := extractor.Extract(scanner.Page{SourceID: src.ID, URL: src.URL, Body: body})
	s.logger.Debug("urls from source", "source", src.ID, "strategy", extractor.Name(), "count", len(urls))
	if len(urls) == 0 {
		likelyBot := !IsFeed(body) && LikelyBotChallenge(body, src.URL)
		hint := "page may be JS-rendered; try an RSS feed or a direct table-of-contents URL"
		if likelyBot {
			hint = "likely anti-bot challenge; use the RSS feed of this source"
		}
		s.logger.Warn("source has 0 urls", "url", logging.Clip(src.URL, 60), "likely_bot_challenge", likelyBot, "hint", hint)
	}
	return urls
}
