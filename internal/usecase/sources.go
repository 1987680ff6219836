package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
)

// SourceStore is the registry as seen by its admin surface.
type SourceStore interface {
	ports.SourceRegistry
	ports.SourceAdmin
}

// Sources validates and manages the source registry.
type Sources struct {
	store  SourceStore
	logger *slog.Logger
}

// NewSources wires the registry.
func NewSources(store SourceStore, logger *slog.Logger) *Sources {
	return &Sources{store: store, logger: logging.OrDiscard(logger)}
}

// Add registers an http(s) source. An empty strategy means auto.
func (s *Sources) Add(ctx context.Context, rawURL, name string, strategy domain.FetchStrategy) (domain.Source, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.Source{}, fmt.Errorf("url %q must be an absolute http(s) URL: %w", rawURL, domain.ErrInvalidSource)
	}
	if strategy == "" {
		strategy = domain.FetchAuto
	}
	if !strategy.Valid() {
		return domain.Source{}, fmt.Errorf("fetch strategy %q must be auto, fetch or rss: %w", strategy, domain.ErrInvalidSource)
	}

	src, err := s.store.CreateSource(ctx, domain.Source{
		URL:           u.String(),
		Name:          strings.TrimSpace(name),
		FetchStrategy: strategy,
	})
	if err != nil {
		return domain.Source{}, err
	}
	s.logger.Info("source added", "source_id", src.ID, "url", logging.Clip(src.URL, 80), "strategy", string(strategy))
	return src, nil
}

// List returns every configured source.
func (s *Sources) List(ctx context.Context) ([]domain.Source, error) {
	return s.store.ListSources(ctx)
}

// Remove deletes a source. Items it produced are kept.
func (s *Sources) Remove(ctx context.Context, id string) error {
	if err := s.store.DeleteSource(ctx, id); err != nil {
		return err
	}
	s.logger.Info("source removed", "source_id", id)
	return nil
}
