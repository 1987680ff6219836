package scanner

import (
	"fmt"

	"ArticleWatch/internal/domain"
)

// Page is the raw content fetched for one source.
type Page struct {
	SourceID string
	URL      string
	Body     string
}

// Extractor turns a fetched source page into absolute candidate URLs.
// Implementations do no network I/O.
type Extractor interface {
	Name() string
	Extract(page Page) []string
}

// Registry keeps a mapping from fetch strategies to their extractors.
type Registry struct {
	extractors map[domain.FetchStrategy]Extractor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: map[domain.FetchStrategy]Extractor{}}
}

// Register adds or replaces the extractor used for a strategy.
func (r *Registry) Register(strategy domain.FetchStrategy, extractor Extractor) {
	if r.extractors == nil {
		r.extractors = map[domain.FetchStrategy]Extractor{}
	}
	r.extractors[strategy] = extractor
}

// Resolve returns the extractor for a strategy. An empty strategy means auto.
func (r *Registry) Resolve(strategy domain.FetchStrategy) (Extractor, error) {
	if strategy == "" {
		strategy = domain.FetchAuto
	}
	if extractor, ok := r.extractors[strategy]; ok {
		return extractor, nil
	}
	return nil, fmt.Errorf("no extractor registered for strategy %q", strategy)
}
