package parser

import (
	"log/slog"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/scanner"
)

// AutoExtractor picks the feed or HTML strategy from the content itself.
type AutoExtractor struct {
	feed *FeedExtractor
	html *HTMLExtractor
}

// FeedExtractor reads item links of RSS/Atom/RDF documents. Content that is
// not a parseable feed is handed to the HTML extractor.
type FeedExtractor struct {
	html   *HTMLExtractor
	logger *slog.Logger
}

// HTMLExtractor reads anchors of an HTML page, with the raw-text fallback.
type HTMLExtractor struct {
	logger *slog.Logger
}

var (
	_ scanner.Extractor = (*AutoExtractor)(nil)
	_ scanner.Extractor = (*FeedExtractor)(nil)
	_ scanner.Extractor = (*HTMLExtractor)(nil)
)

// NewRegistry registers the three fetch strategies.
func NewRegistry(logger *slog.Logger) *scanner.Registry {
	logger = logging.OrDiscard(logger)
	html := &HTMLExtractor{logger: logger}
	feed := &FeedExtractor{html: html, logger: logger}

	reg := scanner.NewRegistry()
	reg.Register(domain.FetchAuto, &AutoExtractor{feed: feed, html: html})
	reg.Register(domain.FetchHTML, html)
	reg.Register(domain.FetchFeed, feed)
	return reg
}

// Name identifies the strategy inside the registry.
func (a *AutoExtractor) Name() string { return string(domain.FetchAuto) }

// Extract detects feeds by their leading markers.
func (a *AutoExtractor) Extract(page scanner.Page) []string {
	if IsFeed(page.Body) {
		return a.feed.Extract(page)
	}
	return a.html.Extract(page)
}

// Name identifies the strategy inside the registry.
func (f *FeedExtractor) Name() string { return string(domain.FetchFeed) }

// Extract returns feed item URLs in document order.
func (f *FeedExtractor) Extract(page scanner.Page) []string {
	urls, err := FeedURLs(page.Body, page.URL)
	if err != nil {
		f.logger.Debug("feed parse failed, reading as html", "url", logging.Clip(page.URL, 50), "error", err)
		return f.html.Extract(page)
	}
	f.logger.Debug("feed urls", "url", logging.Clip(page.URL, 50), "count", len(urls))
	return urls
}

// Name identifies the strategy inside the registry.
func (h *HTMLExtractor) Name() string { return string(domain.FetchHTML) }

// Extract returns anchor URLs, or article-shaped URLs from the raw markup.
func (h *HTMLExtractor) Extract(page scanner.Page) []string {
	urls, err := HTMLURLs(page.Body, page.URL)
	if err != nil {
		h.logger.Debug("html parse failed", "url", logging.Clip(page.URL, 50), "error", err)
		return nil
	}
	h.logger.Debug("html urls", "url", logging.Clip(page.URL, 50), "count", len(urls))
	return urls
}
