package article

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/llmjson"
	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
)

const (
	defaultMaxTextForLLM = 12000
	minTextForLLM        = 100

	maxDOILen        = 200
	maxAbstractLen   = 5000
	maxAuthors       = 30
	maxBylineAuthors = 20
	maxFallbackDesc  = 2000
	maxFallbackDate  = 50
)

const extractPrompt = `You extract the metadata of a scientific article from the text provided.
Return only a JSON object with exactly these fields (use null when absent or unknown):
- "title": string (article title)
- "authors": array of strings (author names)
- "doi": string (article DOI, e.g. 10.1234/xxx)
- "abstract": string (abstract / summary)
- "published_at": string (publication date, ISO or YYYY-MM-DD when possible)

Answer only with this JSON object, without any other text or comment.`

var (
	titleTagExpr    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaDescExpr    = regexp.MustCompile(`(?i)<meta[^>]+name=["']description["'][^>]+content=["']([^"']*)["']`)
	metaDateExpr    = regexp.MustCompile(`(?i)<meta[^>]+name=["'](?:DC\.date|date)["'][^>]+content=["']([^"']*)["']`)
	bylineSplitExpr = regexp.MustCompile(`(?i)[,;]|\s+and\s+`)
)

// Extractor fetches one candidate page and extracts its article metadata.
type Extractor struct {
	fetcher   ports.PageFetcher
	completer ports.Completer
	maxText   int
	logger    *slog.Logger
}

// NewExtractor wires the page fetcher and the optional completion capability.
func NewExtractor(fetcher ports.PageFetcher, completer ports.Completer, maxText int, logger *slog.Logger) *Extractor {
	if maxText <= 0 {
		maxText = defaultMaxTextForLLM
	}
	return &Extractor{
		fetcher:   fetcher,
		completer: completer,
		maxText:   maxText,
		logger:    logging.OrDiscard(logger),
	}
}

type llmArticle struct {
	Title       *string  `json:"title"`
	Authors     []string `json:"authors"`
	DOI         *string  `json:"doi"`
	Abstract    *string  `json:"abstract"`
	PublishedAt *string  `json:"published_at"`
}

// Extract never fails: fetch problems are reported in LastError and every
// metadata field may be empty.
func (e *Extractor) Extract(ctx context.Context, rawURL string) domain.ArticleMetadata {
	html, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		e.logger.Info("article fetch failed", "url", logging.Clip(rawURL, 50), "error", err)
		return domain.ArticleMetadata{LastError: err.Error()}
	}

	var meta domain.ArticleMetadata
	if cleaned, ok := Clean(html); ok {
		if fromLLM, ok := e.extractWithLLM(ctx, cleaned, rawURL); ok {
			meta = fromLLM
		}
		if meta.Title == "" {
			meta.Title = truncate(cleaned.Title, maxTitleLen)
		}
		if meta.Abstract == "" {
			meta.Abstract = cleaned.Excerpt
		}
		if meta.PublishedAt == "" {
			meta.PublishedAt = cleaned.PublishedTime
		}
		if len(meta.Authors) == 0 {
			meta.Authors = authorsFromByline(cleaned.Byline)
		}
		if meta.DOI == "" {
			meta.DOI = cleaned.DOI
		}
	}

	if meta.Title == "" {
		if m := titleTagExpr.FindStringSubmatch(html); m != nil {
			meta.Title = truncate(collapse(m[1]), maxTitleLen)
		}
	}
	if meta.Abstract == "" {
		if m := metaDescExpr.FindStringSubmatch(html); m != nil {
			meta.Abstract = truncate(m[1], maxFallbackDesc)
		}
	}
	if meta.PublishedAt == "" {
		if m := metaDateExpr.FindStringSubmatch(html); m != nil {
			meta.PublishedAt = truncate(m[1], maxFallbackDate)
		}
	}

	e.logger.Debug("article extracted",
		"url", logging.Clip(rawURL, 50),
		"title", logging.Clip(meta.Title, 40),
		"authors", len(meta.Authors),
		"has_doi", meta.DOI != "",
		"has_abstract", meta.Abstract != "",
		"has_published_at", meta.PublishedAt != "",
	)
	return meta
}

func (e *Extractor) extractWithLLM(ctx context.Context, cleaned Cleaned, rawURL string) (domain.ArticleMetadata, bool) {
	if e.completer == nil {
		return domain.ArticleMetadata{}, false
	}
	text := truncate(cleaned.Text, e.maxText)
	if len(text) < minTextForLLM {
		e.logger.Debug("llm extraction skipped, text too short", "url", logging.Clip(rawURL, 50))
		return domain.ArticleMetadata{}, false
	}

	title := cleaned.Title
	if title == "" {
		title = "-"
	}
	raw, err := e.completer.Complete(ctx, ports.CompletionRequest{
		Messages: []ports.ChatMessage{
			{Role: domain.RoleSystem, Content: extractPrompt},
			{Role: domain.RoleUser, Content: fmt.Sprintf("Page URL: %s\n\nRaw title (if known): %s\n\nArticle text:\n\n%s", rawURL, title, text)},
		},
		Temperature: 0.2,
		MaxTokens:   1024,
	})
	if err != nil {
		e.logger.Warn("llm extraction failed", "url", logging.Clip(rawURL, 50), "error", err)
		return domain.ArticleMetadata{}, false
	}

	var parsed llmArticle
	if err := llmjson.Decode(raw, &parsed); err != nil {
		e.logger.Warn("llm extraction unparseable", "url", logging.Clip(rawURL, 50), "error", err)
		return domain.ArticleMetadata{}, false
	}

	meta := domain.ArticleMetadata{
		Title:       truncate(deref(parsed.Title), maxTitleLen),
		DOI:         normalizeOrKeepDOI(truncate(deref(parsed.DOI), maxDOILen)),
		Abstract:    truncate(deref(parsed.Abstract), maxAbstractLen),
		PublishedAt: truncate(deref(parsed.PublishedAt), maxDateLen),
	}
	for _, a := range parsed.Authors {
		if a = strings.TrimSpace(a); a != "" {
			meta.Authors = append(meta.Authors, a)
		}
		if len(meta.Authors) == maxAuthors {
			break
		}
	}
	return meta, true
}

func authorsFromByline(byline string) []string {
	if strings.TrimSpace(byline) == "" {
		return nil
	}
	var out []string
	for _, part := range bylineSplitExpr.Split(byline, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
		if len(out) == maxBylineAuthors {
			break
		}
	}
	return out
}

// normalizeOrKeepDOI strips doi: and resolver prefixes but keeps unusual values as given.
func normalizeOrKeepDOI(value string) string {
	if doi := normalizeDOI(value); doi != "" {
		return doi
	}
	return value
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
