package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/llmjson"
	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
)

// ErrClassifierResponse marks an LLM answer that cannot be trusted (empty or not JSON).
var ErrClassifierResponse = errors.New("invalid classifier response")

const classifierPrompt = `You filter a list of URLs and keep only those that may point to a **scientific article page** (a paper with title, authors, abstract).

INCLUDE: any URL that looks like an article page (e.g. /content/articlelanding/..., /articles/..., /article/..., /paper/..., /full/..., paths with an identifier or a DOI). When in doubt, include the URL.
EXCLUDE only: cookies, privacy policy, login (manuscriptcentral, account, logon), "publish a book", "open access" information pages, "book authors", FAQ, general menus, search pages (search?q=). Exclude URLs that are clearly listings (e.g. /journals?, /en/journals without an identifier).

Copy the URLs exactly as they appear in the list. Answer only with a JSON array: ["https://...", ...]`

// LLMClassifier keeps the candidates that look like article landing pages.
// Obvious article URLs bypass the model.
type LLMClassifier struct {
	completer ports.Completer
	logger    *slog.Logger
}

// NewLLMClassifier wires the completion capability.
func NewLLMClassifier(completer ports.Completer, logger *slog.Logger) *LLMClassifier {
	return &LLMClassifier{completer: completer, logger: logging.OrDiscard(logger)}
}

// Classify returns the kept candidates in input order. A failed or unparseable model
// call is an error; a valid answer selecting nothing is not.
func (c *LLMClassifier) Classify(ctx context.Context, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var ask []string
	obvious := 0
	for _, cand := range candidates {
		if IsObviousArticle(cand.URL) {
			obvious++
			continue
		}
		ask = append(ask, cand.URL)
	}
	if obvious > 0 {
		c.logger.Debug("heuristic keep", "count", obvious)
	}
	if len(ask) == 0 {
		return candidates, nil
	}
	if c.completer == nil {
		return nil, fmt.Errorf("classify urls: %w", domain.ErrNoLanguageModel)
	}

	c.logger.Debug("classifier request", "urls", len(ask))
	raw, err := c.completer.Complete(ctx, ports.CompletionRequest{
		Messages: []ports.ChatMessage{
			{Role: domain.RoleSystem, Content: classifierPrompt},
			{Role: domain.RoleUser, Content: "URLs to filter (one per line):\n\n" + strings.Join(ask, "\n")},
		},
		Temperature: 0.2,
		MaxTokens:   4096,
	})
	if err != nil {
		return nil, fmt.Errorf("classify urls: %w", err)
	}

	keep, err := parseKeepList(raw)
	if err != nil {
		c.logger.Warn("classifier response rejected", "raw", logging.Clip(raw, 200), "error", err)
		return nil, err
	}
	if len(keep) == 0 {
		c.logger.Info("classifier kept 0 urls", "raw", logging.Clip(raw, 200))
	}

	// Heuristic keeps first, then model picks in input order.
	out := make([]domain.Candidate, 0, len(candidates))
	var selected []domain.Candidate
	denied := 0
	for _, cand := range candidates {
		if IsObviousArticle(cand.URL) {
			out = append(out, cand)
			continue
		}
		if !keep.contains(cand.URL) {
			continue
		}
		if IsNonArticlePage(cand.URL) {
			denied++
			continue
		}
		selected = append(selected, cand)
	}
	out = append(out, selected...)
	c.logger.Info("classification done", "in", len(candidates), "heuristic", obvious, "out", len(out), "denylisted", denied)
	return out, nil
}

type keepList map[string]struct{}

func (k keepList) contains(rawURL string) bool {
	if _, ok := k[rawURL]; ok {
		return true
	}
	_, ok := k[stripQuery(rawURL)]
	return ok
}

// parseKeepList decodes the model answer. The answer must be valid JSON; a JSON value
// that is not an array selects nothing, and non-URL entries are ignored.
func parseKeepList(raw string) (keepList, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty answer", ErrClassifierResponse)
	}
	var decoded any
	if err := llmjson.Decode(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierResponse, err)
	}

	keep := keepList{}
	items, ok := decoded.([]any)
	if !ok {
		return keep, nil
	}
	for _, item := range items {
		s, ok := item.(string)
		if !ok || !strings.HasPrefix(s, "http") {
			continue
		}
		keep[s] = struct{}{}
		keep[stripQuery(s)] = struct{}{}
	}
	return keep, nil
}
