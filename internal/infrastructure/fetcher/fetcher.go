package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 8 << 20
)

// Browser-like headers. Some publishers serve a bare JS shell to unknown agents.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9,fr;q=0.8",
	"Cache-Control":   "no-cache",
	"Pragma":          "no-cache",
}

// Kind classifies a fetch failure.
type Kind string

const (
	KindTimeout Kind = "timeout"
	KindStatus  Kind = "status"
	KindNetwork Kind = "network"
)

// Error describes why a page could not be retrieved.
type Error struct {
	Kind   Kind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("HTTP %d", e.Status)
	case KindTimeout:
		return fmt.Sprintf("timeout fetching %s", e.URL)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher is a timeout-bounded HTTP GET with browser headers.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.PageFetcher = (*Fetcher)(nil)

// New builds a fetcher; a nil client gets a default one.
func New(client *http.Client, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{client: client, timeout: timeout, logger: logging.OrDiscard(logger)}
}

// Fetch returns the body of rawURL. Non-2xx responses are errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		fe := classify(rawURL, err)
		f.logger.Debug("fetch error", "url", logging.Clip(rawURL, 60), "kind", fe.Kind, "error", err)
		return "", fe
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		f.logger.Debug("fetch failed", "url", logging.Clip(rawURL, 60), "status", resp.StatusCode)
		return "", &Error{Kind: KindStatus, URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", classify(rawURL, err)
	}
	f.logger.Debug("fetch ok", "url", logging.Clip(rawURL, 60), "bytes", len(body))
	return string(body), nil
}

func classify(rawURL string, err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, URL: rawURL, Err: err}
	}
	return &Error{Kind: KindNetwork, URL: rawURL, Err: err}
}
