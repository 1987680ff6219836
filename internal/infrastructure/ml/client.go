package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ArticleWatch/internal/config"
	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 4
)

// ErrNoEmbedding is returned when the service answers without a vector.
var ErrNoEmbedding = errors.New("no embedding returned")

// Client talks to an OpenAI-compatible embeddings endpoint. Ollama's
// {"embedding": [...]} answer shape is accepted too.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	timeout    time.Duration
	logger     *slog.Logger
	newBackOff func() backoff.BackOff

	once sync.Once
	http *http.Client
}

var _ ports.Embedder = (*Client)(nil)

// NewClient creates an embeddings client. The HTTP client is built on first use.
func NewClient(cfg config.EmbeddingConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		timeout:   timeout,
		logger:    logging.OrDiscard(logger),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

// Embed returns the vector of text. Rate limits, server errors and transport
// failures are retried; a vector of the wrong dimension is an error.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	c.once.Do(func() {
		c.http = &http.Client{Timeout: c.timeout}
	})

	var vector []float32
	operation := func() error {
		v, err := c.post(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("embedding retry", "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	if c.dimension > 0 && len(vector) != c.dimension {
		return nil, fmt.Errorf("expected embedding dim %d, got %d", c.dimension, len(vector))
	}
	return vector, nil
}

func (c *Client) post(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]any{
		"model":  c.model,
		"input":  text,
		"prompt": text,
	})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(fmt.Errorf("do request: %w", err))
		}
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, backoff.Permanent(fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(payload))))
	}

	var decoded struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if len(decoded.Data) > 0 && len(decoded.Data[0].Embedding) > 0 {
		return decoded.Data[0].Embedding, nil
	}
	if len(decoded.Embedding) > 0 {
		return decoded.Embedding, nil
	}
	return nil, backoff.Permanent(ErrNoEmbedding)
}
