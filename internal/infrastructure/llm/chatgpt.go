package llm

import (
	"bufio"
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
	defaultTimeout = 60 * time.Second
	maxRetries     = 3
	maxErrorBody   = 1024
	maxStreamLine  = 1 << 20
)

// ErrEmptyCompletion is returned when the API answers without any content.
var ErrEmptyCompletion = errors.New("completion returned no content")

// APIError is a non-2xx answer from the completions endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat completion error %d: %s", e.Status, e.Body)
}

// Retryable reports whether the call may succeed when repeated.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// ChatGPTClient implements ports.Completer against OpenAI-compatible chat completions APIs.
// The HTTP client is built on first use and reused afterwards.
type ChatGPTClient struct {
	cfg        config.LLMConfig
	logger     *slog.Logger
	newBackOff func() backoff.BackOff

	once    sync.Once
	http    *http.Client
	initErr error
}

var _ ports.Completer = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.LLMConfig, logger *slog.Logger) *ChatGPTClient {
	return &ChatGPTClient{
		cfg:    cfg,
		logger: logging.OrDiscard(logger),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			return b
		},
	}
}

func (c *ChatGPTClient) init() error {
	c.once.Do(func() {
		if c.cfg.APIKey == "" || c.cfg.Endpoint == "" || c.cfg.Model == "" {
			c.initErr = errors.New("chatgpt client misconfigured: endpoint, model and api key are required")
			return
		}
		timeout := c.cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
		c.logger.Debug("chat client ready", "model", c.cfg.Model)
	})
	return c.initErr
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete sends one chat completion. Rate limits and server errors are retried.
func (c *ChatGPTClient) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if err := c.init(); err != nil {
		return "", err
	}
	body, err := c.payload(req, false)
	if err != nil {
		return "", err
	}

	var content string
	operation := func() error {
		resp, err := c.do(ctx, body, "application/json")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var decoded wireResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("decode completion: %w", err))
		}
		if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
			return backoff.Permanent(ErrEmptyCompletion)
		}
		content = decoded.Choices[0].Message.Content
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("chat completion retry", "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return "", err
	}
	return content, nil
}

// Stream sends a streaming chat completion and forwards every text delta.
// Content already forwarded stays valid when an error is returned.
func (c *ChatGPTClient) Stream(ctx context.Context, req ports.CompletionRequest, onDelta func(string) error) error {
	if err := c.init(); err != nil {
		return err
	}
	body, err := c.payload(req, true)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, body, "text/event-stream")
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil
		}
		var chunk wireResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.Debug("skipping malformed stream chunk", "chunk", logging.Clip(data, 80))
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if err := onDelta(chunk.Choices[0].Delta.Content); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read completion stream: %w", err)
	}
	return nil
}

func (c *ChatGPTClient) payload(req ports.CompletionRequest, stream bool) ([]byte, error) {
	messages := make([]wireMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, wireMessage{Role: string(m.Role), Content: m.Content})
	}
	body, err := json.Marshal(wireRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chatgpt payload: %w", err)
	}
	return body, nil
}

// do posts body and returns a 2xx response. Non-retryable failures are wrapped
// as backoff.Permanent.
func (c *ChatGPTClient) do(ctx context.Context, body []byte, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(fmt.Errorf("send completion: %w", err))
		}
		return nil, fmt.Errorf("send completion: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		apiErr := &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
		if apiErr.Retryable() {
			return nil, apiErr
		}
		return nil, backoff.Permanent(apiErr)
	}
	return resp, nil
}
