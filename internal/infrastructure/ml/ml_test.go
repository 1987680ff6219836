package ml

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticleWatch/internal/config"
)

func newTestClient(endpoint string, dimension int) *Client {
	c := NewClient(config.EmbeddingConfig{Endpoint: endpoint, Model: "mini", APIKey: "key", Dimension: dimension}, nil)
	c.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return c
}

func TestClientOpenAIShape(t *testing.T) {
	t.Parallel()

	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	v, err := newTestClient(server.URL, 3).Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
	assert.Equal(t, "mini", payload["model"])
	assert.Equal(t, "hello", payload["input"])
}

func TestClientOllamaShape(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[1,2]}`))
	}))
	defer server.Close()

	v, err := newTestClient(server.URL, 0).Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)
}

func TestClientRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1]}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 1).Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	badRequest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer badRequest.Close()

	_, err := newTestClient(badRequest.URL, 0).Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "bad model")
	assert.Equal(t, int32(1), calls.Load())

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer empty.Close()

	_, err = newTestClient(empty.URL, 0).Embed(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrNoEmbedding))

	wrongDim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,2]}]}`))
	}))
	defer wrongDim.Close()

	_, err = newTestClient(wrongDim.URL, 384).Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "expected embedding dim 384, got 2")
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashingEmbedder(t *testing.T) {
	t.Parallel()

	h := NewHashingEmbedder(0)
	ctx := context.Background()

	a, err := h.Embed(ctx, "Ion transport in layered oxides")
	require.NoError(t, err)
	require.Len(t, a, defaultHashingDimension)

	same, _ := h.Embed(ctx, "ion TRANSPORT, in layered oxides!")
	related, _ := h.Embed(ctx, "transport of ions in oxides")
	unrelated, _ := h.Embed(ctx, "bird migration patterns")
	empty, _ := h.Embed(ctx, "  ")

	assert.InDelta(t, 1, cosine(a, same), 1e-6)
	assert.Greater(t, cosine(a, related), cosine(a, unrelated))
	assert.Zero(t, cosine(a, empty))
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"l", "oxyde", "de", "zinc", "zno2"}, Tokenize("L'oxyde de zinc (ZnO2)"))
}
