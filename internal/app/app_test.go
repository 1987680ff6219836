package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticleWatch/internal/config"
	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/infrastructure/storage/memory"
	"ArticleWatch/internal/retrieval"
)

func testConfig() config.Config {
	return config.Config{
		Database:  config.DatabaseConfig{Driver: "memory"},
		Embedding: config.EmbeddingConfig{Provider: "hashing", Dimension: 64},
		Discovery: config.DiscoveryConfig{
			MaxURLsPerRun:    30,
			MaxURLsPerSource: 10,
			SourceTimeout:    time.Second,
			ArticleTimeout:   time.Second,
			FetchConcurrency: 2,
			MaxTextForLLM:    1000,
		},
		Scheduler: config.SchedulerConfig{Interval: time.Hour},
		Retention: config.RetentionConfig{ConversationDays: 30},
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Database.Driver = "sqlite"
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, `unknown database driver "sqlite"`)
}

func TestMemoryApplicationWithoutLLM(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, err := New(ctx, testConfig(), nil)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Migrate(ctx))

	_, err = a.Sources.Add(ctx, "https://journal.example.org/rss", "Journal", domain.FetchFeed)
	require.NoError(t, err)
	sources, err := a.Sources.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, 1)

	answer, err := a.Chat.Ask(ctx, "what is new in perovskites?", "")
	require.NoError(t, err)
	assert.Equal(t, retrieval.ModeGuarded, answer.Mode)

	settings, err := a.Settings.Update(ctx, map[string]string{"use_similarity_guard": "false"})
	require.NoError(t, err)
	assert.False(t, settings.UseSimilarityGuard)

	_, err = a.Chat.Ask(ctx, "what is new in perovskites?", answer.ConversationID)
	assert.ErrorIs(t, err, domain.ErrNoLanguageModel)
}

func TestServeRunsDiscoveryUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := NewWithStore(testConfig(), memory.New(), nil)

	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	require.Eventually(t, func() bool {
		runs, err := a.Discovery.ListRuns(context.Background(), 10)
		return err == nil && len(runs) == 1 && runs[0].Status == domain.RunCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
