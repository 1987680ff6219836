package storage

import (
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticleWatch/internal/domain"
)

func TestSchemaRendersDimension(t *testing.T) {
	t.Parallel()

	schema := Schema(1536)
	assert.Contains(t, schema, "embedding     vector(1536)")
	assert.Contains(t, schema, "embedding_fr  vector(1536)")
	assert.NotContains(t, schema, "{{dimension}}")
	for _, table := range []string{"documents", "chunks", "sources", "discovery_runs", "discovery_items", "rag_settings", "conversations", "messages"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}

func TestNearestQueryUsesLanguageColumn(t *testing.T) {
	t.Parallel()

	r := NewPostgresRepository(nil, nil)
	query, args, err := r.nearestQuery([]float32{0.1, 0.2}, 0.3, 20, domain.LangFrench).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "coalesce(c.content_fr, c.content)")
	assert.Contains(t, query, "1 - (c.embedding_fr <=> $1) AS similarity")
	assert.Contains(t, query, "WHERE c.embedding_fr IS NOT NULL AND 1 - (c.embedding_fr <=> $2) > $3")
	assert.Contains(t, query, "ORDER BY c.embedding_fr <=> $4 LIMIT 20")
	require.Len(t, args, 4)
	assert.Equal(t, pgvector.NewVector([]float32{0.1, 0.2}), args[0])
	assert.Equal(t, 0.3, args[2])
}

func TestLexicalQueryUsesWebSearch(t *testing.T) {
	t.Parallel()

	r := NewPostgresRepository(nil, nil)
	query, args, err := r.lexicalQuery("lithium cathode", 40, domain.LangEnglish).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "ts_rank(c.tsv_en, websearch_to_tsquery('english', $1)) AS rank")
	assert.Contains(t, query, "WHERE c.tsv_en @@ websearch_to_tsquery('english', $2)")
	assert.True(t, strings.HasSuffix(query, "ORDER BY rank DESC LIMIT 40"))
	assert.Equal(t, []any{"lithium cathode", "lithium cathode"}, args)
}

func TestItemsQueryFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	r := NewPostgresRepository(nil, nil)
	query, args, err := r.itemsQuery(domain.ItemFilter{RunID: "run-1", Limit: 10, Offset: 20}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "LEFT JOIN sources s ON s.id = i.source_id")
	assert.Contains(t, query, "lower(documents.doi) = lower(i.doi)")
	assert.Contains(t, query, "WHERE i.run_id::text = $1")
	assert.Contains(t, query, "ORDER BY i.similarity_score DESC, i.created_at DESC LIMIT 10 OFFSET 20")
	assert.Equal(t, []any{"run-1"}, args)
}

func TestLastMessagesQueryBreaksTimestampTies(t *testing.T) {
	t.Parallel()

	r := NewPostgresRepository(nil, nil)
	query, args, err := r.lastMessagesQuery("c-1", 5).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(query, "WHERE conversation_id = $1 ORDER BY created_at DESC, seq DESC LIMIT 5"))
	assert.Equal(t, []any{"c-1"}, args)
	assert.Contains(t, Schema(8), "seq             bigserial")
	assert.Contains(t, Schema(8), "ADD COLUMN IF NOT EXISTS seq bigserial")
}

func TestAllowedFromFollowsStateMachine(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"pending"}, allowedFrom(domain.RunRunning))
	assert.Equal(t, []string{"pending", "running"}, allowedFrom(domain.RunCompleted))
	assert.Equal(t, []string{"pending", "running"}, allowedFrom(domain.RunFailed))
	assert.Empty(t, allowedFrom(domain.RunPending))
}

func TestPQCodeAndIDs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, pq.ErrorCode(uniqueViolation), pqCode(&pq.Error{Code: uniqueViolation}))
	assert.Empty(t, pqCode(assert.AnError))
	assert.True(t, validID("6f1c1c1e-8f5c-4f0e-9d8a-0c3b0d1e2f3a"))
	assert.False(t, validID("run-1"))
	assert.Equal(t, "New conversation", conversationTitle("  "))
	assert.Len(t, []rune(conversationTitle(strings.Repeat("é", 300))), maxConversationTitle)
}
