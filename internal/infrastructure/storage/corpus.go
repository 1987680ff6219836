package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"

	"ArticleWatch/internal/domain"
)

// corpusColumns names the per-language columns of the chunks table.
type corpusColumns struct {
	embedding string
	content   string
	tsv       string
	regconfig string
}

func columnsFor(lang domain.Language) corpusColumns {
	if lang == domain.LangFrench {
		return corpusColumns{
			embedding: "c.embedding_fr",
			content:   "coalesce(c.content_fr, c.content)",
			tsv:       "c.tsv_fr",
			regconfig: "french",
		}
	}
	return corpusColumns{
		embedding: "c.embedding",
		content:   "c.content",
		tsv:       "c.tsv_en",
		regconfig: "english",
	}
}

func (r *PostgresRepository) chunkSelect(cols corpusColumns) sq.SelectBuilder {
	return r.sb.
		Select("c.id", "c.document_id", cols.content, "c.position", "coalesce(c.page, 0)",
			"coalesce(c.section_title, '')", "coalesce(d.title, '')", "coalesce(d.doi, '')", "d.storage_path").
		From("chunks c").
		Join("documents d ON d.id = c.document_id")
}

func (r *PostgresRepository) nearestQuery(embedding []float32, threshold float64, count int, lang domain.Language) sq.SelectBuilder {
	cols := columnsFor(lang)
	vec := pgvector.NewVector(embedding)
	distance := cols.embedding + " <=> ?"
	return r.chunkSelect(cols).
		Column(sq.Expr("1 - ("+distance+") AS similarity", vec)).
		Where(cols.embedding + " IS NOT NULL").
		Where(sq.Expr("1 - ("+distance+") > ?", vec, threshold)).
		OrderByClause(distance, vec).
		Limit(uint64(max(count, 0)))
}

// NearestNeighbors ranks chunks by cosine similarity above threshold using the
// language's embedding column.
func (r *PostgresRepository) NearestNeighbors(ctx context.Context, embedding []float32, threshold float64, count int, lang domain.Language) ([]domain.ChunkMatch, error) {
	query, args, err := r.nearestQuery(embedding, threshold, count, lang).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build nearest neighbors: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nearest neighbors: %w", err)
	}
	return collect(rows, func(rows *sql.Rows) (domain.ChunkMatch, error) {
		return scanChunk(rows, func(m *domain.ChunkMatch) any { return &m.Similarity })
	})
}

func (r *PostgresRepository) lexicalQuery(text string, limit int, lang domain.Language) sq.SelectBuilder {
	cols := columnsFor(lang)
	tsquery := "websearch_to_tsquery('" + cols.regconfig + "', ?)"
	return r.chunkSelect(cols).
		Column(sq.Expr("ts_rank("+cols.tsv+", "+tsquery+") AS rank", text)).
		Where(sq.Expr(cols.tsv+" @@ "+tsquery, text)).
		OrderBy("rank DESC").
		Limit(uint64(max(limit, 0)))
}

// LexicalSearch ranks chunks by full-text relevance in the language's tsvector.
func (r *PostgresRepository) LexicalSearch(ctx context.Context, text string, limit int, lang domain.Language) ([]domain.ChunkMatch, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	query, args, err := r.lexicalQuery(text, limit, lang).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lexical search: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lexical search: %w", err)
	}
	return collect(rows, func(rows *sql.Rows) (domain.ChunkMatch, error) {
		return scanChunk(rows, func(m *domain.ChunkMatch) any { return &m.Rank })
	})
}

func scanChunk(rows *sql.Rows, score func(*domain.ChunkMatch) any) (domain.ChunkMatch, error) {
	var m domain.ChunkMatch
	err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.Content, &m.Position, &m.Page,
		&m.SectionTitle, &m.DocTitle, &m.DocDOI, &m.DocStoragePath, score(&m))
	return m, err
}
