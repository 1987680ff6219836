package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"ArticleWatch/internal/domain"
)

const existingDOIsQuery = `SELECT lower(doi) FROM discovery_items WHERE doi <> ''
UNION
SELECT lower(doi) FROM documents WHERE coalesce(doi, '') <> ''`

// ExistingURLs returns every item URL ever stored.
func (r *PostgresRepository) ExistingURLs(ctx context.Context) (map[string]struct{}, error) {
	query, args, err := r.sb.Select("url").From("discovery_items").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build existing urls: %w", err)
	}
	return r.stringSet(ctx, query, args...)
}

// ExistingDOIs returns the lower-cased DOIs of items and corpus documents.
func (r *PostgresRepository) ExistingDOIs(ctx context.Context) (map[string]struct{}, error) {
	return r.stringSet(ctx, existingDOIsQuery)
}

func (r *PostgresRepository) stringSet(ctx context.Context, query string, args ...any) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing values: %w", err)
	}
	values, err := collect(rows, func(rows *sql.Rows) (string, error) {
		var v string
		err := rows.Scan(&v)
		return v, err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out, nil
}

// InsertItem stores one item. A duplicate URL yields domain.ErrConflict.
func (r *PostgresRepository) InsertItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	item.ID = uuid.NewString()
	var sourceID any
	if item.SourceID != "" {
		sourceID = item.SourceID
	}
	query, args, err := r.sb.
		Insert("discovery_items").
		Columns("id", "run_id", "source_id", "url", "title", "authors", "doi", "abstract",
			"published_at", "heuristic_score", "similarity_score", "last_error").
		Values(item.ID, item.RunID, sourceID, item.URL, item.Title, pq.StringArray(nonNil(item.Authors)), item.DOI,
			item.Abstract, item.PublishedAt, item.HeuristicScore, item.SimilarityScore, item.LastError).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return domain.Item{}, fmt.Errorf("build insert item: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&item.CreatedAt); err != nil {
		if pqCode(err) == uniqueViolation {
			return domain.Item{}, fmt.Errorf("item %s: %w", item.URL, domain.ErrConflict)
		}
		return domain.Item{}, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) itemsQuery(filter domain.ItemFilter) sq.SelectBuilder {
	q := r.sb.
		Select("i.id", "i.run_id", "coalesce(i.source_id::text, '')", "i.url", "i.title", "i.authors", "i.doi",
			"i.abstract", "i.published_at", "i.heuristic_score", "i.similarity_score", "i.last_error",
			"i.created_at", "coalesce(s.name, '')", "coalesce(d.id::text, '')").
		From("discovery_items i").
		LeftJoin("sources s ON s.id = i.source_id").
		LeftJoin("LATERAL (SELECT id FROM documents WHERE i.doi <> '' AND lower(documents.doi) = lower(i.doi) LIMIT 1) d ON true").
		OrderBy("i.similarity_score DESC", "i.created_at DESC")
	if filter.RunID != "" {
		q = q.Where(sq.Expr("i.run_id::text = ?", filter.RunID))
	}
	if filter.SourceID != "" {
		q = q.Where(sq.Expr("i.source_id::text = ?", filter.SourceID))
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

// ListItems orders by similarity then recency, and joins source names and
// ingested documents sharing the item DOI.
func (r *PostgresRepository) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.ItemView, error) {
	query, args, err := r.itemsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list items: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	return collect(rows, func(rows *sql.Rows) (domain.ItemView, error) {
		var (
			view    domain.ItemView
			authors pq.StringArray
		)
		err := rows.Scan(&view.ID, &view.RunID, &view.SourceID, &view.URL, &view.Title, &authors, &view.DOI,
			&view.Abstract, &view.PublishedAt, &view.HeuristicScore, &view.SimilarityScore, &view.LastError,
			&view.CreatedAt, &view.SourceName, &view.DocumentID)
		if err != nil {
			return view, err
		}
		view.Authors = []string(authors)
		view.FinalScore = view.Item.FinalScore()
		return view, nil
	})
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
