// Package storage persists discovery runs, items, the corpus read side, retrieval
// settings and conversations in Postgres with the pgvector extension.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"ArticleWatch/internal/config"
	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
)

//go:embed schema.sql
var schemaTemplate string

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PostgresRepository implements every storage port on a *sql.DB.
type PostgresRepository struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	logger *slog.Logger
}

var (
	_ ports.SourceRegistry    = (*PostgresRepository)(nil)
	_ ports.SourceAdmin       = (*PostgresRepository)(nil)
	_ ports.RunRepository     = (*PostgresRepository)(nil)
	_ ports.ItemRepository    = (*PostgresRepository)(nil)
	_ ports.Corpus            = (*PostgresRepository)(nil)
	_ ports.SettingsStore     = (*PostgresRepository)(nil)
	_ ports.ConversationStore = (*PostgresRepository)(nil)
)

// Open connects to Postgres and checks the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("database dsn is empty")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logging.OrDiscard(logger),
	}
}

// Schema renders the embedded schema for the given embedding dimension.
func Schema(dimension int) string {
	return strings.ReplaceAll(schemaTemplate, "{{dimension}}", strconv.Itoa(dimension))
}

// Migrate creates missing tables and indexes. It is safe to run repeatedly.
func (r *PostgresRepository) Migrate(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	if _, err := r.db.ExecContext(ctx, Schema(dimension)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	r.logger.Info("schema applied", "dimension", dimension)
	return nil
}

// ListSources returns sources in creation order.
func (r *PostgresRepository) ListSources(ctx context.Context) ([]domain.Source, error) {
	query, args, err := r.sb.
		Select("id", "url", "name", "fetch_strategy", "created_at", "last_checked_at").
		From("sources").
		OrderBy("created_at", "url").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sources: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	return collect(rows, func(rows *sql.Rows) (domain.Source, error) {
		var (
			src      domain.Source
			strategy string
			checked  sql.NullTime
		)
		if err := rows.Scan(&src.ID, &src.URL, &src.Name, &strategy, &src.CreatedAt, &checked); err != nil {
			return src, err
		}
		src.FetchStrategy = domain.FetchStrategy(strategy)
		src.LastCheckedAt = timePtr(checked)
		return src, nil
	})
}

// TouchSources stamps last_checked_at on the given sources.
func (r *PostgresRepository) TouchSources(ctx context.Context, ids []string, checkedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := r.sb.
		Update("sources").
		Set("last_checked_at", checkedAt).
		Where(sq.Expr("id = ANY(?::uuid[])", pq.StringArray(ids))).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch sources: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touch sources: %w", err)
	}
	return nil
}

// CreateSource registers a source. A duplicate URL yields domain.ErrConflict.
func (r *PostgresRepository) CreateSource(ctx context.Context, src domain.Source) (domain.Source, error) {
	src.ID = uuid.NewString()
	src.LastCheckedAt = nil
	query, args, err := r.sb.
		Insert("sources").
		Columns("id", "url", "name", "fetch_strategy").
		Values(src.ID, src.URL, src.Name, string(src.FetchStrategy)).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return domain.Source{}, fmt.Errorf("build insert source: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&src.CreatedAt); err != nil {
		if pqCode(err) == uniqueViolation {
			return domain.Source{}, fmt.Errorf("source %s: %w", src.URL, domain.ErrConflict)
		}
		return domain.Source{}, fmt.Errorf("insert source: %w", err)
	}
	return src, nil
}

// DeleteSource removes a source; its items keep a NULL source reference.
func (r *PostgresRepository) DeleteSource(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	query, args, err := r.sb.Delete("sources").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete source: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CreateRun inserts a pending run.
func (r *PostgresRepository) CreateRun(ctx context.Context) (domain.Run, error) {
	run := domain.Run{ID: uuid.NewString(), Status: domain.RunPending}
	query, args, err := r.sb.
		Insert("discovery_runs").
		Columns("id", "status").
		Values(run.ID, string(run.Status)).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return domain.Run{}, fmt.Errorf("build insert run: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&run.CreatedAt); err != nil {
		return domain.Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// MarkRunning moves a pending run to running.
func (r *PostgresRepository) MarkRunning(ctx context.Context, id string, at time.Time) error {
	return r.transition(ctx, id, domain.RunRunning, map[string]any{"started_at": at})
}

// MarkCompleted closes a run successfully.
func (r *PostgresRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	return r.transition(ctx, id, domain.RunCompleted, map[string]any{"completed_at": at})
}

// MarkFailed closes a run with an error message.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, at time.Time, message string) error {
	return r.transition(ctx, id, domain.RunFailed, map[string]any{"completed_at": at, "error_message": message})
}

// transition updates the run only from a status allowed by the state machine,
// so concurrent writers cannot move a run backwards.
func (r *PostgresRepository) transition(ctx context.Context, id string, next domain.RunStatus, fields map[string]any) error {
	if !validID(id) {
		return fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	query, args, err := r.sb.
		Update("discovery_runs").
		Set("status", string(next)).
		SetMap(fields).
		Where(sq.Eq{"id": id, "status": allowedFrom(next)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run transition: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	current, err := r.GetRun(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("run %s %s -> %s: %w", id, current.Status, next, domain.ErrInvalidTransition)
}

func allowedFrom(next domain.RunStatus) []string {
	var from []string
	for _, s := range []domain.RunStatus{domain.RunPending, domain.RunRunning, domain.RunCompleted, domain.RunFailed} {
		if s.CanTransition(next) {
			from = append(from, string(s))
		}
	}
	return from
}

func (r *PostgresRepository) runsQuery() sq.SelectBuilder {
	return r.sb.
		Select("r.id", "r.status", "r.started_at", "r.completed_at", "r.error_message", "r.created_at",
			"(SELECT count(*) FROM discovery_items i WHERE i.run_id = r.id) AS items_count").
		From("discovery_runs r")
}

// GetRun returns one run with its item count.
func (r *PostgresRepository) GetRun(ctx context.Context, id string) (domain.Run, error) {
	if !validID(id) {
		return domain.Run{}, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	query, args, err := r.runsQuery().Where(sq.Eq{"r.id": id}).ToSql()
	if err != nil {
		return domain.Run{}, fmt.Errorf("build get run: %w", err)
	}
	run, err := scanRun(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Run{}, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the newest runs first with their item counts.
func (r *PostgresRepository) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	query, args, err := r.runsQuery().OrderBy("r.created_at DESC").Limit(uint64(max(limit, 0))).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list runs: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return collect(rows, func(rows *sql.Rows) (domain.Run, error) { return scanRun(rows) })
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.Run, error) {
	var (
		run       domain.Run
		status    string
		started   sql.NullTime
		completed sql.NullTime
	)
	if err := row.Scan(&run.ID, &status, &started, &completed, &run.ErrorMessage, &run.CreatedAt, &run.ItemsCount); err != nil {
		return domain.Run{}, err
	}
	run.Status = domain.RunStatus(status)
	run.StartedAt = timePtr(started)
	run.CompletedAt = timePtr(completed)
	return run, nil
}

// collect scans every row and closes rows, reporting iteration and close errors.
func collect[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, v)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return out, nil
}

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
