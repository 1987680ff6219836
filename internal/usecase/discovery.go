package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/filter"
	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
)

const (
	maxRunErrorLen = 1000

	// terminalWriteTimeout bounds the final status write of a run, which
	// outlives the caller's context.
	terminalWriteTimeout = 10 * time.Second

	defaultItemsLimit = 100
	maxItemsLimit     = 200
	defaultRunsLimit  = 20
	maxRunsLimit      = 100
)

// CandidateFilter reduces raw candidates to the bounded list worth extracting.
type CandidateFilter interface {
	Run(ctx context.Context, candidates []domain.Candidate, existing map[string]struct{}) ([]domain.Candidate, error)
}

// MetadataExtractor fetches one candidate page and extracts its metadata.
type MetadataExtractor interface {
	Extract(ctx context.Context, rawURL string) domain.ArticleMetadata
}

// ItemScorer scores an extracted candidate.
type ItemScorer interface {
	Score(ctx context.Context, rawURL, title, abstract string) domain.Scores
}

// DiscoveryDeps wires all driven adapters into the discovery run orchestrator.
type DiscoveryDeps struct {
	Sources   ports.SourceRegistry
	Runs      ports.RunRepository
	Items     ports.ItemRepository
	Collector ports.CandidateSource
	Filter    CandidateFilter
	Extractor MetadataExtractor
	Scorer    ItemScorer
	Notifier  ports.Notifier
	Logger    *slog.Logger
	Now       func() time.Time
}

// Discovery orchestrates discovery runs. One run at a time is allowed per process.
type Discovery struct {
	sources   ports.SourceRegistry
	runs      ports.RunRepository
	items     ports.ItemRepository
	collector ports.CandidateSource
	filter    CandidateFilter
	extractor MetadataExtractor
	scorer    ItemScorer
	notifier  ports.Notifier
	logger    *slog.Logger
	now       func() time.Time

	inFlight atomic.Bool
	detached sync.WaitGroup
}

// NewDiscovery constructs the orchestration component.
func NewDiscovery(deps DiscoveryDeps) *Discovery {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Discovery{
		sources:   deps.Sources,
		runs:      deps.Runs,
		items:     deps.Items,
		collector: deps.Collector,
		filter:    deps.Filter,
		extractor: deps.Extractor,
		scorer:    deps.Scorer,
		notifier:  deps.Notifier,
		logger:    logging.OrDiscard(deps.Logger),
		now:       now,
	}
}

// Trigger creates a pending run and executes it. With wait the call blocks
// until the run is terminal and returns its final state; otherwise the run
// continues in the background and the pending run is returned at once.
// A trigger while another run is in flight fails with domain.ErrRunInProgress.
func (d *Discovery) Trigger(ctx context.Context, wait bool) (domain.Run, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return domain.Run{}, domain.ErrRunInProgress
	}
	run, err := d.runs.CreateRun(ctx)
	if err != nil {
		d.inFlight.Store(false)
		return domain.Run{}, fmt.Errorf("create run: %w", err)
	}
	d.logger.Info("run created", "run_id", run.ID, "wait", wait)

	if wait {
		defer d.inFlight.Store(false)
		d.execute(ctx, run.ID)
		return d.runs.GetRun(context.WithoutCancel(ctx), run.ID)
	}

	d.detached.Add(1)
	go func() {
		defer d.detached.Done()
		defer d.inFlight.Store(false)
		d.execute(context.WithoutCancel(ctx), run.ID)
	}()
	return run, nil
}

// Wait blocks until every background run has finished.
func (d *Discovery) Wait() {
	d.detached.Wait()
}

// Status returns one run.
func (d *Discovery) Status(ctx context.Context, runID string) (domain.Run, error) {
	return d.runs.GetRun(ctx, runID)
}

// ListRuns returns recent runs, newest first. limit is clamped to [1,100];
// zero selects the default.
func (d *Discovery) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit == 0 {
		limit = defaultRunsLimit
	}
	return d.runs.ListRuns(ctx, clamp(limit, 1, maxRunsLimit))
}

// ListItems pages through items and hides the ones not worth displaying.
// The display filter runs after pagination, so a page may hold fewer rows
// than the limit.
func (d *Discovery) ListItems(ctx context.Context, f domain.ItemFilter) ([]domain.ItemView, error) {
	if f.Limit == 0 {
		f.Limit = defaultItemsLimit
	}
	f.Limit = clamp(f.Limit, 1, maxItemsLimit)
	f.Offset = max(f.Offset, 0)

	items, err := d.items.ListItems(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return filter.VisibleItems(items), nil
}

// execute drives one run to a terminal state. The terminal transition is
// written even when ctx is already cancelled, and a run that cannot be marked
// completed is marked failed instead.
func (d *Discovery) execute(ctx context.Context, runID string) {
	log := d.logger.With("run_id", runID)
	started := time.Now()

	inserted, err := d.guardedProcess(ctx, runID, log)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()

	if err == nil {
		if err = d.runs.MarkCompleted(writeCtx, runID, d.now()); err == nil {
			log.Info("run completed", "items", len(inserted), "duration", time.Since(started).String())
			d.notify(ctx, inserted, log)
			return
		}
		err = fmt.Errorf("mark completed: %w", err)
	}

	message := truncateRunes(err.Error(), maxRunErrorLen)
	if markErr := d.runs.MarkFailed(writeCtx, runID, d.now(), message); markErr != nil {
		log.Error("mark run failed", "error", markErr)
	}
	log.Error("run failed", "error", err, "duration", time.Since(started).String())
}

func (d *Discovery) guardedProcess(ctx context.Context, runID string, log *slog.Logger) (inserted []domain.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("run panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()
	return d.process(ctx, runID, log)
}

func (d *Discovery) process(ctx context.Context, runID string, log *slog.Logger) ([]domain.Item, error) {
	if err := d.runs.MarkRunning(ctx, runID, d.now()); err != nil {
		return nil, fmt.Errorf("mark running: %w", err)
	}

	sources, err := d.sources.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	if len(sources) == 0 {
		log.Info("no sources configured")
		return nil, nil
	}

	existingURLs, err := d.items.ExistingURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing urls: %w", err)
	}
	existingDOIs, err := d.items.ExistingDOIs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing dois: %w", err)
	}

	candidates := d.collector.Collect(ctx, sources)
	selected, err := d.filter.Run(ctx, candidates, existingURLs)
	if err != nil {
		return nil, fmt.Errorf("filter candidates: %w", err)
	}
	log.Info("candidates selected", "sources", len(sources), "raw", len(candidates), "selected", len(selected))

	var inserted []domain.Item
	for _, candidate := range selected {
		if item, ok := d.processCandidate(ctx, runID, candidate, existingURLs, existingDOIs, log); ok {
			inserted = append(inserted, item)
		}
	}

	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		ids = append(ids, src.ID)
	}
	if err := d.sources.TouchSources(ctx, ids, d.now()); err != nil {
		log.Warn("touch sources failed", "error", err)
	}
	return inserted, nil
}

// processCandidate extracts, scores and stores one candidate. Every failure
// here skips the candidate and never fails the run.
func (d *Discovery) processCandidate(ctx context.Context, runID string, c domain.Candidate, urls, dois map[string]struct{}, log *slog.Logger) (domain.Item, bool) {
	if _, seen := urls[c.URL]; seen {
		return domain.Item{}, false
	}
	urlAttr := logging.Clip(c.URL, 80)

	meta := d.extractor.Extract(ctx, c.URL)
	if !meta.Usable() {
		log.Debug("candidate dropped, no title or doi", "url", urlAttr, "last_error", meta.LastError)
		return domain.Item{}, false
	}

	doi := strings.ToLower(strings.TrimSpace(meta.DOI))
	if doi != "" {
		if _, known := dois[doi]; known {
			log.Info("candidate skipped, doi already known", "url", urlAttr, "doi", doi)
			return domain.Item{}, false
		}
	}

	scores := d.scorer.Score(ctx, c.URL, meta.Title, meta.Abstract)
	item, err := d.items.InsertItem(ctx, domain.Item{
		RunID:           runID,
		SourceID:        c.SourceID,
		URL:             c.URL,
		Title:           meta.Title,
		Authors:         meta.Authors,
		DOI:             strings.TrimSpace(meta.DOI),
		Abstract:        meta.Abstract,
		PublishedAt:     meta.PublishedAt,
		HeuristicScore:  scores.Heuristic,
		SimilarityScore: scores.Similarity,
		LastError:       meta.LastError,
	})
	if err != nil {
		log.Warn("item insert failed", "url", urlAttr, "error", err, "conflict", errors.Is(err, domain.ErrConflict))
		return domain.Item{}, false
	}

	urls[c.URL] = struct{}{}
	if doi != "" {
		dois[doi] = struct{}{}
	}
	log.Debug("item stored", "url", urlAttr, "similarity", scores.Similarity)
	return item, true
}

func (d *Discovery) notify(ctx context.Context, items []domain.Item, log *slog.Logger) {
	if d.notifier == nil || len(items) == 0 {
		return
	}
	if err := d.notifier.PublishDigest(ctx, buildDigestMessage(items)); err != nil {
		log.Warn("digest not sent", "error", err)
	}
}

func buildDigestMessage(items []domain.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d new article(s)\n\n", len(items))
	for _, item := range items {
		title := item.Title
		if title == "" {
			title = item.DOI
		}
		fmt.Fprintf(&b, "- %s\nScore: %.2f\n%s\n\n", title, item.FinalScore(), item.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncateRunes(s string, n int) string {
	if runes := []rune(s); len(runes) > n {
		return string(runes[:n])
	}
	return s
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
