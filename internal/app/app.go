package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"ArticleWatch/internal/article"
	"ArticleWatch/internal/config"
	"ArticleWatch/internal/filter"
	"ArticleWatch/internal/infrastructure/fetcher"
	"ArticleWatch/internal/infrastructure/llm"
	"ArticleWatch/internal/infrastructure/ml"
	"ArticleWatch/internal/infrastructure/parser"
	"ArticleWatch/internal/infrastructure/scheduler"
	"ArticleWatch/internal/infrastructure/storage"
	"ArticleWatch/internal/infrastructure/storage/memory"
	"ArticleWatch/internal/infrastructure/telegram"
	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
	"ArticleWatch/internal/ragsettings"
	"ArticleWatch/internal/retrieval"
	"ArticleWatch/internal/scoring"
	"ArticleWatch/internal/usecase"
)

// Store is everything the use cases need from persistence.
type Store interface {
	ports.SourceRegistry
	ports.SourceAdmin
	ports.RunRepository
	ports.ItemRepository
	ports.Corpus
	ports.SettingsStore
	ports.ConversationStore
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	db     *sql.DB
	repo   *storage.PostgresRepository
	store  Store

	Discovery *usecase.Discovery
	Sources   *usecase.Sources
	Chat      *usecase.Chat
	Settings  *ragsettings.Service
	Retention *usecase.Retention
	scheduler *usecase.Scheduler
}

// New opens the configured store and builds every use case on top of it.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &Application{cfg: cfg, logger: baseLogger}
	switch strings.ToLower(cfg.Database.Driver) {
	case "postgres":
		db, err := storage.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.repo = storage.NewPostgresRepository(db, baseLogger.With("component", "storage"))
		a.store = a.repo
	case "memory", "":
		baseLogger.Warn("using in-memory store, nothing survives a restart")
		a.store = memory.New()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	a.build()
	return a, nil
}

// NewWithStore builds the application over an existing store.
func NewWithStore(cfg config.Config, store Store, baseLogger *slog.Logger) *Application {
	a := &Application{cfg: cfg, logger: logging.OrDiscard(baseLogger), store: store}
	a.build()
	return a
}

func (a *Application) build() {
	cfg, log := a.cfg, a.logger

	var completer ports.Completer
	if cfg.LLM.APIKey != "" {
		completer = llm.NewChatGPTClient(cfg.LLM, log.With("component", "llm"))
	} else {
		log.Warn("no LLM API key, classification and answers are disabled")
	}

	embedder := a.embedder()

	client := &http.Client{}
	sourcePages := fetcher.New(client, cfg.Discovery.SourceTimeout, log.With("component", "fetcher.source"))
	articlePages := fetcher.New(client, cfg.Discovery.ArticleTimeout, log.With("component", "fetcher.article"))

	collector := parser.NewStrategySource(
		parser.NewRegistry(log.With("component", "scanner")),
		sourcePages,
		cfg.Discovery.FetchConcurrency,
		log.With("component", "source"),
	)
	chain := filter.NewChain(
		filter.NewLLMClassifier(completer, log.With("component", "classifier")),
		filter.NewQuotas(cfg.Discovery.MaxURLsPerRun, cfg.Discovery.MaxURLsPerSource),
		log.With("component", "filter"),
	)

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram, log.With("component", "telegram")); tg.Enabled() {
		notifier = tg
	}

	a.Discovery = usecase.NewDiscovery(usecase.DiscoveryDeps{
		Sources:   a.store,
		Runs:      a.store,
		Items:     a.store,
		Collector: collector,
		Filter:    chain,
		Extractor: article.NewExtractor(articlePages, completer, cfg.Discovery.MaxTextForLLM, log.With("component", "article")),
		Scorer:    scoring.New(scoring.BaselineHeuristic, embedder, a.store, log.With("component", "scoring")),
		Notifier:  notifier,
		Logger:    log.With("component", "discovery"),
	})
	a.Sources = usecase.NewSources(a.store, log.With("component", "sources"))
	a.Settings = ragsettings.NewService(a.store, log.With("component", "ragsettings"))
	a.Chat = usecase.NewChat(usecase.ChatDeps{
		Retriever:     retrieval.NewEngine(embedder, a.store, log.With("component", "retrieval")),
		Settings:      a.Settings,
		Conversations: a.store,
		Completer:     completer,
		Logger:        log.With("component", "chat"),
	})
	a.Retention = usecase.NewRetention(a.store, cfg.Retention.ConversationDays, log.With("component", "retention"))

	driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, cfg.Scheduler.Location(), log.With("component", "scheduler"))
	a.scheduler = usecase.NewScheduler(driver, a.Discovery, a.Retention, log.With("component", "scheduler"))
}

func (a *Application) embedder() ports.Embedder {
	if strings.EqualFold(a.cfg.Embedding.Provider, "http") {
		return ml.NewClient(a.cfg.Embedding, a.logger.With("component", "embeddings"))
	}
	return ml.NewHashingEmbedder(a.cfg.Embedding.Dimension)
}

// Migrate creates the database schema. The in-memory store needs none.
func (a *Application) Migrate(ctx context.Context) error {
	if a.repo == nil {
		a.logger.Info("in-memory store, nothing to migrate")
		return nil
	}
	if err := a.repo.Migrate(ctx, a.cfg.Embedding.Dimension); err != nil {
		return err
	}
	a.logger.Info("schema applied", "dimension", a.cfg.Embedding.Dimension)
	return nil
}

// Serve runs periodic discovery and retention until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("serving", "interval", a.cfg.Scheduler.Interval.String())
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Discovery.SourceTimeout*2)
	defer cancel()
	err := a.scheduler.Stop(stopCtx)
	a.Discovery.Wait()
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	a.logger.Info("stopped")
	return nil
}

// Close releases the database pool.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
