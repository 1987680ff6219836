package ports

import (
	"context"
	"time"

	"ArticleWatch/internal/domain"
)

// SourceRegistry exposes configured sources to the discovery pipeline.
type SourceRegistry interface {
	ListSources(ctx context.Context) ([]domain.Source, error)
	TouchSources(ctx context.Context, ids []string, checkedAt time.Time) error
}

// SourceAdmin manages the registry itself (CLI surface).
type SourceAdmin interface {
	CreateSource(ctx context.Context, src domain.Source) (domain.Source, error)
	DeleteSource(ctx context.Context, id string) error
}

// RunRepository persists the discovery run state machine.
type RunRepository interface {
	CreateRun(ctx context.Context) (domain.Run, error)
	MarkRunning(ctx context.Context, id string, at time.Time) error
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, at time.Time, message string) error
	GetRun(ctx context.Context, id string) (domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
}

// ItemRepository stores discovery items and answers dedup lookups.
type ItemRepository interface {
	ExistingURLs(ctx context.Context) (map[string]struct{}, error)
	ExistingDOIs(ctx context.Context) (map[string]struct{}, error)
	InsertItem(ctx context.Context, item domain.Item) (domain.Item, error)
	ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.ItemView, error)
}

// Corpus is the read side of ingested documents and chunks.
type Corpus interface {
	NearestNeighbors(ctx context.Context, embedding []float32, threshold float64, count int, lang domain.Language) ([]domain.ChunkMatch, error)
	LexicalSearch(ctx context.Context, text string, limit int, lang domain.Language) ([]domain.ChunkMatch, error)
}

// SettingsStore keeps raw key/value retrieval settings. SaveSettings must be all-or-nothing.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (map[string]string, error)
	SaveSettings(ctx context.Context, values map[string]string) error
}

// ConversationStore persists chat conversations and their messages.
type ConversationStore interface {
	GetOrCreateConversation(ctx context.Context, id, title string) (string, error)
	InsertMessage(ctx context.Context, msg domain.Message) (domain.Message, error)
	// LastMessages returns up to limit messages, most recent first.
	LastMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	DeleteConversationsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// CandidateSource fetches source pages and extracts candidate URLs from them.
type CandidateSource interface {
	Collect(ctx context.Context, sources []domain.Source) []domain.Candidate
}

// PageFetcher retrieves the raw body of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChatMessage is one entry of a completion prompt.
type ChatMessage struct {
	Role    domain.Role
	Content string
}

// CompletionRequest describes a chat completion call.
type CompletionRequest struct {
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

// Completer is the language model capability.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Stream calls onDelta for every text fragment; an error from onDelta stops the stream.
	Stream(ctx context.Context, req CompletionRequest, onDelta func(string) error) error
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when periodic jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
