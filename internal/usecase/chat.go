package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
	"ArticleWatch/internal/ragsettings"
	"ArticleWatch/internal/retrieval"
)

const (
	answerTemperature = 0.3
	answerMaxTokens   = 1024
	titleRunes        = 50
)

// Retriever runs hybrid retrieval for a query.
type Retriever interface {
	Search(ctx context.Context, query string, lang domain.Language, settings domain.RagSettings) (retrieval.Result, error)
}

// SettingsProvider returns the current retrieval settings.
type SettingsProvider interface {
	Load(ctx context.Context) domain.RagSettings
}

// ChatDeps wires the chat use case.
type ChatDeps struct {
	Retriever     Retriever
	Settings      SettingsProvider
	Conversations ports.ConversationStore
	Completer     ports.Completer
	Logger        *slog.Logger
}

// Answer is the outcome of one chat turn.
type Answer struct {
	ConversationID string
	MessageID      string
	Content        string
	Sources        []domain.Citation
	Mode           retrieval.Mode
}

// Chat answers questions against the corpus and keeps conversation history.
type Chat struct {
	retriever     Retriever
	settings      SettingsProvider
	conversations ports.ConversationStore
	completer     ports.Completer
	logger        *slog.Logger
}

// NewChat constructs the chat use case.
func NewChat(deps ChatDeps) *Chat {
	return &Chat{
		retriever:     deps.Retriever,
		settings:      deps.Settings,
		conversations: deps.Conversations,
		completer:     deps.Completer,
		logger:        logging.OrDiscard(deps.Logger),
	}
}

// turn carries everything prepared before generation.
type turn struct {
	conversationID string
	settings       domain.RagSettings
	mode           retrieval.Mode
	sources        []domain.Citation
	request        ports.CompletionRequest
}

// Ask answers a question in one completion call.
func (c *Chat) Ask(ctx context.Context, query, conversationID string) (Answer, error) {
	t, err := c.prepare(ctx, query, conversationID)
	if err != nil {
		return Answer{}, err
	}
	if t.mode == retrieval.ModeGuarded {
		return c.finish(ctx, t, t.settings.GuardMessage)
	}

	content, err := c.completer.Complete(ctx, t.request)
	if err != nil {
		return Answer{ConversationID: t.conversationID}, fmt.Errorf("generate answer: %w", err)
	}
	return c.finish(ctx, t, content)
}

// AskStream answers a question and forwards text deltas as they are generated.
// The assistant message is stored even when generation fails midway, with
// whatever content was produced.
func (c *Chat) AskStream(ctx context.Context, query, conversationID string, onDelta func(string) error) (Answer, error) {
	t, err := c.prepare(ctx, query, conversationID)
	if err != nil {
		return Answer{}, err
	}
	if t.mode == retrieval.ModeGuarded {
		if err := onDelta(t.settings.GuardMessage); err != nil {
			c.logger.Debug("guard message not delivered", "error", err)
		}
		return c.finish(ctx, t, t.settings.GuardMessage)
	}

	var produced strings.Builder
	streamErr := c.completer.Stream(ctx, t.request, func(delta string) error {
		produced.WriteString(delta)
		return onDelta(delta)
	})

	answer, err := c.finish(context.WithoutCancel(ctx), t, produced.String())
	if streamErr != nil {
		c.logger.Warn("answer stream interrupted", "conversation_id", t.conversationID, "chars", produced.Len(), "error", streamErr)
		return answer, fmt.Errorf("stream answer: %w", streamErr)
	}
	return answer, err
}

func (c *Chat) prepare(ctx context.Context, query, conversationID string) (turn, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return turn{}, domain.ErrEmptyQuery
	}

	settings := c.settings.Load(ctx)
	if strings.TrimSpace(settings.GuardMessage) == "" {
		settings.GuardMessage = ragsettings.DefaultGuardMessage
	}
	lang := retrieval.DetectLanguage(query)

	res, err := c.retriever.Search(ctx, query, lang, settings)
	if err != nil {
		c.logger.Warn("retrieval failed, answering without context", "error", err)
		res = retrieval.Result{}
	}
	mode := retrieval.Decide(res, settings)
	if mode != retrieval.ModeGuarded && c.completer == nil {
		return turn{}, domain.ErrNoLanguageModel
	}

	convID, err := c.conversations.GetOrCreateConversation(ctx, conversationID, conversationTitle(query))
	if err != nil {
		return turn{}, fmt.Errorf("open conversation: %w", err)
	}
	userMsg, err := c.conversations.InsertMessage(ctx, domain.Message{ConversationID: convID, Role: domain.RoleUser, Content: query})
	if err != nil {
		return turn{}, fmt.Errorf("store question: %w", err)
	}

	c.logger.Info("query routed",
		"conversation_id", convID,
		"lang", string(lang),
		"mode", mode.String(),
		"chunks", len(res.Chunks),
		"best_vector", res.BestVectorSimilarity,
		"lexical", res.LexicalUsed,
	)

	t := turn{conversationID: convID, settings: settings, mode: mode, sources: []domain.Citation{}}
	if mode == retrieval.ModeGuarded {
		return t, nil
	}

	history, err := c.history(ctx, convID, userMsg.ID, settings.ContextTurns)
	if err != nil {
		return turn{}, err
	}
	var chunks []domain.ChunkMatch
	if mode == retrieval.ModeGrounded {
		chunks = res.Chunks
		t.sources = retrieval.Citations(chunks)
	}
	t.request = ports.CompletionRequest{
		Messages:    retrieval.BuildMessages(query, chunks, history, lang, mode),
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	}
	return t, nil
}

// history returns up to 2*turns earlier messages in chronological order,
// excluding the question just stored.
func (c *Chat) history(ctx context.Context, conversationID, currentID string, turns int) ([]ports.ChatMessage, error) {
	window := 2 * max(turns, 0)
	if window == 0 {
		return nil, nil
	}
	recent, err := c.conversations.LastMessages(ctx, conversationID, window+1)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	previous := make([]domain.Message, 0, len(recent))
	for _, msg := range recent {
		if msg.ID != currentID {
			previous = append(previous, msg)
		}
	}
	previous = previous[:min(len(previous), window)]

	out := make([]ports.ChatMessage, 0, len(previous))
	for i := len(previous) - 1; i >= 0; i-- {
		out = append(out, ports.ChatMessage{Role: previous[i].Role, Content: previous[i].Content})
	}
	return out, nil
}

func (c *Chat) finish(ctx context.Context, t turn, content string) (Answer, error) {
	msg, err := c.conversations.InsertMessage(ctx, domain.Message{
		ConversationID: t.conversationID,
		Role:           domain.RoleAssistant,
		Content:        content,
		Sources:        t.sources,
	})
	answer := Answer{
		ConversationID: t.conversationID,
		MessageID:      msg.ID,
		Content:        content,
		Sources:        t.sources,
		Mode:           t.mode,
	}
	if err != nil {
		return answer, fmt.Errorf("store answer: %w", err)
	}
	return answer, nil
}

func conversationTitle(query string) string {
	if runes := []rune(query); len(runes) > titleRunes {
		return string(runes[:titleRunes]) + "…"
	}
	return query
}
