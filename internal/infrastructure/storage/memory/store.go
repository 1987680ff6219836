// Package memory is an in-process implementation of every storage port. It
// backs the CLI when no database is configured and the use case tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/ports"
)

const maxConversationTitle = 255

// Chunk is a corpus segment seeded into the store.
type Chunk struct {
	DocumentID   string
	Content      string
	ContentFR    string
	Position     int
	Page         int
	SectionTitle string
	Embedding    []float32
	EmbeddingFR  []float32
}

type chunkRow struct {
	Chunk
	id string
}

type conversation struct {
	id        string
	title     string
	updatedAt time.Time
}

// Store keeps everything in maps guarded by one lock.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	sources       []domain.Source
	runs          []domain.Run
	items         []domain.Item
	documents     []domain.Document
	chunks        []chunkRow
	settings      map[string]string
	conversations map[string]*conversation
	messages      []domain.Message
}

var (
	_ ports.SourceRegistry    = (*Store)(nil)
	_ ports.SourceAdmin       = (*Store)(nil)
	_ ports.RunRepository     = (*Store)(nil)
	_ ports.ItemRepository    = (*Store)(nil)
	_ ports.Corpus            = (*Store)(nil)
	_ ports.SettingsStore     = (*Store)(nil)
	_ ports.ConversationStore = (*Store)(nil)
)

// New returns an empty store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty store stamping rows with now.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:           now,
		settings:      map[string]string{},
		conversations: map[string]*conversation{},
	}
}

// ListSources returns sources in creation order.
func (s *Store) ListSources(_ context.Context) ([]domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Source(nil), s.sources...), nil
}

// TouchSources stamps last_checked_at on the given sources.
func (s *Store) TouchSources(_ context.Context, ids []string, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for i := range s.sources {
		if _, ok := wanted[s.sources[i].ID]; ok {
			at := checkedAt
			s.sources[i].LastCheckedAt = &at
		}
	}
	return nil
}

// CreateSource registers a source. URLs are unique.
func (s *Store) CreateSource(_ context.Context, src domain.Source) (domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sources {
		if existing.URL == src.URL {
			return domain.Source{}, fmt.Errorf("source %s: %w", src.URL, domain.ErrConflict)
		}
	}
	src.ID = uuid.NewString()
	src.CreatedAt = s.now()
	src.LastCheckedAt = nil
	s.sources = append(s.sources, src)
	return src, nil
}

// DeleteSource removes a source; its items keep an empty source reference.
func (s *Store) DeleteSource(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, src := range s.sources {
		if src.ID == id {
			s.sources = append(s.sources[:i], s.sources[i+1:]...)
			for j := range s.items {
				if s.items[j].SourceID == id {
					s.items[j].SourceID = ""
				}
			}
			return nil
		}
	}
	return fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
}

// CreateRun inserts a pending run.
func (s *Store) CreateRun(_ context.Context) (domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := domain.Run{ID: uuid.NewString(), Status: domain.RunPending, CreatedAt: s.now()}
	s.runs = append(s.runs, run)
	return run, nil
}

// MarkRunning moves a pending run to running.
func (s *Store) MarkRunning(_ context.Context, id string, at time.Time) error {
	return s.transition(id, domain.RunRunning, func(r *domain.Run) {
		r.StartedAt = &at
	})
}

// MarkCompleted closes a run successfully.
func (s *Store) MarkCompleted(_ context.Context, id string, at time.Time) error {
	return s.transition(id, domain.RunCompleted, func(r *domain.Run) {
		r.CompletedAt = &at
	})
}

// MarkFailed closes a run with an error message.
func (s *Store) MarkFailed(_ context.Context, id string, at time.Time, message string) error {
	return s.transition(id, domain.RunFailed, func(r *domain.Run) {
		r.CompletedAt = &at
		r.ErrorMessage = message
	})
}

func (s *Store) transition(id string, next domain.RunStatus, apply func(*domain.Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID != id {
			continue
		}
		if !s.runs[i].Status.CanTransition(next) {
			return fmt.Errorf("run %s %s -> %s: %w", id, s.runs[i].Status, next, domain.ErrInvalidTransition)
		}
		s.runs[i].Status = next
		apply(&s.runs[i])
		return nil
	}
	return fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
}

// GetRun returns one run with its item count.
func (s *Store) GetRun(_ context.Context, id string) (domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, run := range s.runs {
		if run.ID == id {
			run.ItemsCount = s.countItems(id)
			return run, nil
		}
	}
	return domain.Run{}, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
}

// ListRuns returns the newest runs first with their item counts.
func (s *Store) ListRuns(_ context.Context, limit int) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Run, 0, max(min(limit, len(s.runs)), 0))
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		run := s.runs[i]
		run.ItemsCount = s.countItems(run.ID)
		out = append(out, run)
	}
	return out, nil
}

func (s *Store) countItems(runID string) int {
	var n int
	for _, item := range s.items {
		if item.RunID == runID {
			n++
		}
	}
	return n
}

// ExistingURLs returns every item URL ever stored.
func (s *Store) ExistingURLs(_ context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.items))
	for _, item := range s.items {
		out[item.URL] = struct{}{}
	}
	return out, nil
}

// ExistingDOIs returns the lower-cased DOIs of items and corpus documents.
func (s *Store) ExistingDOIs(_ context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]struct{}{}
	for _, item := range s.items {
		if doi := strings.ToLower(strings.TrimSpace(item.DOI)); doi != "" {
			out[doi] = struct{}{}
		}
	}
	for _, doc := range s.documents {
		if doi := strings.ToLower(strings.TrimSpace(doc.DOI)); doi != "" {
			out[doi] = struct{}{}
		}
	}
	return out, nil
}

// InsertItem appends an item. URLs are unique.
func (s *Store) InsertItem(_ context.Context, item domain.Item) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.URL == item.URL {
			return domain.Item{}, fmt.Errorf("item %s: %w", item.URL, domain.ErrConflict)
		}
	}
	item.ID = uuid.NewString()
	item.CreatedAt = s.now()
	item.Authors = append([]string(nil), item.Authors...)
	s.items = append(s.items, item)
	return item, nil
}

// ListItems orders by similarity then recency, and joins source names and
// ingested documents sharing the item DOI.
func (s *Store) ListItems(_ context.Context, filter domain.ItemFilter) ([]domain.ItemView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Item
	for _, item := range s.items {
		if filter.RunID != "" && item.RunID != filter.RunID {
			continue
		}
		if filter.SourceID != "" && item.SourceID != filter.SourceID {
			continue
		}
		matched = append(matched, item)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].SimilarityScore != matched[j].SimilarityScore {
			return matched[i].SimilarityScore > matched[j].SimilarityScore
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start := min(max(filter.Offset, 0), len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}

	names := make(map[string]string, len(s.sources))
	for _, src := range s.sources {
		names[src.ID] = src.Name
	}
	docsByDOI := map[string]string{}
	for _, doc := range s.documents {
		if doi := strings.ToLower(doc.DOI); doi != "" {
			docsByDOI[doi] = doc.ID
		}
	}

	out := make([]domain.ItemView, 0, end-start)
	for _, item := range matched[start:end] {
		view := domain.ItemView{Item: item, SourceName: names[item.SourceID], FinalScore: item.FinalScore()}
		if item.DOI != "" {
			view.DocumentID = docsByDOI[strings.ToLower(item.DOI)]
		}
		out = append(out, view)
	}
	return out, nil
}

// AddDocument seeds a corpus document and returns it with its ID.
func (s *Store) AddDocument(doc domain.Document) domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	s.documents = append(s.documents, doc)
	return doc
}

// AddChunk seeds a chunk of an existing document.
func (s *Store) AddChunk(chunk Chunk) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.document(chunk.DocumentID); !ok {
		return "", fmt.Errorf("document %s: %w", chunk.DocumentID, domain.ErrNotFound)
	}
	row := chunkRow{Chunk: chunk, id: uuid.NewString()}
	s.chunks = append(s.chunks, row)
	return row.id, nil
}

func (s *Store) document(id string) (domain.Document, bool) {
	for _, doc := range s.documents {
		if doc.ID == id {
			return doc, true
		}
	}
	return domain.Document{}, false
}

// NearestNeighbors ranks chunks by cosine similarity above threshold. French
// queries read the French embeddings and content.
func (s *Store) NearestNeighbors(_ context.Context, embedding []float32, threshold float64, count int, lang domain.Language) ([]domain.ChunkMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ChunkMatch
	for _, row := range s.chunks {
		vector := row.Embedding
		if lang == domain.LangFrench {
			vector = row.EmbeddingFR
		}
		if len(vector) == 0 {
			continue
		}
		similarity := cosine(embedding, vector)
		if similarity <= threshold {
			continue
		}
		match := s.match(row, lang)
		match.Similarity = similarity
		out = append(out, match)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out[:min(len(out), max(count, 0))], nil
}

// LexicalSearch ranks chunks by the Ochiai coefficient between query and chunk
// word sets. Chunks sharing no word are left out.
func (s *Store) LexicalSearch(_ context.Context, text string, limit int, lang domain.Language) ([]domain.ChunkMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := wordSet(text)
	if len(query) == 0 {
		return nil, nil
	}
	var out []domain.ChunkMatch
	for _, row := range s.chunks {
		match := s.match(row, lang)
		words := wordSet(match.Content)
		var shared int
		for w := range query {
			if _, ok := words[w]; ok {
				shared++
			}
		}
		if shared == 0 {
			continue
		}
		match.Rank = float64(shared) / math.Sqrt(float64(len(query)*len(words)))
		out = append(out, match)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank > out[j].Rank })
	return out[:min(len(out), max(limit, 0))], nil
}

func (s *Store) match(row chunkRow, lang domain.Language) domain.ChunkMatch {
	content := row.Content
	if lang == domain.LangFrench && row.ContentFR != "" {
		content = row.ContentFR
	}
	doc, _ := s.document(row.DocumentID)
	return domain.ChunkMatch{
		ChunkID:        row.id,
		DocumentID:     row.DocumentID,
		Content:        content,
		Position:       row.Position,
		Page:           row.Page,
		SectionTitle:   row.SectionTitle,
		DocTitle:       doc.Title,
		DocDOI:         doc.DOI,
		DocStoragePath: doc.StoragePath,
	}
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func wordSet(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

// LoadSettings returns a copy of the stored settings.
func (s *Store) LoadSettings(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

// SaveSettings upserts all values under one lock.
func (s *Store) SaveSettings(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.settings[k] = v
	}
	return nil
}

// GetOrCreateConversation touches an existing conversation or creates one titled title.
func (s *Store) GetOrCreateConversation(_ context.Context, id, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[id]; ok && id != "" {
		conv.updatedAt = s.now()
		return conv.id, nil
	}
	conv := &conversation{id: uuid.NewString(), title: conversationTitle(title), updatedAt: s.now()}
	s.conversations[conv.id] = conv
	return conv.id, nil
}

func conversationTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "New conversation"
	}
	if runes := []rune(title); len(runes) > maxConversationTitle {
		return string(runes[:maxConversationTitle])
	}
	return title
}

// InsertMessage appends a message to an existing conversation.
func (s *Store) InsertMessage(_ context.Context, msg domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return domain.Message{}, fmt.Errorf("conversation %s: %w", msg.ConversationID, domain.ErrNotFound)
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = s.now()
	msg.Sources = append([]domain.Citation(nil), msg.Sources...)
	s.messages = append(s.messages, msg)
	return msg, nil
}

// LastMessages returns up to limit messages of a conversation, most recent first.
func (s *Store) LastMessages(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Message
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if s.messages[i].ConversationID == conversationID {
			out = append(out, s.messages[i])
		}
	}
	return out, nil
}

// DeleteConversationsBefore drops conversations idle since cutoff and their messages.
func (s *Store) DeleteConversationsBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := map[string]struct{}{}
	for id, conv := range s.conversations {
		if conv.updatedAt.Before(cutoff) {
			deleted[id] = struct{}{}
			delete(s.conversations, id)
		}
	}
	if len(deleted) == 0 {
		return 0, nil
	}
	kept := s.messages[:0]
	for _, msg := range s.messages {
		if _, gone := deleted[msg.ConversationID]; !gone {
			kept = append(kept, msg)
		}
	}
	s.messages = kept
	return len(deleted), nil
}
