package domain

import (
	"strings"
	"time"
)

// FetchStrategy tells the scanner how a source page should be interpreted.
type FetchStrategy string

const (
	FetchAuto FetchStrategy = "auto"
	FetchHTML FetchStrategy = "fetch"
	FetchFeed FetchStrategy = "rss"
)

// Valid reports whether the strategy is one of the known values.
func (s FetchStrategy) Valid() bool {
	switch s {
	case FetchAuto, FetchHTML, FetchFeed:
		return true
	}
	return false
}

// Source is a configured origin polled by discovery runs.
type Source struct {
	ID            string
	URL           string
	Name          string
	FetchStrategy FetchStrategy
	CreatedAt     time.Time
	LastCheckedAt *time.Time
}

// RunStatus enumerates the discovery run state machine.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// CanTransition reports whether the state machine allows moving from s to next:
// pending to running, pending or running to a terminal state.
func (s RunStatus) CanTransition(next RunStatus) bool {
	switch next {
	case RunRunning:
		return s == RunPending
	case RunCompleted, RunFailed:
		return !s.Terminal()
	}
	return false
}

// Run is one execution of the discovery pipeline across all sources.
type Run struct {
	ID           string
	Status       RunStatus
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	CreatedAt    time.Time
	ItemsCount   int
}

// Candidate is a URL extracted from a source page, not yet confirmed as an article.
type Candidate struct {
	SourceID string
	URL      string
}

// ArticleMetadata is the best-effort result of extracting one candidate page.
// Empty strings stand for absent values.
type ArticleMetadata struct {
	Title       string
	Authors     []string
	DOI         string
	Abstract    string
	PublishedAt string
	LastError   string
}

// Usable reports whether the metadata carries a title or a DOI.
func (m ArticleMetadata) Usable() bool {
	return strings.TrimSpace(m.Title) != "" || strings.TrimSpace(m.DOI) != ""
}

// Scores holds the heuristic and corpus-similarity scores of a candidate.
type Scores struct {
	Heuristic  float64
	Similarity float64
}

// Item is a persisted discovery result. Items are append-only.
type Item struct {
	ID              string
	RunID           string
	SourceID        string
	URL             string
	Title           string
	Authors         []string
	DOI             string
	Abstract        string
	PublishedAt     string
	HeuristicScore  float64
	SimilarityScore float64
	LastError       string
	CreatedAt       time.Time
}

// FinalScore averages the heuristic and similarity scores.
func (i Item) FinalScore() float64 {
	return (i.HeuristicScore + i.SimilarityScore) / 2
}

// ItemView is an item enriched for listing.
type ItemView struct {
	Item
	SourceName string
	DocumentID string
	FinalScore float64
}

// ItemFilter narrows item listings.
type ItemFilter struct {
	RunID    string
	SourceID string
	Limit    int
	Offset   int
}
