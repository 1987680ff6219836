package domain

import "time"

// Language selects a corpus variant for search.
type Language string

const (
	LangEnglish Language = "en"
	LangFrench  Language = "fr"
)

// Document is an ingested paper. This module only reads documents.
type Document struct {
	ID          string
	Title       string
	DOI         string
	StoragePath string
}

// ChunkMatch is a chunk returned by vector or lexical search with its parent document metadata.
// Similarity is zero for chunks that were only found lexically.
type ChunkMatch struct {
	ChunkID        string
	DocumentID     string
	Content        string
	Position       int
	Page           int
	SectionTitle   string
	Similarity     float64
	Rank           float64
	DocTitle       string
	DocDOI         string
	DocStoragePath string
}

// Citation is a display-ready source attached to an answer.
type Citation struct {
	Index        int     `json:"index"`
	Title        string  `json:"title,omitempty"`
	DOI          string  `json:"doi,omitempty"`
	StoragePath  string  `json:"storage_path"`
	SectionTitle string  `json:"section_title,omitempty"`
	Page         int     `json:"page,omitempty"`
	Excerpt      string  `json:"excerpt"`
	Similarity   float64 `json:"similarity"`
}

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a persisted conversation turn.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	Sources        []Citation
	CreatedAt      time.Time
}
