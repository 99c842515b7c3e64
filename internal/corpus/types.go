package corpus

import (
	"time"

	"github.com/google/uuid"
)

// ChunkMetadata carries the structural provenance of a chunk. The fields are
// fixed: the retrieval pipeline only ever reads these, so an open key/value
// bag would hide the contract.
type ChunkMetadata struct {
	Path         string `json:"path"`
	SectionLabel string `json:"sectionLabel"`
	HasImage     bool   `json:"hasImage"`
	ImageURL     string `json:"imageUrl,omitempty"`
	ImageAlt     string `json:"imageAlt,omitempty"`
}

// Chunk is a stored, independently retrievable unit of documentation text.
// Content is immutable once created; re-ingesting a file replaces its chunks
// wholesale rather than mutating them in place.
//
// Embedding is nil when the embedding provider failed for this chunk. Such
// chunks are persisted anyway (a single bad chunk must not block ingestion of
// the rest of the document) and are excluded from ranking, not errored.
type Chunk struct {
	ID          uuid.UUID
	FileID      uuid.UUID
	Content     string
	Metadata    ChunkMetadata
	Embedding   []float32
	LastUpdated time.Time
}

// File is an ingested documentation file. One file owns zero or more chunks.
type File struct {
	ID          uuid.UUID
	Path        string // unique within the corpus
	Content     string
	HasImages   bool
	SourceURL   string
	LastUpdated time.Time
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation session, ordered by CreatedAt
// ascending within the session.
type Turn struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}
