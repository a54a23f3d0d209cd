package chunk

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Chunk is one contiguous, possibly overlapping segment of a document's text.
// Chunks are immutable once written: the only mutations supported are
// whole-document replace and delete.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	Position   int       `json:"position"`
	Metadata   *Metadata `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Metadata is reserved for structured-source extraction (page/section refs).
// Plain-text sources leave it nil.
type Metadata struct {
	Page    *int    `json:"page,omitempty"`
	Section *string `json:"section,omitempty"`
}

// NewID returns a fresh chunk identifier.
func NewID() string {
	u := uuid.New()
	return "chunk_" + hex.EncodeToString(u[:])[:12]
}
