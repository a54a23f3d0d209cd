package document

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Status is the document lifecycle state. pending is set once at upload and
// never re-entered; processing may be re-entered from either terminal state
// (reprocessing is allowed at any time).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusProcessing},
	StatusFailed:     {StatusProcessing},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next. Out-of-order requests are rejected by callers, not coerced.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Metadata is free-form, client-supplied descriptive data.
type Metadata struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Document is the metadata record for one uploaded file. StorageHandle is an
// opaque reference into the blob store, immutable once set, and never exposed
// to clients. ChunkCount is denormalized from the chunks table and is
// recomputed at the end of every operation that changes the chunk set.
type Document struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	StorageHandle string    `json:"-"`
	Status        Status    `json:"status"`
	Metadata      *Metadata `json:"metadata,omitempty"`
	ChunkCount    int       `json:"chunk_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewID returns a fresh document identifier.
func NewID() string {
	u := uuid.New()
	return "doc_" + hex.EncodeToString(u[:])[:12]
}
