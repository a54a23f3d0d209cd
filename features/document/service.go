package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"papyr/backend/features/chunk"
	"papyr/backend/internal/config"
	"papyr/backend/internal/middleware"
	"papyr/backend/internal/settings"
	"papyr/backend/internal/text"
)

type Repository interface {
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context, limit, offset int) ([]Document, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdateChunkCount(ctx context.Context, id string, count int) error
}

type ChunkRepository interface {
	CreateMany(ctx context.Context, documentID string, chunks []chunk.Chunk) error
	GetByDocument(ctx context.Context, documentID string) ([]chunk.Chunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// BlobStore is the content store for raw document bytes, addressed by an
// opaque handle.
type BlobStore interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
	Read(ctx context.Context, handle string) ([]byte, error)
	Delete(ctx context.Context, handle string) error
}

type TextExtractor interface {
	Extract(filename string, data []byte) (string, error)
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type SettingsService interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// ProcessResult reports the outcome of a processing run. Status is the
// document's resulting lifecycle state; chunking failures surface here as
// status "failed", never as an error.
type ProcessResult struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Service coordinates the document lifecycle across the metadata repository,
// the blob store and the chunk repository. It is the only component that
// spans stores and therefore owns cross-entity consistency.
type Service struct {
	repo      Repository
	chunks    ChunkRepository
	blobs     BlobStore
	extractor TextExtractor
	pub       EventPublisher  // optional, best-effort
	settings  SettingsService // optional, falls back to defaults

	defaultSize    int
	defaultOverlap int

	// Per-document locks serializing Process: two concurrent runs for the
	// same id would interleave their delete/create-chunks steps. Entries are
	// created lazily and never removed.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(
	repo Repository,
	chunks ChunkRepository,
	blobs BlobStore,
	extractor TextExtractor,
	pub EventPublisher,
	settings SettingsService,
	chunkSize, chunkOverlap int,
) *Service {
	if chunkSize <= 0 {
		chunkSize = text.DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = text.DefaultOverlap
	}
	return &Service{
		repo:           repo,
		chunks:         chunks,
		blobs:          blobs,
		extractor:      extractor,
		pub:            pub,
		settings:       settings,
		defaultSize:    chunkSize,
		defaultOverlap: chunkOverlap,
		locks:          make(map[string]*sync.Mutex),
	}
}

// Upload persists the file bytes first, then the metadata record, so a
// storage failure never leaves a record pointing at a missing blob.
func (s *Service) Upload(ctx context.Context, filename string, data []byte, meta *Metadata) (*Document, error) {
	handle, err := s.blobs.Save(ctx, filename, data)
	if err != nil {
		return nil, fmt.Errorf("storing document bytes: %w", err)
	}

	doc := &Document{
		ID:            NewID(),
		Filename:      filename,
		StorageHandle: handle,
		Status:        StatusPending,
		Metadata:      meta,
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		// The record never existed, so the blob is orphaned; reclaim it.
		if derr := s.blobs.Delete(ctx, handle); derr != nil {
			slog.WarnContext(ctx, "failed to reclaim orphaned blob", "handle", handle, "error", derr)
		}
		return nil, err
	}

	s.publish(ctx, config.TopicDocumentUploaded, map[string]interface{}{
		"id":       doc.ID,
		"filename": doc.Filename,
	})

	return doc, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Document, int, error) {
	docs, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, total, nil
}

// Process replaces the document's chunk set: transition to processing is
// persisted before any chunking work, so a crash mid-run is observable as a
// stuck processing document rather than a silent no-op. Old chunks are
// deleted before new ones are written; any failure lands the document in
// failed with chunk_count 0 instead of propagating an error.
func (s *Service) Process(ctx context.Context, id string) (*ProcessResult, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !doc.Status.CanTransitionTo(StatusProcessing) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, doc.Status, StatusProcessing)
	}

	if err := s.repo.UpdateStatus(ctx, id, StatusProcessing); err != nil {
		return nil, err
	}

	count, procErr := s.rebuildChunks(ctx, doc)
	if procErr != nil {
		slog.ErrorContext(ctx, "document processing failed", "document_id", id, "error", procErr)

		// Reconcile to an empty chunk set so chunk_count stays truthful even
		// when the failure hit before the old chunks were removed.
		if derr := s.chunks.DeleteByDocument(ctx, id); derr != nil {
			slog.WarnContext(ctx, "failed to clear chunks after processing failure", "document_id", id, "error", derr)
		}
		if err := s.repo.UpdateChunkCount(ctx, id, 0); err != nil {
			return nil, err
		}
		if err := s.repo.UpdateStatus(ctx, id, StatusFailed); err != nil {
			return nil, err
		}

		s.publish(ctx, config.TopicDocumentProcessed, map[string]interface{}{
			"id":     id,
			"status": StatusFailed,
		})

		return &ProcessResult{
			Status:  StatusFailed,
			Message: fmt.Sprintf("processing failed: %v", procErr),
		}, nil
	}

	if err := s.repo.UpdateChunkCount(ctx, id, count); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCompleted); err != nil {
		return nil, err
	}

	s.publish(ctx, config.TopicDocumentProcessed, map[string]interface{}{
		"id":     id,
		"status": StatusCompleted,
		"chunks": count,
	})

	return &ProcessResult{
		Status:  StatusCompleted,
		Message: fmt.Sprintf("processing completed: %d chunks created", count),
	}, nil
}

func (s *Service) rebuildChunks(ctx context.Context, doc *Document) (int, error) {
	data, err := s.blobs.Read(ctx, doc.StorageHandle)
	if err != nil {
		return 0, fmt.Errorf("loading document bytes: %w", err)
	}

	content, err := s.extractor.Extract(doc.Filename, data)
	if err != nil {
		return 0, fmt.Errorf("extracting text: %w", err)
	}

	if err := s.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("deleting previous chunks: %w", err)
	}

	size, overlap := s.chunkParams(ctx)
	pieces := text.Chunk(content, size, overlap)

	batch := make([]chunk.Chunk, len(pieces))
	for i, piece := range pieces {
		batch[i] = chunk.Chunk{
			ID:         chunk.NewID(),
			DocumentID: doc.ID,
			Content:    piece,
			Position:   i,
		}
	}

	if err := s.chunks.CreateMany(ctx, doc.ID, batch); err != nil {
		return 0, fmt.Errorf("persisting chunks: %w", err)
	}

	return len(batch), nil
}

// GetChunks returns the ordered chunk sequence for a document. Zero chunks is
// a valid answer, not an error.
func (s *Service) GetChunks(ctx context.Context, id string) ([]chunk.Chunk, int, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, 0, err
	}

	chunks, err := s.chunks.GetByDocument(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if chunks == nil {
		chunks = []chunk.Chunk{}
	}

	return chunks, len(chunks), nil
}

// Delete cascades best-effort in a fixed order: chunks, then blob, then the
// metadata record. A crash between steps leaves at worst an orphaned blob,
// never a record pointing at missing data. Step failures are logged and do
// not block later steps.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.chunks.DeleteByDocument(ctx, id); err != nil {
		slog.WarnContext(ctx, "failed to delete chunks, continuing", "document_id", id, "error", err)
	}

	if err := s.blobs.Delete(ctx, doc.StorageHandle); err != nil {
		slog.WarnContext(ctx, "failed to delete blob, continuing", "document_id", id, "handle", doc.StorageHandle, "error", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, config.TopicDocumentDeleted, map[string]interface{}{
		"id": id,
	})

	return nil
}

func (s *Service) chunkParams(ctx context.Context) (int, int) {
	if s.settings == nil {
		return s.defaultSize, s.defaultOverlap
	}

	set, err := s.settings.Get(ctx)
	if err != nil || set == nil {
		if err != nil {
			slog.WarnContext(ctx, "failed to load chunk settings, using defaults", "error", err)
		}
		return s.defaultSize, s.defaultOverlap
	}
	if set.Validate() != nil {
		return s.defaultSize, s.defaultOverlap
	}

	return set.ChunkSize, set.ChunkOverlap
}

func (s *Service) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Service) publish(ctx context.Context, topic string, payload map[string]interface{}) {
	if s.pub == nil {
		return
	}

	payload["correlation_id"] = middleware.GetCorrelationID(ctx)
	body, _ := json.Marshal(payload)

	if err := s.pub.Publish(topic, body); err != nil {
		slog.ErrorContext(ctx, "failed to publish event", "topic", topic, "error", err)
	} else {
		slog.InfoContext(ctx, "published event", "topic", topic)
	}
}
