package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"papyr/backend/features/document"
	"papyr/backend/internal/middleware"
)

type DocumentRepo interface {
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status document.Status) (int, error)
}

type ChunkRepo interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	documentRepo DocumentRepo
	chunkRepo    ChunkRepo
}

func NewHandler(d DocumentRepo, c ChunkRepo) *Handler {
	return &Handler{documentRepo: d, chunkRepo: c}
}

type StatsResponse struct {
	Documents       int `json:"documents"`
	Chunks          int `json:"chunks"`
	FailedDocuments int `json:"failed_documents"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dCount, err := h.documentRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	cCount, err := h.chunkRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	fCount, err := h.documentRepo.CountByStatus(ctx, document.StatusFailed)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count failed documents", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count failed documents", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Documents:       dCount,
		Chunks:          cCount,
		FailedDocuments: fCount,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode error response", "error", err)
	}
}
