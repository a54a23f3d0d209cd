package document

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"papyr/backend/internal/middleware"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Handler struct {
	service       *Service
	maxUploadSize int64
}

func NewHandler(service *Service, maxUploadSizeMB int64) *Handler {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = 50
	}
	return &Handler{service: service, maxUploadSize: maxUploadSizeMB << 20}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "invalid multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var meta *Metadata
	if raw := r.FormValue("metadata"); raw != "" {
		meta = &Metadata{}
		if err := json.Unmarshal([]byte(raw), meta); err != nil {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", "invalid metadata JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "unable to read file", http.StatusBadRequest)
		return
	}

	filename := header.Filename
	if filename == "" {
		filename = "unnamed"
	}

	doc, err := h.service.Upload(r.Context(), filename, data, meta)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxListLimit {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", "offset must be non-negative", http.StatusBadRequest)
			return
		}
		offset = parsed
	}

	docs, total, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"documents": docs,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Process runs synchronously, but the contract is asynchronous-shaped: the
// response is always 202 with status "processing", and the terminal state
// (completed/failed) is queryable on the document afterwards. Chunking
// failures are not HTTP errors.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Process(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	resp := map[string]string{
		"status":  string(StatusProcessing),
		"message": res.Message,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) GetChunks(w http.ResponseWriter, r *http.Request) {
	chunks, total, err := h.service.GetChunks(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"chunks": chunks,
		"total":  total,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		h.writeError(ctx, w, "NOT_FOUND", "Document not found", http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		h.writeError(ctx, w, "CONFLICT", err.Error(), http.StatusConflict)
	case errors.Is(err, ErrInvalidTransition):
		h.writeError(ctx, w, "CONFLICT", err.Error(), http.StatusConflict)
	default:
		slog.ErrorContext(ctx, "operation failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
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
		slog.Error("failed to encode error response", "error", err)
	}
}
