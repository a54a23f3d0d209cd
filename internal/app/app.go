package app

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"papyr/backend/features/chunk"
	"papyr/backend/features/document"
	"papyr/backend/features/stats"
	"papyr/backend/internal/config"
	"papyr/backend/internal/extract"
	"papyr/backend/internal/middleware"
	"papyr/backend/internal/settings"
)

type App struct {
	Handler         http.Handler
	DocumentService *document.Service
}

// New wires repositories, services and handlers into an http.Handler.
// pub may be nil when event publishing is disabled.
func New(
	cfg *config.Config,
	db *sql.DB,
	blobs document.BlobStore,
	pub document.EventPublisher,
	logger *slog.Logger,
) (*App, error) {
	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(db)
	settingsService := settings.NewService(settingsRepo)
	settingsHandler := settings.NewHandler(settingsService)

	// Feature: Chunks
	chunkRepo := chunk.NewPostgresRepo(db)

	// Feature: Documents
	documentRepo := document.NewPostgresRepo(db)
	documentService := document.NewService(
		documentRepo, chunkRepo, blobs, extract.New(),
		pub, settingsService,
		cfg.ChunkSize, cfg.ChunkOverlap,
	)
	documentHandler := document.NewHandler(documentService, cfg.MaxUploadSizeMB)

	// Feature: Stats
	statsHandler := stats.NewHandler(documentRepo, chunkRepo)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /documents", middleware.CorrelationID(enableCORS(documentHandler.Upload)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(documentHandler.List)))
	mux.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(documentHandler.Get)))
	mux.Handle("DELETE /documents/{id}", middleware.CorrelationID(enableCORS(documentHandler.Delete)))
	mux.Handle("POST /documents/{id}/process", middleware.CorrelationID(enableCORS(documentHandler.Process)))
	mux.Handle("GET /documents/{id}/chunks", middleware.CorrelationID(enableCORS(documentHandler.GetChunks)))

	mux.Handle("GET /settings", middleware.CorrelationID(enableCORS(settingsHandler.GetSettings)))
	mux.Handle("PUT /settings", middleware.CorrelationID(enableCORS(settingsHandler.UpdateSettings)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	return &App{
		Handler:         mux,
		DocumentService: documentService,
	}, nil
}
