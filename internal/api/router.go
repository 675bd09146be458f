package api

import (
	"net/http"

	"github.com/dom/wartracker/internal/api/handlers"
	"github.com/dom/wartracker/internal/api/middleware"
	"github.com/dom/wartracker/internal/blob"
	"github.com/dom/wartracker/internal/config"
	"github.com/dom/wartracker/internal/metrics"
	"github.com/dom/wartracker/internal/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter wires the HTTP surface. A nil store disables uploads.
func NewRouter(services *service.Services, store blob.Store, m *metrics.Metrics, logger *zap.Logger, cfg *config.Config) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.Logger(logger.Named("http")))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", m.Handler())

	// Initialize handlers
	recordHandler := handlers.NewRecordHandler(services.Record, logger.Named("records"))
	uploadHandler := handlers.NewUploadHandler(store, cfg.MaxUploadBytes(), m, logger.Named("uploads"))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Handle("/metrics", m.Handler())

		r.Route("/records", func(r chi.Router) {
			r.Post("/", recordHandler.Create)
			r.Get("/", recordHandler.List)
			r.Get("/stats", recordHandler.Stats)
			r.Get("/{id}", recordHandler.Get)
			r.Patch("/{id}", recordHandler.Update)
			r.Delete("/{id}", recordHandler.Delete)
		})

		r.Post("/uploads", uploadHandler.Upload)
	})

	return r
}
