package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Request id first so every later middleware can log it.
	r.Use(
		RequestIDMiddleware,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// ---- SERVICE ----
	r.Get("/", h.Index)

	// ---- HEALTH ----
	r.Get("/healthz", h.Health)
	for _, path := range []string{"/health", "/_ah/health"} {
		r.Get(path, h.Health)
		r.Head(path, h.Health)
	}

	// ---- RENDER ----
	r.Post("/render", h.Render)

	return r
}
