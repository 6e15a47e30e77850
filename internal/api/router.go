package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	if s.metrics != nil {
		r.Use(s.metricsMiddleware)
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Route("/locos", func(r chi.Router) {
			r.Get("/", s.handleListLocos)
			r.Post("/", s.handleCreateLoco)
			r.Get("/describe", s.handleDescribeLocos)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetLoco)
				r.Patch("/", s.handleUpdateLoco)
				r.Delete("/", s.handleDeleteLoco)
				r.Get("/throttle", s.handleGetThrottle)
				r.Put("/speed", s.handleSetSpeed)
				r.Put("/direction", s.handleSetDirection)
				r.Put("/functions/{n}", s.handleSetFunction)
			})
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"loaded":  s.throttles.Loaded(),
	})
}
