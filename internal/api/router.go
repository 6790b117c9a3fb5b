package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket upgrade. Browsers cannot set an Authorization header on
		// WebSocket requests, so auth is a single-use ticket validated in
		// the handler rather than the JWT middleware.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - the operator must be
			// logged in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Dashboard reads (always cache-backed, never a live round trip)
			r.Get("/dashboard", s.handleDashboard)
			r.Route("/entities", func(r chi.Router) {
				r.Get("/", s.handleListEntities)
				r.Get("/{id}", s.handleGetEntity)
			})
			r.Get("/categories/{name}", s.handleCategory)

			// Device commands (live controller calls)
			r.Post("/commands", s.handleCommand)

			// Controller connection and cache diagnostics
			r.Get("/connection", s.handleConnectionStatus)
			r.Post("/refresh", s.handleRefresh)
			r.Get("/stats", s.handleStats)

			// State history
			r.Route("/history", func(r chi.Router) {
				r.Get("/", s.handleRecentHistory)
				r.Get("/{entityID}", s.handleEntityHistory)
			})

			// Camera stream reverse proxy
			r.Get("/cameras", s.handleListCameras)
			r.Get("/cameras/{name}/stream", s.handleCameraStream)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
