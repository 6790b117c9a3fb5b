package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthview/hearthview-core/internal/dashboard"
)

// handleDashboard returns the per-category tile summaries. Responses are
// computed from the cache; a 503 with "no data" means the first successful
// poll has not happened yet.
func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	entries, err := s.cache.Entries()
	if err != nil {
		writeNoData(w, err)
		return
	}

	byCategory := make(map[string][]dashboard.CacheEntry)
	order := make([]string, 0, 8)
	for _, e := range entries {
		if _, seen := byCategory[e.Category]; !seen {
			order = append(order, e.Category)
		}
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	summaries := make([]dashboard.CategorySummary, 0, len(order))
	for _, name := range order {
		summaries = append(summaries, dashboard.Summarize(name, byCategory[name]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"categories": summaries,
		"entities":   len(entries),
	})
}

// handleListEntities returns every cached entity, sorted by ID.
func (s *Server) handleListEntities(w http.ResponseWriter, _ *http.Request) {
	entries, err := s.cache.Entries()
	if err != nil {
		writeNoData(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": entries,
		"count":    len(entries),
	})
}

// handleGetEntity returns a single cached entity by ID.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, ok := s.cache.Get(id)
	if !ok {
		writeNotFound(w, "entity not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleCategory returns the cached entities of one dashboard category.
func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	entries, err := s.cache.Category(name)
	if err != nil {
		writeNoData(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": name,
		"entities": entries,
		"summary":  dashboard.Summarize(name, entries),
	})
}

// handleRefresh triggers an immediate poll outside the regular cadence.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.cache.Refresh(r.Context())
	if err != nil {
		writeUnavailable(w, "refresh failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleStats returns the cache's accumulated poll performance counters.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

// handleConnectionStatus reports the MCP client's connection lifecycle state.
func (s *Server) handleConnectionStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.ConnectionStatus())
}

// writeNoData maps cache read errors to responses. ErrNoData gets a 503 so
// dashboards can show a "waiting for first poll" placeholder.
func writeNoData(w http.ResponseWriter, err error) {
	if errors.Is(err, dashboard.ErrNoData) {
		writeUnavailable(w, "no data yet: first poll has not completed")
		return
	}
	writeInternalError(w, err.Error())
}
