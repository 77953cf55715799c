package web

import (
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/awardshelf/internal/web/templates"
)

// handleDashboard renders the operator status page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := s.service.Categories(ctx)
	if err != nil {
		// Log error but continue without categories
		slog.Warn("dashboard: list categories", "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Dashboard(templates.DashboardParams{
		Categories: categories,
		Recent:     s.service.RecentImports(),
		Limiter:    s.service.Limiter().Status(),
		Defaults:   s.service.Defaults(),
	}).Render(ctx, w)
}

// handleListCategories returns the award categories.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.service.Categories(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, categories)
}

// handlePlacements returns one category's placements grouped by year.
func (s *Server) handlePlacements(w http.ResponseWriter, r *http.Request) {
	categoryID, err := parseIDParam(r, "categoryID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	years, err := s.service.Placements(r.Context(), categoryID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, map[string]any{
		"category_id": categoryID,
		"years":       years,
	})
}

// handleHealth reports whether storage answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
