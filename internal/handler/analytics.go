package handler

import (
	"log/slog"
	"net/http"

	"github.com/oparadev/personnelbase/internal/service"
)

// AnalyticsHandler exposes the analytics read endpoints.
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
	logger           *slog.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsService *service.AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// Dashboard handles GET /admin/analytics requests
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	stats, err := h.analyticsService.Dashboard(r.Context(), claims)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "analytics retrieved", stats)
}

// ForTenant handles GET /analytics/db/{id} requests
func (h *AnalyticsHandler) ForTenant(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	stats, err := h.analyticsService.ForTenant(r.Context(), claims, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "analytics retrieved", stats)
}
