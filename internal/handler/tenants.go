package handler

import (
	"log/slog"
	"net/http"

	"github.com/oparadev/personnelbase/internal/domain"
	"github.com/oparadev/personnelbase/internal/service"
)

// TenantHandler exposes the /admin/dbs surface.
type TenantHandler struct {
	tenantService *service.TenantService
	logger        *slog.Logger
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(tenantService *service.TenantService, logger *slog.Logger) *TenantHandler {
	return &TenantHandler{
		tenantService: tenantService,
		logger:        logger,
	}
}

// Create handles POST /admin/dbs requests
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	var req service.CreateTenantInput
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	tenant, err := h.tenantService.Create(r.Context(), claims, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, "db created", tenant)
}

// Get handles GET /admin/dbs/{id} requests
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	tenant, err := h.tenantService.Get(r.Context(), claims, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "db retrieved", tenant)
}

// List handles GET /admin/dbs requests
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	page, limit := pageParams(r)
	result, err := h.tenantService.List(r.Context(), claims, r.URL.Query().Get("search"), page, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "dbs retrieved", result)
}

// Update handles PATCH /admin/dbs/{id} requests
func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	var patch domain.TenantPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}

	tenant, err := h.tenantService.Update(r.Context(), claims, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "db updated", tenant)
}

// Delete handles DELETE /admin/dbs/{id} requests
func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	if err := h.tenantService.Delete(r.Context(), claims, r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "db deleted", nil)
}
