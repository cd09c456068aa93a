package handler

import (
	"log/slog"
	"net/http"

	"github.com/oparadev/personnelbase/internal/domain"
	"github.com/oparadev/personnelbase/internal/service"
)

// PersonnelHandler exposes the /personnels surface.
type PersonnelHandler struct {
	personnelService *service.PersonnelService
	logger           *slog.Logger
}

// NewPersonnelHandler creates a new personnel handler
func NewPersonnelHandler(personnelService *service.PersonnelService, logger *slog.Logger) *PersonnelHandler {
	return &PersonnelHandler{
		personnelService: personnelService,
		logger:           logger,
	}
}

// Create handles POST /personnels requests
func (h *PersonnelHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	var req domain.Personnel
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	created, err := h.personnelService.Create(r.Context(), claims, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, "personnel created", created)
}

// Get handles GET /personnels/{id} requests
func (h *PersonnelHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := sessionOrFail(w, r); !ok {
		return
	}

	p, err := h.personnelService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "personnel retrieved", p)
}

// List handles GET /personnels requests
func (h *PersonnelHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	page, limit := pageParams(r)
	result, err := h.personnelService.List(r.Context(), claims, r.URL.Query().Get("search"), page, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "personnels retrieved", result)
}

// ListByTenant handles GET /personnels/db/{id} requests
func (h *PersonnelHandler) ListByTenant(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	page, limit := pageParams(r)
	result, err := h.personnelService.ListByTenant(r.Context(), claims, r.PathValue("id"), r.URL.Query().Get("search"), page, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "personnels retrieved", result)
}

// Update handles PATCH /personnels/{id} requests
func (h *PersonnelHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	var patch domain.PersonnelPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}

	updated, err := h.personnelService.Update(r.Context(), claims, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "personnel updated", updated)
}

// Delete handles DELETE /personnels/{id} requests
func (h *PersonnelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	if err := h.personnelService.SoftDelete(r.Context(), claims, r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "personnel deleted", nil)
}

// BulkDeleteRequest lists the record ids to soft-delete.
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BulkDelete handles DELETE /personnels/bulk-delete requests
func (h *PersonnelHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	var req BulkDeleteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	deleted, err := h.personnelService.BulkSoftDelete(r.Context(), claims, req.IDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "personnels deleted", map[string]int64{"deleted": deleted})
}

// BulkUploadRequest carries a batch of records destined for one db.
type BulkUploadRequest struct {
	Records []domain.Personnel `json:"records"`
}

// BulkUpload handles POST /personnels/upload requests
func (h *PersonnelHandler) BulkUpload(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	var req BulkUploadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.personnelService.BulkCreate(r.Context(), claims, req.Records)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, "personnels uploaded", result)
}
