package handler

import (
	"log/slog"
	"net/http"

	"github.com/oparadev/personnelbase/internal/domain"
	"github.com/oparadev/personnelbase/internal/service"
)

// UserHandler exposes the /admin/users surface.
type UserHandler struct {
	userService *service.UserService
	logger      *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// Create handles POST /admin/users requests. The generated credential is
// returned in this response and never again.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	var req service.CreateUserInput
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.userService.Create(r.Context(), claims, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, "user created", result)
}

// Get handles GET /admin/users/{id} requests
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Get(r.Context(), claims, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "user retrieved", user)
}

// List handles GET /admin/users requests
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	page, limit := pageParams(r)
	result, err := h.userService.List(r.Context(), claims, r.URL.Query().Get("search"), page, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "users retrieved", result)
}

// Update handles PATCH /admin/users/{id} requests
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	var patch domain.UserPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.userService.Update(r.Context(), claims, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "user updated", user)
}

// Delete handles DELETE /admin/users/{id} requests
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	if err := h.userService.Delete(r.Context(), claims, r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "user deleted", nil)
}

// ResetPasswordRequest names the account whose credential is reissued.
type ResetPasswordRequest struct {
	UserID string `json:"user_id"`
	// NewPassword is optional; one is generated when it is empty.
	NewPassword string `json:"new_password"`
}

// ResetPassword handles POST /admin/reset-password requests
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	var req ResetPasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.UserID == "" {
		writeError(w, h.logger, domain.Validation("user_id is required", nil))
		return
	}

	password, err := h.userService.ResetPassword(r.Context(), claims, req.UserID, req.NewPassword)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "password reset", map[string]string{"generated_password": password})
}
