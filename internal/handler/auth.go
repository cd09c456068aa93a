package handler

import (
	"log/slog"
	"net/http"

	"github.com/oparadev/personnelbase/internal/security"
	"github.com/oparadev/personnelbase/internal/security/middleware"
	"github.com/oparadev/personnelbase/internal/service"
)

// AuthHandler exposes the authenticated self-service credential endpoints.
type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// ChangePasswordRequest carries a credential rotation.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword handles POST /auth/change-password requests
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionOrFail(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.authService.ChangePassword(r.Context(), claims.UserID, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "password changed", nil)
}

// sessionOrFail pulls the session claims out of the request context,
// rendering a 401 when the middleware put none there.
func sessionOrFail(w http.ResponseWriter, r *http.Request) (security.SessionClaims, bool) {
	claims, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, "authentication required", nil)
	}
	return claims, ok
}
