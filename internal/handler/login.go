package handler

import (
	"log/slog"
	"net/http"

	"github.com/oparadev/personnelbase/internal/service"
)

// LoginRequest represents login credentials
type LoginRequest struct {
	ArmyNumber string `json:"army_number"`
	Password   string `json:"password"`
}

// LoginHandler handles user authentication
type LoginHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(authService *service.AuthService, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{
		authService: authService,
		logger:      logger,
	}
}

// Login handles POST /auth/login requests
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.authService.Login(r.Context(), req.ArmyNumber, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "login successful", result)
}
