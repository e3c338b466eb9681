package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"visitas/internal/security"
	"visitas/internal/service"
)

// AuthHandler handles login, logout and password changes
type AuthHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Login exchanges credentials for a bearer token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}

	res, err := h.authService.Login(r.Context(), req.Email, req.Password, security.GetClientIP(r))
	if err != nil {
		respondWithError(w, h.logger, "Error logging in", err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// Logout ends the caller's session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if err := h.authService.Logout(r.Context(), user, sessionFromContext(r.Context())); err != nil {
		respondWithError(w, h.logger, "Error logging out", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, GetUserFromContext(r.Context()))
}

// ChangePassword replaces the caller's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}

	user := GetUserFromContext(r.Context())
	if err := h.authService.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		respondWithError(w, h.logger, "Error changing password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
