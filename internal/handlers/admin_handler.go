package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"visitas/internal/service"
)

// AdminHandler handles invitations and community backups
type AdminHandler struct {
	invitationService *service.InvitationService
	backupService     *service.BackupService
	logger            *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(invitationService *service.InvitationService, backupService *service.BackupService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		invitationService: invitationService,
		backupService:     backupService,
		logger:            logger,
	}
}

// CreateInvitation invites a member to become a user
func (h *AdminHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	var in service.InvitationInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	inv, err := h.invitationService.Create(r.Context(), GetUserFromContext(r.Context()), in)
	if err != nil {
		respondWithError(w, h.logger, "Error creating invitation", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, inv)
}

// PendingInvitations lists unused, unexpired invitations
func (h *AdminHandler) PendingInvitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.invitationService.Pending(r.Context(), GetUserFromContext(r.Context()))
	if err != nil {
		respondWithError(w, h.logger, "Error listing invitations", err)
		return
	}
	respondWithJSON(w, http.StatusOK, invitations)
}

// AcceptInvitation redeems an invitation code. It needs no bearer token.
func (h *AdminHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var in service.AcceptInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	in.Code = r.PathValue("code")

	user, err := h.invitationService.Accept(r.Context(), in)
	if err != nil {
		respondWithError(w, h.logger, "Error accepting invitation", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, user)
}

// Export downloads the caller's community as a JSON archive
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	archive, err := h.backupService.Export(r.Context(), GetUserFromContext(r.Context()), &buf)
	if err != nil {
		respondWithError(w, h.logger, "Error exporting community", err)
		return
	}

	filename := fmt.Sprintf("visitas-%s.json", archive.ExportedAt.Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("Warning: failed to write export", zap.Error(err))
	}
}

// Import loads an archive into the caller's community
func (h *AdminHandler) Import(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	summary, err := h.backupService.Import(r.Context(), GetUserFromContext(r.Context()), body)
	if err != nil {
		respondWithError(w, h.logger, "Error importing community", err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}
