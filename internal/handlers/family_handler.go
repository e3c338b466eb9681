package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"visitas/internal/service"
)

// FamilyHandler handles family and member requests
type FamilyHandler struct {
	familyService *service.FamilyService
	memberService *service.MemberService
	logger        *zap.Logger
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(familyService *service.FamilyService, memberService *service.MemberService, logger *zap.Logger) *FamilyHandler {
	return &FamilyHandler{
		familyService: familyService,
		memberService: memberService,
		logger:        logger,
	}
}

// ListFamilies supports ?barrioId, ?nucleoId and ?includeInactive
func (h *FamilyHandler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	barrioID, err := queryInt64(q, "barrioId")
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	nucleoID, err := queryInt64(q, "nucleoId")
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	inactive, err := queryBool(q, "includeInactive")
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}

	families, err := h.familyService.List(r.Context(), GetUserFromContext(r.Context()), service.FamilyQuery{
		BarrioID:        barrioID,
		NucleoID:        nucleoID,
		IncludeInactive: inactive,
		Sort:            querySort(q),
	})
	if err != nil {
		respondWithError(w, h.logger, "Error listing families", err)
		return
	}
	respondWithJSON(w, http.StatusOK, families)
}

// GetFamily returns a family with its placement and members
func (h *FamilyHandler) GetFamily(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	family, err := h.familyService.Get(r.Context(), GetUserFromContext(r.Context()), id)
	if err != nil {
		respondWithError(w, h.logger, "Error getting family", err)
		return
	}
	respondWithJSON(w, http.StatusOK, family)
}

// CreateFamily creates a family
func (h *FamilyHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	var in service.FamilyInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	family, err := h.familyService.Create(r.Context(), GetUserFromContext(r.Context()), in)
	if err != nil {
		respondWithError(w, h.logger, "Error creating family", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, family)
}

// UpdateFamily applies a partial update guarded by lastUpdatedAt
func (h *FamilyHandler) UpdateFamily(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	var in service.FamilyInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	family, err := h.familyService.Update(r.Context(), GetUserFromContext(r.Context()), id, in)
	if err != nil {
		respondWithError(w, h.logger, "Error updating family", err)
		return
	}
	respondWithJSON(w, http.StatusOK, family)
}

// DeleteFamily deactivates a family
func (h *FamilyHandler) DeleteFamily(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	if err := h.familyService.Delete(r.Context(), GetUserFromContext(r.Context()), id); err != nil {
		respondWithError(w, h.logger, "Error deleting family", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers supports ?familyId and ?includeInactive
func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	familyID, err := queryInt64(q, "familyId")
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	inactive, err := queryBool(q, "includeInactive")
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}

	members, err := h.memberService.List(r.Context(), GetUserFromContext(r.Context()), service.MemberQuery{
		FamilyID:        familyID,
		IncludeInactive: inactive,
		Sort:            querySort(q),
	})
	if err != nil {
		respondWithError(w, h.logger, "Error listing members", err)
		return
	}
	respondWithJSON(w, http.StatusOK, members)
}

// GetMember returns a member with its derived age
func (h *FamilyHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	member, err := h.memberService.Get(r.Context(), GetUserFromContext(r.Context()), id)
	if err != nil {
		respondWithError(w, h.logger, "Error getting member", err)
		return
	}
	respondWithJSON(w, http.StatusOK, member)
}

// CreateMember creates a member
func (h *FamilyHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var in service.MemberInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	member, err := h.memberService.Create(r.Context(), GetUserFromContext(r.Context()), in)
	if err != nil {
		respondWithError(w, h.logger, "Error creating member", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, member)
}

// UpdateMember applies a partial update guarded by lastUpdatedAt
func (h *FamilyHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	var in service.MemberInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	member, err := h.memberService.Update(r.Context(), GetUserFromContext(r.Context()), id, in)
	if err != nil {
		respondWithError(w, h.logger, "Error updating member", err)
		return
	}
	respondWithJSON(w, http.StatusOK, member)
}

// DeleteMember deactivates a member
func (h *FamilyHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	if err := h.memberService.Delete(r.Context(), GetUserFromContext(r.Context()), id); err != nil {
		respondWithError(w, h.logger, "Error deleting member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnlinkMemberUser detaches a member from its user account
func (h *FamilyHandler) UnlinkMemberUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	member, err := h.memberService.UnlinkUser(r.Context(), GetUserFromContext(r.Context()), id)
	if err != nil {
		respondWithError(w, h.logger, "Error unlinking member", err)
		return
	}
	respondWithJSON(w, http.StatusOK, member)
}
