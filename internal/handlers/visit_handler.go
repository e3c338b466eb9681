package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"visitas/internal/models"
	"visitas/internal/service"
)

// VisitHandler handles visit requests
type VisitHandler struct {
	visitService *service.VisitService
	logger       *zap.Logger
}

// NewVisitHandler creates a new visit handler
func NewVisitHandler(visitService *service.VisitService, logger *zap.Logger) *VisitHandler {
	return &VisitHandler{
		visitService: visitService,
		logger:       logger,
	}
}

// ListVisits supports ?familyId, ?status, ?from and ?to
func (h *VisitHandler) ListVisits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.VisitQuery{Sort: querySort(q)}

	var err error
	if query.FamilyID, err = queryInt64(q, "familyId"); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	if query.From, err = queryDate(q, "from"); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	if query.To, err = queryDate(q, "to"); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	if raw := q.Get("status"); raw != "" {
		status := models.VisitStatus(raw)
		query.Status = &status
	}

	visits, err := h.visitService.List(r.Context(), GetUserFromContext(r.Context()), query)
	if err != nil {
		respondWithError(w, h.logger, "Error listing visits", err)
		return
	}
	respondWithJSON(w, http.StatusOK, visits)
}

// GetVisit returns a visit with its family, author and visitors
func (h *VisitHandler) GetVisit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	visit, err := h.visitService.Get(r.Context(), GetUserFromContext(r.Context()), id)
	if err != nil {
		respondWithError(w, h.logger, "Error getting visit", err)
		return
	}
	respondWithJSON(w, http.StatusOK, visit)
}

// CreateVisit records a visit authored by the caller
func (h *VisitHandler) CreateVisit(w http.ResponseWriter, r *http.Request) {
	var in service.VisitInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	visit, err := h.visitService.Create(r.Context(), GetUserFromContext(r.Context()), in)
	if err != nil {
		respondWithError(w, h.logger, "Error creating visit", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, visit)
}

// UpdateVisit applies a partial update guarded by lastUpdatedAt
func (h *VisitHandler) UpdateVisit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	var in service.VisitInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	visit, err := h.visitService.Update(r.Context(), GetUserFromContext(r.Context()), id, in)
	if err != nil {
		respondWithError(w, h.logger, "Error updating visit", err)
		return
	}
	respondWithJSON(w, http.StatusOK, visit)
}

// DeleteVisit removes a visit
func (h *VisitHandler) DeleteVisit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	if err := h.visitService.Delete(r.Context(), GetUserFromContext(r.Context()), id); err != nil {
		respondWithError(w, h.logger, "Error deleting visit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
