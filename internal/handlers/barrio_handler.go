package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"visitas/internal/service"
)

// BarrioHandler handles barrio and nucleo requests
type BarrioHandler struct {
	barrioService *service.BarrioService
	nucleoService *service.NucleoService
	logger        *zap.Logger
}

// NewBarrioHandler creates a new barrio handler
func NewBarrioHandler(barrioService *service.BarrioService, nucleoService *service.NucleoService, logger *zap.Logger) *BarrioHandler {
	return &BarrioHandler{
		barrioService: barrioService,
		nucleoService: nucleoService,
		logger:        logger,
	}
}

// ListBarrios returns the active barrios
func (h *BarrioHandler) ListBarrios(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	barrios, err := h.barrioService.List(r.Context(), user, querySort(r.URL.Query()))
	if err != nil {
		respondWithError(w, h.logger, "Error listing barrios", err)
		return
	}
	respondWithJSON(w, http.StatusOK, barrios)
}

// GetBarrio returns one barrio
func (h *BarrioHandler) GetBarrio(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	barrio, err := h.barrioService.Get(r.Context(), GetUserFromContext(r.Context()), id)
	if err != nil {
		respondWithError(w, h.logger, "Error getting barrio", err)
		return
	}
	respondWithJSON(w, http.StatusOK, barrio)
}

// CreateBarrio creates a barrio
func (h *BarrioHandler) CreateBarrio(w http.ResponseWriter, r *http.Request) {
	var in service.BarrioInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	barrio, err := h.barrioService.Create(r.Context(), GetUserFromContext(r.Context()), in)
	if err != nil {
		respondWithError(w, h.logger, "Error creating barrio", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, barrio)
}

// UpdateBarrio applies a partial update
func (h *BarrioHandler) UpdateBarrio(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	var in service.BarrioInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	barrio, err := h.barrioService.Update(r.Context(), GetUserFromContext(r.Context()), id, in)
	if err != nil {
		respondWithError(w, h.logger, "Error updating barrio", err)
		return
	}
	respondWithJSON(w, http.StatusOK, barrio)
}

// DeleteBarrio soft-deletes a barrio
func (h *BarrioHandler) DeleteBarrio(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	if err := h.barrioService.Delete(r.Context(), GetUserFromContext(r.Context()), id); err != nil {
		respondWithError(w, h.logger, "Error deleting barrio", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNucleos returns the nucleos the caller may see, optionally by barrio
func (h *BarrioHandler) ListNucleos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	barrioID, err := queryInt64(q, "barrioId")
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	nucleos, err := h.nucleoService.List(r.Context(), GetUserFromContext(r.Context()), service.NucleoQuery{
		BarrioID: barrioID,
		Sort:     querySort(q),
	})
	if err != nil {
		respondWithError(w, h.logger, "Error listing nucleos", err)
		return
	}
	respondWithJSON(w, http.StatusOK, nucleos)
}

// GetNucleo returns one nucleo with its barrio
func (h *BarrioHandler) GetNucleo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	nucleo, err := h.nucleoService.Get(r.Context(), GetUserFromContext(r.Context()), id)
	if err != nil {
		respondWithError(w, h.logger, "Error getting nucleo", err)
		return
	}
	respondWithJSON(w, http.StatusOK, nucleo)
}

// CreateNucleo creates a nucleo inside a barrio
func (h *BarrioHandler) CreateNucleo(w http.ResponseWriter, r *http.Request) {
	var in service.NucleoInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	nucleo, err := h.nucleoService.Create(r.Context(), GetUserFromContext(r.Context()), in)
	if err != nil {
		respondWithError(w, h.logger, "Error creating nucleo", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, nucleo)
}

// UpdateNucleo applies a partial update
func (h *BarrioHandler) UpdateNucleo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	var in service.NucleoInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	nucleo, err := h.nucleoService.Update(r.Context(), GetUserFromContext(r.Context()), id, in)
	if err != nil {
		respondWithError(w, h.logger, "Error updating nucleo", err)
		return
	}
	respondWithJSON(w, http.StatusOK, nucleo)
}

// DeleteNucleo soft-deletes a nucleo
func (h *BarrioHandler) DeleteNucleo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	if err := h.nucleoService.Delete(r.Context(), GetUserFromContext(r.Context()), id); err != nil {
		respondWithError(w, h.logger, "Error deleting nucleo", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
