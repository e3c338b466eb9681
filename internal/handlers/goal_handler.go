package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"visitas/internal/apperr"
	"visitas/internal/models"
	"visitas/internal/service"
)

// GoalHandler handles goal and timeline requests
type GoalHandler struct {
	goalService     *service.GoalService
	timelineService *service.TimelineService
	logger          *zap.Logger
}

// NewGoalHandler creates a new goal handler
func NewGoalHandler(goalService *service.GoalService, timelineService *service.TimelineService, logger *zap.Logger) *GoalHandler {
	return &GoalHandler{
		goalService:     goalService,
		timelineService: timelineService,
		logger:          logger,
	}
}

func (h *GoalHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goalService.List(r.Context(), GetUserFromContext(r.Context()), querySort(r.URL.Query()))
	if err != nil {
		respondWithError(w, h.logger, "Error listing goals", err)
		return
	}
	respondWithJSON(w, http.StatusOK, goals)
}

func (h *GoalHandler) GetGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	goal, err := h.goalService.Get(r.Context(), GetUserFromContext(r.Context()), id)
	if err != nil {
		respondWithError(w, h.logger, "Error getting goal", err)
		return
	}
	respondWithJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var in service.GoalInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	goal, err := h.goalService.Create(r.Context(), GetUserFromContext(r.Context()), in)
	if err != nil {
		respondWithError(w, h.logger, "Error creating goal", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, goal)
}

func (h *GoalHandler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	var in service.GoalInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	goal, err := h.goalService.Update(r.Context(), GetUserFromContext(r.Context()), id, in)
	if err != nil {
		respondWithError(w, h.logger, "Error updating goal", err)
		return
	}
	respondWithJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	if err := h.goalService.Delete(r.Context(), GetUserFromContext(r.Context()), id); err != nil {
		respondWithError(w, h.logger, "Error deleting goal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Timeline returns recent audit events, optionally for one entity
// (?entityType=family&entityId=3) and capped by ?limit
func (h *GoalHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.TimelineQuery{Limit: 50}

	if raw := q.Get("entityType"); raw != "" {
		entity := models.EntityType(raw)
		query.EntityType = &entity
	}
	var err error
	if query.EntityID, err = queryInt64(q, "entityId"); err != nil {
		respondWithError(w, h.logger, "", err)
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respondWithError(w, h.logger, "", apperr.BadRequestf("%s: limit", ErrInvalidQuery))
			return
		}
		query.Limit = limit
	}

	events, err := h.timelineService.List(r.Context(), GetUserFromContext(r.Context()), query)
	if err != nil {
		respondWithError(w, h.logger, "Error reading timeline", err)
		return
	}
	respondWithJSON(w, http.StatusOK, events)
}
