package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"visitas/internal/metrics"
	"visitas/internal/service"
)

// NewRouter registers every API route on a fresh mux and wraps it with
// request logging
func NewRouter(svc *service.Services, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	middleware := NewMiddleware(svc.Auth, m, logger)
	auth := middleware.RequireAuth

	authHandler := NewAuthHandler(svc.Auth, logger)
	barrioHandler := NewBarrioHandler(svc.Barrios, svc.Nucleos, logger)
	familyHandler := NewFamilyHandler(svc.Families, svc.Members, logger)
	visitHandler := NewVisitHandler(svc.Visits, logger)
	goalHandler := NewGoalHandler(svc.Goals, svc.Timeline, logger)
	adminHandler := NewAdminHandler(svc.Invitations, svc.Backup, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", m.Handler())

	// Auth
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", auth(authHandler.Logout))
	mux.HandleFunc("GET /api/auth/me", auth(authHandler.Me))
	mux.HandleFunc("POST /api/auth/password", auth(authHandler.ChangePassword))

	// Places
	mux.HandleFunc("GET /api/barrios", auth(barrioHandler.ListBarrios))
	mux.HandleFunc("POST /api/barrios", auth(barrioHandler.CreateBarrio))
	mux.HandleFunc("GET /api/barrios/{id}", auth(barrioHandler.GetBarrio))
	mux.HandleFunc("PUT /api/barrios/{id}", auth(barrioHandler.UpdateBarrio))
	mux.HandleFunc("DELETE /api/barrios/{id}", auth(barrioHandler.DeleteBarrio))
	mux.HandleFunc("GET /api/nucleos", auth(barrioHandler.ListNucleos))
	mux.HandleFunc("POST /api/nucleos", auth(barrioHandler.CreateNucleo))
	mux.HandleFunc("GET /api/nucleos/{id}", auth(barrioHandler.GetNucleo))
	mux.HandleFunc("PUT /api/nucleos/{id}", auth(barrioHandler.UpdateNucleo))
	mux.HandleFunc("DELETE /api/nucleos/{id}", auth(barrioHandler.DeleteNucleo))

	// Families and members
	mux.HandleFunc("GET /api/families", auth(familyHandler.ListFamilies))
	mux.HandleFunc("POST /api/families", auth(familyHandler.CreateFamily))
	mux.HandleFunc("GET /api/families/{id}", auth(familyHandler.GetFamily))
	mux.HandleFunc("PUT /api/families/{id}", auth(familyHandler.UpdateFamily))
	mux.HandleFunc("DELETE /api/families/{id}", auth(familyHandler.DeleteFamily))
	mux.HandleFunc("GET /api/members", auth(familyHandler.ListMembers))
	mux.HandleFunc("POST /api/members", auth(familyHandler.CreateMember))
	mux.HandleFunc("GET /api/members/{id}", auth(familyHandler.GetMember))
	mux.HandleFunc("PUT /api/members/{id}", auth(familyHandler.UpdateMember))
	mux.HandleFunc("DELETE /api/members/{id}", auth(familyHandler.DeleteMember))
	mux.HandleFunc("POST /api/members/{id}/unlink-user", auth(familyHandler.UnlinkMemberUser))

	// Visits
	mux.HandleFunc("GET /api/visits", auth(visitHandler.ListVisits))
	mux.HandleFunc("POST /api/visits", auth(visitHandler.CreateVisit))
	mux.HandleFunc("GET /api/visits/{id}", auth(visitHandler.GetVisit))
	mux.HandleFunc("PUT /api/visits/{id}", auth(visitHandler.UpdateVisit))
	mux.HandleFunc("DELETE /api/visits/{id}", auth(visitHandler.DeleteVisit))

	// Goals and timeline
	mux.HandleFunc("GET /api/goals", auth(goalHandler.ListGoals))
	mux.HandleFunc("POST /api/goals", auth(goalHandler.CreateGoal))
	mux.HandleFunc("GET /api/goals/{id}", auth(goalHandler.GetGoal))
	mux.HandleFunc("PUT /api/goals/{id}", auth(goalHandler.UpdateGoal))
	mux.HandleFunc("DELETE /api/goals/{id}", auth(goalHandler.DeleteGoal))
	mux.HandleFunc("GET /api/timeline", auth(goalHandler.Timeline))

	// Admin
	mux.HandleFunc("POST /api/invitations", auth(adminHandler.CreateInvitation))
	mux.HandleFunc("GET /api/invitations", auth(adminHandler.PendingInvitations))
	mux.HandleFunc("POST /api/invitations/{code}/accept", adminHandler.AcceptInvitation)
	mux.HandleFunc("GET /api/export", auth(adminHandler.Export))
	mux.HandleFunc("POST /api/import", auth(adminHandler.Import))

	return middleware.Logging(mux)
}
