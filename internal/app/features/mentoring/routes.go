package mentoring

import (
	"github.com/dalemusser/capstone/internal/app/system/auth"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter mounted under /mentoring. Mentors only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(models.RoleMentor))
	r.Get("/queue", h.Queue)
	r.Get("/teams", h.Teams)
	r.Get("/capacity", h.Capacity)
	r.Post("/teams/{id}/reject", h.Reject)
	r.Post("/teams/{id}/accept", h.Accept)
	return r
}
