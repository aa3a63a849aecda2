package coordination

import (
	"github.com/dalemusser/capstone/internal/app/system/auth"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter mounted under /coordination. Administrators only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(models.RoleAdmin))
	r.Get("/teams", h.ListTeams)
	r.Post("/teams", h.SeedTeam)
	r.Post("/teams/{id}/approve", h.Approve)
	r.Post("/teams/{id}/reject", h.Reject)
	r.Post("/teams/{id}/flag", h.Flag)
	r.Post("/teams/{id}/allocate", h.Allocate)
	r.Get("/manual", h.Manual)
	r.Get("/mentors", h.Mentors)
	r.Get("/summary", h.Summary)
	r.Post("/users", h.RegisterUser)
	return r
}
