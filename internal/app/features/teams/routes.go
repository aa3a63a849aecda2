// internal/app/features/teams/routes.go
package teams

import (
	"github.com/dalemusser/capstone/internal/app/system/auth"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter mounted under /teams. Formation and
// membership changes are for students; any signed-in caller may read a
// team they have access to.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireRole(models.RoleStudent))
		r.Post("/", h.Create)
		r.Post("/join", h.Join)
		r.Post("/leave", h.Leave)
		r.Get("/mine", h.Mine)
		r.Put("/{id}/projects", h.EditProjects)
	})
	r.Get("/{id}", h.Show)
	return r
}
