// internal/app/features/projectbank/routes.go
package projectbank

import (
	"github.com/dalemusser/capstone/internal/app/system/auth"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter mounted under /projectbank. Any signed-in user
// may browse and propose; review and bulk import are for administrators.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.List)
	r.Post("/", h.Propose)
	r.Get("/{id}", h.Show)
	r.Post("/{id}/withdraw", h.Withdraw)

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireRole(models.RoleAdmin))
		r.Post("/import", h.Import)
		r.Post("/{id}/approve", h.Approve)
		r.Post("/{id}/reject", h.Reject)
		r.Post("/{id}/unapprove", h.Unapprove)
		r.Delete("/{id}", h.Delete)
	})
	return r
}
