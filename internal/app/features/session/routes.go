// internal/app/features/session/routes.go
package session

import (
	"github.com/dalemusser/capstone/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter mounted under /session. devSignIn enables
// POST /dev and must stay off outside development.
func Routes(h *Handler, sm *auth.SessionManager, devSignIn bool) chi.Router {
	r := chi.NewRouter()
	if devSignIn {
		r.Post("/dev", h.DevSignIn)
	}
	r.Delete("/", h.SignOut)
	r.With(sm.RequireSignedIn).Post("/token", h.Token)
	r.With(sm.RequireSignedIn).Get("/history", h.History)
	return r
}
