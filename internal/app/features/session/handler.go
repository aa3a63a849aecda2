// internal/app/features/session/handler.go
package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/capstone/internal/app/features/shared"
	signinstore "github.com/dalemusser/capstone/internal/app/store/signins"
	userstore "github.com/dalemusser/capstone/internal/app/store/users"
	"github.com/dalemusser/capstone/internal/app/system/apperr"
	"github.com/dalemusser/capstone/internal/app/system/auth"
	"github.com/dalemusser/capstone/internal/app/system/respond"
	"github.com/dalemusser/capstone/internal/app/system/timeouts"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultTokenTTL is the lifetime of bearer tokens issued by Token.
const DefaultTokenTTL = 12 * time.Hour

// historyLimit bounds GET /session/history.
const historyLimit = 20

// Handler manages the caller's session. Sign-in proper belongs to the
// identity provider in front of this service; DevSignIn exists for local
// development only.
type Handler struct {
	Users    *userstore.Store
	SignIns  *signinstore.Store
	Sessions *auth.SessionManager
	TokenTTL time.Duration
	Log      *zap.Logger
}

// NewHandler constructs a session Handler.
func NewHandler(db *mongo.Database, sm *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    userstore.New(db),
		SignIns:  signinstore.New(db),
		Sessions: sm,
		TokenTTL: DefaultTokenTTL,
		Log:      logger,
	}
}

type devSignInRequest struct {
	Email string `json:"email"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DevSignIn handles POST /session/dev: it issues a session cookie for the
// active user with the given email.
func (h *Handler) DevSignIn(w http.ResponseWriter, r *http.Request) {
	var req devSignInRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if req.Email == "" {
		respond.Error(w, h.Log, apperr.Validation("email is required"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "dev sign-in")
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, userstore.ErrNotFound) || (err == nil && u.Status != userstore.StatusActive) {
		respond.Error(w, h.Log, apperr.NotFound("no active user with that email"))
		return
	}
	if err != nil {
		respond.Error(w, h.Log, apperr.Internal("load user", err))
		return
	}
	if err := h.Sessions.IssueSession(w, r, u.ID.Hex()); err != nil {
		respond.Error(w, h.Log, apperr.Internal("issue session", err))
		return
	}
	h.record(r, u.ID, models.SignInSession)
	respond.JSON(w, http.StatusOK, u)
}

// Token handles POST /session/token: a signed-in caller exchanges its
// session for a bearer token.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	expires := time.Now().UTC().Add(h.TokenTTL)
	tok, err := h.Sessions.IssueToken(actor.ID.Hex(), actor.Role, h.TokenTTL)
	if err != nil {
		h.Log.Warn("bearer token requested but not enabled", zap.Error(err))
		respond.Error(w, h.Log, apperr.Conflict("bearer tokens are not enabled"))
		return
	}
	h.record(r, actor.ID, models.SignInToken)
	respond.JSON(w, http.StatusOK, tokenResponse{Token: tok, ExpiresAt: expires})
}

// SignOut handles DELETE /session.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.ClearSession(w, r); err != nil {
		h.Log.Warn("clear session", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /session/history: the caller's recent sign-ins.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "sign-in history")
	defer cancel()

	out, err := h.SignIns.Recent(ctx, actor.ID, historyLimit)
	if err != nil {
		respond.Error(w, h.Log, apperr.Internal("load sign-in history", err))
		return
	}
	respond.JSON(w, http.StatusOK, out)
}

// record notes a sign-in. Failure is logged and does not fail the request.
func (h *Handler) record(r *http.Request, userID primitive.ObjectID, method string) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "record sign-in")
	defer cancel()
	if _, err := h.SignIns.Record(ctx, r, userID, method); err != nil {
		h.Log.Warn("failed to record sign-in",
			zap.String("user_id", userID.Hex()), zap.String("method", method), zap.Error(err))
	}
}
