// internal/app/features/mentoring/handler.go
package mentoring

import (
	"net/http"

	"github.com/dalemusser/capstone/internal/app/allocation"
	"github.com/dalemusser/capstone/internal/app/features/shared"
	"github.com/dalemusser/capstone/internal/app/system/respond"
	"github.com/dalemusser/capstone/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler serves the mentor side of the preference cascade.
type Handler struct {
	Svc *allocation.Service
	Log *zap.Logger
}

func NewHandler(svc *allocation.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

type acceptRequest struct {
	ProjectID string `json:"project_id"`
	Message   string `json:"message"`
}

// Queue handles GET /mentoring/queue: teams for which the caller is the
// current preference.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "mentor queue")
	defer cancel()

	teams, err := h.Svc.MentorQueue(ctx, actor)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, teams)
}

// Capacity handles GET /mentoring/capacity: the caller's assigned teams
// and remaining room.
func (h *Handler) Capacity(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "mentor capacity")
	defer cancel()

	load, err := h.Svc.MentorCapacity(ctx, actor)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, load)
}

// Teams handles GET /mentoring/teams: teams committed to the caller.
func (h *Handler) Teams(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "mentor teams")
	defer cancel()

	teams, err := h.Svc.MentorTeams(ctx, actor)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, teams)
}

// Reject handles POST /mentoring/teams/{id}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	var req shared.MessageBody
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "mentor reject")
	defer cancel()

	v, err := h.Svc.RejectTeam(ctx, actor, id, req.Message)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, v)
}

// Accept handles POST /mentoring/teams/{id}/accept. It commits the caller
// and the chosen project to the team.
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	var req acceptRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	projectID, err := shared.ParseID(req.ProjectID, "project_id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "mentor accept")
	defer cancel()

	v, err := h.Svc.AcceptTeam(ctx, actor, id, projectID, req.Message)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, v)
}
