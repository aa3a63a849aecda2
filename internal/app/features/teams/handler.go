// internal/app/features/teams/handler.go
package teams

import (
	"net/http"

	"github.com/dalemusser/capstone/internal/app/allocation"
	"github.com/dalemusser/capstone/internal/app/features/shared"
	"github.com/dalemusser/capstone/internal/app/system/ratelimit"
	"github.com/dalemusser/capstone/internal/app/system/respond"
	"github.com/dalemusser/capstone/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler serves the student-facing team endpoints.
type Handler struct {
	Svc *allocation.Service
	Log *zap.Logger
}

// NewHandler constructs a teams Handler.
func NewHandler(svc *allocation.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

type createRequest struct {
	Name           string   `json:"name"`
	ProjectChoices []string `json:"project_choices"`
	MentorChoices  []string `json:"mentor_choices"`
}

type joinRequest struct {
	Code string `json:"code"`
}

type choicesRequest struct {
	ProjectChoices []string `json:"project_choices"`
}

// Create handles POST /teams. The caller becomes the leader.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	projects, err := shared.ParseIDs(req.ProjectChoices, "project_choices")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	mentors, err := shared.ParseIDs(req.MentorChoices, "mentor_choices")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "create team")
	defer cancel()

	v, err := h.Svc.Create(ctx, actor, allocation.CreateInput{
		Name:           req.Name,
		ProjectChoices: projects,
		MentorChoices:  mentors,
	})
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, v)
}

// Join handles POST /teams/join.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "join team")
	defer cancel()

	v, err := h.Svc.Join(ctx, actor, req.Code, ratelimit.ClientIP(r))
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, v)
}

// Leave handles POST /teams/leave.
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "leave team")
	defer cancel()

	res, err := h.Svc.Leave(ctx, actor)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

// Mine handles GET /teams/mine.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "load own team")
	defer cancel()

	v, err := h.Svc.Mine(ctx, actor)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, v)
}

// Show handles GET /teams/{id}.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "load team")
	defer cancel()

	v, err := h.Svc.Get(ctx, actor, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, v)
}

// EditProjects handles PUT /teams/{id}/projects.
func (h *Handler) EditProjects(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	var req choicesRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	choices, err := shared.ParseIDs(req.ProjectChoices, "project_choices")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "edit project choices")
	defer cancel()

	v, err := h.Svc.EditProjectChoices(ctx, actor, id, choices)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, v)
}
