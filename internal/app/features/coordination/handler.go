// internal/app/features/coordination/handler.go
package coordination

import (
	"context"
	"net/http"

	"github.com/dalemusser/capstone/internal/app/allocation"
	"github.com/dalemusser/capstone/internal/app/features/shared"
	"github.com/dalemusser/capstone/internal/app/system/normalize"
	"github.com/dalemusser/capstone/internal/app/system/respond"
	"github.com/dalemusser/capstone/internal/app/system/timeouts"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves administrator (coordinator) endpoints.
type Handler struct {
	Svc *allocation.Service
	Log *zap.Logger
}

// NewHandler constructs a coordination Handler.
func NewHandler(svc *allocation.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

type seedRequest struct {
	LeaderID       string   `json:"leader_id"`
	MemberIDs      []string `json:"member_ids"`
	Name           string   `json:"name"`
	ProjectChoices []string `json:"project_choices"`
	MentorChoices  []string `json:"mentor_choices"`
}

type allocateRequest struct {
	MentorID  string `json:"mentor_id"`
	ProjectID string `json:"project_id,omitempty"`
}

// ListTeams handles GET /coordination/teams?status=.
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	status := normalize.Status(r.URL.Query().Get("status"))

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list teams")
	defer cancel()

	teams, err := h.Svc.ListTeams(ctx, actor, status)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, teams)
}

// SeedTeam handles POST /coordination/teams: an administrator forms a
// team on behalf of a leader, optionally with its full roster.
func (h *Handler) SeedTeam(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var req seedRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	leader, err := shared.ParseID(req.LeaderID, "leader_id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	members, err := shared.ParseIDs(req.MemberIDs, "member_ids")
	if err != nil {
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

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "seed team")
	defer cancel()

	v, err := h.Svc.Create(ctx, actor, allocation.CreateInput{
		LeaderID:       leader,
		MemberIDs:      members,
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

// Approve handles POST /coordination/teams/{id}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "approve team", h.Svc.CoordinatorApprove)
}

// Reject handles POST /coordination/teams/{id}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "reject team", h.Svc.CoordinatorReject)
}

type reviewFunc func(ctx context.Context, actor models.Actor, teamID primitive.ObjectID, message string) (allocation.TeamView, error)

func (h *Handler) review(w http.ResponseWriter, r *http.Request, op string, fn reviewFunc) {
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

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, op)
	defer cancel()

	v, err := fn(ctx, actor, id, req.Message)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, v)
}

// Flag handles POST /coordination/teams/{id}/flag.
func (h *Handler) Flag(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "flag team")
	defer cancel()

	v, err := h.Svc.FlagForManualAllocation(ctx, actor, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, v)
}

// Allocate handles POST /coordination/teams/{id}/allocate. Without a
// project_id the first of the team's choices with room is used.
func (h *Handler) Allocate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	var req allocateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	mentorID, err := shared.ParseID(req.MentorID, "mentor_id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	var projectID *primitive.ObjectID
	if req.ProjectID != "" {
		pid, err := shared.ParseID(req.ProjectID, "project_id")
		if err != nil {
			respond.Error(w, h.Log, err)
			return
		}
		projectID = &pid
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "allocate mentor")
	defer cancel()

	v, err := h.Svc.AllocateMentor(ctx, actor, id, mentorID, projectID)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, v)
}

// Manual handles GET /coordination/manual.
func (h *Handler) Manual(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "manual allocation queue")
	defer cancel()

	teams, err := h.Svc.ManualQueue(ctx, actor)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, teams)
}

// Mentors handles GET /coordination/mentors: active mentors with their
// remaining capacity.
func (h *Handler) Mentors(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list mentors")
	defer cancel()

	mentors, err := h.Svc.Mentors(ctx, actor)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, mentors)
}

// RegisterUser handles POST /coordination/users.
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var req allocation.RegisterInput
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "register user")
	defer cancel()

	u, err := h.Svc.RegisterUser(ctx, actor, req)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, u)
}

// Summary handles GET /coordination/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "allocation summary")
	defer cancel()

	counts, err := h.Svc.Summary(ctx, actor)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, counts)
}
