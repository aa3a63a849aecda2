// internal/app/allocation/views.go
package allocation

import (
	"context"
	"errors"

	teamstore "github.com/dalemusser/capstone/internal/app/store/teams"
	"github.com/dalemusser/capstone/internal/app/system/apperr"
	"github.com/dalemusser/capstone/internal/app/system/cascade"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TeamView is a team plus values derived from its stored fields.
type TeamView struct {
	models.Team
	Size           int                 `json:"size"`
	CurrentMentor  *primitive.ObjectID `json:"current_mentor,omitempty"`
	Exhausted      bool                `json:"exhausted"`
	AwaitingManual bool                `json:"awaiting_manual_allocation"`
	Committed      bool                `json:"committed"`
}

// NewTeamView derives the computed fields of t.
func NewTeamView(t models.Team) TeamView {
	v := TeamView{
		Team:           t,
		Size:           t.TeamSize(),
		Exhausted:      t.IsExhausted(),
		AwaitingManual: t.NeedsManualAllocation(),
		Committed:      t.IsCommitted(),
	}
	if t.Mentor.Assigned == nil {
		if m, ok := cascade.Current(t.Mentor.Preferences, t.Mentor.CurrentPreference); ok {
			v.CurrentMentor = &m
		}
	}
	return v
}

func views(teams []models.Team) []TeamView {
	out := make([]TeamView, 0, len(teams))
	for _, t := range teams {
		out = append(out, NewTeamView(t))
	}
	return out
}

func (s *Service) view(ctx context.Context, teamID primitive.ObjectID) (TeamView, error) {
	t, err := s.Teams.GetByID(ctx, teamID)
	if err != nil {
		return TeamView{}, storeErr("load team", err)
	}
	return NewTeamView(t), nil
}

// Mine returns the caller's team.
func (s *Service) Mine(ctx context.Context, actor models.Actor) (TeamView, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return TeamView{}, err
	}
	t, err := s.Teams.GetByMember(ctx, actor.ID)
	if errors.Is(err, teamstore.ErrNotFound) {
		return TeamView{}, apperr.NotFound("you are not on a team")
	}
	if err != nil {
		return TeamView{}, storeErr("load team", err)
	}
	return NewTeamView(t), nil
}

// Get returns a team the caller may see: administrators see every team,
// students their own, mentors the teams that listed or hold them.
func (s *Service) Get(ctx context.Context, actor models.Actor, teamID primitive.ObjectID) (TeamView, error) {
	t, err := s.Teams.GetByID(ctx, teamID)
	if err != nil {
		return TeamView{}, storeErr("load team", err)
	}
	if !canView(actor, t) {
		return TeamView{}, apperr.Forbidden("you do not have access to this team")
	}
	return NewTeamView(t), nil
}

func canView(actor models.Actor, t models.Team) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleStudent:
		return t.HasMember(actor.ID)
	case models.RoleMentor:
		if t.Mentor.Assigned != nil && *t.Mentor.Assigned == actor.ID {
			return true
		}
		for _, m := range t.Mentor.Preferences {
			if m == actor.ID {
				return true
			}
		}
	}
	return false
}
