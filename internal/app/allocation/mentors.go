// internal/app/allocation/mentors.go
package allocation

import (
	"context"

	userstore "github.com/dalemusser/capstone/internal/app/store/users"
	"github.com/dalemusser/capstone/internal/app/system/capacity"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MentorLoad is a mentor's capacity record with its derived values.
type MentorLoad struct {
	MentorID    primitive.ObjectID   `json:"mentor_id"`
	FullName    string               `json:"full_name"`
	Teams       []primitive.ObjectID `json:"assigned_teams"`
	MaxTeams    int                  `json:"max_teams"`
	Remaining   int                  `json:"remaining"`
	IsAvailable bool                 `json:"is_available"`
}

// NewMentorLoad derives the capacity values of m. Disabled mentors are
// never available.
func NewMentorLoad(m models.User) MentorLoad {
	teams := m.AssignedTeams
	if teams == nil {
		teams = []primitive.ObjectID{}
	}
	return MentorLoad{
		MentorID:    m.ID,
		FullName:    m.FullName,
		Teams:       teams,
		MaxTeams:    m.MaxTeams,
		Remaining:   capacity.Remaining(len(m.AssignedTeams), m.MaxTeams),
		IsAvailable: m.IsAvailable() && m.Status != userstore.StatusDisabled,
	}
}

// MentorCapacity returns the caller's own capacity.
func (s *Service) MentorCapacity(ctx context.Context, actor models.Actor) (MentorLoad, error) {
	if err := requireRole(actor, models.RoleMentor); err != nil {
		return MentorLoad{}, err
	}
	m, err := s.Users.GetByID(ctx, actor.ID)
	if err != nil {
		return MentorLoad{}, storeErr("load mentor", err)
	}
	return NewMentorLoad(m), nil
}

// Mentors lists active mentors and their capacity for coordinators
// choosing a manual allocation.
func (s *Service) Mentors(ctx context.Context, actor models.Actor) ([]MentorLoad, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	mentors, err := s.Users.ListByRole(ctx, models.RoleMentor)
	if err != nil {
		return nil, storeErr("list mentors", err)
	}
	out := make([]MentorLoad, 0, len(mentors))
	for _, m := range mentors {
		out = append(out, NewMentorLoad(m))
	}
	return out, nil
}
