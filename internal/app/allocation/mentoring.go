// internal/app/allocation/mentoring.go
package allocation

import (
	"context"
	"errors"
	"fmt"

	teamstore "github.com/dalemusser/capstone/internal/app/store/teams"
	"github.com/dalemusser/capstone/internal/app/system/apperr"
	"github.com/dalemusser/capstone/internal/app/system/cascade"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RejectTeam records the current mentor preference declining the team and
// moves the cursor to the next mentor, or to the exhausted state after
// the last one.
func (s *Service) RejectTeam(ctx context.Context, actor models.Actor, teamID primitive.ObjectID, message string) (TeamView, error) {
	if err := requireRole(actor, models.RoleMentor); err != nil {
		return TeamView{}, err
	}
	t, err := s.Teams.GetByID(ctx, teamID)
	if err != nil {
		return TeamView{}, storeErr("load team", err)
	}
	if err := CheckDecline(t, actor.ID); err != nil {
		return TeamView{}, err
	}
	from := t.Mentor.CurrentPreference
	to, err := cascade.Next(t.Mentor.Preferences, from)
	if err != nil {
		return TeamView{}, apperr.Internal("advance mentor preference", err)
	}
	if !cascade.IsAdvance(from, to) {
		return TeamView{}, apperr.Internal("advance mentor preference", fmt.Errorf("cursor %d -> %d does not move forward", from, to))
	}
	fb, err := s.feedback(actor, message, "")
	if err != nil {
		return TeamView{}, err
	}

	if err := s.Teams.AdvanceCursor(ctx, t.ID, from, to, fb); err != nil {
		if errors.Is(err, teamstore.ErrStale) {
			return TeamView{}, s.explainStaleDecline(ctx, t.ID, actor.ID)
		}
		return TeamView{}, storeErr("advance mentor preference", err)
	}

	s.Audit.PreferenceDeclined(ctx, actor, t.ID, from, to)
	v, err := s.view(ctx, t.ID)
	if err != nil {
		return TeamView{}, err
	}
	if to == cascade.Exhausted {
		s.Notify.CascadeExhausted(ctx, v.Team)
	} else {
		s.Notify.TeamOffered(ctx, v.Team)
	}
	return v, nil
}

func (s *Service) explainStaleDecline(ctx context.Context, teamID, mentorID primitive.ObjectID) error {
	cur, err := s.Teams.GetByID(ctx, teamID)
	if err != nil {
		return storeErr("load team", err)
	}
	if cerr := CheckDecline(cur, mentorID); cerr != nil {
		return cerr
	}
	return apperr.Conflict("team %s changed while the response was being recorded", cur.Code)
}

// AcceptTeam commits the caller as mentor of the team with projectID as
// its final project. Only the current mentor preference may accept.
func (s *Service) AcceptTeam(ctx context.Context, actor models.Actor, teamID, projectID primitive.ObjectID, message string) (TeamView, error) {
	if err := requireRole(actor, models.RoleMentor); err != nil {
		return TeamView{}, err
	}
	if projectID.IsZero() {
		return TeamView{}, apperr.Validation("final_project_id is required")
	}
	t, err := s.Teams.GetByID(ctx, teamID)
	if err != nil {
		return TeamView{}, storeErr("load team", err)
	}
	mentor, err := s.Users.GetByID(ctx, actor.ID)
	if err != nil {
		return TeamView{}, storeErr("load mentor", err)
	}
	// Standing first: a non-current mentor gets Forbidden whatever the project.
	if err := CheckDecline(t, actor.ID); err != nil {
		return TeamView{}, err
	}
	p, err := s.Projects.GetByID(ctx, projectID)
	if err != nil {
		return TeamView{}, storeErr("load project", err)
	}
	if err := CheckAccept(t, mentor, p); err != nil {
		return TeamView{}, err
	}
	fb, err := s.feedback(actor, message, "")
	if err != nil {
		return TeamView{}, err
	}

	cursor := t.Mentor.CurrentPreference
	if err := s.commit(ctx, commitRequest{
		team:         t,
		mentorID:     mentor.ID,
		projectID:    p.ID,
		expectCursor: &cursor,
		feedback:     fb,
	}); err != nil {
		return TeamView{}, err
	}

	s.Audit.Assigned(ctx, actor, t.ID, mentor.ID, p.ID, false)
	v, err := s.view(ctx, t.ID)
	if err != nil {
		return TeamView{}, err
	}
	s.Notify.AssignmentCommitted(ctx, v.Team, mentor, p)
	return v, nil
}

// MentorQueue lists the teams currently waiting on the caller's response.
func (s *Service) MentorQueue(ctx context.Context, actor models.Actor) ([]TeamView, error) {
	if err := requireRole(actor, models.RoleMentor); err != nil {
		return nil, err
	}
	teams, err := s.Teams.ListOfferedTo(ctx, actor.ID)
	if err != nil {
		return nil, storeErr("list offered teams", err)
	}
	return views(teams), nil
}

// MentorTeams lists the teams committed to the caller.
func (s *Service) MentorTeams(ctx context.Context, actor models.Actor) ([]TeamView, error) {
	if err := requireRole(actor, models.RoleMentor); err != nil {
		return nil, err
	}
	teams, err := s.Teams.ListAssignedTo(ctx, actor.ID)
	if err != nil {
		return nil, storeErr("list assigned teams", err)
	}
	return views(teams), nil
}
