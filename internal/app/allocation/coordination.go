// internal/app/allocation/coordination.go
package allocation

import (
	"context"
	"errors"

	metricsstore "github.com/dalemusser/capstone/internal/app/store/metrics"
	teamstore "github.com/dalemusser/capstone/internal/app/store/teams"
	"github.com/dalemusser/capstone/internal/app/system/apperr"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CoordinatorApprove approves a pending or rejected team whose project
// choices are all approved. Mentor responses run against the cursor set
// at creation; approval does not move it.
func (s *Service) CoordinatorApprove(ctx context.Context, actor models.Actor, teamID primitive.ObjectID, message string) (TeamView, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return TeamView{}, err
	}
	t, err := s.Teams.GetByID(ctx, teamID)
	if err != nil {
		return TeamView{}, storeErr("load team", err)
	}
	projects, err := s.Projects.GetMany(ctx, t.ProjectChoices)
	if err != nil {
		return TeamView{}, storeErr("load projects", err)
	}
	if err := CheckApprove(t, projects); err != nil {
		return TeamView{}, err
	}
	fb, err := s.feedback(actor, message, "")
	if err != nil {
		return TeamView{}, err
	}

	err = s.Teams.SetStatus(ctx, t.ID, []string{models.TeamPending, models.TeamRejected}, models.TeamApproved, fb)
	if errors.Is(err, teamstore.ErrStale) {
		return TeamView{}, apperr.Conflict("team %s is already approved", t.Code)
	}
	if err != nil {
		return TeamView{}, storeErr("approve team", err)
	}

	s.Audit.TeamApproved(ctx, actor, t.ID)
	v, err := s.view(ctx, t.ID)
	if err != nil {
		return TeamView{}, err
	}
	s.Notify.TeamApproved(ctx, v.Team, feedbackText(fb))
	return v, nil
}

// CoordinatorReject rejects a team that holds no mentor. The mentor
// cascade is frozen until the team is approved again.
func (s *Service) CoordinatorReject(ctx context.Context, actor models.Actor, teamID primitive.ObjectID, message string) (TeamView, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return TeamView{}, err
	}
	t, err := s.Teams.GetByID(ctx, teamID)
	if err != nil {
		return TeamView{}, storeErr("load team", err)
	}
	if err := CheckReject(t); err != nil {
		return TeamView{}, err
	}
	fb, err := s.feedback(actor, message, "")
	if err != nil {
		return TeamView{}, err
	}

	err = s.Teams.SetStatus(ctx, t.ID, []string{models.TeamPending, models.TeamApproved}, models.TeamRejected, fb)
	if errors.Is(err, teamstore.ErrStale) {
		if cur, gerr := s.Teams.GetByID(ctx, t.ID); gerr == nil {
			if cerr := CheckReject(cur); cerr != nil {
				return TeamView{}, cerr
			}
		}
	}
	if err != nil {
		return TeamView{}, storeErr("reject team", err)
	}

	s.Audit.TeamRejected(ctx, actor, t.ID)
	v, err := s.view(ctx, t.ID)
	if err != nil {
		return TeamView{}, err
	}
	s.Notify.TeamRejected(ctx, v.Team, feedbackText(fb))
	return v, nil
}

// FlagForManualAllocation marks an approved team that still has live
// mentor preferences as needing an administrator to allocate it.
func (s *Service) FlagForManualAllocation(ctx context.Context, actor models.Actor, teamID primitive.ObjectID) (TeamView, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return TeamView{}, err
	}
	t, err := s.Teams.GetByID(ctx, teamID)
	if err != nil {
		return TeamView{}, storeErr("load team", err)
	}
	if err := CheckFlag(t); err != nil {
		return TeamView{}, err
	}
	if err := s.Teams.FlagManualAllocation(ctx, t.ID); err != nil {
		return TeamView{}, storeErr("flag team", err)
	}
	s.Audit.ManualFlagged(ctx, actor, t.ID)
	return s.view(ctx, t.ID)
}

// AllocateMentor commits mentorID to a team awaiting manual allocation.
// When projectID is nil the first of the team's choices with room is used.
func (s *Service) AllocateMentor(ctx context.Context, actor models.Actor, teamID, mentorID primitive.ObjectID, projectID *primitive.ObjectID) (TeamView, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return TeamView{}, err
	}
	t, err := s.Teams.GetByID(ctx, teamID)
	if err != nil {
		return TeamView{}, storeErr("load team", err)
	}
	mentor, err := s.Users.GetByID(ctx, mentorID)
	if err != nil {
		return TeamView{}, storeErr("load mentor", err)
	}

	var p models.Project
	if projectID != nil {
		p, err = s.Projects.GetByID(ctx, *projectID)
		if err != nil {
			return TeamView{}, storeErr("load project", err)
		}
	} else {
		projects, err := s.Projects.GetMany(ctx, t.ProjectChoices)
		if err != nil {
			return TeamView{}, storeErr("load projects", err)
		}
		if p, err = pickProject(t, projects); err != nil {
			return TeamView{}, err
		}
	}
	if err := CheckManual(t, mentor, p); err != nil {
		return TeamView{}, err
	}
	fb, err := s.feedback(actor, "", "Mentor allocated by an administrator.")
	if err != nil {
		return TeamView{}, err
	}

	if err := s.commit(ctx, commitRequest{
		team:      t,
		mentorID:  mentor.ID,
		projectID: p.ID,
		feedback:  fb,
	}); err != nil {
		return TeamView{}, err
	}

	s.Audit.Assigned(ctx, actor, t.ID, mentor.ID, p.ID, true)
	v, err := s.view(ctx, t.ID)
	if err != nil {
		return TeamView{}, err
	}
	s.Notify.AssignmentCommitted(ctx, v.Team, mentor, p)
	return v, nil
}

// ListTeams lists teams by status for coordinators. An empty status lists all.
func (s *Service) ListTeams(ctx context.Context, actor models.Actor, status string) ([]TeamView, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	switch status {
	case "", models.TeamPending, models.TeamApproved, models.TeamRejected:
	default:
		return nil, apperr.Validation("unknown team status %q", status)
	}
	teams, err := s.Teams.ListByStatus(ctx, status)
	if err != nil {
		return nil, storeErr("list teams", err)
	}
	return views(teams), nil
}

// ManualQueue lists teams that an administrator needs to allocate.
func (s *Service) ManualQueue(ctx context.Context, actor models.Actor) ([]TeamView, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	teams, err := s.Teams.ListNeedingManualAllocation(ctx)
	if err != nil {
		return nil, storeErr("list manual allocation queue", err)
	}
	return views(teams), nil
}

// Summary returns the allocation overview for coordinators.
func (s *Service) Summary(ctx context.Context, actor models.Actor) (metricsstore.Counts, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return metricsstore.Counts{}, err
	}
	counts, err := metricsstore.FetchAllocationCounts(ctx, s.DB)
	if err != nil {
		return metricsstore.Counts{}, storeErr("count allocation summary", err)
	}
	return counts, nil
}
