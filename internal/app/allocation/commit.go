// internal/app/allocation/commit.go
package allocation

import (
	"context"
	"errors"

	teamstore "github.com/dalemusser/capstone/internal/app/store/teams"
	"github.com/dalemusser/capstone/internal/app/system/apperr"
	"github.com/dalemusser/capstone/internal/app/system/txn"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// commitRequest is one assignment of a mentor and final project to a team.
type commitRequest struct {
	team      models.Team
	mentorID  primitive.ObjectID
	projectID primitive.ObjectID
	// expectCursor pins the cascade cursor for mentor self-accepts.
	expectCursor *int
	feedback     *models.FeedbackEntry
}

// commit writes the team, project and mentor sides of an assignment as one
// unit. Every side is a conditional update that re-checks state and
// capacity at write time, so concurrent commits for the same team or the
// last slot of a mentor or project leave exactly one winner.
//
// Without transaction support the sides already written are undone in
// reverse order before the error is returned.
func (s *Service) commit(ctx context.Context, req commitRequest) error {
	at := s.now()
	teamID := req.team.ID

	err := txn.Run(ctx, s.DB, s.Log, func(ctx context.Context) error {
		var undo []func(context.Context)
		fail := func(err error) error {
			if !txn.InTransaction(ctx) {
				for i := len(undo) - 1; i >= 0; i-- {
					undo[i](ctx)
				}
			}
			return err
		}

		tc := teamstore.Commit{
			TeamID:       teamID,
			MentorID:     req.mentorID,
			ProjectID:    req.projectID,
			At:           at,
			ExpectCursor: req.expectCursor,
			Feedback:     req.feedback,
		}
		if err := s.Teams.CommitAssignment(ctx, tc); err != nil {
			return fail(err)
		}
		flagged := req.team.Mentor.NeedsManualAllocation
		undo = append(undo, func(ctx context.Context) {
			s.undo("clear team assignment", s.Teams.ClearAssignment(ctx, tc, flagged))
		})

		if err := s.Projects.ClaimSlot(ctx, req.projectID, teamID); err != nil {
			return fail(err)
		}
		undo = append(undo, func(ctx context.Context) {
			s.undo("release project slot", s.Projects.ReleaseSlot(ctx, req.projectID, teamID))
		})

		if err := s.Users.ClaimMentorSlot(ctx, req.mentorID, teamID); err != nil {
			return fail(err)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, teamstore.ErrStale) {
		return s.explainStaleCommit(ctx, req)
	}
	return storeErr("commit assignment", err)
}

// explainStaleCommit re-reads the team after its conditional update
// matched nothing and reports what changed.
func (s *Service) explainStaleCommit(ctx context.Context, req commitRequest) error {
	cur, err := s.Teams.GetByID(ctx, req.team.ID)
	if err != nil {
		return storeErr("load team", err)
	}
	switch {
	case cur.Mentor.Assigned != nil:
		return apperr.Conflict("team %s already has a mentor", cur.Code)
	case cur.Status != models.TeamApproved:
		return apperr.Conflict("team %s is no longer approved", cur.Code)
	case req.expectCursor != nil && cur.Mentor.CurrentPreference != *req.expectCursor:
		return apperr.Forbidden("you are no longer the team's current mentor preference")
	case !cur.HasProjectChoice(req.projectID):
		return apperr.Validation("the final project is no longer one of the team's choices")
	}
	return apperr.Conflict("team %s changed while the assignment was being committed", cur.Code)
}
