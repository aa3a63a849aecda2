// internal/app/allocation/teams.go
package allocation

import (
	"context"
	"errors"
	"unicode/utf8"

	teamstore "github.com/dalemusser/capstone/internal/app/store/teams"
	"github.com/dalemusser/capstone/internal/app/system/apperr"
	"github.com/dalemusser/capstone/internal/app/system/htmlsanitize"
	"github.com/dalemusser/capstone/internal/app/system/normalize"
	"github.com/dalemusser/capstone/internal/app/system/teamcode"
	"github.com/dalemusser/capstone/internal/app/system/txn"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MaxTeamNameLen bounds the optional display name of a team.
const MaxTeamNameLen = 100

// CreateInput describes a new team.
type CreateInput struct {
	// LeaderID is taken from the caller when a student creates a team.
	LeaderID primitive.ObjectID
	// MemberIDs may only be given by an administrator seeding a roster.
	MemberIDs      []primitive.ObjectID
	Name           string
	ProjectChoices []primitive.ObjectID
	MentorChoices  []primitive.ObjectID
}

// Create forms a team led by the caller (or, for administrators, by
// in.LeaderID). The team starts pending with its cursor on the first mentor.
func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (TeamView, error) {
	switch {
	case actor.IsStudent():
		if len(in.MemberIDs) > 0 {
			return TeamView{}, apperr.Forbidden("only administrators can create a team with members")
		}
		in.LeaderID = actor.ID
	case actor.IsAdmin():
		if in.LeaderID.IsZero() {
			return TeamView{}, apperr.Validation("leader_id is required")
		}
	default:
		return TeamView{}, apperr.Forbidden("only students and administrators can create teams")
	}

	if err := CheckShape(in.LeaderID, in.MemberIDs); err != nil {
		return TeamView{}, err
	}
	if err := CheckChoices(in.ProjectChoices, in.MentorChoices); err != nil {
		return TeamView{}, err
	}
	name := htmlsanitize.PlainText(in.Name)
	if utf8.RuneCountInString(name) > MaxTeamNameLen {
		return TeamView{}, apperr.Validation("team name is limited to %d characters", MaxTeamNameLen)
	}

	leader, err := s.checkRoster(ctx, in.LeaderID, in.MemberIDs)
	if err != nil {
		return TeamView{}, err
	}
	if err := s.checkChoiceTargets(ctx, in.ProjectChoices, in.MentorChoices); err != nil {
		return TeamView{}, err
	}

	team := models.Team{
		Name:           name,
		LeaderID:       in.LeaderID,
		MemberIDs:      in.MemberIDs,
		Batch:          leader.Batch,
		Department:     leader.Department,
		ProjectChoices: in.ProjectChoices,
		Mentor: models.TeamMentor{
			Preferences:       in.MentorChoices,
			CurrentPreference: 0,
		},
		Status:            models.TeamPending,
		ProjectAbstract:   models.Submission{Status: models.SubmissionDraft},
		RoleSpecification: models.Submission{Status: models.SubmissionDraft},
	}

	for attempt := 0; attempt < s.Codes.MaxAttempts; attempt++ {
		code, err := s.Codes.Generate(ctx, s.Teams.CodeExists)
		if err != nil {
			if errors.Is(err, teamcode.ErrExhausted) {
				return TeamView{}, apperr.Internal("generate team code", err)
			}
			return TeamView{}, storeErr("generate team code", err)
		}
		team.Code = code

		created, err := s.insertTeam(ctx, team)
		if errors.Is(err, teamstore.ErrDuplicateCode) {
			s.Log.Debug("team code collided on insert; drawing again", zap.String("code", code))
			continue
		}
		if err != nil {
			return TeamView{}, storeErr("create team", err)
		}
		s.Audit.TeamCreated(ctx, actor, created)
		return NewTeamView(created), nil
	}
	return TeamView{}, apperr.Internal("generate team code", teamcode.ErrExhausted)
}

// checkRoster loads the leader and members and verifies each can be placed.
func (s *Service) checkRoster(ctx context.Context, leaderID primitive.ObjectID, memberIDs []primitive.ObjectID) (models.User, error) {
	ids := append([]primitive.ObjectID{leaderID}, memberIDs...)
	users, err := s.Users.GetMany(ctx, ids)
	if err != nil {
		return models.User{}, storeErr("load students", err)
	}
	leader, ok := users[leaderID]
	if !ok {
		return models.User{}, apperr.Validation("student %s does not exist", leaderID.Hex())
	}
	if err := CheckStudent(leader, "", ""); err != nil {
		return models.User{}, err
	}
	for _, id := range memberIDs {
		u, ok := users[id]
		if !ok {
			return models.User{}, apperr.Validation("student %s does not exist", id.Hex())
		}
		if err := CheckStudent(u, leader.Batch, leader.Department); err != nil {
			return models.User{}, err
		}
	}
	return leader, nil
}

// checkChoiceTargets verifies every project exists and is not rejected,
// and every mentor preference is a mentor.
func (s *Service) checkChoiceTargets(ctx context.Context, projectIDs, mentorIDs []primitive.ObjectID) error {
	projects, err := s.Projects.GetMany(ctx, projectIDs)
	if err != nil {
		return storeErr("load projects", err)
	}
	for _, id := range projectIDs {
		p, ok := projects[id]
		if !ok {
			return apperr.Validation("project %s does not exist", id.Hex())
		}
		if p.RejectedAt != nil {
			return apperr.Validation("project %q was rejected", p.Title)
		}
	}

	mentors, err := s.Users.GetMany(ctx, mentorIDs)
	if err != nil {
		return storeErr("load mentors", err)
	}
	for _, id := range mentorIDs {
		m, ok := mentors[id]
		if !ok {
			return apperr.Validation("mentor %s does not exist", id.Hex())
		}
		if !m.IsMentor() {
			return apperr.Validation("%s is not a mentor", m.FullName)
		}
	}
	return nil
}

// insertTeam creates the team and records it on every student.
func (s *Service) insertTeam(ctx context.Context, team models.Team) (models.Team, error) {
	var created models.Team
	err := txn.Run(ctx, s.DB, s.Log, func(ctx context.Context) error {
		var err error
		created, err = s.Teams.Create(ctx, team)
		if err != nil {
			return err
		}
		var claimed []primitive.ObjectID
		for _, id := range studentIDs(created) {
			if err := s.Users.ClaimTeam(ctx, id, created.ID); err != nil {
				if !txn.InTransaction(ctx) {
					s.undo("release claimed students", s.Users.ReleaseTeam(ctx, created.ID, claimed...))
					s.undo("remove team", s.Teams.DeleteIfUnchanged(ctx, created))
				}
				return err
			}
			claimed = append(claimed, id)
		}
		return nil
	})
	return created, err
}

// Join adds the caller to the team using code.
func (s *Service) Join(ctx context.Context, actor models.Actor, code, ip string) (TeamView, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return TeamView{}, err
	}
	if !s.JoinLimiter.Allow(actor.ID.Hex()) {
		s.Audit.JoinRateLimited(ctx, actor, ip)
		return TeamView{}, apperr.RateLimited("too many join attempts; try again later")
	}

	code = normalize.TeamCode(code)
	if !teamcode.Valid(code) {
		return TeamView{}, apperr.NotFound("no team uses code %q", code)
	}
	t, err := s.Teams.GetByCode(ctx, code)
	if errors.Is(err, teamstore.ErrNotFound) {
		return TeamView{}, apperr.NotFound("no team uses code %q", code)
	}
	if err != nil {
		return TeamView{}, storeErr("load team", err)
	}
	student, err := s.Users.GetByID(ctx, actor.ID)
	if err != nil {
		return TeamView{}, storeErr("load student", err)
	}
	if err := CheckJoin(t, student); err != nil {
		return TeamView{}, err
	}

	err = txn.Run(ctx, s.DB, s.Log, func(ctx context.Context) error {
		if err := s.Users.ClaimTeam(ctx, student.ID, t.ID); err != nil {
			return err
		}
		if err := s.Teams.AddMember(ctx, t.ID, student.ID); err != nil {
			if !txn.InTransaction(ctx) {
				s.undo("release student", s.Users.ReleaseTeam(ctx, t.ID, student.ID))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return TeamView{}, storeErr("join team", err)
	}

	s.Audit.TeamJoined(ctx, actor, t.ID)
	return s.view(ctx, t.ID)
}

// LeaveResult reports what Leave did to the team.
type LeaveResult struct {
	TeamID    primitive.ObjectID  `json:"team_id"`
	Deleted   bool                `json:"deleted"`
	NewLeader *primitive.ObjectID `json:"new_leader,omitempty"`
}

// Leave removes the caller from their team. A leader hands over to the
// first member; a team left with only one student is deleted, releasing
// any committed mentor and project slots.
func (s *Service) Leave(ctx context.Context, actor models.Actor) (LeaveResult, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return LeaveResult{}, err
	}
	t, err := s.Teams.GetByMember(ctx, actor.ID)
	if errors.Is(err, teamstore.ErrNotFound) {
		return LeaveResult{}, apperr.NotFound("you are not on a team")
	}
	if err != nil {
		return LeaveResult{}, storeErr("load team", err)
	}
	res := LeaveResult{TeamID: t.ID}

	switch {
	case t.IsLeader(actor.ID) && len(t.MemberIDs) > 0:
		next := t.MemberIDs[0]
		err = txn.Run(ctx, s.DB, s.Log, func(ctx context.Context) error {
			if err := s.Teams.TransferLeadership(ctx, t.ID, actor.ID, next); err != nil {
				return err
			}
			return s.Users.ReleaseTeam(ctx, t.ID, actor.ID)
		})
		if err != nil {
			return LeaveResult{}, storeErr("leave team", err)
		}
		res.NewLeader = &next
		s.Audit.TeamLeft(ctx, actor, t.ID)
		s.Audit.LeadershipChanged(ctx, actor, t.ID, next)

	case t.IsLeader(actor.ID) || len(t.MemberIDs) == 1:
		if err := s.deleteTeam(ctx, t); err != nil {
			return LeaveResult{}, storeErr("delete team", err)
		}
		res.Deleted = true
		s.Audit.TeamLeft(ctx, actor, t.ID)
		s.Audit.TeamDeleted(ctx, actor, t.ID)
		if t.Mentor.Assigned != nil {
			var projectID primitive.ObjectID
			if t.FinalProjectID != nil {
				projectID = *t.FinalProjectID
			}
			s.Audit.AssignmentReleased(ctx, actor, t.ID, *t.Mentor.Assigned, projectID)
		}

	default:
		err = txn.Run(ctx, s.DB, s.Log, func(ctx context.Context) error {
			if err := s.Teams.RemoveMember(ctx, t.ID, actor.ID); err != nil {
				return err
			}
			return s.Users.ReleaseTeam(ctx, t.ID, actor.ID)
		})
		if err != nil {
			return LeaveResult{}, storeErr("leave team", err)
		}
		s.Audit.TeamLeft(ctx, actor, t.ID)
	}
	return res, nil
}

// deleteTeam removes t and gives back every slot it holds.
func (s *Service) deleteTeam(ctx context.Context, t models.Team) error {
	return txn.Run(ctx, s.DB, s.Log, func(ctx context.Context) error {
		if err := s.Teams.DeleteIfUnchanged(ctx, t); err != nil {
			return err
		}
		if t.Mentor.Assigned != nil {
			if err := s.Users.ReleaseMentorSlot(ctx, *t.Mentor.Assigned, t.ID); err != nil {
				return err
			}
		}
		if t.FinalProjectID != nil {
			if err := s.Projects.ReleaseSlot(ctx, *t.FinalProjectID, t.ID); err != nil {
				return err
			}
		}
		return s.Users.ReleaseTeam(ctx, t.ID, studentIDs(t)...)
	})
}

// EditProjectChoices replaces the team's project choices and sends it
// back to pending for re-approval.
func (s *Service) EditProjectChoices(ctx context.Context, actor models.Actor, teamID primitive.ObjectID, choices []primitive.ObjectID) (TeamView, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return TeamView{}, err
	}
	t, err := s.Teams.GetByID(ctx, teamID)
	if err != nil {
		return TeamView{}, storeErr("load team", err)
	}
	if err := CheckEditable(t, actor.ID); err != nil {
		return TeamView{}, err
	}
	if err := CheckProjectChoices(choices); err != nil {
		return TeamView{}, err
	}
	projects, err := s.Projects.GetMany(ctx, choices)
	if err != nil {
		return TeamView{}, storeErr("load projects", err)
	}
	if err := CheckActiveProjects(choices, projects); err != nil {
		return TeamView{}, err
	}

	if err := s.Teams.ReplaceProjectChoices(ctx, t.ID, choices); err != nil {
		if errors.Is(err, teamstore.ErrStale) {
			if cur, gerr := s.Teams.GetByID(ctx, t.ID); gerr == nil {
				if cerr := CheckEditable(cur, actor.ID); cerr != nil {
					return TeamView{}, cerr
				}
			}
		}
		return TeamView{}, storeErr("edit project choices", err)
	}

	s.Audit.ChoicesEdited(ctx, actor, t.ID, len(choices))
	return s.view(ctx, t.ID)
}

func studentIDs(t models.Team) []primitive.ObjectID {
	return append([]primitive.ObjectID{t.LeaderID}, t.MemberIDs...)
}

// undo logs a failed compensation step. It only runs on deployments
// without transactions.
func (s *Service) undo(step string, err error) {
	if err != nil {
		s.Log.Error("compensation failed", zap.String("step", step), zap.Error(err))
	}
}
