// internal/app/allocation/rules.go
package allocation

import (
	userstore "github.com/dalemusser/capstone/internal/app/store/users"
	"github.com/dalemusser/capstone/internal/app/system/apperr"
	"github.com/dalemusser/capstone/internal/app/system/capacity"
	"github.com/dalemusser/capstone/internal/app/system/cascade"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Choice list bounds for both project and mentor preferences.
const (
	MinChoices = models.MinChoices
	MaxChoices = models.MaxChoices
)

// MaxFeedbackLen bounds a single feedback message.
const MaxFeedbackLen = 2000

// The checks below are evaluated against values read before a mutation.
// Capacity and state are checked again by the conditional writes.

func checkCount(kind string, ids []primitive.ObjectID) error {
	if len(ids) < MinChoices || len(ids) > MaxChoices {
		return apperr.Validation("between %d and %d %s choices are required", MinChoices, MaxChoices, kind)
	}
	return nil
}

func checkDistinct(kind string, ids []primitive.ObjectID) error {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			return apperr.Validation("%s choice is missing an id", kind)
		}
		if _, dup := seen[id]; dup {
			return apperr.Validation("%s %s is listed more than once", kind, id.Hex())
		}
		seen[id] = struct{}{}
	}
	return nil
}

// CheckChoices validates the ranked project and mentor lists of a team.
func CheckChoices(projects, mentors []primitive.ObjectID) error {
	if err := checkCount("project", projects); err != nil {
		return err
	}
	if err := checkCount("mentor", mentors); err != nil {
		return err
	}
	if err := checkDistinct("project", projects); err != nil {
		return err
	}
	return checkDistinct("mentor", mentors)
}

// CheckProjectChoices validates a replacement project list.
func CheckProjectChoices(projects []primitive.ObjectID) error {
	if err := checkCount("project", projects); err != nil {
		return err
	}
	return checkDistinct("project", projects)
}

// CheckShape enforces the membership invariants: the leader is not a
// member, members are distinct, and there are at most three of them.
func CheckShape(leader primitive.ObjectID, members []primitive.ObjectID) error {
	if leader.IsZero() {
		return apperr.Validation("a team needs a leader")
	}
	if len(members) > models.MaxAdditionalMembers {
		return apperr.Validation("a team holds at most %d members besides the leader", models.MaxAdditionalMembers)
	}
	seen := make(map[primitive.ObjectID]struct{}, len(members))
	for _, m := range members {
		if m == leader {
			return apperr.Validation("the leader cannot also be listed as a member")
		}
		if _, dup := seen[m]; dup {
			return apperr.Validation("member %s is listed more than once", m.Hex())
		}
		seen[m] = struct{}{}
	}
	return nil
}

// CheckStudent verifies u can be placed on a team in batch/department.
// Empty batch or department on the team side means no restriction.
func CheckStudent(u models.User, batch, department string) error {
	if u.Role != models.RoleStudent {
		return apperr.Validation("%s is not a student", u.FullName)
	}
	if u.Status == userstore.StatusDisabled {
		return apperr.Conflict("%s's account is disabled", u.FullName)
	}
	if u.TeamID != nil {
		return apperr.Conflict("%s is already on a team", u.FullName)
	}
	if batch != "" && u.Batch != batch {
		return apperr.Conflict("%s is in batch %q, the team is in %q", u.FullName, u.Batch, batch)
	}
	if department != "" && u.Department != department {
		return apperr.Conflict("%s is in department %q, the team is in %q", u.FullName, u.Department, department)
	}
	return nil
}

// CheckJoin reports why student cannot join t.
func CheckJoin(t models.Team, student models.User) error {
	if t.HasMember(student.ID) {
		return apperr.Conflict("already a member of team %s", t.Code)
	}
	if t.IsFull() {
		return apperr.Conflict("team %s is full", t.Code)
	}
	return CheckStudent(student, t.Batch, t.Department)
}

// CheckEditable reports whether actorID may replace t's project choices.
func CheckEditable(t models.Team, actorID primitive.ObjectID) error {
	if !t.IsLeader(actorID) {
		return apperr.Forbidden("only the team leader can edit project choices")
	}
	if t.IsCommitted() {
		return apperr.Conflict("team %s already has a committed assignment", t.Code)
	}
	if t.Status == models.TeamApproved {
		return apperr.Conflict("team %s is approved; choices can no longer change", t.Code)
	}
	return nil
}

// CheckActiveProjects verifies every id resolves to an approved project.
func CheckActiveProjects(ids []primitive.ObjectID, projects map[primitive.ObjectID]models.Project) error {
	for _, id := range ids {
		p, ok := projects[id]
		if !ok {
			return apperr.Validation("project %s does not exist", id.Hex())
		}
		if !p.IsActive() {
			return apperr.Validation("project %q is not approved", p.Title)
		}
	}
	return nil
}

// CheckApprove reports why a coordinator cannot approve t.
func CheckApprove(t models.Team, projects map[primitive.ObjectID]models.Project) error {
	if t.Status == models.TeamApproved {
		return apperr.Conflict("team %s is already approved", t.Code)
	}
	for _, id := range t.ProjectChoices {
		p, ok := projects[id]
		if !ok {
			return apperr.Conflict("project %s in the team's choices no longer exists", id.Hex())
		}
		if !p.IsActive() {
			return apperr.Conflict("project %q in the team's choices is not approved", p.Title)
		}
	}
	return nil
}

// CheckReject reports why a coordinator cannot reject t.
func CheckReject(t models.Team) error {
	if t.Status == models.TeamRejected {
		return apperr.Conflict("team %s is already rejected", t.Code)
	}
	if t.Mentor.Assigned != nil {
		return apperr.Conflict("team %s already has a mentor", t.Code)
	}
	return nil
}

// cascadeOpen reports whether t can still receive mentor responses.
func cascadeOpen(t models.Team) error {
	if t.Status == models.TeamRejected {
		return apperr.Conflict("team %s is rejected; mentor responses are frozen", t.Code)
	}
	if t.Mentor.Assigned != nil {
		return apperr.Conflict("team %s already has a mentor", t.Code)
	}
	return nil
}

// CheckDecline reports why mentorID cannot decline t.
func CheckDecline(t models.Team, mentorID primitive.ObjectID) error {
	if err := cascadeOpen(t); err != nil {
		return err
	}
	if !cascade.IsCurrent(t.Mentor.Preferences, t.Mentor.CurrentPreference, mentorID) {
		return apperr.Forbidden("you are not the team's current mentor preference")
	}
	return nil
}

// CheckAccept reports why mentor cannot accept t with p as final project.
func CheckAccept(t models.Team, mentor models.User, p models.Project) error {
	if err := cascadeOpen(t); err != nil {
		return err
	}
	if !cascade.IsCurrent(t.Mentor.Preferences, t.Mentor.CurrentPreference, mentor.ID) {
		return apperr.Forbidden("you are not the team's current mentor preference")
	}
	if t.Status != models.TeamApproved {
		return apperr.Conflict("team %s has not been approved by a coordinator", t.Code)
	}
	if err := checkFinalProject(t, p); err != nil {
		return err
	}
	return checkMentorRoom(mentor)
}

// CheckManual reports why an administrator cannot allocate mentor and p to t.
func CheckManual(t models.Team, mentor models.User, p models.Project) error {
	if t.Mentor.Assigned != nil {
		return apperr.Conflict("team %s already has a mentor", t.Code)
	}
	if t.Status != models.TeamApproved {
		return apperr.Conflict("team %s has not been approved by a coordinator", t.Code)
	}
	if !t.NeedsManualAllocation() {
		return apperr.Conflict("team %s is still waiting on its mentor preferences", t.Code)
	}
	if !mentor.IsMentor() {
		return apperr.Validation("%s is not a mentor", mentor.FullName)
	}
	if err := checkFinalProject(t, p); err != nil {
		return err
	}
	return checkMentorRoom(mentor)
}

// CheckFlag reports why t cannot be flagged for manual allocation.
func CheckFlag(t models.Team) error {
	if t.Status != models.TeamApproved {
		return apperr.Conflict("team %s has not been approved by a coordinator", t.Code)
	}
	if t.Mentor.Assigned != nil {
		return apperr.Conflict("team %s already has a mentor", t.Code)
	}
	if t.NeedsManualAllocation() {
		return apperr.Conflict("team %s already needs manual allocation", t.Code)
	}
	return nil
}

func checkFinalProject(t models.Team, p models.Project) error {
	if !t.HasProjectChoice(p.ID) {
		return apperr.Validation("project %q is not one of the team's choices", p.Title)
	}
	if !p.IsApproved {
		return apperr.Conflict("project %q is not approved", p.Title)
	}
	if !capacity.HasRoom(len(p.AssignedTeams), p.MaxTeams) {
		return apperr.Conflict("project %q has no remaining capacity", p.Title)
	}
	return nil
}

func checkMentorRoom(m models.User) error {
	if m.Status == userstore.StatusDisabled {
		return apperr.Conflict("mentor %s is not active", m.FullName)
	}
	if !capacity.HasRoom(len(m.AssignedTeams), m.MaxTeams) {
		return apperr.Conflict("mentor %s has no remaining capacity", m.FullName)
	}
	return nil
}

// pickProject returns the first of t's choices that can take the team.
func pickProject(t models.Team, projects map[primitive.ObjectID]models.Project) (models.Project, error) {
	for _, id := range t.ProjectChoices {
		p, ok := projects[id]
		if ok && p.IsApproved && capacity.HasRoom(len(p.AssignedTeams), p.MaxTeams) {
			return p, nil
		}
	}
	return models.Project{}, apperr.Conflict("none of team %s's project choices has remaining capacity", t.Code)
}
