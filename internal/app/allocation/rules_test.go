package allocation

import (
	"testing"
	"time"

	"github.com/dalemusser/capstone/internal/app/system/apperr"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func ids(n int) []primitive.ObjectID {
	out := make([]primitive.ObjectID, n)
	for i := range out {
		out[i] = primitive.NewObjectID()
	}
	return out
}

func approvedTeam(mentors ...primitive.ObjectID) models.Team {
	p := primitive.NewObjectID()
	return models.Team{
		ID:             primitive.NewObjectID(),
		Code:           "ABC123",
		LeaderID:       primitive.NewObjectID(),
		Status:         models.TeamApproved,
		ProjectChoices: []primitive.ObjectID{p},
		Mentor:         models.TeamMentor{Preferences: mentors},
	}
}

func project(id primitive.ObjectID, approved bool, maxTeams, assigned int) models.Project {
	return models.Project{
		ID:            id,
		Title:         "P",
		IsApproved:    approved,
		MaxTeams:      maxTeams,
		AssignedTeams: ids(assigned),
	}
}

func mentor(id primitive.ObjectID, maxTeams, assigned int) models.User {
	return models.User{
		ID:            id,
		FullName:      "M",
		Role:          models.RoleMentor,
		Status:        "active",
		MaxTeams:      maxTeams,
		AssignedTeams: ids(assigned),
	}
}

func TestCheckChoices(t *testing.T) {
	dup := primitive.NewObjectID()
	tests := []struct {
		name     string
		projects []primitive.ObjectID
		mentors  []primitive.ObjectID
		wantErr  bool
	}{
		{"one of each", ids(1), ids(1), false},
		{"three of each", ids(3), ids(3), false},
		{"no projects", nil, ids(1), true},
		{"four mentors", ids(1), ids(4), true},
		{"duplicate project", []primitive.ObjectID{dup, dup}, ids(1), true},
		{"zero id", []primitive.ObjectID{{}}, ids(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckChoices(tt.projects, tt.mentors)
			if tt.wantErr {
				assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckShape(t *testing.T) {
	leader := primitive.NewObjectID()
	m := ids(4)
	tests := []struct {
		name    string
		members []primitive.ObjectID
		wantErr bool
	}{
		{"leader only", nil, false},
		{"three members", m[:3], false},
		{"four members", m, true},
		{"leader repeated", []primitive.ObjectID{m[0], leader}, true},
		{"duplicate member", []primitive.ObjectID{m[0], m[0]}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckShape(leader, tt.members)
			if tt.wantErr {
				assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckJoin(t *testing.T) {
	team := models.Team{Code: "ABC123", LeaderID: primitive.NewObjectID(), Batch: "2026", Department: "CS"}
	student := models.User{ID: primitive.NewObjectID(), FullName: "S", Role: models.RoleStudent, Batch: "2026", Department: "CS"}

	assert.NoError(t, CheckJoin(team, student))

	full := team
	full.MemberIDs = ids(3)
	assert.True(t, apperr.Is(CheckJoin(full, student), apperr.KindConflict))

	otherDept := student
	otherDept.Department = "EE"
	assert.True(t, apperr.Is(CheckJoin(team, otherDept), apperr.KindConflict))

	onTeam := student
	tid := primitive.NewObjectID()
	onTeam.TeamID = &tid
	assert.True(t, apperr.Is(CheckJoin(team, onTeam), apperr.KindConflict))

	member := team
	member.MemberIDs = []primitive.ObjectID{student.ID}
	assert.True(t, apperr.Is(CheckJoin(member, student), apperr.KindConflict))
}

func TestCheckEditable(t *testing.T) {
	team := models.Team{Code: "ABC123", LeaderID: primitive.NewObjectID(), Status: models.TeamRejected}

	assert.NoError(t, CheckEditable(team, team.LeaderID))
	assert.True(t, apperr.Is(CheckEditable(team, primitive.NewObjectID()), apperr.KindForbidden))

	assigned := team
	m := primitive.NewObjectID()
	assigned.Mentor.Assigned = &m
	assert.True(t, apperr.Is(CheckEditable(assigned, team.LeaderID), apperr.KindConflict))

	approved := team
	approved.Status = models.TeamApproved
	assert.True(t, apperr.Is(CheckEditable(approved, team.LeaderID), apperr.KindConflict))
}

func TestCheckApprove(t *testing.T) {
	p := primitive.NewObjectID()
	team := models.Team{Code: "ABC123", Status: models.TeamPending, ProjectChoices: []primitive.ObjectID{p}}

	ok := map[primitive.ObjectID]models.Project{p: project(p, true, 1, 0)}
	assert.NoError(t, CheckApprove(team, ok))

	unapproved := map[primitive.ObjectID]models.Project{p: project(p, false, 1, 0)}
	assert.True(t, apperr.Is(CheckApprove(team, unapproved), apperr.KindConflict))

	assert.True(t, apperr.Is(CheckApprove(team, nil), apperr.KindConflict))

	team.Status = models.TeamApproved
	assert.True(t, apperr.Is(CheckApprove(team, ok), apperr.KindConflict))
}

func TestCheckReject(t *testing.T) {
	team := models.Team{Code: "ABC123", Status: models.TeamApproved}
	assert.NoError(t, CheckReject(team))

	m := primitive.NewObjectID()
	team.Mentor.Assigned = &m
	assert.True(t, apperr.Is(CheckReject(team), apperr.KindConflict), "rejected teams never hold a mentor")

	team.Mentor.Assigned = nil
	team.Status = models.TeamRejected
	assert.True(t, apperr.Is(CheckReject(team), apperr.KindConflict))
}

func TestCheckDecline(t *testing.T) {
	m := ids(2)
	team := approvedTeam(m...)

	assert.NoError(t, CheckDecline(team, m[0]))
	assert.True(t, apperr.Is(CheckDecline(team, m[1]), apperr.KindForbidden))

	team.Mentor.CurrentPreference = models.ExhaustedPreference
	assert.True(t, apperr.Is(CheckDecline(team, m[1]), apperr.KindForbidden))

	frozen := approvedTeam(m...)
	frozen.Status = models.TeamRejected
	assert.True(t, apperr.Is(CheckDecline(frozen, m[0]), apperr.KindConflict))

	pending := approvedTeam(m...)
	pending.Status = models.TeamPending
	assert.NoError(t, CheckDecline(pending, m[0]))
}

func TestCheckAccept(t *testing.T) {
	mid := primitive.NewObjectID()
	team := approvedTeam(mid)
	pid := team.ProjectChoices[0]

	tests := []struct {
		name     string
		team     func(models.Team) models.Team
		mentor   models.User
		project  models.Project
		wantKind apperr.Kind
	}{
		{"ok", nil, mentor(mid, 1, 0), project(pid, true, 1, 0), ""},
		{"not current", nil, mentor(primitive.NewObjectID(), 1, 0), project(pid, true, 1, 0), apperr.KindForbidden},
		{"pending team", func(t models.Team) models.Team { t.Status = models.TeamPending; return t },
			mentor(mid, 1, 0), project(pid, true, 1, 0), apperr.KindConflict},
		{"project not a choice", nil, mentor(mid, 1, 0), project(primitive.NewObjectID(), true, 1, 0), apperr.KindValidation},
		{"project unapproved", nil, mentor(mid, 1, 0), project(pid, false, 1, 0), apperr.KindConflict},
		{"project full", nil, mentor(mid, 1, 0), project(pid, true, 1, 1), apperr.KindConflict},
		{"mentor full", nil, mentor(mid, 2, 2), project(pid, true, 1, 0), apperr.KindConflict},
		{"mentor zero capacity", nil, mentor(mid, 0, 0), project(pid, true, 1, 0), apperr.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := team
			if tt.team != nil {
				tm = tt.team(tm)
			}
			err := CheckAccept(tm, tt.mentor, tt.project)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
		})
	}
}

func TestCheckManual(t *testing.T) {
	mid := primitive.NewObjectID()
	team := approvedTeam(primitive.NewObjectID())
	pid := team.ProjectChoices[0]

	err := CheckManual(team, mentor(mid, 1, 0), project(pid, true, 1, 0))
	assert.True(t, apperr.Is(err, apperr.KindConflict), "live cascade is not manual")

	team.Mentor.CurrentPreference = models.ExhaustedPreference
	assert.NoError(t, CheckManual(team, mentor(mid, 1, 0), project(pid, true, 1, 0)))

	notMentor := mentor(mid, 1, 0)
	notMentor.Role = models.RoleStudent
	assert.True(t, apperr.Is(CheckManual(team, notMentor, project(pid, true, 1, 0)), apperr.KindValidation))

	flagged := approvedTeam(primitive.NewObjectID())
	flagged.ProjectChoices = []primitive.ObjectID{pid}
	flagged.Mentor.NeedsManualAllocation = true
	assert.NoError(t, CheckManual(flagged, mentor(mid, 1, 0), project(pid, true, 1, 0)))
}

func TestCheckFlag(t *testing.T) {
	team := approvedTeam(primitive.NewObjectID())
	assert.NoError(t, CheckFlag(team))

	team.Mentor.NeedsManualAllocation = true
	assert.True(t, apperr.Is(CheckFlag(team), apperr.KindConflict))

	pending := approvedTeam(primitive.NewObjectID())
	pending.Status = models.TeamPending
	assert.True(t, apperr.Is(CheckFlag(pending), apperr.KindConflict))
}

func TestPickProject(t *testing.T) {
	p := ids(3)
	team := models.Team{Code: "ABC123", ProjectChoices: p}
	projects := map[primitive.ObjectID]models.Project{
		p[0]: project(p[0], true, 1, 1),
		p[1]: project(p[1], false, 1, 0),
		p[2]: project(p[2], true, 2, 1),
	}
	got, err := pickProject(team, projects)
	require.NoError(t, err)
	assert.Equal(t, p[2], got.ID)

	delete(projects, p[2])
	_, err = pickProject(team, projects)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestNewTeamView(t *testing.T) {
	m := ids(2)
	team := approvedTeam(m...)
	team.MemberIDs = ids(2)
	team.Mentor.CurrentPreference = 1

	v := NewTeamView(team)
	assert.Equal(t, 3, v.Size)
	require.NotNil(t, v.CurrentMentor)
	assert.Equal(t, m[1], *v.CurrentMentor)
	assert.False(t, v.Exhausted)
	assert.False(t, v.Committed)

	team.Mentor.CurrentPreference = models.ExhaustedPreference
	v = NewTeamView(team)
	assert.Nil(t, v.CurrentMentor)
	assert.True(t, v.Exhausted)
	assert.True(t, v.AwaitingManual)

	at := time.Now()
	team.Mentor.Assigned = &m[0]
	team.Mentor.AssignedAt = &at
	v = NewTeamView(team)
	assert.True(t, v.Committed)
	assert.False(t, v.AwaitingManual)
}
