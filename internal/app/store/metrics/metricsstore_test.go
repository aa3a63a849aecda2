package metricsstore_test

import (
	"testing"

	projectstore "github.com/dalemusser/capstone/internal/app/store/projects"
	metricsstore "github.com/dalemusser/capstone/internal/app/store/metrics"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/dalemusser/capstone/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFetchAllocationCounts_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	counts, err := metricsstore.FetchAllocationCounts(ctx, db)
	if err != nil {
		t.Fatalf("FetchAllocationCounts failed: %v", err)
	}
	if counts != (metricsstore.Counts{}) {
		t.Errorf("expected zero counts, got %+v", counts)
	}
}

func TestFetchAllocationCounts_WithData(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	leader := fixtures.CreateStudent(ctx, "Leader", "2026", "CS")
	member := fixtures.CreateStudent(ctx, "Member", "2026", "CS")
	fixtures.CreateStudent(ctx, "Loner", "2026", "CS")
	busy := fixtures.CreateMentor(ctx, "Busy", 1)
	fixtures.CreateMentor(ctx, "Free", 2)
	fixtures.CreateAdmin(ctx, "Admin")

	approved := fixtures.CreateProject(ctx, "Rover", true, 1)
	fixtures.CreateProject(ctx, "Pending Idea", false, 1)
	dropped := fixtures.CreateProject(ctx, "Dropped Idea", false, 1)
	if err := projectstore.New(db).Reject(ctx, dropped.ID, nil); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	assigned := fixtures.CreateTeam(ctx, testutil.TeamSpec{
		Leader:   leader,
		Members:  []models.User{member},
		Projects: []primitive.ObjectID{approved.ID},
		Mentors:  []primitive.ObjectID{busy.ID},
		Status:   models.TeamApproved,
	})
	if _, err := db.Collection("teams").UpdateByID(ctx, assigned.ID, bson.M{"$set": bson.M{"mentor.assigned": busy.ID}}); err != nil {
		t.Fatalf("assign mentor: %v", err)
	}
	if _, err := db.Collection("users").UpdateByID(ctx, busy.ID, bson.M{"$set": bson.M{"assigned_teams": []primitive.ObjectID{assigned.ID}}}); err != nil {
		t.Fatalf("fill mentor: %v", err)
	}

	exhausted := fixtures.CreateTeam(ctx, testutil.TeamSpec{
		Leader: fixtures.CreateStudent(ctx, "Other", "2026", "EE"),
		Status: models.TeamApproved,
	})
	if _, err := db.Collection("teams").UpdateByID(ctx, exhausted.ID, bson.M{"$set": bson.M{"mentor.current_preference": models.ExhaustedPreference}}); err != nil {
		t.Fatalf("exhaust team: %v", err)
	}
	fixtures.CreateTeam(ctx, testutil.TeamSpec{Leader: fixtures.CreateStudent(ctx, "Waiting", "2026", "ME")})

	counts, err := metricsstore.FetchAllocationCounts(ctx, db)
	if err != nil {
		t.Fatalf("FetchAllocationCounts failed: %v", err)
	}
	want := metricsstore.Counts{
		Students:         5,
		UnteamedStudents: 1,
		Mentors:          2,
		MentorsWithRoom:  1,
		TeamsPending:     1,
		TeamsApproved:    2,
		TeamsAssigned:    1,
		AwaitingManual:   1,
		ProjectsApproved: 1,
		ProposalsPending: 1,
	}
	if counts != want {
		t.Errorf("counts = %+v\nwant     %+v", counts, want)
	}
}
