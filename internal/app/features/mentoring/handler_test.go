package mentoring_test

import (
	"net/http"
	"testing"

	"github.com/dalemusser/capstone/internal/app/allocation"
	"github.com/dalemusser/capstone/internal/app/features/mentoring"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/dalemusser/capstone/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newRouter(t *testing.T, db *mongo.Database) http.Handler {
	t.Helper()
	svc := allocation.New(db, zap.NewNop(), allocation.Options{})
	return mentoring.Routes(mentoring.NewHandler(svc, zap.NewNop()), testutil.NewSessionManager(t))
}

func TestCascadeOverHTTP(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fixtures := testutil.NewFixtures(t, db)
	router := newRouter(t, db)

	p := fixtures.CreateProject(ctx, "Rover", true, 1)
	m1 := fixtures.CreateMentor(ctx, "First", 2)
	m2 := fixtures.CreateMentor(ctx, "Second", 2)
	team := fixtures.CreateTeam(ctx, testutil.TeamSpec{
		Leader:   fixtures.CreateStudent(ctx, "L", "2026", "CS"),
		Projects: []primitive.ObjectID{p.ID},
		Mentors:  []primitive.ObjectID{m1.ID, m2.ID},
		Status:   models.TeamApproved,
	})
	teamPath := "/teams/" + team.ID.Hex()

	var queue []allocation.TeamView
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/queue", testutil.UserOf(m1)))
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &queue)
	if len(queue) != 1 || queue[0].ID != team.ID {
		t.Fatalf("m1 queue = %+v", queue)
	}

	// Second preference may not act before the first responds.
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewJSONRequest("POST", teamPath+"/accept", map[string]string{"project_id": p.ID.Hex()}, testutil.UserOf(m2)))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewJSONRequest("POST", teamPath+"/reject", map[string]string{"message": "Fully booked"}, testutil.UserOf(m1)))
	rec.AssertStatus(t, http.StatusOK)

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewJSONRequest("POST", teamPath+"/accept", map[string]string{"project_id": p.ID.Hex()}, testutil.UserOf(m2)))
	rec.AssertStatus(t, http.StatusOK)
	var v allocation.TeamView
	rec.DecodeJSON(t, &v)
	if !v.Committed || v.Mentor.Assigned == nil || *v.Mentor.Assigned != m2.ID {
		t.Errorf("after accept: %+v", v.Mentor)
	}

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/teams", testutil.UserOf(m2)))
	rec.AssertStatus(t, http.StatusOK)
	var mine []allocation.TeamView
	rec.DecodeJSON(t, &mine)
	if len(mine) != 1 {
		t.Errorf("m2 teams = %d, want 1", len(mine))
	}

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/capacity", testutil.UserOf(m2)))
	rec.AssertStatus(t, http.StatusOK)
	var load allocation.MentorLoad
	rec.DecodeJSON(t, &load)
	if load.MentorID != m2.ID || load.MaxTeams != 2 || load.Remaining != 1 || !load.IsAvailable {
		t.Errorf("m2 capacity = %+v", load)
	}

	// Repeat accept after commit is a conflict.
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewJSONRequest("POST", teamPath+"/accept", map[string]string{"project_id": p.ID.Hex()}, testutil.UserOf(m2)))
	rec.AssertStatus(t, http.StatusConflict)
}

func TestAccept_BadInput(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newRouter(t, db)
	mentor := testutil.MentorUser()

	tests := []struct {
		name   string
		target string
		body   any
		want   int
	}{
		{"bad team id", "/teams/xyz/accept", map[string]string{"project_id": primitive.NewObjectID().Hex()}, http.StatusBadRequest},
		{"missing project", "/teams/" + primitive.NewObjectID().Hex() + "/accept", map[string]string{}, http.StatusBadRequest},
		{"unknown team", "/teams/" + primitive.NewObjectID().Hex() + "/accept", map[string]string{"project_id": primitive.NewObjectID().Hex()}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			router.ServeHTTP(rec, testutil.NewJSONRequest("POST", tt.target, tt.body, mentor))
			rec.AssertStatus(t, tt.want)
		})
	}
}

func TestRoutes_MentorOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newRouter(t, db)

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/queue", testutil.StudentUser()))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewRequest("GET", "/queue"))
	rec.AssertStatus(t, http.StatusUnauthorized)
}
