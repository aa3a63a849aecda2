package testutil

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
	n  int
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insertUser(ctx context.Context, u models.User) models.User {
	f.t.Helper()
	f.n++
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.FullNameCI = text.Fold(u.FullName)
	if u.Email == "" {
		u.Email = fmt.Sprintf("%s%d@test.edu", u.Role, f.n)
	}
	if u.Status == "" {
		u.Status = "active"
	}
	if u.AssignedTeams == nil {
		u.AssignedTeams = []primitive.ObjectID{}
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateStudent creates an active student in the given cohort.
func (f *Fixtures) CreateStudent(ctx context.Context, fullName, batch, department string) models.User {
	f.t.Helper()
	return f.insertUser(ctx, models.User{
		FullName:   fullName,
		Role:       models.RoleStudent,
		Batch:      batch,
		Department: department,
	})
}

// CreateMentor creates an active mentor with the given capacity.
func (f *Fixtures) CreateMentor(ctx context.Context, fullName string, maxTeams int) models.User {
	f.t.Helper()
	return f.insertUser(ctx, models.User{
		FullName: fullName,
		Role:     models.RoleMentor,
		MaxTeams: maxTeams,
	})
}

// CreateAdmin creates an active administrator.
func (f *Fixtures) CreateAdmin(ctx context.Context, fullName string) models.User {
	f.t.Helper()
	return f.insertUser(ctx, models.User{FullName: fullName, Role: models.RoleAdmin})
}

// CreateProject creates a project. Approved projects get an approval stamp.
func (f *Fixtures) CreateProject(ctx context.Context, title string, approved bool, maxTeams int) models.Project {
	f.t.Helper()
	now := time.Now().UTC()
	p := models.Project{
		ID:            primitive.NewObjectID(),
		Title:         title,
		TitleCI:       text.Fold(title),
		Description:   "Test project " + title,
		Category:      "general",
		ProposedBy:    primitive.NewObjectID(),
		ProposerRole:  models.RoleMentor,
		IsApproved:    approved,
		MaxTeams:      maxTeams,
		AssignedTeams: []primitive.ObjectID{},
		Feedback:      []models.FeedbackEntry{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if approved {
		p.ApprovedAt = &now
	}
	if _, err := f.db.Collection("projects").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test project: %v", err)
	}
	return p
}

// TeamSpec describes a team for CreateTeam. Zero fields get defaults.
type TeamSpec struct {
	Code      string
	Leader    models.User
	Members   []models.User
	Projects  []primitive.ObjectID
	Mentors   []primitive.ObjectID
	Status    string
	CreatedAt time.Time
}

// CreateTeam inserts a team directly and points each student's team_id at it.
func (f *Fixtures) CreateTeam(ctx context.Context, spec TeamSpec) models.Team {
	f.t.Helper()
	f.n++
	now := time.Now().UTC()
	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = now
	}
	if spec.Status == "" {
		spec.Status = models.TeamPending
	}
	if spec.Code == "" {
		spec.Code = fmt.Sprintf("T%05d", f.n)
	}
	tm := models.Team{
		ID:             primitive.NewObjectID(),
		Code:           spec.Code,
		LeaderID:       spec.Leader.ID,
		MemberIDs:      []primitive.ObjectID{},
		Batch:          spec.Leader.Batch,
		Department:     spec.Leader.Department,
		ProjectChoices: spec.Projects,
		Mentor:         models.TeamMentor{Preferences: spec.Mentors},
		Status:         spec.Status,
		Feedback:       []models.FeedbackEntry{},
		CreatedAt:      spec.CreatedAt,
		UpdatedAt:      spec.CreatedAt,
	}
	for _, m := range spec.Members {
		tm.MemberIDs = append(tm.MemberIDs, m.ID)
	}
	if _, err := f.db.Collection("teams").InsertOne(ctx, tm); err != nil {
		f.t.Fatalf("failed to create test team: %v", err)
	}

	students := append([]primitive.ObjectID{tm.LeaderID}, tm.MemberIDs...)
	for _, id := range students {
		if _, err := f.db.Collection("users").UpdateByID(ctx, id, bson.M{
			"$set": bson.M{"team_id": tm.ID},
		}); err != nil {
			f.t.Fatalf("failed to link student to team: %v", err)
		}
	}
	return tm
}

// GetTeam reloads a team from the database.
func (f *Fixtures) GetTeam(ctx context.Context, id primitive.ObjectID) models.Team {
	f.t.Helper()
	var tm models.Team
	if err := f.db.Collection("teams").FindOne(ctx, bson.M{"_id": id}).Decode(&tm); err != nil {
		f.t.Fatalf("failed to load team: %v", err)
	}
	return tm
}

// GetUser reloads a user from the database.
func (f *Fixtures) GetUser(ctx context.Context, id primitive.ObjectID) models.User {
	f.t.Helper()
	var u models.User
	if err := f.db.Collection("users").FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		f.t.Fatalf("failed to load user: %v", err)
	}
	return u
}

// GetProject reloads a project from the database.
func (f *Fixtures) GetProject(ctx context.Context, id primitive.ObjectID) models.Project {
	f.t.Helper()
	var p models.Project
	if err := f.db.Collection("projects").FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		f.t.Fatalf("failed to load project: %v", err)
	}
	return p
}
