package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	userstore "github.com/dalemusser/capstone/internal/app/store/users"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/dalemusser/capstone/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func testAppConfig() AppConfig {
	return AppConfig{
		MongoURI:                  "mongodb://localhost:27017",
		SessionKey:                "test-session-key-must-be-32-chars-long",
		SessionName:               "capstone-test",
		SessionMaxAge:             time.Hour,
		JWTSecret:                 "jwt-secret-for-tests",
		CORSAllowedOrigins:        []string{"http://localhost:5173"},
		SiteName:                  "Capstone",
		AuditLogAllocation:        "all",
		AuditLogProjects:          "db",
		MentorDefaultMaxTeams:     3,
		ProjectDefaultMaxTeams:    1,
		ProjectRejectionRetention: 48 * time.Hour,
		ExpirySweepInterval:       time.Hour,
		TeamCodeMaxAttempts:       1000,
		JoinRateLimit:             20,
		JoinRateWindow:            time.Minute,
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid", func(*AppConfig) {}, ""},
		{"blank session key", func(c *AppConfig) { c.SessionKey = " " }, "session_key"},
		{"zero mentor capacity", func(c *AppConfig) { c.MentorDefaultMaxTeams = 0 }, "mentor_default_max_teams"},
		{"zero project capacity", func(c *AppConfig) { c.ProjectDefaultMaxTeams = 0 }, "project_default_max_teams"},
		{"unknown audit destination", func(c *AppConfig) { c.AuditLogProjects = "syslog" }, "audit_log_projects"},
		{"notify without sender", func(c *AppConfig) { c.NotifyEnabled = true; c.MailFrom = "" }, "mail_from"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAppConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(&config.CoreConfig{}, cfg, zap.NewNop())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.edu, ,https://b.edu ")
	if len(got) != 2 || got[0] != "https://a.edu" || got[1] != "https://b.edu" {
		t.Errorf("splitList = %q", got)
	}
	if splitList("") != nil {
		t.Error("expected nil for empty input")
	}
}

func TestEnsureAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	users := userstore.New(db)

	if err := ensureAdmin(ctx, users, "", zap.NewNop()); err != nil {
		t.Fatalf("ensureAdmin with no email failed: %v", err)
	}

	if err := ensureAdmin(ctx, users, "head@test.edu", zap.NewNop()); err != nil {
		t.Fatalf("ensureAdmin failed: %v", err)
	}
	u, err := users.GetByEmail(ctx, "head@test.edu")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if u.Role != models.RoleAdmin || u.Status != userstore.StatusActive {
		t.Errorf("created admin = %+v", u)
	}

	// Idempotent.
	if err := ensureAdmin(ctx, users, "head@test.edu", zap.NewNop()); err != nil {
		t.Fatalf("second ensureAdmin failed: %v", err)
	}

	// An existing non-administrator is not promoted.
	fixtures := testutil.NewFixtures(t, db)
	s := fixtures.CreateStudent(ctx, "Student", "2026", "CS")
	if err := ensureAdmin(ctx, users, s.Email, zap.NewNop()); err != nil {
		t.Fatalf("ensureAdmin for student failed: %v", err)
	}
	if got := fixtures.GetUser(ctx, s.ID); got.Role != models.RoleStudent {
		t.Errorf("student role changed to %q", got.Role)
	}
}

func startTestApp(t *testing.T, db *mongo.Database) (http.Handler, DBDeps) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coreCfg := &config.CoreConfig{Env: "dev"}
	appCfg := testAppConfig()
	appCfg.AdminEmail = "root@test.edu"
	deps := DBDeps{MongoClient: db.Client(), MongoDatabase: db, Runtime: &Runtime{}}

	if err := EnsureSchema(ctx, coreCfg, appCfg, deps, zap.NewNop()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	if err := Startup(ctx, coreCfg, appCfg, deps, zap.NewNop()); err != nil {
		t.Fatalf("Startup failed: %v", err)
	}
	t.Cleanup(func() {
		// The shared test client must outlive this test.
		noClient := deps
		noClient.MongoClient = nil
		_ = Shutdown(context.Background(), coreCfg, appCfg, noClient, zap.NewNop())
	})

	h, err := BuildHandler(coreCfg, appCfg, deps, zap.NewNop())
	if err != nil {
		t.Fatalf("BuildHandler failed: %v", err)
	}
	return h, deps
}

func TestBuildHandler_Routes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, deps := startTestApp(t, db)

	if deps.Runtime.Allocation == nil || deps.Runtime.ProjectBank == nil || deps.Runtime.JoinLimiter == nil {
		t.Fatalf("runtime not populated: %+v", deps.Runtime)
	}
	if deps.Runtime.Mail != nil {
		t.Error("mail notifier built although notifications are disabled")
	}

	tests := []struct {
		method, target string
		want           int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/teams/mine", http.StatusUnauthorized},
		{"GET", "/mentoring/queue", http.StatusUnauthorized},
		{"GET", "/coordination/manual", http.StatusUnauthorized},
		{"GET", "/projectbank", http.StatusUnauthorized},
		{"GET", "/nowhere", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.ServeHTTP(rec, testutil.NewRequest(tt.method, tt.target))
			rec.AssertStatus(t, tt.want)
		})
	}
}

func TestBuildHandler_DevSignInFlow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, _ := startTestApp(t, db)

	// The administrator created from admin_email can sign in and list teams.
	req := httptest.NewRequest("POST", "/session/dev", strings.NewReader(`{"email":"root@test.edu"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := testutil.NewRecorder()
	h.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	list := testutil.NewRequest("GET", "/coordination/teams")
	for _, c := range rec.Result().Cookies() {
		list.AddCookie(c)
	}
	rec = testutil.NewRecorder()
	h.ServeHTTP(rec, list)
	rec.AssertStatus(t, http.StatusOK)

	// CORS preflight from an allowed origin.
	pre := testutil.NewRequest("OPTIONS", "/projectbank")
	pre.Header.Set("Origin", "http://localhost:5173")
	pre.Header.Set("Access-Control-Request-Method", "POST")
	rec = testutil.NewRecorder()
	h.ServeHTTP(rec, pre)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
