package session_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/capstone/internal/app/features/session"
	userstore "github.com/dalemusser/capstone/internal/app/store/users"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/dalemusser/capstone/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newRouter(t *testing.T, db *mongo.Database, jwtSecret string) http.Handler {
	t.Helper()
	sm := testutil.NewSessionManager(t)
	sm.SetFetcher(userstore.NewFetcher(db))
	sm.SetJWTSecret(jwtSecret)

	r := chi.NewRouter()
	r.Use(sm.LoadSessionUser)
	r.Mount("/session", session.Routes(session.NewHandler(db, sm, zap.NewNop()), sm, true))
	return r
}

func TestDevSignInThenToken(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fixtures := testutil.NewFixtures(t, db)
	router := newRouter(t, db, "jwt-secret-for-tests")
	mentor := fixtures.CreateMentor(ctx, "Mentor", 2)

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, jsonRequest("POST", "/session/dev", `{"email":"`+mentor.Email+`"}`))
	rec.AssertStatus(t, http.StatusOK)
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	tokReq := testutil.NewRequest("POST", "/session/token")
	for _, c := range cookies {
		tokReq.AddCookie(c)
	}
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, tokReq)
	rec.AssertStatus(t, http.StatusOK)
	var tok struct {
		Token string `json:"token"`
	}
	rec.DecodeJSON(t, &tok)
	if tok.Token == "" {
		t.Fatal("expected a bearer token")
	}

	// The bearer token alone identifies the caller.
	bearerReq := testutil.NewRequest("POST", "/session/token")
	bearerReq.Header.Set("Authorization", "Bearer "+tok.Token)
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, bearerReq)
	rec.AssertStatus(t, http.StatusOK)

	// One session and two tokens, newest first.
	histReq := testutil.NewRequest("GET", "/session/history")
	histReq.Header.Set("Authorization", "Bearer "+tok.Token)
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, histReq)
	rec.AssertStatus(t, http.StatusOK)
	var history []models.SignIn
	rec.DecodeJSON(t, &history)
	if len(history) != 3 {
		t.Fatalf("history = %d entries, want 3", len(history))
	}
	if history[2].Method != models.SignInSession || history[0].Method != models.SignInToken {
		t.Errorf("history methods = %q, %q, %q", history[0].Method, history[1].Method, history[2].Method)
	}
	for _, s := range history {
		if s.UserID != mentor.ID {
			t.Errorf("sign-in for %v, want %v", s.UserID, mentor.ID)
		}
	}
}

func TestDevSignIn_UnknownEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newRouter(t, db, "")

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, jsonRequest("POST", "/session/dev", `{"email":"nobody@test.edu"}`))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestToken(t *testing.T) {
	db := testutil.SetupTestDB(t)

	t.Run("signed out", func(t *testing.T) {
		rec := testutil.NewRecorder()
		newRouter(t, db, "secret").ServeHTTP(rec, testutil.NewRequest("POST", "/session/token"))
		rec.AssertStatus(t, http.StatusUnauthorized)
	})

	t.Run("tokens disabled", func(t *testing.T) {
		rec := testutil.NewRecorder()
		newRouter(t, db, "").ServeHTTP(rec, testutil.NewAuthenticatedRequest("POST", "/session/token", testutil.StudentUser()))
		rec.AssertStatus(t, http.StatusConflict)
	})
}

func TestSignOut(t *testing.T) {
	db := testutil.SetupTestDB(t)
	rec := testutil.NewRecorder()
	newRouter(t, db, "").ServeHTTP(rec, testutil.NewRequest("DELETE", "/session"))
	rec.AssertStatus(t, http.StatusNoContent)
}

func jsonRequest(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}
