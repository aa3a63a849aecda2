package signinstore_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	signinstore "github.com/dalemusser/capstone/internal/app/store/signins"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/dalemusser/capstone/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_RecordClientIP(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := signinstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		wantIP  string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:1234", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.7 "}, "10.0.0.1:1234", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.9:5555", "192.0.2.9"},
		{"remote addr without port", nil, "192.0.2.10", "192.0.2.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/session/dev", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			rec, err := store.Record(ctx, r, primitive.NewObjectID(), models.SignInSession)
			if err != nil {
				t.Fatalf("Record failed: %v", err)
			}
			if rec.IP != tt.wantIP {
				t.Errorf("IP = %q, want %q", rec.IP, tt.wantIP)
			}
			if rec.CreatedAt.IsZero() || rec.ID.IsZero() {
				t.Errorf("record not stamped: %+v", rec)
			}
		})
	}
}

func TestStore_Recent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := signinstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := primitive.NewObjectID()
	r := httptest.NewRequest("POST", "/session/token", nil)
	r.Header.Set("User-Agent", strings.Repeat("x", 1000))
	for _, m := range []string{models.SignInSession, models.SignInToken, models.SignInToken} {
		if _, err := store.Record(ctx, r, user, m); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	if _, err := store.Record(ctx, r, primitive.NewObjectID(), models.SignInSession); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.Recent(ctx, user, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d sign-ins, want 2", len(got))
	}
	if got[0].CreatedAt.Before(got[1].CreatedAt) {
		t.Error("sign-ins not newest first")
	}
	if len(got[0].UserAgent) != 256 {
		t.Errorf("user agent length = %d, want 256", len(got[0].UserAgent))
	}

	none, err := store.Recent(ctx, primitive.NewObjectID(), 5)
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("Recent for unknown user = %v, %v", none, err)
	}
}
