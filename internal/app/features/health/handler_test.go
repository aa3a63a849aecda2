package health_test

import (
	"net/http"
	"testing"

	"github.com/dalemusser/capstone/internal/app/features/health"
	"github.com/dalemusser/capstone/internal/testutil"
	"go.uber.org/zap"
)

func TestServe_DatabaseConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := health.Routes(health.NewHandler(db.Client(), zap.NewNop()))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewRequest("GET", "/"))
	rec.AssertStatus(t, http.StatusOK)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}

	var response struct {
		Status       string `json:"status"`
		Database     string `json:"database"`
		Transactions bool   `json:"transactions"`
	}
	rec.DecodeJSON(t, &response)
	if response.Status != "ok" {
		t.Errorf("status: got %q, want %q", response.Status, "ok")
	}
	if response.Database != "connected" {
		t.Errorf("database: got %q, want %q", response.Database, "connected")
	}
	if want := testutil.SupportsTransactions(t, db); response.Transactions != want {
		t.Errorf("transactions: got %v, want %v", response.Transactions, want)
	}
}
