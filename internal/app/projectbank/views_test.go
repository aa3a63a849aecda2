package projectbank

import (
	"testing"
	"time"

	"github.com/dalemusser/capstone/internal/app/system/paging"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestView(t *testing.T) {
	svc := &Service{RejectionRetention: time.Hour}
	rejectedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	team := primitive.NewObjectID()

	tests := []struct {
		name      string
		p         models.Project
		available bool
		remaining int
		expires   *time.Time
	}{
		{"approved with room", models.Project{IsApproved: true, MaxTeams: 2}, true, 2, nil},
		{"approved and full", models.Project{IsApproved: true, MaxTeams: 1, AssignedTeams: []primitive.ObjectID{team}}, false, 0, nil},
		{"proposed", models.Project{MaxTeams: 3}, false, 3, nil},
		{"rejected", models.Project{MaxTeams: 1, RejectedAt: &rejectedAt}, false, 1, ptr(rejectedAt.Add(time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := svc.View(tt.p)
			if v.IsAvailable != tt.available || v.Remaining != tt.remaining {
				t.Errorf("available=%v remaining=%d, want %v and %d", v.IsAvailable, v.Remaining, tt.available, tt.remaining)
			}
			switch {
			case tt.expires == nil && v.ExpiresAt != nil:
				t.Errorf("unexpected expires_at %v", v.ExpiresAt)
			case tt.expires != nil && (v.ExpiresAt == nil || !v.ExpiresAt.Equal(*tt.expires)):
				t.Errorf("expires_at = %v, want %v", v.ExpiresAt, *tt.expires)
			}
		})
	}
}

func TestViewPage_KeepsCursors(t *testing.T) {
	svc := &Service{}
	pg := paging.Page[models.Project]{
		Items:   []models.Project{{Title: "A", IsApproved: true, MaxTeams: 1}},
		HasNext: true,
		Next:    "cursor",
	}
	got := svc.ViewPage(pg)
	if len(got.Items) != 1 || !got.Items[0].IsAvailable || !got.HasNext || got.Next != "cursor" {
		t.Errorf("ViewPage = %+v", got)
	}
	if empty := svc.ViewPage(paging.Page[models.Project]{}); empty.Items == nil {
		t.Error("items must never be nil")
	}
}

func ptr[T any](v T) *T { return &v }
