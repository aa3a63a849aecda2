package metricsstore

import (
	"context"

	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

// Counts is the allocation overview shown to coordinators.
type Counts struct {
	Students         int64 `json:"students"`
	UnteamedStudents int64 `json:"unteamed_students"`
	Mentors          int64 `json:"mentors"`
	MentorsWithRoom  int64 `json:"mentors_with_room"`

	TeamsPending   int64 `json:"teams_pending"`
	TeamsApproved  int64 `json:"teams_approved"`
	TeamsRejected  int64 `json:"teams_rejected"`
	TeamsAssigned  int64 `json:"teams_assigned"`
	AwaitingManual int64 `json:"awaiting_manual"`

	ProjectsApproved int64 `json:"projects_approved"`
	ProposalsPending int64 `json:"proposals_pending"`
}

type counter struct {
	coll   string
	filter bson.M
	dst    *int64
}

// FetchAllocationCounts runs the overview counts concurrently. Only active
// users are counted.
func FetchAllocationCounts(ctx context.Context, db *mongo.Database) (Counts, error) {
	var out Counts
	active := func(extra bson.M) bson.M {
		f := bson.M{"status": "active"}
		for k, v := range extra {
			f[k] = v
		}
		return f
	}
	counters := []counter{
		{"users", active(bson.M{"role": models.RoleStudent}), &out.Students},
		{"users", active(bson.M{"role": models.RoleStudent, "team_id": nil}), &out.UnteamedStudents},
		{"users", active(bson.M{"role": models.RoleMentor}), &out.Mentors},
		{"users", active(bson.M{
			"role":  models.RoleMentor,
			"$expr": bson.M{"$lt": bson.A{bson.M{"$size": "$assigned_teams"}, "$max_teams"}},
		}), &out.MentorsWithRoom},

		{"teams", bson.M{"status": models.TeamPending}, &out.TeamsPending},
		{"teams", bson.M{"status": models.TeamApproved}, &out.TeamsApproved},
		{"teams", bson.M{"status": models.TeamRejected}, &out.TeamsRejected},
		{"teams", bson.M{"mentor.assigned": bson.M{"$ne": nil}}, &out.TeamsAssigned},
		{"teams", bson.M{
			"status":          models.TeamApproved,
			"mentor.assigned": nil,
			"$or": []bson.M{
				{"mentor.current_preference": models.ExhaustedPreference},
				{"mentor.needs_manual_allocation": true},
			},
		}, &out.AwaitingManual},

		{"projects", bson.M{"is_approved": true}, &out.ProjectsApproved},
		{"projects", bson.M{"is_approved": false, "rejected_at": nil}, &out.ProposalsPending},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, c := range counters {
		g.Go(func() error {
			n, err := db.Collection(c.coll).CountDocuments(gctx, c.filter)
			if err != nil {
				return err
			}
			*c.dst = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Counts{}, err
	}
	return out, nil
}
