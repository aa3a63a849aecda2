// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// DefaultRejectionRetention is the TTL applied to rejected project proposals.
const DefaultRejectionRetention = models.ProjectRejectionRetention

// Option adjusts EnsureAll.
type Option func(*settings)

type settings struct {
	rejectionRetention time.Duration
}

// WithRejectionRetention sets how long a rejected proposal survives before
// the TTL monitor removes it.
func WithRejectionRetention(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.rejectionRetention = d
		}
	}
}

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database, opts ...Option) error {
	cfg := settings{rejectionRetention: DefaultRejectionRetention}
	for _, o := range opts {
		o(&cfg)
	}

	var problems []string
	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureTeams(ctx, db); err != nil {
		problems = append(problems, "teams: "+err.Error())
	}
	if err := ensureProjects(ctx, db, cfg.rejectionRetention); err != nil {
		problems = append(problems, "projects: "+err.Error())
	}
	if err := ensureAuditEvents(ctx, db); err != nil {
		problems = append(problems, "audit_events: "+err.Error())
	}
	if err := ensureSignIns(ctx, db); err != nil {
		problems = append(problems, "sign_ins: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name               string `bson:"name"`
	Key                bson.D `bson:"key"`
	Unique             *bool  `bson:"unique,omitempty"`
	ExpireAfterSeconds *int32 `bson:"expireAfterSeconds,omitempty"`
}

// desired is the comparable shape of a mongo.IndexModel.
type desired struct {
	name   string
	sig    string
	unique bool
	ttl    int32 // 0 means no TTL
}

func describe(m mongo.IndexModel) desired {
	d := desired{sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		d.unique = m.Options.Unique != nil && *m.Options.Unique
		if m.Options.ExpireAfterSeconds != nil {
			d.ttl = *m.Options.ExpireAfterSeconds
		}
	}
	return d
}

func (e existingIndex) matches(d desired) bool {
	unique := e.Unique != nil && *e.Unique
	var ttl int32
	if e.ExpireAfterSeconds != nil {
		ttl = *e.ExpireAfterSeconds
	}
	return unique == d.unique && ttl == d.ttl
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listIndexes(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		// Collection may not exist yet.
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listIndexes(ctx, coll)

	for _, m := range models {
		d := describe(m)
		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig),
			zap.Bool("unique", d.unique))

		if ex, ok := existing[d.sig]; ok {
			if ex.matches(d) && (d.name == "" || ex.Name == d.name) {
				log.Debug("reusing existing index", zap.Duration("took", time.Since(start)))
				continue
			}
			// Options or name differ: drop and recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				log.Warn("drop existing index failed", zap.String("existing", ex.Name), zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), d.name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && d.unique {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present on %s)", coll.Name(), d.name, d.sig))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), d.name, err))
			}
			log.Warn("index ensure failed", zap.Duration("took", time.Since(start)), zap.Error(err))
			continue
		}
		log.Info("index ensured", zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collections                                                                */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_users_email").SetUnique(true),
		},
		{
			// Sparse: only students on a team carry team_id.
			Keys:    bson.D{{Key: "team_id", Value: 1}},
			Options: options.Index().SetName("idx_users_team").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}, {Key: "full_name_ci", Value: 1}},
			Options: options.Index().SetName("idx_users_role_status_fullnameci"),
		},
	})
}

func ensureTeams(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("teams")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetName("uniq_teams_code").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "leader_id", Value: 1}},
			Options: options.Index().SetName("idx_teams_leader"),
		},
		{
			Keys:    bson.D{{Key: "member_ids", Value: 1}},
			Options: options.Index().SetName("idx_teams_members"),
		},
		{
			// Mentor queue: teams offering themselves to a mentor.
			Keys: bson.D{
				{Key: "mentor.preferences", Value: 1},
				{Key: "mentor.assigned", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("idx_teams_mentor_prefs_assigned_status"),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "mentor.current_preference", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("idx_teams_status_cursor_created"),
		},
		{
			Keys:    bson.D{{Key: "project_choices", Value: 1}},
			Options: options.Index().SetName("idx_teams_project_choices"),
		},
	})
}

func ensureProjects(ctx context.Context, db *mongo.Database, retention time.Duration) error {
	c := db.Collection("projects")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "title_ci", Value: 1}},
			Options: options.Index().SetName("uniq_projects_titleci").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "is_approved", Value: 1}, {Key: "title_ci", Value: 1}},
			Options: options.Index().SetName("idx_projects_approved_titleci"),
		},
		{
			Keys:    bson.D{{Key: "proposed_by", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_projects_proposer_created"),
		},
		{
			// TTL: documents without rejected_at are never expired.
			Keys: bson.D{{Key: "rejected_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_projects_rejected_at").
				SetExpireAfterSeconds(int32(retention / time.Second)),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("audit_events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_team_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_project_timestamp"),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_category_event_timestamp"),
		},
	})
}

func ensureSignIns(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("sign_ins")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_signins_user_created"),
		},
	})
}
