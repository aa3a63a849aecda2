// internal/app/system/validators/validators.go
// Package validators attaches JSON-Schema validators to the allocation
// collections so that documents written outside the stores still respect
// the shape the engine relies on.
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/capstone/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("teams", teamsSchema())
	ensure("projects", projectsSchema())

	// No validator; the collection still has to exist before transactions write to it.
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

// idArray accepts null because nil slices are encoded that way.
func idArray() bson.M {
	return bson.M{"bsonType": bson.A{"array", "null"}, "items": bson.M{"bsonType": "objectId"}}
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"full_name", "email", "role"},
			"properties": bson.M{
				"full_name":      nonBlank,
				"full_name_ci":   nonBlank,
				"email":          nonBlank,
				"role":           bson.M{"enum": bson.A{models.RoleStudent, models.RoleMentor, models.RoleAdmin}},
				"status":         bson.M{"enum": bson.A{"active", "disabled"}},
				"team_id":        bson.M{"bsonType": bson.A{"objectId", "null"}},
				"assigned_teams": idArray(),
				"max_teams":      bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
			},
		},
	}
}

func teamsSchema() bson.M {
	choices := func() bson.M {
		a := idArray()
		a["maxItems"] = models.MaxChoices
		return a
	}
	members := idArray()
	members["maxItems"] = models.MaxAdditionalMembers
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"code", "leader_id", "status", "mentor"},
			"properties": bson.M{
				"code":            bson.M{"bsonType": "string", "minLength": 1},
				"leader_id":       bson.M{"bsonType": "objectId"},
				"member_ids":      members,
				"project_choices": choices(),
				"status":          bson.M{"enum": bson.A{models.TeamPending, models.TeamApproved, models.TeamRejected}},
				"mentor": bson.M{
					"bsonType": "object",
					"required": bson.A{"preferences", "current_preference"},
					"properties": bson.M{
						"preferences":        choices(),
						"current_preference": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
						"assigned":           bson.M{"bsonType": bson.A{"objectId", "null"}},
					},
				},
				"final_project_id": bson.M{"bsonType": bson.A{"objectId", "null"}},
			},
		},
	}
}

func projectsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "title_ci", "is_approved", "max_teams", "assigned_teams"},
			"properties": bson.M{
				"title":          nonBlank,
				"title_ci":       nonBlank,
				"proposed_by":    bson.M{"bsonType": "objectId"},
				"is_approved":    bson.M{"bsonType": "bool"},
				"max_teams":      bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"assigned_teams": idArray(),
				"rejected_at":    bson.M{"bsonType": bson.A{"date", "null"}},
			},
		},
	}
}
