// internal/app/store/projects/projectstore.go
package projectstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/capstone/internal/app/system/paging"
	"github.com/dalemusser/capstone/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the name of the projects collection.
const Collection = "projects"

var (
	ErrNotFound       = errors.New("project not found")
	ErrDuplicateTitle = errors.New("a project with this title already exists")
	ErrStale          = errors.New("project changed concurrently")
	// ErrNoCapacity is returned by ClaimSlot when the project is full,
	// unapproved, or already holds the team.
	ErrNoCapacity = errors.New("project has no remaining capacity")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Create inserts a proposal. Title uniqueness is case-insensitive via title_ci.
func (s *Store) Create(ctx context.Context, p models.Project) (models.Project, error) {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.Title = strings.TrimSpace(p.Title)
	p.TitleCI = text.Fold(p.Title)
	if p.MaxTeams <= 0 {
		p.MaxTeams = models.DefaultProjectMaxTeams
	}
	if p.AssignedTeams == nil {
		p.AssignedTeams = []primitive.ObjectID{}
	}
	if p.Feedback == nil {
		p.Feedback = []models.FeedbackEntry{}
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Project{}, ErrDuplicateTitle
		}
		return models.Project{}, err
	}
	return p, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Project, error) {
	var p models.Project
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Project{}, ErrNotFound
		}
		return models.Project{}, err
	}
	return p, nil
}

// GetMany returns the projects with the given IDs keyed by ID.
func (s *Store) GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Project, error) {
	out := make(map[primitive.ObjectID]models.Project, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var p models.Project
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, cur.Err()
}

// ListFilter narrows List.
type ListFilter struct {
	// Approved filters on approval when non-nil.
	Approved *bool
	// ProposedBy restricts results to one proposer when non-zero.
	ProposedBy primitive.ObjectID
	// IncludeRejected includes proposals awaiting expiry.
	IncludeRejected bool
	// OnlyRejected restricts results to proposals awaiting expiry.
	OnlyRejected bool
}

// List returns one page of projects sorted by title.
func (s *Store) List(ctx context.Context, f ListFilter, pg paging.Request) (paging.Page[models.Project], error) {
	ks, err := pg.Keyset()
	if err != nil {
		return paging.Page[models.Project]{}, err
	}

	filter := bson.M{}
	if f.Approved != nil {
		filter["is_approved"] = *f.Approved
	}
	if !f.ProposedBy.IsZero() {
		filter["proposed_by"] = f.ProposedBy
	}
	switch {
	case f.OnlyRejected:
		filter["rejected_at"] = bson.M{"$ne": nil}
	case !f.IncludeRejected:
		filter["rejected_at"] = nil
	}
	for k, v := range ks.Window("title_ci") {
		filter[k] = v
	}

	find := options.Find()
	ks.ApplyToFind(find, "title_ci")
	cur, err := s.c.Find(ctx, filter, find)
	if err != nil {
		return paging.Page[models.Project]{}, err
	}
	defer cur.Close(ctx)
	var out []models.Project
	if err := cur.All(ctx, &out); err != nil {
		return paging.Page[models.Project]{}, err
	}
	return paging.Build(out, pg, ks,
		func(p models.Project) string { return p.TitleCI },
		func(p models.Project) primitive.ObjectID { return p.ID },
	), nil
}

// Approve marks a pending proposal approved.
func (s *Store) Approve(ctx context.Context, id, approver primitive.ObjectID, fb *models.FeedbackEntry) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set":   bson.M{"is_approved": true, "approved_by": approver, "approved_at": now, "updated_at": now},
		"$unset": bson.M{"rejected_at": ""},
	}
	if fb != nil {
		update["$push"] = bson.M{"feedback": *fb}
	}
	return s.conditional(ctx, bson.M{"_id": id, "is_approved": false}, update)
}

// Reject stamps a pending proposal with rejected_at so it expires after
// the retention window.
func (s *Store) Reject(ctx context.Context, id primitive.ObjectID, fb *models.FeedbackEntry) error {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"rejected_at": now, "updated_at": now}}
	if fb != nil {
		update["$push"] = bson.M{"feedback": *fb}
	}
	return s.conditional(ctx, bson.M{"_id": id, "is_approved": false, "rejected_at": nil}, update)
}

// Unapprove returns an approved project with no assigned teams to pending.
func (s *Store) Unapprove(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id, "is_approved": true, "assigned_teams.0": bson.M{"$exists": false}}
	update := bson.M{
		"$set":   bson.M{"is_approved": false, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"approved_by": "", "approved_at": ""},
	}
	return s.conditional(ctx, filter, update)
}

// DeleteUnassigned removes a project that holds no final assignments.
// When proposer is non-zero only that proposer's unapproved proposals match.
func (s *Store) DeleteUnassigned(ctx context.Context, id, proposer primitive.ObjectID) error {
	filter := bson.M{"_id": id, "assigned_teams.0": bson.M{"$exists": false}}
	if !proposer.IsZero() {
		filter["proposed_by"] = proposer
		filter["is_approved"] = false
	}
	res, err := s.c.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		if _, gerr := s.GetByID(ctx, id); gerr != nil {
			return gerr
		}
		return ErrStale
	}
	return nil
}

// ClaimSlot appends teamID to assigned_teams when the project is approved
// and below max_teams.
func (s *Store) ClaimSlot(ctx context.Context, projectID, teamID primitive.ObjectID) error {
	filter := bson.M{
		"_id":            projectID,
		"is_approved":    true,
		"assigned_teams": bson.M{"$ne": teamID},
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$size": bson.M{"$ifNull": bson.A{"$assigned_teams", bson.A{}}}},
			"$max_teams",
		}},
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{"assigned_teams": teamID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoCapacity
	}
	return nil
}

// ReleaseSlot removes teamID from assigned_teams. Releasing a slot the
// team does not hold is a no-op.
func (s *Store) ReleaseSlot(ctx context.Context, projectID, teamID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": projectID}, bson.M{
		"$pull": bson.M{"assigned_teams": teamID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

// DeleteRejectedBefore removes rejected proposals stamped before cutoff.
func (s *Store) DeleteRejectedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{
		"is_approved": false,
		"rejected_at": bson.M{"$lte": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) conditional(ctx context.Context, filter, update bson.M) error {
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, gerr := s.GetByID(ctx, filter["_id"].(primitive.ObjectID)); gerr != nil {
			return gerr
		}
		return ErrStale
	}
	return nil
}
