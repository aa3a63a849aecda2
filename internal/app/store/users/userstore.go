package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/capstone/internal/app/system/normalize"
	"github.com/dalemusser/capstone/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection is the name of the users collection.
const Collection = "users"

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	ErrNotFound       = errors.New("user not found")
	// ErrAlreadyOnTeam is returned by ClaimTeam when the student already belongs to a team.
	ErrAlreadyOnTeam = errors.New("student is already on a team")
	// ErrNoCapacity is returned by ClaimMentorSlot when the mentor is full
	// or already holds the team.
	ErrNoCapacity = errors.New("mentor has no remaining capacity")

	errBadRole   = errors.New(`role must be "student"|"mentor"|"admin"`)
	errBadStatus = errors.New(`status must be "active"|"disabled"`)
)

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// GetMany returns the users with the given IDs keyed by ID. Missing IDs
// are simply absent from the map.
func (s *Store) GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, cur.Err()
}

// ListByRole returns active users with the given role.
func (s *Store) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	cur, err := s.c.Find(ctx, bson.M{"role": role, "status": StatusActive})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a new user after normalizing & validating fields.
// Mentors without a capacity get defaultMentorMax.
func (s *Store) Create(ctx context.Context, u models.User, defaultMentorMax int) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = text.Fold(u.FullName)
	u.Email = normalize.Email(u.Email)
	u.Role = normalize.Role(u.Role)
	u.Batch = normalize.Cohort(u.Batch)
	u.Department = normalize.Cohort(u.Department)
	u.Status = normalize.Status(u.Status)
	if u.Status == "" {
		u.Status = StatusActive
	}

	switch u.Role {
	case models.RoleStudent, models.RoleMentor, models.RoleAdmin:
	default:
		return models.User{}, errBadRole
	}
	if u.Status != StatusActive && u.Status != StatusDisabled {
		return models.User{}, errBadStatus
	}

	if u.Role == models.RoleMentor && u.MaxTeams <= 0 {
		if defaultMentorMax <= 0 {
			defaultMentorMax = models.DefaultMentorMaxTeams
		}
		u.MaxTeams = defaultMentorMax
	}
	if u.AssignedTeams == nil {
		u.AssignedTeams = []primitive.ObjectID{}
	}
	u.TeamID = nil

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// ClaimTeam records teamID on a student who is not yet on any team.
func (s *Store) ClaimTeam(ctx context.Context, studentID, teamID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": studentID, "role": models.RoleStudent, "team_id": nil},
		bson.M{"$set": bson.M{"team_id": teamID, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		u, gerr := s.GetByID(ctx, studentID)
		if gerr != nil {
			return gerr
		}
		if u.TeamID != nil {
			return ErrAlreadyOnTeam
		}
		return errBadRole
	}
	return nil
}

// ReleaseTeam clears team_id on the given students when it still points at teamID.
func (s *Store) ReleaseTeam(ctx context.Context, teamID primitive.ObjectID, studentIDs ...primitive.ObjectID) error {
	if len(studentIDs) == 0 {
		return nil
	}
	_, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": studentIDs}, "team_id": teamID},
		bson.M{"$unset": bson.M{"team_id": ""}, "$set": bson.M{"updated_at": time.Now().UTC()}})
	return err
}

// ClaimMentorSlot appends teamID to the mentor's assigned_teams when the
// mentor is active and below max_teams.
func (s *Store) ClaimMentorSlot(ctx context.Context, mentorID, teamID primitive.ObjectID) error {
	filter := bson.M{
		"_id":            mentorID,
		"role":           models.RoleMentor,
		"status":         StatusActive,
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

// ReleaseMentorSlot removes teamID from the mentor's assigned_teams.
func (s *Store) ReleaseMentorSlot(ctx context.Context, mentorID, teamID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": mentorID}, bson.M{
		"$pull": bson.M{"assigned_teams": teamID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}
