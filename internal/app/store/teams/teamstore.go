// internal/app/store/teams/teamstore.go
package teamstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/capstone/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the name of the teams collection.
const Collection = "teams"

var (
	ErrNotFound      = errors.New("team not found")
	ErrDuplicateCode = errors.New("a team with this code already exists")
	// ErrStale is returned when a conditional update matched nothing because
	// the team changed since it was read.
	ErrStale = errors.New("team changed concurrently")
	ErrFull  = errors.New("team is full")
	// ErrBadSubmission is returned by Create for an unknown submission status.
	ErrBadSubmission = errors.New("unknown submission status")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Team, error) {
	var t models.Team
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Team{}, ErrNotFound
		}
		return models.Team{}, err
	}
	return t, nil
}

// GetByCode looks a team up by its join code.
func (s *Store) GetByCode(ctx context.Context, code string) (models.Team, error) {
	var t models.Team
	if err := s.c.FindOne(ctx, bson.M{"code": code}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Team{}, ErrNotFound
		}
		return models.Team{}, err
	}
	return t, nil
}

// CodeExists reports whether a team already uses code.
func (s *Store) CodeExists(ctx context.Context, code string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"code": code}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByMember returns the team led by or containing userID.
func (s *Store) GetByMember(ctx context.Context, userID primitive.ObjectID) (models.Team, error) {
	var t models.Team
	filter := bson.M{"$or": []bson.M{{"leader_id": userID}, {"member_ids": userID}}}
	if err := s.c.FindOne(ctx, filter).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Team{}, ErrNotFound
		}
		return models.Team{}, err
	}
	return t, nil
}

// Create inserts t. ID and timestamps are assigned here; a duplicate code
// is reported as ErrDuplicateCode so the caller can draw a new one. Blank
// submission statuses start as draft.
func (s *Store) Create(ctx context.Context, t models.Team) (models.Team, error) {
	for _, sub := range []*models.Submission{&t.ProjectAbstract, &t.RoleSpecification} {
		if sub.Status == "" {
			sub.Status = models.SubmissionDraft
		}
		if !sub.Status.IsValid() {
			return models.Team{}, fmt.Errorf("%w: %q", ErrBadSubmission, sub.Status)
		}
	}
	now := time.Now().UTC()
	t.ID = primitive.NewObjectID()
	if t.MemberIDs == nil {
		t.MemberIDs = []primitive.ObjectID{}
	}
	if t.Feedback == nil {
		t.Feedback = []models.FeedbackEntry{}
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Team{}, ErrDuplicateCode
		}
		return models.Team{}, err
	}
	return t, nil
}

// AddMember appends userID when the team has room and the student is not
// already on it. Returns ErrFull or ErrStale when the guard fails.
func (s *Store) AddMember(ctx context.Context, teamID, userID primitive.ObjectID) error {
	filter := bson.M{
		"_id":        teamID,
		"leader_id":  bson.M{"$ne": userID},
		"member_ids": bson.M{"$ne": userID},
		fmt.Sprintf("member_ids.%d", models.MaxAdditionalMembers-1): bson.M{"$exists": false},
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{"member_ids": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		t, gerr := s.GetByID(ctx, teamID)
		if gerr != nil {
			return gerr
		}
		if t.IsFull() {
			return ErrFull
		}
		return ErrStale
	}
	return nil
}

// RemoveMember pulls userID from the member list.
func (s *Store) RemoveMember(ctx context.Context, teamID, userID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": teamID, "member_ids": userID}, bson.M{
		"$pull": bson.M{"member_ids": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	return nil
}

// TransferLeadership makes newLeader (an existing member) the leader and
// removes them from the member list. The old leader is dropped.
func (s *Store) TransferLeadership(ctx context.Context, teamID, oldLeader, newLeader primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": teamID, "leader_id": oldLeader, "member_ids": newLeader},
		bson.M{
			"$set":  bson.M{"leader_id": newLeader, "updated_at": time.Now().UTC()},
			"$pull": bson.M{"member_ids": newLeader},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	return nil
}

// DeleteIfUnchanged removes t only while its leader, members and
// assignment still match what the caller read.
func (s *Store) DeleteIfUnchanged(ctx context.Context, t models.Team) error {
	members := t.MemberIDs
	if members == nil {
		members = []primitive.ObjectID{}
	}
	filter := bson.M{
		"_id":              t.ID,
		"leader_id":        t.LeaderID,
		"member_ids":       members,
		"mentor.assigned":  t.Mentor.Assigned,
		"final_project_id": t.FinalProjectID,
	}
	res, err := s.c.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		if _, gerr := s.GetByID(ctx, t.ID); gerr != nil {
			return gerr
		}
		return ErrStale
	}
	return nil
}

// ReplaceProjectChoices swaps the project choices and sends the team back
// to pending. Only teams that are not approved and hold no assignment match.
func (s *Store) ReplaceProjectChoices(ctx context.Context, teamID primitive.ObjectID, choices []primitive.ObjectID) error {
	filter := bson.M{
		"_id":              teamID,
		"status":           bson.M{"$ne": models.TeamApproved},
		"mentor.assigned":  nil,
		"final_project_id": nil,
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"project_choices": choices,
		"status":          models.TeamPending,
		"updated_at":      time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	return nil
}

// SetStatus moves the team to status `to` when its current status is one
// of `from`. Rejection additionally requires that no mentor is assigned.
func (s *Store) SetStatus(ctx context.Context, teamID primitive.ObjectID, from []string, to string, fb *models.FeedbackEntry) error {
	filter := bson.M{"_id": teamID, "status": bson.M{"$in": from}}
	if to == models.TeamRejected {
		filter["mentor.assigned"] = nil
	}
	update := bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}}
	if fb != nil {
		update["$push"] = bson.M{"feedback": *fb}
	}
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	return nil
}

// AdvanceCursor moves the mentor cursor from `from` to `to`. It matches
// only while the cursor still reads `from`, so two declines for the same
// preference cannot both succeed.
func (s *Store) AdvanceCursor(ctx context.Context, teamID primitive.ObjectID, from, to int, fb *models.FeedbackEntry) error {
	filter := bson.M{
		"_id":                       teamID,
		"mentor.current_preference": from,
		"mentor.assigned":           nil,
		"status":                    bson.M{"$ne": models.TeamRejected},
	}
	update := bson.M{"$set": bson.M{"mentor.current_preference": to, "updated_at": time.Now().UTC()}}
	if fb != nil {
		update["$push"] = bson.M{"feedback": *fb}
	}
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	return nil
}

// Commit describes the team side of an assignment.
type Commit struct {
	TeamID    primitive.ObjectID
	MentorID  primitive.ObjectID
	ProjectID primitive.ObjectID
	At        time.Time
	// ExpectCursor, when set, requires the cascade cursor to still equal it.
	ExpectCursor *int
	Feedback     *models.FeedbackEntry
}

// CommitAssignment sets the mentor and final project on an approved,
// unassigned team that still lists the project among its choices. Returns
// ErrStale when the guard fails.
func (s *Store) CommitAssignment(ctx context.Context, c Commit) error {
	filter := bson.M{
		"_id":              c.TeamID,
		"status":           models.TeamApproved,
		"mentor.assigned":  nil,
		"final_project_id": nil,
		"project_choices":  c.ProjectID,
	}
	if c.ExpectCursor != nil {
		filter["mentor.current_preference"] = *c.ExpectCursor
	}
	update := bson.M{"$set": bson.M{
		"mentor.assigned":                c.MentorID,
		"mentor.assigned_at":             c.At,
		"mentor.needs_manual_allocation": false,
		"final_project_id":               c.ProjectID,
		"updated_at":                     c.At,
	}}
	if c.Feedback != nil {
		update["$push"] = bson.M{"feedback": *c.Feedback}
	}
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	return nil
}

// ClearAssignment undoes CommitAssignment c. The feedback entry it pushed
// is pulled and the manual allocation flag goes back to flagged. It is used
// to compensate when the deployment cannot run transactions.
func (s *Store) ClearAssignment(ctx context.Context, c Commit, flagged bool) error {
	update := bson.M{
		"$unset": bson.M{"mentor.assigned": "", "mentor.assigned_at": "", "final_project_id": ""},
		"$set":   bson.M{"mentor.needs_manual_allocation": flagged, "updated_at": time.Now().UTC()},
	}
	if c.Feedback != nil {
		update["$pull"] = bson.M{"feedback": *c.Feedback}
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": c.TeamID, "mentor.assigned": c.MentorID}, update)
	return err
}

// FlagManualAllocation marks an approved, unassigned team for manual allocation.
func (s *Store) FlagManualAllocation(ctx context.Context, teamID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": teamID, "status": models.TeamApproved, "mentor.assigned": nil},
		bson.M{"$set": bson.M{"mentor.needs_manual_allocation": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	return nil
}

// AppendFeedback adds an entry to the team's feedback log.
func (s *Store) AppendFeedback(ctx context.Context, teamID primitive.ObjectID, fb models.FeedbackEntry) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": teamID}, bson.M{
		"$push": bson.M{"feedback": fb},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOfferedTo returns unassigned, non-rejected teams whose current
// preference is mentorID.
func (s *Store) ListOfferedTo(ctx context.Context, mentorID primitive.ObjectID) ([]models.Team, error) {
	filter := bson.M{
		"mentor.preferences":        mentorID,
		"mentor.assigned":           nil,
		"mentor.current_preference": bson.M{"$gte": 0},
		"status":                    bson.M{"$ne": models.TeamRejected},
		"$expr": bson.M{"$eq": bson.A{
			bson.M{"$arrayElemAt": bson.A{"$mentor.preferences", "$mentor.current_preference"}},
			mentorID,
		}},
	}
	return s.find(ctx, filter)
}

// ListNeedingManualAllocation returns approved, unassigned teams that have
// exhausted their preferences or were flagged by an administrator.
func (s *Store) ListNeedingManualAllocation(ctx context.Context) ([]models.Team, error) {
	filter := bson.M{
		"status":          models.TeamApproved,
		"mentor.assigned": nil,
		"$or": []bson.M{
			{"mentor.current_preference": models.ExhaustedPreference},
			{"mentor.needs_manual_allocation": true},
		},
	}
	return s.find(ctx, filter)
}

// ListByStatus returns teams in status, oldest first. An empty status lists all.
func (s *Store) ListByStatus(ctx context.Context, status string) ([]models.Team, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return s.find(ctx, filter)
}

// ListAssignedTo returns the teams committed to mentorID.
func (s *Store) ListAssignedTo(ctx context.Context, mentorID primitive.ObjectID) ([]models.Team, error) {
	return s.find(ctx, bson.M{"mentor.assigned": mentorID})
}

// CountWithProjectChoice counts teams that list projectID among their choices.
func (s *Store) CountWithProjectChoice(ctx context.Context, projectID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"project_choices": projectID})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Team, error) {
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Team
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
