// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the name of the audit collection.
const Collection = "audit_events"

// Event categories
const (
	CategoryTeam       = "team"
	CategoryMentoring  = "mentoring"
	CategoryProject    = "project"
	CategoryAllocation = "allocation"
	CategorySecurity   = "security"
)

// Team lifecycle events
const (
	EventTeamCreated       = "team_created"
	EventTeamJoined        = "team_joined"
	EventTeamLeft          = "team_left"
	EventTeamDeleted       = "team_deleted"
	EventLeadershipChanged = "leadership_changed"
	EventChoicesEdited     = "project_choices_edited"
	EventTeamApproved      = "team_approved"
	EventTeamRejected      = "team_rejected"
	EventJoinRateLimited   = "join_rate_limited"
)

// Mentoring and allocation events
const (
	EventPreferenceDeclined = "preference_declined"
	EventCascadeExhausted   = "cascade_exhausted"
	EventMentorAccepted     = "mentor_accepted"
	EventManualAllocation   = "manual_allocation"
	EventManualFlagged      = "manual_allocation_flagged"
	EventAssignmentReleased = "assignment_released"
	EventUserRegistered     = "user_registered"
)

// Project bank events
const (
	EventProjectProposed   = "project_proposed"
	EventProjectApproved   = "project_approved"
	EventProjectRejected   = "project_rejected"
	EventProjectUnapproved = "project_unapproved"
	EventProjectDeleted    = "project_deleted"
	EventProjectWithdrawn  = "project_withdrawn"
	EventProjectsExpired   = "projects_expired"
	EventProjectsImported  = "projects_imported"
)

// Event represents an audit event.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`

	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	ActorID   *primitive.ObjectID `bson:"actor_id,omitempty"`
	TeamID    *primitive.ObjectID `bson:"team_id,omitempty"`
	ProjectID *primitive.ObjectID `bson:"project_id,omitempty"`
	MentorID  *primitive.ObjectID `bson:"mentor_id,omitempty"`

	IP string `bson:"ip,omitempty"`

	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	TeamID    *primitive.ObjectID
	ProjectID *primitive.ObjectID
	ActorID   *primitive.ObjectID
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query retrieves audit events matching the given filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, buildQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, buildQuery(filter))
}

// GetByTeam retrieves recent audit events for a team.
func (s *Store) GetByTeam(ctx context.Context, teamID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{TeamID: &teamID, Limit: limit})
}

func buildQuery(filter QueryFilter) bson.M {
	query := bson.M{}
	if filter.TeamID != nil {
		query["team_id"] = *filter.TeamID
	}
	if filter.ProjectID != nil {
		query["project_id"] = *filter.ProjectID
	}
	if filter.ActorID != nil {
		query["actor_id"] = *filter.ActorID
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}
	if filter.StartTime != nil || filter.EndTime != nil {
		timeQuery := bson.M{}
		if filter.StartTime != nil {
			timeQuery["$gte"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			timeQuery["$lte"] = *filter.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}
