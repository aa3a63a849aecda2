// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"

	"github.com/dalemusser/capstone/internal/app/store/audit"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destination values for Config fields.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off"
)

// Config holds audit logging configuration.
type Config struct {
	// Allocation covers team, mentoring and allocation events.
	Allocation string
	// ProjectBank covers project proposal and approval events.
	ProjectBank string
}

// Logger records audit events to MongoDB (via audit.Store) and zap.
// A nil *Logger is a no-op.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func (l *Logger) setting(category string) string {
	var s string
	switch category {
	case audit.CategoryTeam, audit.CategoryMentoring, audit.CategoryAllocation:
		s = l.config.Allocation
	case audit.CategoryProject:
		s = l.config.ProjectBank
	}
	if s == "" {
		return All
	}
	return s
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	for _, id := range []struct {
		key string
		v   *primitive.ObjectID
	}{
		{"actor_id", event.ActorID},
		{"team_id", event.TeamID},
		{"project_id", event.ProjectID},
		{"mentor_id", event.MentorID},
	} {
		if id.v != nil {
			fields = append(fields, zap.String(id.key, id.v.Hex()))
		}
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records event according to configuration. Storage failures are
// logged and never returned.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}
	setting := l.setting(event.Category)
	if setting == Off {
		return
	}
	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

func ptr(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

func (l *Logger) team(ctx context.Context, eventType string, actor models.Actor, teamID primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryTeam,
		EventType: eventType,
		ActorID:   ptr(actor.ID),
		TeamID:    ptr(teamID),
		Success:   true,
		Details:   details,
	})
}

// --- Team lifecycle ---

func (l *Logger) TeamCreated(ctx context.Context, actor models.Actor, t models.Team) {
	l.team(ctx, audit.EventTeamCreated, actor, t.ID, map[string]string{"code": t.Code})
}

func (l *Logger) TeamJoined(ctx context.Context, actor models.Actor, teamID primitive.ObjectID) {
	l.team(ctx, audit.EventTeamJoined, actor, teamID, nil)
}

func (l *Logger) TeamLeft(ctx context.Context, actor models.Actor, teamID primitive.ObjectID) {
	l.team(ctx, audit.EventTeamLeft, actor, teamID, nil)
}

func (l *Logger) TeamDeleted(ctx context.Context, actor models.Actor, teamID primitive.ObjectID) {
	l.team(ctx, audit.EventTeamDeleted, actor, teamID, nil)
}

func (l *Logger) LeadershipChanged(ctx context.Context, actor models.Actor, teamID, newLeader primitive.ObjectID) {
	l.team(ctx, audit.EventLeadershipChanged, actor, teamID, map[string]string{"new_leader": newLeader.Hex()})
}

func (l *Logger) ChoicesEdited(ctx context.Context, actor models.Actor, teamID primitive.ObjectID, n int) {
	l.team(ctx, audit.EventChoicesEdited, actor, teamID, map[string]string{"choices": strconv.Itoa(n)})
}

func (l *Logger) TeamApproved(ctx context.Context, actor models.Actor, teamID primitive.ObjectID) {
	l.team(ctx, audit.EventTeamApproved, actor, teamID, nil)
}

func (l *Logger) TeamRejected(ctx context.Context, actor models.Actor, teamID primitive.ObjectID) {
	l.team(ctx, audit.EventTeamRejected, actor, teamID, nil)
}

// JoinRateLimited records a blocked join attempt.
func (l *Logger) JoinRateLimited(ctx context.Context, actor models.Actor, ip string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategorySecurity,
		EventType:     audit.EventJoinRateLimited,
		ActorID:       ptr(actor.ID),
		IP:            ip,
		Success:       false,
		FailureReason: "rate limit exceeded",
	})
}

// --- Mentoring and allocation ---

// PreferenceDeclined records a cascade advance from one cursor to the next.
func (l *Logger) PreferenceDeclined(ctx context.Context, actor models.Actor, teamID primitive.ObjectID, from, to int) {
	eventType := audit.EventPreferenceDeclined
	if to == models.ExhaustedPreference {
		eventType = audit.EventCascadeExhausted
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMentoring,
		EventType: eventType,
		ActorID:   ptr(actor.ID),
		TeamID:    ptr(teamID),
		MentorID:  ptr(actor.ID),
		Success:   true,
		Details:   map[string]string{"from": strconv.Itoa(from), "to": strconv.Itoa(to)},
	})
}

// Assigned records a committed assignment. manual distinguishes an
// administrator allocation from a mentor accepting.
func (l *Logger) Assigned(ctx context.Context, actor models.Actor, teamID, mentorID, projectID primitive.ObjectID, manual bool) {
	eventType := audit.EventMentorAccepted
	if manual {
		eventType = audit.EventManualAllocation
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAllocation,
		EventType: eventType,
		ActorID:   ptr(actor.ID),
		TeamID:    ptr(teamID),
		MentorID:  ptr(mentorID),
		ProjectID: ptr(projectID),
		Success:   true,
	})
}

func (l *Logger) ManualFlagged(ctx context.Context, actor models.Actor, teamID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAllocation,
		EventType: audit.EventManualFlagged,
		ActorID:   ptr(actor.ID),
		TeamID:    ptr(teamID),
		Success:   true,
	})
}

// AssignmentReleased records capacity returned when a committed team is deleted.
func (l *Logger) AssignmentReleased(ctx context.Context, actor models.Actor, teamID, mentorID, projectID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAllocation,
		EventType: audit.EventAssignmentReleased,
		ActorID:   ptr(actor.ID),
		TeamID:    ptr(teamID),
		MentorID:  ptr(mentorID),
		ProjectID: ptr(projectID),
		Success:   true,
	})
}

// UserRegistered records an administrator adding a student, mentor or
// administrator to the roster.
func (l *Logger) UserRegistered(ctx context.Context, actor models.Actor, u models.User) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAllocation,
		EventType: audit.EventUserRegistered,
		ActorID:   ptr(actor.ID),
		Success:   true,
		Details:   map[string]string{"user_id": u.ID.Hex(), "role": u.Role},
	})
}

// --- Project bank ---

// Project records a project bank transition such as audit.EventProjectApproved.
func (l *Logger) Project(ctx context.Context, eventType string, actor models.Actor, projectID primitive.ObjectID, title string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryProject,
		EventType: eventType,
		ActorID:   ptr(actor.ID),
		ProjectID: ptr(projectID),
		Success:   true,
		Details:   map[string]string{"title": title},
	})
}

func (l *Logger) ProjectsExpired(ctx context.Context, count int64) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryProject,
		EventType: audit.EventProjectsExpired,
		Success:   true,
		Details:   map[string]string{"count": strconv.FormatInt(count, 10)},
	})
}

func (l *Logger) ProjectsImported(ctx context.Context, actor models.Actor, created, rejected int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryProject,
		EventType: audit.EventProjectsImported,
		ActorID:   ptr(actor.ID),
		Success:   rejected == 0,
		Details: map[string]string{
			"created":  strconv.Itoa(created),
			"rejected": strconv.Itoa(rejected),
		},
	})
}
