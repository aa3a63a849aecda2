// Package allocation is the team allocation engine: team formation,
// coordinator approval, the mentor preference cascade and the
// capacity-checked assignment commit.
package allocation

import (
	"errors"
	"strings"
	"time"

	projectstore "github.com/dalemusser/capstone/internal/app/store/projects"
	teamstore "github.com/dalemusser/capstone/internal/app/store/teams"
	userstore "github.com/dalemusser/capstone/internal/app/store/users"
	"github.com/dalemusser/capstone/internal/app/system/apperr"
	"github.com/dalemusser/capstone/internal/app/system/auditlog"
	"github.com/dalemusser/capstone/internal/app/system/htmlsanitize"
	"github.com/dalemusser/capstone/internal/app/system/notify"
	"github.com/dalemusser/capstone/internal/app/system/ratelimit"
	"github.com/dalemusser/capstone/internal/app/system/teamcode"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Options carries the optional collaborators of a Service.
type Options struct {
	Audit    *auditlog.Logger
	Notifier notify.Notifier
	// Codes draws team codes. Defaults to a crypto/rand generator.
	Codes *teamcode.Generator
	// JoinLimiter throttles join attempts per student. Nil disables it.
	JoinLimiter *ratelimit.Limiter
	// DefaultMentorMaxTeams is the capacity given to mentors registered
	// without one. Zero means models.DefaultMentorMaxTeams.
	DefaultMentorMaxTeams int
}

// Service runs allocation operations against MongoDB.
type Service struct {
	DB       *mongo.Database
	Teams    *teamstore.Store
	Projects *projectstore.Store
	Users    *userstore.Store

	Audit       *auditlog.Logger
	Notify      notify.Notifier
	Codes       *teamcode.Generator
	JoinLimiter *ratelimit.Limiter
	Log         *zap.Logger

	DefaultMentorMaxTeams int

	now func() time.Time
}

// New wires a Service to db.
func New(db *mongo.Database, logger *zap.Logger, opts Options) *Service {
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Codes == nil {
		opts.Codes = teamcode.New(teamcode.DefaultMaxAttempts)
	}
	if opts.DefaultMentorMaxTeams <= 0 {
		opts.DefaultMentorMaxTeams = models.DefaultMentorMaxTeams
	}
	return &Service{
		DB:          db,
		Teams:       teamstore.New(db),
		Projects:    projectstore.New(db),
		Users:       userstore.New(db),
		Audit:       opts.Audit,
		Notify:      opts.Notifier,
		Codes:       opts.Codes,
		JoinLimiter: opts.JoinLimiter,
		Log:         logger,

		DefaultMentorMaxTeams: opts.DefaultMentorMaxTeams,

		now: func() time.Time { return time.Now().UTC() },
	}
}

// storeErr maps store sentinels to the caller-facing taxonomy.
func storeErr(op string, err error) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, teamstore.ErrNotFound):
		return apperr.NotFound("team not found")
	case errors.Is(err, projectstore.ErrNotFound):
		return apperr.NotFound("project not found")
	case errors.Is(err, userstore.ErrNotFound):
		return apperr.NotFound("user not found")
	case errors.Is(err, teamstore.ErrFull):
		return apperr.Conflict("team is full")
	case errors.Is(err, userstore.ErrAlreadyOnTeam):
		return apperr.Conflict("student is already on a team")
	case errors.Is(err, projectstore.ErrNoCapacity):
		return apperr.Conflict("project has no remaining capacity")
	case errors.Is(err, userstore.ErrNoCapacity):
		return apperr.Conflict("mentor has no remaining capacity")
	case errors.Is(err, teamstore.ErrStale), errors.Is(err, projectstore.ErrStale):
		return apperr.Conflict("the record changed while this request was running; reload and retry")
	}
	return apperr.Internal(op, err)
}

// feedback builds a feedback entry from user text. An empty message
// yields fallback, or nil when fallback is empty too.
func (s *Service) feedback(actor models.Actor, msg, fallback string) (*models.FeedbackEntry, error) {
	msg = strings.TrimSpace(htmlsanitize.PlainText(msg))
	if len(msg) > MaxFeedbackLen {
		return nil, apperr.Validation("feedback is limited to %d characters", MaxFeedbackLen)
	}
	if msg == "" {
		msg = fallback
	}
	if msg == "" {
		return nil, nil
	}
	return &models.FeedbackEntry{
		Message:    msg,
		AuthorID:   actor.ID,
		AuthorRole: actor.Role,
		CreatedAt:  s.now(),
	}, nil
}

func feedbackText(fb *models.FeedbackEntry) string {
	if fb == nil {
		return ""
	}
	return fb.Message
}

func requireRole(actor models.Actor, role string) error {
	if actor.ID.IsZero() {
		return apperr.Forbidden("sign in required")
	}
	if actor.Role != role {
		return apperr.Forbidden("this action requires the %s role", role)
	}
	return nil
}
