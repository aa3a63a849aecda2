// Package projectbank manages the catalog of proposed and approved
// projects. Capacity on a project is only consumed by the allocation
// engine's assignment commit; nothing here touches assigned_teams.
package projectbank

import (
	"context"
	"errors"
	"io"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/capstone/internal/app/store/audit"
	projectstore "github.com/dalemusser/capstone/internal/app/store/projects"
	"github.com/dalemusser/capstone/internal/app/system/apperr"
	"github.com/dalemusser/capstone/internal/app/system/auditlog"
	"github.com/dalemusser/capstone/internal/app/system/csvutil"
	"github.com/dalemusser/capstone/internal/app/system/htmlsanitize"
	"github.com/dalemusser/capstone/internal/app/system/notify"
	"github.com/dalemusser/capstone/internal/app/system/paging"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Default feedback appended when an administrator gives none.
const (
	DefaultApprovalMessage  = "Project approved."
	DefaultRejectionMessage = "Project rejected."
)

// MaxCategoryLen bounds the category label.
const MaxCategoryLen = 60

// Service runs project bank operations.
type Service struct {
	Projects *projectstore.Store
	Audit    *auditlog.Logger
	Notify   notify.Notifier
	// DefaultMaxTeams is used for proposals that give no capacity.
	DefaultMaxTeams int
	// RejectionRetention is how long rejected proposals are kept.
	RejectionRetention time.Duration
	Log                *zap.Logger
}

// New wires a Service to db. A nil notifier disables notifications.
func New(db *mongo.Database, logger *zap.Logger, audit *auditlog.Logger, notifier notify.Notifier, defaultMaxTeams int) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if defaultMaxTeams <= 0 {
		defaultMaxTeams = models.DefaultProjectMaxTeams
	}
	return &Service{
		Projects:        projectstore.New(db),
		Audit:           audit,
		Notify:          notifier,
		DefaultMaxTeams:    defaultMaxTeams,
		RejectionRetention: models.ProjectRejectionRetention,
		Log:                logger,
	}
}

// ProposeInput describes a new proposal.
type ProposeInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	MaxTeams    int    `json:"max_teams"`
}

// Propose adds an unapproved project. Titles are unique ignoring case.
func (s *Service) Propose(ctx context.Context, actor models.Actor, in ProposeInput) (models.Project, error) {
	if actor.ID.IsZero() {
		return models.Project{}, apperr.Forbidden("sign in required")
	}
	p, err := s.build(actor, in)
	if err != nil {
		return models.Project{}, err
	}
	created, err := s.Projects.Create(ctx, p)
	if errors.Is(err, projectstore.ErrDuplicateTitle) {
		return models.Project{}, apperr.Conflict("a project titled %q already exists", p.Title)
	}
	if err != nil {
		return models.Project{}, apperr.Internal("create project", err)
	}
	s.Audit.Project(ctx, audit.EventProjectProposed, actor, created.ID, created.Title)
	return created, nil
}

func (s *Service) build(actor models.Actor, in ProposeInput) (models.Project, error) {
	title := htmlsanitize.PlainText(in.Title)
	if title == "" {
		return models.Project{}, apperr.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > csvutil.MaxTitleLen {
		return models.Project{}, apperr.Validation("title is limited to %d characters", csvutil.MaxTitleLen)
	}
	desc := htmlsanitize.Sanitize(in.Description)
	if utf8.RuneCountInString(desc) > csvutil.MaxDescriptionLen {
		return models.Project{}, apperr.Validation("description is limited to %d characters", csvutil.MaxDescriptionLen)
	}
	category := htmlsanitize.PlainText(in.Category)
	if utf8.RuneCountInString(category) > MaxCategoryLen {
		return models.Project{}, apperr.Validation("category is limited to %d characters", MaxCategoryLen)
	}
	if in.MaxTeams < 0 {
		return models.Project{}, apperr.Validation("max_teams must be at least 1")
	}
	if in.MaxTeams == 0 {
		in.MaxTeams = s.DefaultMaxTeams
	}
	return models.Project{
		Title:        title,
		Description:  desc,
		Category:     category,
		ProposedBy:   actor.ID,
		ProposerRole: actor.Role,
		MaxTeams:     in.MaxTeams,
	}, nil
}

func (s *Service) load(ctx context.Context, id primitive.ObjectID) (models.Project, error) {
	p, err := s.Projects.GetByID(ctx, id)
	if errors.Is(err, projectstore.ErrNotFound) {
		return models.Project{}, apperr.NotFound("project not found")
	}
	if err != nil {
		return models.Project{}, apperr.Internal("load project", err)
	}
	return p, nil
}

func requireAdmin(actor models.Actor) error {
	if !actor.IsAdmin() {
		return apperr.Forbidden("this action requires the admin role")
	}
	return nil
}

func (s *Service) feedback(actor models.Actor, msg, fallback string) (*models.FeedbackEntry, error) {
	msg = htmlsanitize.PlainText(msg)
	if utf8.RuneCountInString(msg) > csvutil.MaxDescriptionLen {
		return nil, apperr.Validation("feedback is limited to %d characters", csvutil.MaxDescriptionLen)
	}
	if msg == "" {
		msg = fallback
	}
	return &models.FeedbackEntry{
		Message:    msg,
		AuthorID:   actor.ID,
		AuthorRole: actor.Role,
		CreatedAt:  nowUTC(),
	}, nil
}

// Approve approves a proposal, including one rejected but not yet expired.
func (s *Service) Approve(ctx context.Context, actor models.Actor, id primitive.ObjectID, message string) (models.Project, error) {
	if err := requireAdmin(actor); err != nil {
		return models.Project{}, err
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if p.IsApproved {
		return models.Project{}, apperr.Conflict("project %q is already approved", p.Title)
	}
	fb, err := s.feedback(actor, message, DefaultApprovalMessage)
	if err != nil {
		return models.Project{}, err
	}
	if err := s.Projects.Approve(ctx, p.ID, actor.ID, fb); err != nil {
		return models.Project{}, s.transitionErr(err, p, "approve project")
	}

	s.Audit.Project(ctx, audit.EventProjectApproved, actor, p.ID, p.Title)
	out, err := s.load(ctx, p.ID)
	if err != nil {
		return models.Project{}, err
	}
	s.Notify.ProjectApproved(ctx, out)
	return out, nil
}

// Reject stamps a pending proposal for expiry. Approved projects must be
// unapproved first.
func (s *Service) Reject(ctx context.Context, actor models.Actor, id primitive.ObjectID, message string) (models.Project, error) {
	if err := requireAdmin(actor); err != nil {
		return models.Project{}, err
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if p.IsApproved {
		return models.Project{}, apperr.Conflict("project %q is approved; unapprove it before rejecting", p.Title)
	}
	if p.RejectedAt != nil {
		return models.Project{}, apperr.Conflict("project %q is already rejected", p.Title)
	}
	fb, err := s.feedback(actor, message, DefaultRejectionMessage)
	if err != nil {
		return models.Project{}, err
	}
	if err := s.Projects.Reject(ctx, p.ID, fb); err != nil {
		return models.Project{}, s.transitionErr(err, p, "reject project")
	}

	s.Audit.Project(ctx, audit.EventProjectRejected, actor, p.ID, p.Title)
	out, err := s.load(ctx, p.ID)
	if err != nil {
		return models.Project{}, err
	}
	s.Notify.ProjectRejected(ctx, out, fb.Message)
	return out, nil
}

// Unapprove returns an approved project that no team holds to proposed.
func (s *Service) Unapprove(ctx context.Context, actor models.Actor, id primitive.ObjectID) (models.Project, error) {
	if err := requireAdmin(actor); err != nil {
		return models.Project{}, err
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if !p.IsApproved {
		return models.Project{}, apperr.Conflict("project %q is not approved", p.Title)
	}
	if len(p.AssignedTeams) > 0 {
		return models.Project{}, apperr.Conflict("project %q is the final project of %d team(s)", p.Title, len(p.AssignedTeams))
	}
	if err := s.Projects.Unapprove(ctx, p.ID); err != nil {
		return models.Project{}, s.transitionErr(err, p, "unapprove project")
	}
	s.Audit.Project(ctx, audit.EventProjectUnapproved, actor, p.ID, p.Title)
	return s.load(ctx, p.ID)
}

// Withdraw lets a proposer delete their own proposal before approval.
func (s *Service) Withdraw(ctx context.Context, actor models.Actor, id primitive.ObjectID) error {
	if actor.ID.IsZero() {
		return apperr.Forbidden("sign in required")
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if p.ProposedBy != actor.ID {
		return apperr.Forbidden("only the proposer can withdraw a project")
	}
	if p.IsApproved {
		return apperr.Conflict("project %q is approved and cannot be withdrawn", p.Title)
	}
	if err := s.Projects.DeleteUnassigned(ctx, p.ID, actor.ID); err != nil {
		return s.transitionErr(err, p, "withdraw project")
	}
	s.Audit.Project(ctx, audit.EventProjectWithdrawn, actor, p.ID, p.Title)
	return nil
}

// Delete removes a project that is nobody's final project.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id primitive.ObjectID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if len(p.AssignedTeams) > 0 {
		return apperr.Conflict("project %q is the final project of %d team(s)", p.Title, len(p.AssignedTeams))
	}
	if err := s.Projects.DeleteUnassigned(ctx, p.ID, primitive.NilObjectID); err != nil {
		return s.transitionErr(err, p, "delete project")
	}
	s.Audit.Project(ctx, audit.EventProjectDeleted, actor, p.ID, p.Title)
	return nil
}

// transitionErr maps a failed conditional write after p was read.
func (s *Service) transitionErr(err error, p models.Project, op string) error {
	switch {
	case errors.Is(err, projectstore.ErrNotFound):
		return apperr.NotFound("project not found")
	case errors.Is(err, projectstore.ErrStale):
		return apperr.Conflict("project %q changed while this request was running", p.Title)
	}
	return apperr.Internal(op, err)
}

// ListQuery narrows List.
type ListQuery struct {
	// Status is "approved", "proposed", "rejected" or empty for every
	// project the caller can see.
	Status string
	// Mine restricts results to the caller's proposals.
	Mine bool
	// Page selects the keyset page.
	Page paging.Request
}

// List returns the projects visible to actor. Students and mentors see
// approved projects and their own proposals; administrators see all.
func (s *Service) List(ctx context.Context, actor models.Actor, q ListQuery) (paging.Page[models.Project], error) {
	f := projectstore.ListFilter{}
	approved, proposed := true, false
	switch q.Status {
	case "":
	case "approved":
		f.Approved = &approved
	case "proposed":
		f.Approved = &proposed
	case "rejected":
		f.Approved = &proposed
		f.OnlyRejected = true
	default:
		return paging.Page[models.Project]{}, apperr.Validation("unknown project status %q", q.Status)
	}
	if q.Mine {
		f.ProposedBy = actor.ID
		f.IncludeRejected = true
	}
	if !actor.IsAdmin() && !q.Mine {
		if q.Status != "" && q.Status != "approved" {
			return paging.Page[models.Project]{}, apperr.Forbidden("only administrators can list other proposals")
		}
		f.Approved = &approved
	}

	out, err := s.Projects.List(ctx, f, q.Page)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			return paging.Page[models.Project]{}, err
		}
		return paging.Page[models.Project]{}, apperr.Internal("list projects", err)
	}
	return out, nil
}

// Get returns a project the caller may see.
func (s *Service) Get(ctx context.Context, actor models.Actor, id primitive.ObjectID) (models.Project, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if !actor.IsAdmin() && !p.IsApproved && p.ProposedBy != actor.ID {
		return models.Project{}, apperr.Forbidden("you do not have access to this project")
	}
	return p, nil
}

// ImportResult summarizes a CSV import.
type ImportResult struct {
	Created  int                `json:"created"`
	Approved bool               `json:"approved"`
	Errors   []csvutil.RowError `json:"errors"`
}

// Import proposes one project per CSV row through Propose, approving each
// when approve is set. Row problems are reported, not fatal.
func (s *Service) Import(ctx context.Context, actor models.Actor, r io.Reader, approve bool) (ImportResult, error) {
	if err := requireAdmin(actor); err != nil {
		return ImportResult{}, err
	}
	rows, rowErrs, err := csvutil.PreScanProjectsCSV(r)
	if errors.Is(err, csvutil.ErrTooManyRows) {
		return ImportResult{}, apperr.Validation("%v", err)
	}
	if err != nil {
		return ImportResult{}, apperr.Validation("could not read CSV: %v", err)
	}

	res := ImportResult{Approved: approve, Errors: rowErrs}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, apperr.Internal("import projects", err)
		}
		p, err := s.Propose(ctx, actor, ProposeInput{
			Title:       row.Title,
			Description: row.Description,
			Category:    row.Category,
			MaxTeams:    row.MaxTeams,
		})
		if err != nil {
			if apperr.KindOf(err) == apperr.KindInternal {
				return res, err
			}
			res.Errors = append(res.Errors, csvutil.RowError{Line: row.Line, Title: row.Title, Reason: err.Error()})
			continue
		}
		res.Created++
		if approve {
			if _, err := s.Approve(ctx, actor, p.ID, ""); err != nil {
				s.Log.Warn("imported project left unapproved", zap.String("title", p.Title), zap.Error(err))
			}
		}
	}
	if res.Errors == nil {
		res.Errors = []csvutil.RowError{}
	}
	s.Audit.ProjectsImported(ctx, actor, res.Created, len(res.Errors))
	return res, nil
}

func nowUTC() time.Time { return time.Now().UTC() }
