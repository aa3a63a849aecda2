// Package notify sends allocation notifications. Delivery is best effort:
// failures are logged and never reach the caller.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/capstone/internal/app/system/mailer"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Notifier is called after a state change has been committed.
type Notifier interface {
	TeamApproved(ctx context.Context, t models.Team, feedback string)
	TeamRejected(ctx context.Context, t models.Team, feedback string)
	// TeamOffered tells the team's current preference that it is waiting on them.
	TeamOffered(ctx context.Context, t models.Team)
	CascadeExhausted(ctx context.Context, t models.Team)
	AssignmentCommitted(ctx context.Context, t models.Team, mentor models.User, project models.Project)
	ProjectApproved(ctx context.Context, p models.Project)
	ProjectRejected(ctx context.Context, p models.Project, feedback string)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) TeamApproved(context.Context, models.Team, string)       {}
func (Nop) TeamRejected(context.Context, models.Team, string)       {}
func (Nop) TeamOffered(context.Context, models.Team)                {}
func (Nop) CascadeExhausted(context.Context, models.Team)           {}
func (Nop) ProjectApproved(context.Context, models.Project)         {}
func (Nop) ProjectRejected(context.Context, models.Project, string) {}
func (Nop) AssignmentCommitted(context.Context, models.Team, models.User, models.Project) {
}

// Sender delivers one email. *mailer.Mailer satisfies it.
type Sender interface {
	Send(e mailer.Email) error
}

// Directory resolves recipients. *userstore.Store satisfies it.
type Directory interface {
	GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
	ListByRole(ctx context.Context, role string) ([]models.User, error)
}

// Mail sends notifications by email on background goroutines. Call Wait
// during shutdown to let in-flight sends finish.
type Mail struct {
	Sender   Sender
	Users    Directory
	SiteName string
	BaseURL  string
	Log      *zap.Logger

	wg sync.WaitGroup
}

// NewMail constructs a Mail notifier.
func NewMail(sender Sender, users Directory, siteName, baseURL string, logger *zap.Logger) *Mail {
	return &Mail{
		Sender:   sender,
		Users:    users,
		SiteName: siteName,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Log:      logger,
	}
}

// Wait blocks until queued sends finish.
func (m *Mail) Wait() { m.wg.Wait() }

type notice struct {
	to       []primitive.ObjectID
	admins   bool
	heading  string
	lines    []string
	feedback string
	link     string
}

// dispatch resolves recipients and sends on a goroutine detached from the
// request context so a finished request does not cancel delivery.
func (m *Mail) dispatch(n notice) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var recipients []models.User
		if len(n.to) > 0 {
			users, err := m.Users.GetMany(ctx, n.to)
			if err != nil {
				m.Log.Warn("notify: recipient lookup failed", zap.String("heading", n.heading), zap.Error(err))
				return
			}
			for _, id := range n.to {
				if u, ok := users[id]; ok {
					recipients = append(recipients, u)
				}
			}
		}
		if n.admins {
			admins, err := m.Users.ListByRole(ctx, models.RoleAdmin)
			if err != nil {
				m.Log.Warn("notify: admin lookup failed", zap.String("heading", n.heading), zap.Error(err))
				return
			}
			recipients = append(recipients, admins...)
		}

		for _, u := range recipients {
			if u.Email == "" {
				continue
			}
			e := mailer.BuildNotice(mailer.NoticeData{
				SiteName:  m.SiteName,
				Recipient: u.FullName,
				Heading:   n.heading,
				Lines:     n.lines,
				Feedback:  n.feedback,
				LinkURL:   m.url(n.link),
				LinkLabel: "Open in " + m.SiteName,
			})
			e.To = u.Email
			if err := m.Sender.Send(e); err != nil {
				m.Log.Warn("notify: send failed",
					zap.String("to", u.Email),
					zap.String("heading", n.heading),
					zap.Error(err))
			}
		}
	}()
}

func (m *Mail) url(path string) string {
	if path == "" || m.BaseURL == "" {
		return ""
	}
	return m.BaseURL + path
}

func students(t models.Team) []primitive.ObjectID {
	return append([]primitive.ObjectID{t.LeaderID}, t.MemberIDs...)
}

func teamPath(t models.Team) string { return "/teams/" + t.ID.Hex() }

func (m *Mail) TeamApproved(_ context.Context, t models.Team, feedback string) {
	m.dispatch(notice{
		to:       students(t),
		heading:  fmt.Sprintf("Team %s was approved", t.Code),
		lines:    []string{"Your team will now be offered to your mentor choices in order."},
		feedback: feedback,
		link:     teamPath(t),
	})
	m.TeamOffered(context.Background(), t)
}

func (m *Mail) TeamRejected(_ context.Context, t models.Team, feedback string) {
	m.dispatch(notice{
		to:       students(t),
		heading:  fmt.Sprintf("Team %s was not approved", t.Code),
		lines:    []string{"Your team leader can edit the project choices and resubmit."},
		feedback: feedback,
		link:     teamPath(t),
	})
}

func (m *Mail) TeamOffered(_ context.Context, t models.Team) {
	c := t.Mentor.CurrentPreference
	if c < 0 || c >= len(t.Mentor.Preferences) {
		return
	}
	m.dispatch(notice{
		to:      []primitive.ObjectID{t.Mentor.Preferences[c]},
		heading: fmt.Sprintf("Team %s is waiting for your response", t.Code),
		lines:   []string{fmt.Sprintf("You are preference %d of %d for this team.", c+1, len(t.Mentor.Preferences))},
		link:    "/mentoring/queue",
	})
}

func (m *Mail) CascadeExhausted(_ context.Context, t models.Team) {
	m.dispatch(notice{
		admins:  true,
		heading: fmt.Sprintf("Team %s needs manual allocation", t.Code),
		lines:   []string{"Every mentor preference declined this team."},
		link:    "/coordination/manual",
	})
}

func (m *Mail) AssignmentCommitted(_ context.Context, t models.Team, mentor models.User, project models.Project) {
	lines := []string{
		"Mentor: " + mentor.FullName,
		"Project: " + project.Title,
	}
	m.dispatch(notice{
		to:      append(students(t), mentor.ID),
		heading: fmt.Sprintf("Team %s has been allocated", t.Code),
		lines:   lines,
		link:    teamPath(t),
	})
}

func (m *Mail) ProjectApproved(_ context.Context, p models.Project) {
	m.dispatch(notice{
		to:      []primitive.ObjectID{p.ProposedBy},
		heading: fmt.Sprintf("Project %q was approved", p.Title),
		lines:   []string{"Teams can now list it among their project choices."},
		link:    "/projectbank/" + p.ID.Hex(),
	})
}

func (m *Mail) ProjectRejected(_ context.Context, p models.Project, feedback string) {
	m.dispatch(notice{
		to:       []primitive.ObjectID{p.ProposedBy},
		heading:  fmt.Sprintf("Project %q was not approved", p.Title),
		lines:    []string{"Rejected proposals are removed after the retention window."},
		feedback: feedback,
	})
}
