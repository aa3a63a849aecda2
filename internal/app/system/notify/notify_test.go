package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dalemusser/capstone/internal/app/system/mailer"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []mailer.Email
	err  error
}

func (f *fakeSender) Send(e mailer.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, e)
	return f.err
}

type fakeDirectory struct {
	users  map[primitive.ObjectID]models.User
	admins []models.User
	err    error
}

func (d fakeDirectory) GetMany(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	out := map[primitive.ObjectID]models.User{}
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (d fakeDirectory) ListByRole(context.Context, string) ([]models.User, error) {
	return d.admins, d.err
}

func user(name, email string) models.User {
	return models.User{ID: primitive.NewObjectID(), FullName: name, Email: email}
}

func TestMail_TeamRejected_SendsToEveryStudent(t *testing.T) {
	leader, member := user("Lead", "lead@test.edu"), user("Mem", "mem@test.edu")
	dir := fakeDirectory{users: map[primitive.ObjectID]models.User{leader.ID: leader, member.ID: member}}
	sender := &fakeSender{}
	m := NewMail(sender, dir, "Capstone", "https://capstone.test/", zap.NewNop())

	team := models.Team{ID: primitive.NewObjectID(), Code: "ABC123", LeaderID: leader.ID, MemberIDs: []primitive.ObjectID{member.ID}}
	m.TeamRejected(context.Background(), team, "choose approved projects")
	m.Wait()

	require.Len(t, sender.sent, 2)
	assert.ElementsMatch(t, []string{"lead@test.edu", "mem@test.edu"}, []string{sender.sent[0].To, sender.sent[1].To})
	assert.Contains(t, sender.sent[0].TextBody, "choose approved projects")
	assert.Contains(t, sender.sent[0].TextBody, "https://capstone.test/teams/"+team.ID.Hex())
}

func TestMail_TeamOffered_CurrentPreferenceOnly(t *testing.T) {
	m1, m2 := user("M1", "m1@test.edu"), user("M2", "m2@test.edu")
	dir := fakeDirectory{users: map[primitive.ObjectID]models.User{m1.ID: m1, m2.ID: m2}}
	sender := &fakeSender{}
	m := NewMail(sender, dir, "Capstone", "", zap.NewNop())

	team := models.Team{Code: "XYZ789", Mentor: models.TeamMentor{Preferences: []primitive.ObjectID{m1.ID, m2.ID}, CurrentPreference: 1}}
	m.TeamOffered(context.Background(), team)
	m.Wait()

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "m2@test.edu", sender.sent[0].To)

	team.Mentor.CurrentPreference = models.ExhaustedPreference
	m.TeamOffered(context.Background(), team)
	m.Wait()
	assert.Len(t, sender.sent, 1, "exhausted teams are not offered")
}

func TestMail_CascadeExhausted_GoesToAdmins(t *testing.T) {
	sender := &fakeSender{}
	dir := fakeDirectory{admins: []models.User{user("Admin", "admin@test.edu")}}
	m := NewMail(sender, dir, "Capstone", "", zap.NewNop())

	m.CascadeExhausted(context.Background(), models.Team{Code: "ABC123"})
	m.Wait()

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "admin@test.edu", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Subject, "manual allocation")
}

func TestMail_FailuresAreSwallowed(t *testing.T) {
	lead := user("Lead", "lead@test.edu")
	sender := &fakeSender{err: errors.New("smtp down")}
	m := NewMail(sender, fakeDirectory{users: map[primitive.ObjectID]models.User{lead.ID: lead}}, "Capstone", "", zap.NewNop())

	assert.NotPanics(t, func() {
		m.TeamRejected(context.Background(), models.Team{LeaderID: lead.ID}, "")
		m.Wait()
	})

	m = NewMail(sender, fakeDirectory{err: errors.New("db down")}, "Capstone", "", zap.NewNop())
	m.ProjectApproved(context.Background(), models.Project{ProposedBy: lead.ID, Title: "X"})
	m.Wait()
}

func TestNop_SatisfiesNotifier(t *testing.T) {
	var n Notifier = Nop{}
	n.TeamApproved(context.Background(), models.Team{}, "")
}
