package teamstore_test

import (
	"errors"
	"testing"
	"time"

	teamstore "github.com/dalemusser/capstone/internal/app/store/teams"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/dalemusser/capstone/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create_DuplicateCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Team{Code: "ABC123", LeaderID: primitive.NewObjectID(), Status: models.TeamPending})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID.IsZero() || created.CreatedAt.IsZero() {
		t.Error("expected ID and timestamps to be assigned")
	}
	if created.MemberIDs == nil || created.Feedback == nil {
		t.Error("expected empty lists rather than nil")
	}
	if created.ProjectAbstract.Status != models.SubmissionDraft || created.RoleSpecification.Status != models.SubmissionDraft {
		t.Errorf("submissions = %q/%q, want draft", created.ProjectAbstract.Status, created.RoleSpecification.Status)
	}

	exists, err := store.CodeExists(ctx, "ABC123")
	if err != nil || !exists {
		t.Errorf("CodeExists = %v, %v", exists, err)
	}
	exists, err = store.CodeExists(ctx, "ZZZ999")
	if err != nil || exists {
		t.Errorf("CodeExists(unused) = %v, %v", exists, err)
	}

	_, err = store.Create(ctx, models.Team{Code: "ABC123", LeaderID: primitive.NewObjectID()})
	if !errors.Is(err, teamstore.ErrDuplicateCode) {
		t.Errorf("expected ErrDuplicateCode, got %v", err)
	}
}

func TestStore_Create_BadSubmission(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, models.Team{
		Code:            "SUB001",
		LeaderID:        primitive.NewObjectID(),
		Status:          models.TeamPending,
		ProjectAbstract: models.Submission{Status: "approved-ish"},
	})
	if !errors.Is(err, teamstore.ErrBadSubmission) {
		t.Fatalf("expected ErrBadSubmission, got %v", err)
	}
	if exists, _ := store.CodeExists(ctx, "SUB001"); exists {
		t.Error("team with a bad submission status was inserted")
	}
}

func TestStore_Lookups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	leader := fixtures.CreateStudent(ctx, "L", "2026", "CS")
	member := fixtures.CreateStudent(ctx, "M", "2026", "CS")
	team := fixtures.CreateTeam(ctx, testutil.TeamSpec{Code: "QWE456", Leader: leader, Members: []models.User{member}})

	tests := []struct {
		name   string
		lookup func() (models.Team, error)
	}{
		{"by id", func() (models.Team, error) { return store.GetByID(ctx, team.ID) }},
		{"by code", func() (models.Team, error) { return store.GetByCode(ctx, "QWE456") }},
		{"by leader", func() (models.Team, error) { return store.GetByMember(ctx, leader.ID) }},
		{"by member", func() (models.Team, error) { return store.GetByMember(ctx, member.ID) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.lookup()
			if err != nil {
				t.Fatalf("lookup failed: %v", err)
			}
			if got.ID != team.ID {
				t.Errorf("got team %v, want %v", got.ID, team.ID)
			}
		})
	}

	if _, err := store.GetByMember(ctx, primitive.NewObjectID()); !errors.Is(err, teamstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetByCode(ctx, "NOPE00"); !errors.Is(err, teamstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_AddMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	leader := fixtures.CreateStudent(ctx, "L", "2026", "CS")
	team := fixtures.CreateTeam(ctx, testutil.TeamSpec{Leader: leader})

	for i := 0; i < models.MaxAdditionalMembers; i++ {
		if err := store.AddMember(ctx, team.ID, primitive.NewObjectID()); err != nil {
			t.Fatalf("AddMember #%d failed: %v", i+1, err)
		}
	}
	if err := store.AddMember(ctx, team.ID, primitive.NewObjectID()); !errors.Is(err, teamstore.ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}

	small := fixtures.CreateTeam(ctx, testutil.TeamSpec{Leader: fixtures.CreateStudent(ctx, "L2", "2026", "CS")})
	if err := store.AddMember(ctx, small.ID, small.LeaderID); !errors.Is(err, teamstore.ErrStale) {
		t.Errorf("leader joining own team: expected ErrStale, got %v", err)
	}
	if err := store.AddMember(ctx, primitive.NewObjectID(), primitive.NewObjectID()); !errors.Is(err, teamstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_LeadershipAndRemoval(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	leader := fixtures.CreateStudent(ctx, "L", "2026", "CS")
	a := fixtures.CreateStudent(ctx, "A", "2026", "CS")
	b := fixtures.CreateStudent(ctx, "B", "2026", "CS")
	team := fixtures.CreateTeam(ctx, testutil.TeamSpec{Leader: leader, Members: []models.User{a, b}})

	if err := store.TransferLeadership(ctx, team.ID, leader.ID, a.ID); err != nil {
		t.Fatalf("TransferLeadership failed: %v", err)
	}
	got := fixtures.GetTeam(ctx, team.ID)
	if got.LeaderID != a.ID || len(got.MemberIDs) != 1 || got.MemberIDs[0] != b.ID {
		t.Errorf("after transfer: leader=%v members=%v", got.LeaderID, got.MemberIDs)
	}
	if err := store.TransferLeadership(ctx, team.ID, leader.ID, b.ID); !errors.Is(err, teamstore.ErrStale) {
		t.Errorf("stale transfer: expected ErrStale, got %v", err)
	}

	if err := store.RemoveMember(ctx, team.ID, b.ID); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if err := store.RemoveMember(ctx, team.ID, b.ID); !errors.Is(err, teamstore.ErrStale) {
		t.Errorf("second RemoveMember: expected ErrStale, got %v", err)
	}
}

func TestStore_DeleteIfUnchanged(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	leader := fixtures.CreateStudent(ctx, "L", "2026", "CS")
	team := fixtures.CreateTeam(ctx, testutil.TeamSpec{Leader: leader})

	// A member joined after the caller read the team.
	if err := store.AddMember(ctx, team.ID, primitive.NewObjectID()); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if err := store.DeleteIfUnchanged(ctx, team); !errors.Is(err, teamstore.ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}

	current := fixtures.GetTeam(ctx, team.ID)
	if err := store.DeleteIfUnchanged(ctx, current); err != nil {
		t.Fatalf("DeleteIfUnchanged failed: %v", err)
	}
	if err := store.DeleteIfUnchanged(ctx, current); !errors.Is(err, teamstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_StatusAndChoices(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	team := fixtures.CreateTeam(ctx, testutil.TeamSpec{Leader: fixtures.CreateStudent(ctx, "L", "2026", "CS")})
	fb := &models.FeedbackEntry{Message: "Needs work", CreatedAt: time.Now().UTC()}

	if err := store.SetStatus(ctx, team.ID, []string{models.TeamPending}, models.TeamRejected, fb); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := store.SetStatus(ctx, team.ID, []string{models.TeamPending}, models.TeamApproved, nil); !errors.Is(err, teamstore.ErrStale) {
		t.Errorf("wrong from-status: expected ErrStale, got %v", err)
	}

	choices := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()}
	if err := store.ReplaceProjectChoices(ctx, team.ID, choices); err != nil {
		t.Fatalf("ReplaceProjectChoices failed: %v", err)
	}
	got := fixtures.GetTeam(ctx, team.ID)
	if got.Status != models.TeamPending || len(got.ProjectChoices) != 2 {
		t.Errorf("after edit: status=%q choices=%v", got.Status, got.ProjectChoices)
	}
	if len(got.Feedback) != 1 || got.Feedback[0].Message != "Needs work" {
		t.Errorf("feedback = %+v", got.Feedback)
	}

	if err := store.SetStatus(ctx, team.ID, []string{models.TeamPending}, models.TeamApproved, nil); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := store.ReplaceProjectChoices(ctx, team.ID, choices[:1]); !errors.Is(err, teamstore.ErrStale) {
		t.Errorf("approved team edit: expected ErrStale, got %v", err)
	}
}

func TestStore_CursorAndCommit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m1, m2 := primitive.NewObjectID(), primitive.NewObjectID()
	p := primitive.NewObjectID()
	team := fixtures.CreateTeam(ctx, testutil.TeamSpec{
		Leader:   fixtures.CreateStudent(ctx, "L", "2026", "CS"),
		Projects: []primitive.ObjectID{p},
		Mentors:  []primitive.ObjectID{m1, m2},
		Status:   models.TeamApproved,
	})

	offered, err := store.ListOfferedTo(ctx, m1)
	if err != nil || len(offered) != 1 {
		t.Fatalf("ListOfferedTo(m1) = %d teams, err %v", len(offered), err)
	}

	if err := store.AdvanceCursor(ctx, team.ID, 0, 1, nil); err != nil {
		t.Fatalf("AdvanceCursor failed: %v", err)
	}
	if err := store.AdvanceCursor(ctx, team.ID, 0, 1, nil); !errors.Is(err, teamstore.ErrStale) {
		t.Errorf("double decline: expected ErrStale, got %v", err)
	}
	if offered, _ := store.ListOfferedTo(ctx, m1); len(offered) != 0 {
		t.Errorf("m1 should no longer be offered the team")
	}
	if offered, _ := store.ListOfferedTo(ctx, m2); len(offered) != 1 {
		t.Errorf("m2 should be offered the team")
	}

	stale := 0
	err = store.CommitAssignment(ctx, teamstore.Commit{TeamID: team.ID, MentorID: m1, ProjectID: p, At: time.Now().UTC(), ExpectCursor: &stale})
	if !errors.Is(err, teamstore.ErrStale) {
		t.Errorf("commit at old cursor: expected ErrStale, got %v", err)
	}

	cursor := 1
	if err := store.CommitAssignment(ctx, teamstore.Commit{TeamID: team.ID, MentorID: m2, ProjectID: p, At: time.Now().UTC(), ExpectCursor: &cursor}); err != nil {
		t.Fatalf("CommitAssignment failed: %v", err)
	}
	if err := store.CommitAssignment(ctx, teamstore.Commit{TeamID: team.ID, MentorID: m1, ProjectID: p, At: time.Now().UTC()}); !errors.Is(err, teamstore.ErrStale) {
		t.Errorf("second commit: expected ErrStale, got %v", err)
	}

	assigned, err := store.ListAssignedTo(ctx, m2)
	if err != nil || len(assigned) != 1 {
		t.Errorf("ListAssignedTo(m2) = %d teams, err %v", len(assigned), err)
	}
	if n, err := store.CountWithProjectChoice(ctx, p); err != nil || n != 1 {
		t.Errorf("CountWithProjectChoice = %d, %v", n, err)
	}

	if err := store.ClearAssignment(ctx, teamstore.Commit{TeamID: team.ID, MentorID: m2}, false); err != nil {
		t.Fatalf("ClearAssignment failed: %v", err)
	}
	got := fixtures.GetTeam(ctx, team.ID)
	if got.Mentor.Assigned != nil || got.FinalProjectID != nil {
		t.Errorf("assignment not cleared: %+v", got.Mentor)
	}
}

func TestStore_CommitRequiresProjectChoice(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m := primitive.NewObjectID()
	chosen, dropped := primitive.NewObjectID(), primitive.NewObjectID()
	team := fixtures.CreateTeam(ctx, testutil.TeamSpec{
		Leader:   fixtures.CreateStudent(ctx, "L", "2026", "CS"),
		Projects: []primitive.ObjectID{chosen, dropped},
		Mentors:  []primitive.ObjectID{m},
		Status:   models.TeamPending,
	})

	// The caller read the team while it still listed dropped.
	if err := store.ReplaceProjectChoices(ctx, team.ID, []primitive.ObjectID{chosen}); err != nil {
		t.Fatalf("ReplaceProjectChoices failed: %v", err)
	}
	if err := store.SetStatus(ctx, team.ID, []string{models.TeamPending}, models.TeamApproved, nil); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	err := store.CommitAssignment(ctx, teamstore.Commit{TeamID: team.ID, MentorID: m, ProjectID: dropped, At: time.Now().UTC()})
	if !errors.Is(err, teamstore.ErrStale) {
		t.Fatalf("commit with a dropped choice: expected ErrStale, got %v", err)
	}
	if got := fixtures.GetTeam(ctx, team.ID); got.Mentor.Assigned != nil || got.FinalProjectID != nil {
		t.Errorf("team should be unassigned: %+v", got.Mentor)
	}

	if err := store.CommitAssignment(ctx, teamstore.Commit{TeamID: team.ID, MentorID: m, ProjectID: chosen, At: time.Now().UTC()}); err != nil {
		t.Fatalf("CommitAssignment failed: %v", err)
	}
}

func TestStore_ClearAssignmentRestoresTeam(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m, admin := primitive.NewObjectID(), primitive.NewObjectID()
	p := primitive.NewObjectID()
	team := fixtures.CreateTeam(ctx, testutil.TeamSpec{
		Leader:   fixtures.CreateStudent(ctx, "L", "2026", "CS"),
		Projects: []primitive.ObjectID{p},
		Mentors:  []primitive.ObjectID{primitive.NewObjectID()},
		Status:   models.TeamApproved,
	})
	if err := store.FlagManualAllocation(ctx, team.ID); err != nil {
		t.Fatalf("FlagManualAllocation failed: %v", err)
	}
	before := fixtures.GetTeam(ctx, team.ID)

	now := time.Now().UTC().Truncate(time.Millisecond)
	c := teamstore.Commit{
		TeamID:    team.ID,
		MentorID:  m,
		ProjectID: p,
		At:        now,
		Feedback:  &models.FeedbackEntry{Message: "Mentor allocated.", AuthorID: admin, AuthorRole: models.RoleAdmin, CreatedAt: now},
	}
	if err := store.CommitAssignment(ctx, c); err != nil {
		t.Fatalf("CommitAssignment failed: %v", err)
	}
	if got := fixtures.GetTeam(ctx, team.ID); got.Mentor.NeedsManualAllocation || len(got.Feedback) != len(before.Feedback)+1 {
		t.Fatalf("commit did not apply: flag=%v feedback=%d", got.Mentor.NeedsManualAllocation, len(got.Feedback))
	}

	if err := store.ClearAssignment(ctx, c, true); err != nil {
		t.Fatalf("ClearAssignment failed: %v", err)
	}
	got := fixtures.GetTeam(ctx, team.ID)
	if got.Mentor.Assigned != nil || got.Mentor.AssignedAt != nil || got.FinalProjectID != nil {
		t.Errorf("assignment not cleared: %+v", got.Mentor)
	}
	if !got.Mentor.NeedsManualAllocation {
		t.Error("manual allocation flag was not restored")
	}
	if len(got.Feedback) != len(before.Feedback) {
		t.Errorf("feedback entries = %d, want %d", len(got.Feedback), len(before.Feedback))
	}
}

func TestStore_ManualAllocationQueue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m := primitive.NewObjectID()
	exhausted := fixtures.CreateTeam(ctx, testutil.TeamSpec{
		Leader: fixtures.CreateStudent(ctx, "A", "2026", "CS"), Mentors: []primitive.ObjectID{m}, Status: models.TeamApproved,
	})
	flagged := fixtures.CreateTeam(ctx, testutil.TeamSpec{
		Leader: fixtures.CreateStudent(ctx, "B", "2026", "CS"), Mentors: []primitive.ObjectID{m}, Status: models.TeamApproved,
	})
	fixtures.CreateTeam(ctx, testutil.TeamSpec{
		Leader: fixtures.CreateStudent(ctx, "C", "2026", "CS"), Mentors: []primitive.ObjectID{m},
	})

	if err := store.AdvanceCursor(ctx, exhausted.ID, 0, models.ExhaustedPreference, nil); err != nil {
		t.Fatalf("AdvanceCursor failed: %v", err)
	}
	if err := store.FlagManualAllocation(ctx, flagged.ID); err != nil {
		t.Fatalf("FlagManualAllocation failed: %v", err)
	}

	queue, err := store.ListNeedingManualAllocation(ctx)
	if err != nil {
		t.Fatalf("ListNeedingManualAllocation failed: %v", err)
	}
	if len(queue) != 2 {
		t.Errorf("queue has %d teams, want 2", len(queue))
	}

	pending, err := store.ListByStatus(ctx, models.TeamPending)
	if err != nil || len(pending) != 1 {
		t.Errorf("ListByStatus(pending) = %d, %v", len(pending), err)
	}
	all, err := store.ListByStatus(ctx, "")
	if err != nil || len(all) != 3 {
		t.Errorf("ListByStatus(all) = %d, %v", len(all), err)
	}
}
