// internal/domain/models/team.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Team statuses reflect coordinator approval only. Mentor assignment is
// tracked separately on Team.Mentor.
const (
	TeamPending  = "pending"
	TeamApproved = "approved"
	TeamRejected = "rejected"
)

// MaxAdditionalMembers is the number of members a team may hold besides its leader.
const MaxAdditionalMembers = 3

// Bounds on a team's project and mentor preference lists.
const (
	MinChoices = 1
	MaxChoices = 3
)

// ExhaustedPreference is the cursor value of a team whose mentor
// preferences have all declined. Such a team needs manual allocation.
const ExhaustedPreference = -1

// Team is the unit being allocated to a mentor and a final project.
//
// NOTE:
//   - LeaderID is never repeated in MemberIDs.
//   - MemberIDs keeps insertion order; leadership passes to MemberIDs[0].
//   - Batch and Department are copied from the leader at creation and
//     every joining student must match them.
type Team struct {
	ID         primitive.ObjectID   `bson:"_id" json:"id"`
	Code       string               `bson:"code" json:"code"`
	Name       string               `bson:"name,omitempty" json:"name,omitempty"`
	LeaderID   primitive.ObjectID   `bson:"leader_id" json:"leader_id"`
	MemberIDs  []primitive.ObjectID `bson:"member_ids" json:"member_ids"`
	Batch      string               `bson:"batch" json:"batch"`
	Department string               `bson:"department" json:"department"`

	ProjectChoices []primitive.ObjectID `bson:"project_choices" json:"project_choices"`
	Mentor         TeamMentor           `bson:"mentor" json:"mentor"`
	FinalProjectID *primitive.ObjectID  `bson:"final_project_id,omitempty" json:"final_project_id,omitempty"`

	Status string `bson:"status" json:"status"` // pending | approved | rejected

	ProjectAbstract   Submission `bson:"project_abstract" json:"project_abstract"`
	RoleSpecification Submission `bson:"role_specification" json:"role_specification"`

	Feedback []FeedbackEntry `bson:"feedback" json:"feedback"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// TeamMentor holds the ranked mentor preferences, the cascade cursor and
// the committed mentor (if any).
type TeamMentor struct {
	Preferences       []primitive.ObjectID `bson:"preferences" json:"preferences"`
	CurrentPreference int                  `bson:"current_preference" json:"current_preference"`
	Assigned          *primitive.ObjectID  `bson:"assigned,omitempty" json:"assigned,omitempty"`
	AssignedAt        *time.Time           `bson:"assigned_at,omitempty" json:"assigned_at,omitempty"`

	// NeedsManualAllocation is set by an administrator for a team that has
	// not exhausted its preferences but should be allocated by hand.
	NeedsManualAllocation bool `bson:"needs_manual_allocation" json:"needs_manual_allocation"`
}

// TeamSize counts the leader plus members.
func (t Team) TeamSize() int {
	return 1 + len(t.MemberIDs)
}

// IsFull reports whether no further member can join.
func (t Team) IsFull() bool {
	return len(t.MemberIDs) >= MaxAdditionalMembers
}

// IsLeader reports whether userID leads the team.
func (t Team) IsLeader(userID primitive.ObjectID) bool {
	return t.LeaderID == userID
}

// HasMember reports whether userID is the leader or a member.
func (t Team) HasMember(userID primitive.ObjectID) bool {
	if t.LeaderID == userID {
		return true
	}
	for _, m := range t.MemberIDs {
		if m == userID {
			return true
		}
	}
	return false
}

// IsCommitted reports whether a mentor or a final project has been set.
func (t Team) IsCommitted() bool {
	return t.Mentor.Assigned != nil || t.FinalProjectID != nil
}

// IsExhausted reports whether the mentor cascade has run out of preferences.
func (t Team) IsExhausted() bool {
	return t.Mentor.CurrentPreference == ExhaustedPreference
}

// NeedsManualAllocation reports whether an administrator may allocate a
// mentor by hand.
func (t Team) NeedsManualAllocation() bool {
	return t.Mentor.Assigned == nil && (t.IsExhausted() || t.Mentor.NeedsManualAllocation)
}

// HasProjectChoice reports whether projectID is one of the team's choices.
func (t Team) HasProjectChoice(projectID primitive.ObjectID) bool {
	for _, p := range t.ProjectChoices {
		if p == projectID {
			return true
		}
	}
	return false
}
