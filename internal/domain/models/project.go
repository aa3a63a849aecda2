// internal/domain/models/project.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultProjectMaxTeams is used when a proposal does not state a capacity.
const DefaultProjectMaxTeams = 1

// ProjectRejectionRetention is how long a rejected proposal is kept before
// it becomes eligible for removal.
const ProjectRejectionRetention = 48 * time.Hour

// Project is an entry in the project bank.
//
// AssignedTeams lists teams whose *final* project is this entry. Listing a
// project among a team's choices does not consume capacity.
type Project struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Title       string             `bson:"title" json:"title"`
	TitleCI     string             `bson:"title_ci" json:"-"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category" json:"category"`

	ProposedBy   primitive.ObjectID `bson:"proposed_by" json:"proposed_by"`
	ProposerRole string             `bson:"proposer_role" json:"proposer_role"`

	IsApproved bool                `bson:"is_approved" json:"is_approved"`
	ApprovedBy *primitive.ObjectID `bson:"approved_by,omitempty" json:"approved_by,omitempty"`
	ApprovedAt *time.Time          `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	RejectedAt *time.Time          `bson:"rejected_at,omitempty" json:"rejected_at,omitempty"`

	Feedback []FeedbackEntry `bson:"feedback" json:"feedback"`

	MaxTeams      int                  `bson:"max_teams" json:"max_teams"`
	AssignedTeams []primitive.ObjectID `bson:"assigned_teams" json:"assigned_teams"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsActive reports whether the project can be picked as a team choice.
func (p Project) IsActive() bool {
	return p.IsApproved && p.RejectedAt == nil
}

// IsAvailable reports whether the project can take one more final assignment.
func (p Project) IsAvailable() bool {
	return p.IsApproved && len(p.AssignedTeams) < p.MaxTeams
}

// ExpiresAt returns when a rejected proposal may be removed.
func (p Project) ExpiresAt(retention time.Duration) (time.Time, bool) {
	if p.RejectedAt == nil || p.IsApproved {
		return time.Time{}, false
	}
	return p.RejectedAt.Add(retention), true
}
