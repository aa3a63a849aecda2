// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleStudent = "student"
	RoleMentor  = "mentor"
	RoleAdmin   = "admin"
)

// DefaultMentorMaxTeams is the mentor capacity used when none is configured.
const DefaultMentorMaxTeams = 3

// User represents students, mentors, and administrators.
//
// NOTE:
//   - TeamID is only set for students and mirrors team membership so that
//     "already on a team" can be claimed with a single conditional update.
//   - AssignedTeams/MaxTeams form the mentor capacity record.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"-"`
	Email      string             `bson:"email" json:"email"`
	Role       string             `bson:"role" json:"role"` // student | mentor | admin
	Status     string             `bson:"status,omitempty" json:"status,omitempty"`

	Batch      string `bson:"batch,omitempty" json:"batch,omitempty"`
	Department string `bson:"department,omitempty" json:"department,omitempty"`

	TeamID *primitive.ObjectID `bson:"team_id,omitempty" json:"team_id,omitempty"`

	AssignedTeams []primitive.ObjectID `bson:"assigned_teams" json:"assigned_teams"`
	MaxTeams      int                  `bson:"max_teams" json:"max_teams"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsMentor reports whether the user can take teams.
func (u User) IsMentor() bool {
	return u.Role == RoleMentor
}

// IsAvailable reports whether a mentor can take one more team.
func (u User) IsAvailable() bool {
	return u.IsMentor() && len(u.AssignedTeams) < u.MaxTeams
}
