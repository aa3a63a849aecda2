// internal/domain/models/submission.go
package models

import "time"

// SubmissionStatus tracks the small review workflows attached to a team
// (project abstract, role specification).
type SubmissionStatus string

const (
	SubmissionDraft          SubmissionStatus = "draft"
	SubmissionSubmitted      SubmissionStatus = "submitted"
	SubmissionMentorApproved SubmissionStatus = "mentor_approved"
	SubmissionAdminApproved  SubmissionStatus = "admin_approved"
	SubmissionRejected       SubmissionStatus = "rejected"
)

// IsValid reports whether s is one of the known statuses.
func (s SubmissionStatus) IsValid() bool {
	switch s {
	case SubmissionDraft, SubmissionSubmitted, SubmissionMentorApproved,
		SubmissionAdminApproved, SubmissionRejected:
		return true
	}
	return false
}

// Submission is a status plus free-form content.
type Submission struct {
	Status    SubmissionStatus `bson:"status" json:"status"`
	Content   string           `bson:"content,omitempty" json:"content,omitempty"`
	UpdatedAt *time.Time       `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}
