// internal/domain/models/feedback.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedbackEntry is one append-only note on a team or project.
type FeedbackEntry struct {
	Message    string             `bson:"message" json:"message"`
	AuthorID   primitive.ObjectID `bson:"author_id" json:"author_id"`
	AuthorRole string             `bson:"author_role,omitempty" json:"author_role,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}
