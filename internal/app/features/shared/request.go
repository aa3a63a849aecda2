// Package shared holds request helpers used by every API feature.
package shared

import (
	"net/http"
	"strings"

	"github.com/dalemusser/capstone/internal/app/system/apperr"
	"github.com/dalemusser/capstone/internal/app/system/authz"
	"github.com/dalemusser/capstone/internal/app/system/respond"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor resolves the caller. It answers 401 and returns false when the
// request carries no usable identity.
func Actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := authz.ActorFrom(r)
	if !ok {
		respond.Status(w, http.StatusUnauthorized, "unauthorized", "sign in required")
		return models.Actor{}, false
	}
	return actor, true
}

// PathID parses the chi URL parameter key as an ObjectID.
func PathID(r *http.Request, key string) (primitive.ObjectID, error) {
	return ParseID(chi.URLParam(r, key), key)
}

// ParseID parses a hex ObjectID supplied by a client as field.
func ParseID(hex, field string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(hex))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("%s is not a valid id", field)
	}
	return id, nil
}

// ParseIDs parses a list of hex ObjectIDs supplied as field.
func ParseIDs(hexes []string, field string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		id, err := ParseID(h, field)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// MessageBody is the optional free-text body of review actions.
type MessageBody struct {
	Message string `json:"message"`
}
