// internal/app/allocation/roster.go
package allocation

import (
	"context"
	"errors"

	userstore "github.com/dalemusser/capstone/internal/app/store/users"
	"github.com/dalemusser/capstone/internal/app/system/apperr"
	"github.com/dalemusser/capstone/internal/app/system/htmlsanitize"
	"github.com/dalemusser/capstone/internal/app/system/normalize"
	"github.com/dalemusser/capstone/internal/domain/models"
	validate "github.com/dalemusser/waffle/toolkit/validate"
)

// RegisterInput describes a roster entry.
type RegisterInput struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Batch      string `json:"batch"`
	Department string `json:"department"`
	// MaxTeams applies to mentors only. Zero takes the configured default.
	MaxTeams int `json:"max_teams"`
}

// RegisterUser adds a student, mentor or administrator to the roster.
// Students must carry a batch and department since teams are formed
// within one cohort.
func (s *Service) RegisterUser(ctx context.Context, actor models.Actor, in RegisterInput) (models.User, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return models.User{}, err
	}
	role := normalize.Role(in.Role)
	u := models.User{
		FullName:   htmlsanitize.PlainText(in.FullName),
		Email:      normalize.Email(in.Email),
		Role:       role,
		Batch:      in.Batch,
		Department: in.Department,
	}
	switch {
	case u.FullName == "":
		return models.User{}, apperr.Validation("full_name is required")
	case u.Email == "" || !validate.SimpleEmailValid(u.Email):
		return models.User{}, apperr.Validation("a valid email is required")
	case in.MaxTeams < 0:
		return models.User{}, apperr.Validation("max_teams cannot be negative")
	}
	switch role {
	case models.RoleStudent:
		if in.Batch == "" || in.Department == "" {
			return models.User{}, apperr.Validation("students need a batch and a department")
		}
	case models.RoleMentor:
		u.MaxTeams = in.MaxTeams
	case models.RoleAdmin:
	default:
		return models.User{}, apperr.Validation("role must be student, mentor or admin")
	}

	created, err := s.Users.Create(ctx, u, s.DefaultMentorMaxTeams)
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		return models.User{}, apperr.Conflict("a user with email %s already exists", u.Email)
	}
	if err != nil {
		return models.User{}, apperr.Internal("register user", err)
	}
	s.Audit.UserRegistered(ctx, actor, created)
	return created, nil
}
