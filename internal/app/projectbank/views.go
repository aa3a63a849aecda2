// internal/app/projectbank/views.go
package projectbank

import (
	"time"

	"github.com/dalemusser/capstone/internal/app/system/capacity"
	"github.com/dalemusser/capstone/internal/app/system/paging"
	"github.com/dalemusser/capstone/internal/domain/models"
)

// ProjectView is a project plus values derived from its stored fields.
type ProjectView struct {
	models.Project
	IsAvailable bool       `json:"is_available"`
	Remaining   int        `json:"remaining"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// View derives the computed fields of p. Rejected proposals report when
// they become eligible for removal.
func (s *Service) View(p models.Project) ProjectView {
	v := ProjectView{
		Project:     p,
		IsAvailable: p.IsAvailable(),
		Remaining:   capacity.Remaining(len(p.AssignedTeams), p.MaxTeams),
	}
	retention := s.RejectionRetention
	if retention <= 0 {
		retention = models.ProjectRejectionRetention
	}
	if at, ok := p.ExpiresAt(retention); ok {
		v.ExpiresAt = &at
	}
	return v
}

// ViewPage converts a page of projects to views, keeping its cursors.
func (s *Service) ViewPage(pg paging.Page[models.Project]) paging.Page[ProjectView] {
	items := make([]ProjectView, 0, len(pg.Items))
	for _, p := range pg.Items {
		items = append(items, s.View(p))
	}
	return paging.Page[ProjectView]{
		Items:   items,
		HasPrev: pg.HasPrev,
		HasNext: pg.HasNext,
		Prev:    pg.Prev,
		Next:    pg.Next,
	}
}
