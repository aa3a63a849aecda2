// internal/app/features/projectbank/handler.go
package projectbank

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/capstone/internal/app/features/shared"
	"github.com/dalemusser/capstone/internal/app/projectbank"
	"github.com/dalemusser/capstone/internal/app/system/apperr"
	"github.com/dalemusser/capstone/internal/app/system/limits"
	"github.com/dalemusser/capstone/internal/app/system/normalize"
	"github.com/dalemusser/capstone/internal/app/system/paging"
	"github.com/dalemusser/capstone/internal/app/system/respond"
	"github.com/dalemusser/capstone/internal/app/system/timeouts"
	"github.com/dalemusser/capstone/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the project bank.
type Handler struct {
	Svc *projectbank.Service
	Log *zap.Logger
}

// NewHandler constructs a project bank Handler.
func NewHandler(svc *projectbank.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

// List handles GET /projectbank?status=&mine=1&after=&before=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	mine, _ := strconv.ParseBool(q.Get("mine"))
	pg, err := paging.ParseRequest(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list projects")
	defer cancel()

	out, err := h.Svc.List(ctx, actor, projectbank.ListQuery{
		Status: normalize.Status(q.Get("status")),
		Mine:   mine,
		Page:   pg,
	})
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, h.Svc.ViewPage(out))
}

// Show handles GET /projectbank/{id}.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "get project")
	defer cancel()

	p, err := h.Svc.Get(ctx, actor, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, h.Svc.View(p))
}

// Propose handles POST /projectbank.
func (h *Handler) Propose(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var req projectbank.ProposeInput
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "propose project")
	defer cancel()

	p, err := h.Svc.Propose(ctx, actor, req)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, h.Svc.View(p))
}

// Approve handles POST /projectbank/{id}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "approve project", h.Svc.Approve)
}

// Reject handles POST /projectbank/{id}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "reject project", h.Svc.Reject)
}

// Unapprove handles POST /projectbank/{id}/unapprove.
func (h *Handler) Unapprove(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "unapprove project", func(ctx context.Context, actor models.Actor, id primitive.ObjectID, _ string) (models.Project, error) {
		return h.Svc.Unapprove(ctx, actor, id)
	})
}

type reviewFunc func(ctx context.Context, actor models.Actor, id primitive.ObjectID, message string) (models.Project, error)

func (h *Handler) review(w http.ResponseWriter, r *http.Request, op string, fn reviewFunc) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	var req shared.MessageBody
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, op)
	defer cancel()

	p, err := fn(ctx, actor, id, req.Message)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, h.Svc.View(p))
}

// Withdraw handles POST /projectbank/{id}/withdraw. Proposers may pull back
// a proposal that has not been approved.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, "withdraw project", h.Svc.Withdraw)
}

// Delete handles DELETE /projectbank/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, "delete project", h.Svc.Delete)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, models.Actor, primitive.ObjectID) error) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, op)
	defer cancel()

	if err := fn(ctx, actor, id); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import handles POST /projectbank/import?approve=true. The CSV is taken from
// the multipart field "file", or from the body when sent as text/csv.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	approve, _ := strconv.ParseBool(r.URL.Query().Get("approve"))

	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxImportUploadSize)
	src, closeFn, err := csvSource(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	defer closeFn()

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "import projects")
	defer cancel()

	res, err := h.Svc.Import(ctx, actor, src, approve)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

func csvSource(r *http.Request) (io.Reader, func(), error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		return r.Body, func() {}, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			return nil, nil, apperr.Validation("CSV file is too large; the limit is %d MB", limits.MaxImportUploadSize>>20)
		}
		return nil, nil, apperr.Validation("CSV file is required")
	}
	return file, func() { _ = file.Close() }, nil
}
