// Package respond writes JSON responses for the API handlers.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/capstone/internal/app/system/apperr"
	"github.com/dalemusser/capstone/internal/app/system/limits"
	"go.uber.org/zap"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error maps err to a status by its apperr kind. Internal errors are logged
// and their detail is not echoed to the client.
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	msg := "internal error"
	if kind != apperr.KindInternal {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			msg = ae.Msg
		}
	} else if log != nil {
		log.Error("request failed", zap.Error(err))
	}
	JSON(w, apperr.HTTPStatus(kind), ErrorBody{Error: string(kind), Message: msg})
}

// Status writes an error body for a status that has no apperr kind
// (401, 404, 405, 503).
func Status(w http.ResponseWriter, status int, code, msg string) {
	JSON(w, status, ErrorBody{Error: code, Message: msg})
}

// Decode reads a JSON body into v. Unknown fields and trailing data are
// rejected as validation errors. An empty body leaves v untouched.
func Decode(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, limits.MaxJSONBodySize)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return apperr.Validation("request body exceeds %d bytes", mbe.Limit)
		}
		return apperr.Validation("invalid JSON body: %v", err)
	}
	if dec.More() {
		return apperr.Validation("invalid JSON body: %s", "trailing data")
	}
	return nil
}
