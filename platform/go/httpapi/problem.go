// Package httpapi holds the JSON and problem-details plumbing shared by the
// domain handlers.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
	platformlogging "github.com/zenGate-Global/palmyra-rentals/platform/go/logging"
)

const (
	ProblemTypeValidation = "https://rentals.palmyra.dev/problems/validation-error"
	ProblemTypeNotFound   = "https://rentals.palmyra.dev/problems/not-found"
	ProblemTypeTransition = "https://rentals.palmyra.dev/problems/invalid-state-transition"
	ProblemTypeConflict   = "https://rentals.palmyra.dev/problems/conflict"
	ProblemTypeInternal   = "https://rentals.palmyra.dev/problems/internal-error"
)

const maxBodyBytes = 1 << 20

// ProblemDetails is an RFC 7807 body.
type ProblemDetails struct {
	Type   string              `json:"type,omitempty"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// WriteJSON encodes body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteProblem writes a problem-details response.
func WriteProblem(w http.ResponseWriter, problem ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// DecodeJSON reads a JSON body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return domainerr.Invalid("body", "request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domainerr.Invalid("body", "request body is required")
		}
		return domainerr.Invalid("body", err.Error())
	}
	return nil
}

// WriteError classifies err, logs it at a level matching the status and writes the problem body.
func WriteError(w http.ResponseWriter, r *http.Request, fallback *zap.Logger, domain, op string, err error) {
	problem := ProblemForError(err)

	logger := platformlogging.FromRequest(r, fallback)
	fields := []zap.Field{
		zap.String("operation", op),
		zap.Int("status", problem.Status),
		zap.Error(err),
	}
	switch {
	case problem.Status >= http.StatusInternalServerError:
		logger.Error(domain+" operation failed", fields...)
	case problem.Status == http.StatusNotFound:
		logger.Info(domain+" resource not found", fields...)
	default:
		logger.Warn(domain+" request rejected", fields...)
	}

	WriteProblem(w, problem)
}

// ProblemForError maps the domain error taxonomy onto HTTP statuses.
func ProblemForError(err error) ProblemDetails {
	var validationErr *domainerr.ValidationError
	switch {
	case errors.As(err, &validationErr):
		copied := make(map[string][]string, len(validationErr.Fields))
		for field, messages := range validationErr.Fields {
			copied[field] = append([]string(nil), messages...)
		}
		return ProblemDetails{
			Type:   ProblemTypeValidation,
			Title:  "Validation failed",
			Status: http.StatusBadRequest,
			Detail: "one or more fields are invalid",
			Errors: copied,
		}
	case errors.Is(err, domainerr.ErrNotFound):
		return ProblemDetails{Type: ProblemTypeNotFound, Title: "Resource not found", Status: http.StatusNotFound, Detail: err.Error()}
	case errors.Is(err, domainerr.ErrInvalidTransition):
		return ProblemDetails{Type: ProblemTypeTransition, Title: "Invalid state transition", Status: http.StatusConflict, Detail: err.Error()}
	case errors.Is(err, domainerr.ErrConflict):
		return ProblemDetails{Type: ProblemTypeConflict, Title: "Conflict", Status: http.StatusConflict, Detail: "the record was modified concurrently, retry the request"}
	case errors.Is(err, context.DeadlineExceeded):
		return ProblemDetails{Type: ProblemTypeInternal, Title: "Timeout", Status: http.StatusGatewayTimeout, Detail: "the request timed out"}
	default:
		return ProblemDetails{Type: ProblemTypeInternal, Title: "Internal server error", Status: http.StatusInternalServerError, Detail: "an unexpected error occurred"}
	}
}
