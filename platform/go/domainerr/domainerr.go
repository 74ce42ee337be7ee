// Package domainerr defines the error taxonomy shared by the lease, payment and
// statistics domains. Handlers classify errors with errors.Is / errors.As.
package domainerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinels matched by the typed errors below.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvariant         = errors.New("invariant violation")
	ErrConflict          = errors.New("concurrent modification")
)

// NotFoundError reports a contract or payment id that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

// NotFound builds a NotFoundError.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// FieldErrors maps input fields to validation issues.
type FieldErrors map[string][]string

// Add appends a message for field.
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// ValidationError is returned when input is malformed. It is raised before any mutation.
type ValidationError struct {
	Fields FieldErrors
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, message string) error {
	return &ValidationError{Fields: FieldErrors{field: {message}}}
}

// OrNil returns a ValidationError when any field error was collected, nil otherwise.
func (f FieldErrors) OrNil() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

func (v *ValidationError) Error() string {
	if len(v.Fields) == 0 {
		return "validation error"
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(v.Fields[k], ", "))
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// InvalidTransitionError reports an operation attempted from a state that does
// not permit it. The record is left unchanged.
type InvalidTransitionError struct {
	Entity    string
	ID        string
	Operation string
	From      string
}

// InvalidTransition builds an InvalidTransitionError.
func InvalidTransition(entity, id, operation, from string) error {
	return &InvalidTransitionError{Entity: entity, ID: id, Operation: operation, From: from}
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %q: %s not allowed from status %q", e.Entity, e.ID, e.Operation, e.From)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// InvariantViolationError is raised by internal guards, e.g. a remaining
// amount that would become negative.
type InvariantViolationError struct {
	Entity string
	ID     string
	Detail string
}

// Invariant builds an InvariantViolationError.
func Invariant(entity, id, detail string) error {
	return &InvariantViolationError{Entity: entity, ID: id, Detail: detail}
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("%s %q: invariant violated: %s", e.Entity, e.ID, e.Detail)
}

func (e *InvariantViolationError) Is(target error) bool { return target == ErrInvariant }
