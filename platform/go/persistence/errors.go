package persistence

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionMismatch is returned by optimistic updates when the stored version moved on.
	ErrVersionMismatch = errors.New("record version mismatch")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

const uniqueViolation = "23505"
