package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would overlap an occupied time slot
	// or break a uniqueness rule.
	ErrConflict = errors.New("conflict")
)
