package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("time range conflict")
	ErrExpired           = errors.New("hold expired")
	ErrNotFound          = errors.New("not found")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInvalidTransition = errors.New("invalid status transition")
)

var (
	ErrInvalidRange      = fmt.Errorf("%w: invalid time range", ErrValidation)
	ErrNoRanges          = fmt.Errorf("%w: no time ranges given", ErrValidation)
	ErrOverlappingRanges = fmt.Errorf("%w: requested ranges overlap each other", ErrValidation)
)

// ConflictError carries what blocked a request and where the caller could go
// instead.
type ConflictError struct {
	Conflicts    []Conflict
	Alternatives []TimeRange
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return ErrConflict.Error()
	}

	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s %s", c.Source, c.Range))
	}

	return fmt.Sprintf("%s: %s", ErrConflict, strings.Join(parts, ", "))
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// NewConflictError builds a ConflictError from an availability result.
func NewConflictError(res *AvailabilityResult) *ConflictError {
	if res == nil {
		return &ConflictError{}
	}

	return &ConflictError{
		Conflicts:    res.Conflicts,
		Alternatives: res.SuggestedAlternatives,
	}
}

// Unavailable wraps an infrastructure failure so that callers can match both
// ErrStoreUnavailable and the original cause. Already wrapped errors are
// returned unchanged.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}

	return errors.Join(ErrStoreUnavailable, err)
}
