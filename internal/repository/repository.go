package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venue-hold/internal/domain"
)

// HoldRepository persists holds together with the time slots they occupy.
// While a hold is active its ranges are registered in the venue's slot set,
// so Insert fails with ErrConflict if any range overlaps an occupied slot.
type HoldRepository interface {
	Insert(ctx context.Context, h domain.Hold) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Hold, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Hold, error)
	FindActive(ctx context.Context, venueID string, asOf time.Time) ([]domain.Hold, error)
	FindActiveByOwner(ctx context.Context, venueID, owner string, asOf time.Time) (*domain.Hold, error)
	Extend(ctx context.Context, id uuid.UUID, expiresAt, at time.Time) (*domain.Hold, error)
	// Transition moves an active hold to a terminal status and frees its
	// slots. It reports false when the hold was not active.
	Transition(ctx context.Context, id uuid.UUID, to domain.HoldStatus, at time.Time) (bool, error)
	ReleaseByOwner(ctx context.Context, venueID, owner string, at time.Time) ([]uuid.UUID, error)
	ExpireVenue(ctx context.Context, venueID string, asOf time.Time) (int64, error)
	SweepExpired(ctx context.Context, asOf time.Time) ([]Freed, error)
}

// BookingRepository persists bookings. Bookings in a blocking status occupy
// slots exactly like active holds.
type BookingRepository interface {
	Insert(ctx context.Context, b domain.Booking) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	GetByHold(ctx context.Context, holdID uuid.UUID) (*domain.Booking, error)
	Find(ctx context.Context, venueID string, window domain.TimeRange) ([]domain.Booking, error)
	// Transition moves a booking whose status is one of from to status to.
	// Leaving a blocking status frees the booking's slots.
	Transition(ctx context.Context, id uuid.UUID, from []domain.BookingStatus, to domain.BookingStatus, at time.Time) (bool, error)
	SweepExpired(ctx context.Context, asOf time.Time) ([]Freed, error)
}

// Freed is a hold or booking a sweep expired, with the ranges it gave back.
type Freed struct {
	VenueID string
	Ranges  []domain.TimeRange
}

type Tx interface {
	Holds() HoldRepository
	Bookings() BookingRepository
}

// Store is the store of record. Repositories returned by Holds and Bookings
// run each call on its own; RunInTx runs fn atomically and rolls back every
// write when fn returns an error.
type Store interface {
	Tx
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
