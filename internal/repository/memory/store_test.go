package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venue-hold/internal/domain"
	"github.com/kirinyoku/venue-hold/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func dayRange(offset int) domain.TimeRange {
	start := t0.AddDate(0, 0, offset)
	return domain.TimeRange{Start: start, End: start.Add(24 * time.Hour)}
}

func newHold(venue, owner string, rs ...domain.TimeRange) domain.Hold {
	return domain.Hold{
		ID:         uuid.New(),
		VenueID:    venue,
		Ranges:     rs,
		OwnerToken: owner,
		Status:     domain.HoldActive,
		TTL:        30 * time.Minute,
		CreatedAt:  t0,
		ExpiresAt:  t0.Add(30 * time.Minute),
		UpdatedAt:  t0,
	}
}

func TestHoldInsertRejectsOverlap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Holds().Insert(ctx, newHold("v1", "a", dayRange(0))))

	err := s.Holds().Insert(ctx, newHold("v1", "b", dayRange(0)))
	require.ErrorIs(t, err, repository.ErrConflict)

	require.NoError(t, s.Holds().Insert(ctx, newHold("v1", "c", dayRange(1))), "adjacent day is free")
	require.NoError(t, s.Holds().Insert(ctx, newHold("v2", "b", dayRange(0))), "other venue is free")
}

func TestHoldInsertOneActivePerOwner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Holds().Insert(ctx, newHold("v1", "a", dayRange(0))))
	err := s.Holds().Insert(ctx, newHold("v1", "a", dayRange(5)))
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestRunInTxRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	h := newHold("v1", "a", dayRange(0))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.Holds().Insert(ctx, h))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Holds().Get(ctx, h.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTransitionFreesSlots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	h := newHold("v1", "a", dayRange(0))
	require.NoError(t, s.Holds().Insert(ctx, h))

	moved, err := s.Holds().Transition(ctx, h.ID, domain.HoldReleased, t0)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = s.Holds().Transition(ctx, h.ID, domain.HoldReleased, t0)
	require.NoError(t, err)
	assert.False(t, moved, "second transition is a no-op")

	require.NoError(t, s.Holds().Insert(ctx, newHold("v1", "b", dayRange(0))))
}

func TestBookingBlocksUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()

	b := domain.Booking{
		ID:            uuid.New(),
		VenueID:       "v1",
		HoldID:        uuid.New(),
		Ranges:        []domain.TimeRange{dayRange(0)},
		Status:        domain.BookingConfirmed,
		PaymentStatus: domain.PaymentPaid,
		CreatedAt:     t0,
		UpdatedAt:     t0,
	}
	require.NoError(t, s.Bookings().Insert(ctx, b))

	err := s.Holds().Insert(ctx, newHold("v1", "a", dayRange(0)))
	require.ErrorIs(t, err, repository.ErrConflict)

	moved, err := s.Bookings().Transition(ctx, b.ID, domain.BlockingStatuses, domain.BookingCancelled, t0)
	require.NoError(t, err)
	require.True(t, moved)

	require.NoError(t, s.Holds().Insert(ctx, newHold("v1", "a", dayRange(0))))
}

func TestExtendNeverShortens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	h := newHold("v1", "a", dayRange(0))
	require.NoError(t, s.Holds().Insert(ctx, h))

	got, err := s.Holds().Extend(ctx, h.ID, t0.Add(time.Minute), t0)
	require.NoError(t, err)
	assert.Equal(t, h.ExpiresAt, got.ExpiresAt)

	_, err = s.Holds().Extend(ctx, h.ID, t0.Add(time.Hour), h.ExpiresAt)
	require.ErrorIs(t, err, repository.ErrNotFound, "expired holds cannot be extended")
}

func TestSweepExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	h := newHold("v1", "a", dayRange(0))
	require.NoError(t, s.Holds().Insert(ctx, h))

	freed, err := s.Holds().SweepExpired(ctx, h.ExpiresAt.Add(-time.Second))
	require.NoError(t, err)
	assert.Empty(t, freed)

	freed, err = s.Holds().SweepExpired(ctx, h.ExpiresAt)
	require.NoError(t, err)
	require.Len(t, freed, 1)
	assert.Equal(t, "v1", freed[0].VenueID)
	assert.Equal(t, h.Ranges, freed[0].Ranges)

	got, err := s.Holds().Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldExpired, got.Status)
}

func TestSetFailure(t *testing.T) {
	t.Parallel()

	s := NewStore()
	down := errors.New("connection refused")
	s.SetFailure(down)

	_, err := s.Holds().FindActive(context.Background(), "v1", t0)
	require.ErrorIs(t, err, down)

	s.SetFailure(nil)
	_, err = s.Holds().FindActive(context.Background(), "v1", t0)
	require.NoError(t, err)
}
