package promotion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venue-hold/internal/clock"
	"github.com/kirinyoku/venue-hold/internal/domain"
	"github.com/kirinyoku/venue-hold/internal/repository"
	"github.com/kirinyoku/venue-hold/internal/repository/memory"
	"github.com/kirinyoku/venue-hold/internal/service/availability"
	"github.com/kirinyoku/venue-hold/internal/service/holds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 12, 20, 12, 0, 0, 0, time.UTC)

func jan(d int) domain.TimeRange {
	s := time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
	return domain.TimeRange{Start: s, End: s.Add(24 * time.Hour)}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.BookingEvent
	err    error
}

func (p *recordingPublisher) PublishBookingEvent(_ context.Context, ev domain.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

// bookingConflictStore makes every booking insert inside a transaction lose
// against the storage constraint.
type bookingConflictStore struct {
	*memory.Store
}

func (s bookingConflictStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.Store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, conflictTx{tx})
	})
}

type conflictTx struct {
	repository.Tx
}

func (t conflictTx) Bookings() repository.BookingRepository {
	return conflictBookings{t.Tx.Bookings()}
}

type conflictBookings struct {
	repository.BookingRepository
}

func (conflictBookings) Insert(context.Context, domain.Booking) error {
	return fmt.Errorf("postgres.BookingRepo.Insert:%w", repository.ErrConflict)
}

type fixture struct {
	store     *memory.Store
	clock     *clock.Manual
	checker   *availability.Service
	holds     *holds.Service
	publisher *recordingPublisher
	svc       *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     memory.NewStore(),
		clock:     clock.NewManual(start),
		publisher: &recordingPublisher{},
	}
	f.checker = availability.New(f.store, f.clock, availability.Config{})
	f.holds = holds.New(f.store, f.checker, nil, f.clock, holds.Config{})
	f.svc = New(f.store, f.checker, nil, f.publisher, f.clock, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})

	return f
}

func (f *fixture) hold(t *testing.T, owner string, rs ...domain.TimeRange) *domain.Hold {
	t.Helper()

	h, err := f.holds.Create(context.Background(), holds.CreateInput{VenueID: "v1", Ranges: rs, OwnerToken: owner})
	require.NoError(t, err)

	return h
}

func TestPromote(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	h := f.hold(t, "user:1", jan(1), jan(2))

	b, err := f.svc.Promote(ctx, h.ID, Details{OwnerToken: h.OwnerToken, CustomerRef: "cust-1"})
	require.NoError(t, err)

	assert.Equal(t, h.ID, b.HoldID)
	assert.Equal(t, domain.BookingTempHold, b.Status)
	assert.Equal(t, domain.PaymentUnpaid, b.PaymentStatus)
	assert.Equal(t, h.Ranges, b.Ranges)
	require.NotNil(t, b.ExpiresAt)
	assert.Equal(t, start.Add(24*time.Hour), *b.ExpiresAt)

	promoted, err := f.holds.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldPromoted, promoted.Status)

	stored, err := f.store.Bookings().GetByHold(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, stored.ID)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, domain.EventBookingCreated, f.publisher.events[0].Type)
	assert.Equal(t, b.ID, f.publisher.events[0].BookingID)

	_, err = f.holds.Create(ctx, holds.CreateInput{VenueID: "v1", Ranges: []domain.TimeRange{jan(2)}, OwnerToken: "user:2"})
	require.ErrorIs(t, err, domain.ErrConflict, "the booking keeps blocking the ranges")

	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.ConflictBooking, ce.Conflicts[0].Source)
}

func TestPromoteRequireApproval(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := f.hold(t, "user:1", jan(1))

	b, err := f.svc.Promote(context.Background(), h.ID, Details{
		OwnerToken:      h.OwnerToken,
		CustomerRef:     "cust-1",
		PaymentStatus:   domain.PaymentPartiallyPaid,
		RequireApproval: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, domain.PaymentPartiallyPaid, b.PaymentStatus)
}

func TestPromoteValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := f.hold(t, "user:1", jan(1))

	_, err := f.svc.Promote(context.Background(), h.ID, Details{})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Promote(context.Background(), h.ID, Details{OwnerToken: h.OwnerToken, CustomerRef: "c", PaymentStatus: "free"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestPromoteUnknownHold(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.svc.Promote(context.Background(), uuid.New(), Details{OwnerToken: "user:1", CustomerRef: "c"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPromoteOtherOwnersHold(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	h := f.hold(t, "user:1", jan(1))

	_, err := f.svc.Promote(ctx, h.ID, Details{OwnerToken: "user:2", CustomerRef: "c"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	still, err := f.holds.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldActive, still.Status)

	_, err = f.store.Bookings().GetByHold(ctx, h.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

// A 30 minute hold promoted after 31 minutes is expired.
func TestPromoteExpiredHold(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := f.hold(t, "user:1", jan(1))

	f.clock.Advance(31 * time.Minute)

	_, err := f.svc.Promote(context.Background(), h.ID, Details{OwnerToken: h.OwnerToken, CustomerRef: "c"})
	require.ErrorIs(t, err, domain.ErrExpired)

	_, err = f.store.Bookings().GetByHold(context.Background(), h.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPromoteTwice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := f.hold(t, "user:1", jan(1))

	_, err := f.svc.Promote(context.Background(), h.ID, Details{OwnerToken: h.OwnerToken, CustomerRef: "c"})
	require.NoError(t, err)

	_, err = f.svc.Promote(context.Background(), h.ID, Details{OwnerToken: h.OwnerToken, CustomerRef: "c"})
	require.ErrorIs(t, err, domain.ErrExpired)
}

func TestPromoteReleasedHold(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := f.hold(t, "user:1", jan(1))
	require.NoError(t, f.holds.Release(context.Background(), h.ID, h.OwnerToken))

	_, err := f.svc.Promote(context.Background(), h.ID, Details{OwnerToken: h.OwnerToken, CustomerRef: "c"})
	require.ErrorIs(t, err, domain.ErrExpired)
}

// A booking insert that loses against the constraint leaves the hold active
// and writes no booking.
func TestPromoteIsAllOrNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	h := f.hold(t, "user:1", jan(1))

	svc := New(bookingConflictStore{f.store}, f.checker, nil, f.publisher, f.clock, nil, Config{})

	_, err := svc.Promote(ctx, h.ID, Details{OwnerToken: h.OwnerToken, CustomerRef: "c"})
	require.ErrorIs(t, err, domain.ErrConflict)

	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce))

	still, err := f.holds.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldActive, still.Status)

	_, err = f.store.Bookings().GetByHold(ctx, h.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, f.publisher.events, "nothing is announced for a rolled back promotion")

	// the caller can retry
	b, err := f.svc.Promote(ctx, h.ID, Details{OwnerToken: h.OwnerToken, CustomerRef: "c"})
	require.NoError(t, err)
	assert.Equal(t, h.ID, b.HoldID)
}

func TestPromotePublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	h := f.hold(t, "user:1", jan(1))

	_, err := f.svc.Promote(context.Background(), h.ID, Details{OwnerToken: h.OwnerToken, CustomerRef: "c"})
	require.NoError(t, err)
	assert.Len(t, f.publisher.events, 1)
}

func TestPromoteStoreUnavailable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := f.hold(t, "user:1", jan(1))
	f.store.SetFailure(errors.New("connection refused"))

	_, err := f.svc.Promote(context.Background(), h.ID, Details{OwnerToken: h.OwnerToken, CustomerRef: "c"})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

// Promotions racing hold creations on the same days never produce a live hold
// and a blocking booking that overlap.
func TestConcurrentPromoteAndCreate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	const days = 10
	held := make([]*domain.Hold, days)
	for i := 0; i < days; i++ {
		held[i] = f.hold(t, fmt.Sprintf("owner:%d", i), jan(i+1))
	}

	var wg sync.WaitGroup
	for i := 0; i < days; i++ {
		wg.Add(2)
		go func(h *domain.Hold) {
			defer wg.Done()
			_, err := f.svc.Promote(ctx, h.ID, Details{OwnerToken: h.OwnerToken, CustomerRef: "c"})
			if err != nil && !errors.Is(err, domain.ErrConflict) && !errors.Is(err, domain.ErrExpired) {
				t.Errorf("promote: %v", err)
			}
		}(held[i])
		go func(i int) {
			defer wg.Done()
			_ = f.holds.Release(ctx, held[i].ID, held[i].OwnerToken)
			_, err := f.holds.Create(ctx, holds.CreateInput{
				VenueID:    "v1",
				Ranges:     []domain.TimeRange{jan(i + 1)},
				OwnerToken: fmt.Sprintf("rival:%d", i),
			})
			if err != nil && !errors.Is(err, domain.ErrConflict) {
				t.Errorf("create: %v", err)
			}
		}(i)
	}
	wg.Wait()

	live, err := f.store.Holds().FindActive(ctx, "v1", f.clock.Now())
	require.NoError(t, err)
	bookings, err := f.store.Bookings().Find(ctx, "v1", domain.TimeRange{Start: jan(1).Start, End: jan(days + 1).End})
	require.NoError(t, err)

	var occupied []domain.TimeRange
	for _, h := range live {
		occupied = append(occupied, h.Ranges...)
	}
	for _, b := range bookings {
		occupied = append(occupied, b.Ranges...)
	}

	for i := range occupied {
		for j := i + 1; j < len(occupied); j++ {
			assert.False(t, occupied[i].Overlaps(occupied[j]), "%s overlaps %s", occupied[i], occupied[j])
		}
	}
}
