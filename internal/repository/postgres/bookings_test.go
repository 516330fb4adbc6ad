package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kirinyoku/venue-hold/internal/domain"
	"github.com/kirinyoku/venue-hold/internal/repository"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBooking() domain.Booking {
	start := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	deadline := now.Add(24 * time.Hour)
	return domain.Booking{
		ID:            uuid.New(),
		VenueID:       "venue-1",
		HoldID:        uuid.New(),
		Ranges:        []domain.TimeRange{{Start: start, End: start.Add(24 * time.Hour)}},
		Status:        domain.BookingTempHold,
		PaymentStatus: domain.PaymentUnpaid,
		CustomerRef:   "cust-7",
		ExpiresAt:     &deadline,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func bookingRows(t *testing.T, bs ...domain.Booking) *pgxmock.Rows {
	t.Helper()

	rows := pgxmock.NewRows([]string{
		"id", "venue_id", "hold_id", "ranges", "status", "payment_status",
		"customer_ref", "expires_at", "created_at", "updated_at",
	})
	for _, b := range bs {
		raw, err := json.Marshal(b.Ranges)
		require.NoError(t, err)
		rows.AddRow(b.ID, b.VenueID, b.HoldID, raw, string(b.Status), string(b.PaymentStatus),
			b.CustomerRef, b.ExpiresAt, b.CreatedAt, b.UpdatedAt)
	}

	return rows
}

func TestBookingInsertConflict(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &BookingRepo{db: mock}
	b := sampleBooking()

	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(
			b.ID, b.VenueID, b.HoldID, pgxmock.AnyArg(), string(b.Status),
			string(b.PaymentStatus), b.CustomerRef, pgxmock.AnyArg(), b.CreatedAt,
			pgxmock.AnyArg(), pgxmock.AnyArg(), true,
		).
		WillReturnError(&pgconn.PgError{Code: codeExclusionViolation, ConstraintName: "venue_slots_no_overlap"})

	err := repo.Insert(context.Background(), b)
	require.ErrorIs(t, err, repository.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingGetByHold(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &BookingRepo{db: mock}
	b := sampleBooking()

	mock.ExpectQuery("FROM bookings WHERE hold_id = \\$1").
		WithArgs(b.HoldID).
		WillReturnRows(bookingRows(t, b))

	got, err := repo.GetByHold(context.Background(), b.HoldID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, domain.BookingTempHold, got.Status)
	assert.Equal(t, domain.PaymentUnpaid, got.PaymentStatus)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(*b.ExpiresAt))
}

func TestBookingGetNotFound(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &BookingRepo{db: mock}
	id := uuid.New()

	mock.ExpectQuery("FROM bookings WHERE id = \\$1").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBookingFind(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &BookingRepo{db: mock}
	b := sampleBooking()
	window := domain.TimeRange{Start: now, End: now.AddDate(0, 1, 0)}

	mock.ExpectQuery("FROM bookings b").
		WithArgs("venue-1", []string{"temp_hold", "pending", "confirmed"}, window.Start, window.End).
		WillReturnRows(bookingRows(t, b))

	got, err := repo.Find(context.Background(), "venue-1", window)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)
}

func TestBookingTransitionFlags(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &BookingRepo{db: mock}
	id := uuid.New()
	from := []domain.BookingStatus{domain.BookingTempHold, domain.BookingPending}

	// confirming keeps the slots and drops the deadline
	mock.ExpectQuery("UPDATE bookings").
		WithArgs(id, []string{"temp_hold", "pending"}, "confirmed", now, false, false).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	// cancelling frees the slots
	mock.ExpectQuery("UPDATE bookings").
		WithArgs(id, []string{"temp_hold", "pending"}, "cancelled", now, false, true).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

	moved, err := repo.Transition(context.Background(), id, from, domain.BookingConfirmed, now)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = repo.Transition(context.Background(), id, from, domain.BookingCancelled, now)
	require.NoError(t, err)
	assert.False(t, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingSweepExpired(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &BookingRepo{db: mock}

	b := sampleBooking()
	raw, err := json.Marshal(b.Ranges)
	require.NoError(t, err)

	mock.ExpectQuery("UPDATE bookings SET status = 'expired'").
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows([]string{"venue_id", "ranges"}).AddRow(b.VenueID, raw))

	freed, err := repo.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, freed, 1)
	assert.Equal(t, b.VenueID, freed[0].VenueID)
	assert.Len(t, freed[0].Ranges, 1)
}
