package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/venue-hold/internal/domain"
	"github.com/kirinyoku/venue-hold/internal/repository"
)

const bookingColumns = `id, venue_id, hold_id, ranges, status, payment_status, customer_ref, expires_at, created_at, updated_at`

type BookingRepo struct {
	db DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

// Insert stores a booking and, when its status is blocking, registers its
// ranges in venue_slots within the same statement.
//
// Returns:
//   - error: repository.ErrConflict if a range overlaps an occupied slot or a
//     booking already exists for the hold.
func (r *BookingRepo) Insert(ctx context.Context, b domain.Booking) error {
	const op = "postgres.BookingRepo.Insert"

	rangesJSON, err := json.Marshal(b.Ranges)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	starts, ends := splitRanges(b.Ranges)

	_, err = r.db.Exec(ctx,
		`WITH b AS (
			INSERT INTO bookings(id, venue_id, hold_id, ranges, status, payment_status, customer_ref, expires_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9, $9)
			RETURNING id, venue_id
		 )
		 INSERT INTO venue_slots(venue_id, during, booking_id)
		 SELECT b.venue_id, tstzrange(t.s, t.e, '[)'), b.id
		 FROM b, unnest($10::timestamptz[], $11::timestamptz[]) AS t(s, e)
		 WHERE $12::bool`,
		b.ID, b.VenueID, b.HoldID, string(rangesJSON), string(b.Status),
		string(b.PaymentStatus), b.CustomerRef, b.ExpiresAt, b.CreatedAt,
		starts, ends, b.Status.Blocking(),
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Get"

	b, err := scanBooking(r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return b, nil
}

func (r *BookingRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.GetForUpdate"

	b, err := scanBooking(r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return b, nil
}

func (r *BookingRepo) GetByHold(ctx context.Context, holdID uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.GetByHold"

	b, err := scanBooking(r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE hold_id = $1`, holdID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return b, nil
}

// Find lists bookings of a venue in a blocking status with at least one range
// intersecting window.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - venueID: venue to look at.
//   - window: half-open query window.
//
// Returns:
//   - []domain.Booking: matching bookings ordered by creation time.
//   - error: if the query fails.
func (r *BookingRepo) Find(ctx context.Context, venueID string, window domain.TimeRange) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.Find"

	rows, err := r.db.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings b
		 WHERE b.venue_id = $1
			AND b.status = ANY($2)
			AND EXISTS (
				SELECT 1 FROM venue_slots s
				WHERE s.booking_id = b.id AND s.during && tstzrange($3, $4, '[)')
			)
		 ORDER BY b.created_at`,
		venueID, statusStrings(domain.BlockingStatuses), window.Start, window.End,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *BookingRepo) Transition(
	ctx context.Context,
	id uuid.UUID,
	from []domain.BookingStatus,
	to domain.BookingStatus,
	at time.Time,
) (bool, error) {
	const op = "postgres.BookingRepo.Transition"

	var n int64
	err := r.db.QueryRow(ctx,
		`WITH moved AS (
			UPDATE bookings
			SET status = $3,
				updated_at = $4,
				expires_at = CASE WHEN $5::bool THEN expires_at ELSE NULL END
			WHERE id = $1 AND status = ANY($2)
			RETURNING id
		 ), freed AS (
			DELETE FROM venue_slots s USING moved
			WHERE s.booking_id = moved.id AND $6::bool
		 )
		 SELECT count(*) FROM moved`,
		id, statusStrings(from), string(to), at,
		to == domain.BookingTempHold || to == domain.BookingPending,
		!to.Blocking(),
	).Scan(&n)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return n > 0, nil
}

// SweepExpired expires temp_hold and pending bookings past their completion
// deadline and frees their slots.
func (r *BookingRepo) SweepExpired(ctx context.Context, asOf time.Time) ([]repository.Freed, error) {
	const op = "postgres.BookingRepo.SweepExpired"

	rows, err := r.db.Query(ctx,
		`WITH expired AS (
			UPDATE bookings SET status = 'expired', updated_at = $1
			WHERE status IN ('temp_hold', 'pending') AND expires_at <= $1
			RETURNING id, venue_id, ranges
		 ), freed AS (
			DELETE FROM venue_slots s USING expired WHERE s.booking_id = expired.id
		 )
		 SELECT venue_id, ranges FROM expired`,
		asOf,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	freed, err := scanFreed(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return freed, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b             domain.Booking
		rangesJSON    []byte
		status        string
		paymentStatus string
		expiresAt     *time.Time
	)

	if err := row.Scan(
		&b.ID,
		&b.VenueID,
		&b.HoldID,
		&rangesJSON,
		&status,
		&paymentStatus,
		&b.CustomerRef,
		&expiresAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(rangesJSON, &b.Ranges); err != nil {
		return nil, fmt.Errorf("decode booking ranges: %w", err)
	}

	b.Status = domain.BookingStatus(status)
	b.PaymentStatus = domain.PaymentStatus(paymentStatus)
	if expiresAt != nil {
		t := expiresAt.UTC()
		b.ExpiresAt = &t
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()

	return &b, nil
}

func statusStrings(ss []domain.BookingStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
