package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/venue-hold/internal/domain"
	"github.com/kirinyoku/venue-hold/internal/repository"
)

const holdColumns = `id, venue_id, ranges, owner_token, status, ttl_seconds, created_at, expires_at, updated_at`

type HoldRepo struct {
	db DB
}

func (r *HoldRepo) With(db DB) *HoldRepo {
	cp := *r
	cp.db = db
	return &cp
}

// Insert stores a hold and registers its ranges in venue_slots in a single
// statement, so either both land or neither does.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - h: the hold to store; h.Ranges must already be normalized.
//
// Returns:
//   - error: repository.ErrConflict if a range overlaps an occupied slot of the
//     venue or the owner already has an active hold there.
func (r *HoldRepo) Insert(ctx context.Context, h domain.Hold) error {
	const op = "postgres.HoldRepo.Insert"

	rangesJSON, err := json.Marshal(h.Ranges)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	starts, ends := splitRanges(h.Ranges)

	_, err = r.db.Exec(ctx,
		`WITH h AS (
			INSERT INTO holds(id, venue_id, ranges, owner_token, status, ttl_seconds, created_at, expires_at, updated_at)
			VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7, $8, $7)
			RETURNING id, venue_id
		 )
		 INSERT INTO venue_slots(venue_id, during, hold_id)
		 SELECT h.venue_id, tstzrange(t.s, t.e, '[)'), h.id
		 FROM h, unnest($9::timestamptz[], $10::timestamptz[]) AS t(s, e)`,
		h.ID, h.VenueID, string(rangesJSON), h.OwnerToken, string(h.Status),
		int64(h.TTL/time.Second), h.CreatedAt, h.ExpiresAt, starts, ends,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *HoldRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Hold, error) {
	const op = "postgres.HoldRepo.Get"

	h, err := scanHold(r.db.QueryRow(ctx,
		`SELECT `+holdColumns+` FROM holds WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return h, nil
}

// GetForUpdate locks the hold row for the rest of the transaction.
func (r *HoldRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Hold, error) {
	const op = "postgres.HoldRepo.GetForUpdate"

	h, err := scanHold(r.db.QueryRow(ctx,
		`SELECT `+holdColumns+` FROM holds WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return h, nil
}

// FindActive lists holds of a venue that are active and not yet past their
// expiry at asOf. Holds the sweeper has not reached yet are filtered here.
func (r *HoldRepo) FindActive(ctx context.Context, venueID string, asOf time.Time) ([]domain.Hold, error) {
	const op = "postgres.HoldRepo.FindActive"

	rows, err := r.db.Query(ctx,
		`SELECT `+holdColumns+`
		 FROM holds
		 WHERE venue_id = $1 AND status = 'active' AND expires_at > $2
		 ORDER BY created_at`,
		venueID, asOf,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// FindActiveByOwner returns the owner's live hold on the venue, or nil.
func (r *HoldRepo) FindActiveByOwner(
	ctx context.Context,
	venueID, owner string,
	asOf time.Time,
) (*domain.Hold, error) {
	const op = "postgres.HoldRepo.FindActiveByOwner"

	h, err := scanHold(r.db.QueryRow(ctx,
		`SELECT `+holdColumns+`
		 FROM holds
		 WHERE venue_id = $1 AND owner_token = $2 AND status = 'active' AND expires_at > $3`,
		venueID, owner, asOf,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapDBErr(op, err)
	}

	return h, nil
}

// Extend pushes expires_at forward. It never moves it backwards.
//
// Returns:
//   - *domain.Hold: the hold after the update.
//   - error: repository.ErrNotFound if the hold is not active or already past
//     its expiry at the given instant.
func (r *HoldRepo) Extend(ctx context.Context, id uuid.UUID, expiresAt, at time.Time) (*domain.Hold, error) {
	const op = "postgres.HoldRepo.Extend"

	h, err := scanHold(r.db.QueryRow(ctx,
		`UPDATE holds
		 SET expires_at = GREATEST(expires_at, $2), updated_at = $3
		 WHERE id = $1 AND status = 'active' AND expires_at > $3
		 RETURNING `+holdColumns,
		id, expiresAt, at,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return h, nil
}

func (r *HoldRepo) Transition(ctx context.Context, id uuid.UUID, to domain.HoldStatus, at time.Time) (bool, error) {
	const op = "postgres.HoldRepo.Transition"

	var n int64
	err := r.db.QueryRow(ctx,
		`WITH moved AS (
			UPDATE holds SET status = $2, updated_at = $3
			WHERE id = $1 AND status = 'active'
			RETURNING id
		 ), freed AS (
			DELETE FROM venue_slots s USING moved WHERE s.hold_id = moved.id
		 )
		 SELECT count(*) FROM moved`,
		id, string(to), at,
	).Scan(&n)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return n > 0, nil
}

// ReleaseByOwner releases every active hold the owner has on the venue and
// returns their ids.
func (r *HoldRepo) ReleaseByOwner(ctx context.Context, venueID, owner string, at time.Time) ([]uuid.UUID, error) {
	const op = "postgres.HoldRepo.ReleaseByOwner"

	rows, err := r.db.Query(ctx,
		`WITH released AS (
			UPDATE holds SET status = 'released', updated_at = $3
			WHERE venue_id = $1 AND owner_token = $2 AND status = 'active'
			RETURNING id
		 ), freed AS (
			DELETE FROM venue_slots s USING released WHERE s.hold_id = released.id
		 )
		 SELECT id FROM released`,
		venueID, owner, at,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBErr(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return ids, nil
}

// ExpireVenue marks the venue's overdue active holds expired and frees their
// slots. It runs in front of every insert so that stale holds never block a
// new writer.
func (r *HoldRepo) ExpireVenue(ctx context.Context, venueID string, asOf time.Time) (int64, error) {
	const op = "postgres.HoldRepo.ExpireVenue"

	var n int64
	err := r.db.QueryRow(ctx,
		`WITH expired AS (
			UPDATE holds SET status = 'expired', updated_at = $2
			WHERE venue_id = $1 AND status = 'active' AND expires_at <= $2
			RETURNING id
		 ), freed AS (
			DELETE FROM venue_slots s USING expired WHERE s.hold_id = expired.id
		 )
		 SELECT count(*) FROM expired`,
		venueID, asOf,
	).Scan(&n)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}

// SweepExpired expires overdue holds across all venues.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - asOf: holds with expires_at <= asOf are expired.
//
// Returns:
//   - []repository.Freed: venue and ranges of every hold moved to expired.
//   - error: if any error occurs while expiring holds.
func (r *HoldRepo) SweepExpired(ctx context.Context, asOf time.Time) ([]repository.Freed, error) {
	const op = "postgres.HoldRepo.SweepExpired"

	rows, err := r.db.Query(ctx,
		`WITH expired AS (
			UPDATE holds SET status = 'expired', updated_at = $1
			WHERE status = 'active' AND expires_at <= $1
			RETURNING id, venue_id, ranges
		 ), freed AS (
			DELETE FROM venue_slots s USING expired WHERE s.hold_id = expired.id
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

// scanFreed collects (venue_id, ranges) rows and closes them.
func scanFreed(rows pgx.Rows) ([]repository.Freed, error) {
	defer rows.Close()

	var out []repository.Freed
	for rows.Next() {
		var (
			f          repository.Freed
			rangesJSON []byte
		)

		if err := rows.Scan(&f.VenueID, &rangesJSON); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(rangesJSON, &f.Ranges); err != nil {
			return nil, fmt.Errorf("decode freed ranges: %w", err)
		}

		out = append(out, f)
	}

	return out, rows.Err()
}

func scanHold(row pgx.Row) (*domain.Hold, error) {
	var (
		h          domain.Hold
		rangesJSON []byte
		status     string
		ttlSeconds int64
	)

	if err := row.Scan(
		&h.ID,
		&h.VenueID,
		&rangesJSON,
		&h.OwnerToken,
		&status,
		&ttlSeconds,
		&h.CreatedAt,
		&h.ExpiresAt,
		&h.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(rangesJSON, &h.Ranges); err != nil {
		return nil, fmt.Errorf("decode hold ranges: %w", err)
	}

	h.Status = domain.HoldStatus(status)
	h.TTL = time.Duration(ttlSeconds) * time.Second
	h.CreatedAt = h.CreatedAt.UTC()
	h.ExpiresAt = h.ExpiresAt.UTC()
	h.UpdatedAt = h.UpdatedAt.UTC()

	return &h, nil
}

func splitRanges(rs []domain.TimeRange) (starts, ends []time.Time) {
	starts = make([]time.Time, len(rs))
	ends = make([]time.Time, len(rs))
	for i, r := range rs {
		starts[i] = r.Start
		ends[i] = r.End
	}
	return starts, ends
}
