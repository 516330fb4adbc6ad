package postgres

import (
	"context"
	"encoding/json"
	"errors"
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

var now = time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		mock.Close()
	})

	return mock
}

func sampleHold() domain.Hold {
	start := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	return domain.Hold{
		ID:         uuid.New(),
		VenueID:    "venue-1",
		Ranges:     []domain.TimeRange{{Start: start, End: start.Add(24 * time.Hour)}},
		OwnerToken: "user:42",
		Status:     domain.HoldActive,
		TTL:        30 * time.Minute,
		CreatedAt:  now,
		ExpiresAt:  now.Add(30 * time.Minute),
		UpdatedAt:  now,
	}
}

func holdRows(t *testing.T, hs ...domain.Hold) *pgxmock.Rows {
	t.Helper()

	rows := pgxmock.NewRows([]string{
		"id", "venue_id", "ranges", "owner_token", "status", "ttl_seconds", "created_at", "expires_at", "updated_at",
	})
	for _, h := range hs {
		raw, err := json.Marshal(h.Ranges)
		require.NoError(t, err)
		rows.AddRow(h.ID, h.VenueID, raw, h.OwnerToken, string(h.Status),
			int64(h.TTL/time.Second), h.CreatedAt, h.ExpiresAt, h.UpdatedAt)
	}

	return rows
}

// insertHoldArgs lists the arguments Insert binds, in order. The ranges
// document and the slot bounds are matched loosely.
func insertHoldArgs(h domain.Hold) []any {
	return []any{
		h.ID,
		h.VenueID,
		pgxmock.AnyArg(),
		h.OwnerToken,
		string(h.Status),
		int64(h.TTL / time.Second),
		h.CreatedAt,
		h.ExpiresAt,
		pgxmock.AnyArg(),
		pgxmock.AnyArg(),
	}
}

func TestHoldInsert(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &HoldRepo{db: mock}
	h := sampleHold()

	mock.ExpectExec("INSERT INTO holds").
		WithArgs(insertHoldArgs(h)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Insert(context.Background(), h))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldInsertExclusionViolation(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &HoldRepo{db: mock}

	h := sampleHold()

	mock.ExpectExec("INSERT INTO holds").
		WithArgs(insertHoldArgs(h)...).
		WillReturnError(&pgconn.PgError{Code: codeExclusionViolation, ConstraintName: "venue_slots_no_overlap"})

	err := repo.Insert(context.Background(), h)
	require.ErrorIs(t, err, repository.ErrConflict)
	assert.Contains(t, err.Error(), "venue_slots_no_overlap")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldInsertUniqueOwner(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &HoldRepo{db: mock}

	h := sampleHold()

	mock.ExpectExec("INSERT INTO holds").
		WithArgs(insertHoldArgs(h)...).
		WillReturnError(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "holds_one_active_per_owner"})

	err := repo.Insert(context.Background(), h)
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestHoldGet(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &HoldRepo{db: mock}
	h := sampleHold()

	mock.ExpectQuery("SELECT (.+) FROM holds WHERE id = \\$1").
		WithArgs(h.ID).
		WillReturnRows(holdRows(t, h))

	got, err := repo.Get(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.ID, got.ID)
	assert.Equal(t, h.TTL, got.TTL)
	assert.Equal(t, domain.HoldActive, got.Status)
	require.Len(t, got.Ranges, 1)
	assert.True(t, got.Ranges[0].Equal(h.Ranges[0]))
}

func TestHoldGetNotFound(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &HoldRepo{db: mock}
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM holds").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHoldFindActive(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &HoldRepo{db: mock}
	a, b := sampleHold(), sampleHold()

	mock.ExpectQuery("FROM holds").
		WithArgs("venue-1", now).
		WillReturnRows(holdRows(t, a, b))

	got, err := repo.FindActive(context.Background(), "venue-1", now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, b.ID, got[1].ID)
}

func TestHoldFindActiveByOwnerNone(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &HoldRepo{db: mock}

	mock.ExpectQuery("FROM holds").
		WithArgs("venue-1", "user:1", now).
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.FindActiveByOwner(context.Background(), "venue-1", "user:1", now)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHoldTransition(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &HoldRepo{db: mock}
	id := uuid.New()

	mock.ExpectQuery("UPDATE holds SET status").
		WithArgs(id, string(domain.HoldReleased), now).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("UPDATE holds SET status").
		WithArgs(id, string(domain.HoldReleased), now).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

	moved, err := repo.Transition(context.Background(), id, domain.HoldReleased, now)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = repo.Transition(context.Background(), id, domain.HoldReleased, now)
	require.NoError(t, err)
	assert.False(t, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldReleaseByOwner(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &HoldRepo{db: mock}
	id := uuid.New()

	mock.ExpectQuery("UPDATE holds SET status = 'released'").
		WithArgs("venue-1", "user:1", now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))

	ids, err := repo.ReleaseByOwner(context.Background(), "venue-1", "user:1", now)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, ids)
}

func TestHoldSweepExpired(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &HoldRepo{db: mock}
	h := sampleHold()
	raw, err := json.Marshal(h.Ranges)
	require.NoError(t, err)

	mock.ExpectQuery("UPDATE holds SET status = 'expired'").
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows([]string{"venue_id", "ranges"}).
			AddRow("venue-1", raw).
			AddRow("venue-2", raw))

	freed, err := repo.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, freed, 2)
	assert.Equal(t, "venue-1", freed[0].VenueID)
	assert.Equal(t, "venue-2", freed[1].VenueID)
	require.Len(t, freed[0].Ranges, 1)
	assert.True(t, freed[0].Ranges[0].Equal(h.Ranges[0]))
}

func TestHoldSweepExpiredFailure(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := &HoldRepo{db: mock}
	down := errors.New("connection reset")

	mock.ExpectQuery("UPDATE holds").
		WithArgs(now).
		WillReturnError(down)

	_, err := repo.SweepExpired(context.Background(), now)
	require.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "postgres.HoldRepo.SweepExpired")
}

func TestRunInTxCommit(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	store := NewStore(mock)
	h := sampleHold()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	mock.ExpectExec("INSERT INTO holds").
		WithArgs(insertHoldArgs(h)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Holds().Insert(ctx, h)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollbackOnConflict(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	store := NewStore(mock)
	h := sampleHold()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	mock.ExpectQuery("UPDATE holds SET status = 'expired'").
		WithArgs("venue-1", now).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectExec("INSERT INTO holds").
		WithArgs(insertHoldArgs(h)...).
		WillReturnError(&pgconn.PgError{Code: codeExclusionViolation})
	mock.ExpectRollback()

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.Holds().ExpireVenue(ctx, "venue-1", now); err != nil {
			return err
		}
		return tx.Holds().Insert(ctx, h)
	})
	require.ErrorIs(t, err, repository.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRetryable(&pgconn.PgError{Code: codeSerialization}))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: codeDeadlock}))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: codeExclusionViolation}))
	assert.False(t, IsRetryable(errors.New("x")))
}
