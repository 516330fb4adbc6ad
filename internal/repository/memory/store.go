// Package memory is an in-process implementation of repository.Store.
//
// Every call runs under one mutex and transactions work on a copy of the
// state that replaces the original only on success, so the occupancy check in
// Insert behaves like the venue_slots exclusion constraint: of two
// overlapping writers exactly one wins and the loser leaves nothing behind.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venue-hold/internal/domain"
	"github.com/kirinyoku/venue-hold/internal/repository"
)

type state struct {
	holds    map[uuid.UUID]domain.Hold
	bookings map[uuid.UUID]domain.Booking
}

func newState() *state {
	return &state{
		holds:    make(map[uuid.UUID]domain.Hold),
		bookings: make(map[uuid.UUID]domain.Booking),
	}
}

func (s *state) clone() *state {
	cp := newState()
	for id, h := range s.holds {
		cp.holds[id] = copyHold(h)
	}
	for id, b := range s.bookings {
		cp.bookings[id] = copyBooking(b)
	}
	return cp
}

// occupied reports whether rs overlaps a slot of the venue.
func (s *state) occupied(venueID string, rs []domain.TimeRange) bool {
	for _, h := range s.holds {
		if h.VenueID == venueID && h.Status == domain.HoldActive && domain.AnyOverlap(h.Ranges, rs) {
			return true
		}
	}
	for _, b := range s.bookings {
		if b.VenueID == venueID && b.Status.Blocking() && domain.AnyOverlap(b.Ranges, rs) {
			return true
		}
	}
	return false
}

type Store struct {
	mu    sync.Mutex
	state *state
	fail  error
}

func NewStore() *Store {
	return &Store{state: newState()}
}

// SetFailure makes every following call return err until it is reset with nil.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *Store) run(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return s.fail
	}

	return fn(s.state)
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return s.fail
	}

	cp := s.state.clone()
	tx := txView{st: cp, store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.state = cp
	return nil
}

func (s *Store) Holds() repository.HoldRepository {
	return &holdRepo{run: s.run}
}

func (s *Store) Bookings() repository.BookingRepository {
	return &bookingRepo{run: s.run}
}

type txView struct {
	st    *state
	store *Store
}

func (t txView) run(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.store.fail != nil {
		return t.store.fail
	}
	return fn(t.st)
}

func (t txView) Holds() repository.HoldRepository       { return &holdRepo{run: t.run} }
func (t txView) Bookings() repository.BookingRepository { return &bookingRepo{run: t.run} }

type runner func(ctx context.Context, fn func(st *state) error) error

type holdRepo struct {
	run runner
}

func (r *holdRepo) Insert(ctx context.Context, h domain.Hold) error {
	return r.run(ctx, func(st *state) error {
		if _, ok := st.holds[h.ID]; ok {
			return repository.ErrConflict
		}
		if h.Status == domain.HoldActive {
			for _, other := range st.holds {
				if other.Status == domain.HoldActive && other.VenueID == h.VenueID && other.OwnerToken == h.OwnerToken {
					return repository.ErrConflict
				}
			}
			if st.occupied(h.VenueID, h.Ranges) {
				return repository.ErrConflict
			}
		}
		st.holds[h.ID] = copyHold(h)
		return nil
	})
}

func (r *holdRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Hold, error) {
	var out *domain.Hold
	err := r.run(ctx, func(st *state) error {
		h, ok := st.holds[id]
		if !ok {
			return repository.ErrNotFound
		}
		cp := copyHold(h)
		out = &cp
		return nil
	})
	return out, err
}

func (r *holdRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Hold, error) {
	return r.Get(ctx, id)
}

func (r *holdRepo) FindActive(ctx context.Context, venueID string, asOf time.Time) ([]domain.Hold, error) {
	var out []domain.Hold
	err := r.run(ctx, func(st *state) error {
		for _, h := range st.holds {
			if h.VenueID == venueID && h.IsLive(asOf) {
				out = append(out, copyHold(h))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r *holdRepo) FindActiveByOwner(ctx context.Context, venueID, owner string, asOf time.Time) (*domain.Hold, error) {
	var out *domain.Hold
	err := r.run(ctx, func(st *state) error {
		for _, h := range st.holds {
			if h.VenueID == venueID && h.OwnerToken == owner && h.IsLive(asOf) {
				cp := copyHold(h)
				out = &cp
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *holdRepo) Extend(ctx context.Context, id uuid.UUID, expiresAt, at time.Time) (*domain.Hold, error) {
	var out *domain.Hold
	err := r.run(ctx, func(st *state) error {
		h, ok := st.holds[id]
		if !ok || !h.IsLive(at) {
			return repository.ErrNotFound
		}
		if expiresAt.After(h.ExpiresAt) {
			h.ExpiresAt = expiresAt
		}
		h.UpdatedAt = at
		st.holds[id] = h
		cp := copyHold(h)
		out = &cp
		return nil
	})
	return out, err
}

func (r *holdRepo) Transition(ctx context.Context, id uuid.UUID, to domain.HoldStatus, at time.Time) (bool, error) {
	var moved bool
	err := r.run(ctx, func(st *state) error {
		h, ok := st.holds[id]
		if !ok || h.Status != domain.HoldActive {
			return nil
		}
		h.Status = to
		h.UpdatedAt = at
		st.holds[id] = h
		moved = true
		return nil
	})
	return moved, err
}

func (r *holdRepo) ReleaseByOwner(ctx context.Context, venueID, owner string, at time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.run(ctx, func(st *state) error {
		for id, h := range st.holds {
			if h.VenueID == venueID && h.OwnerToken == owner && h.Status == domain.HoldActive {
				h.Status = domain.HoldReleased
				h.UpdatedAt = at
				st.holds[id] = h
				ids = append(ids, id)
			}
		}
		return nil
	})
	return ids, err
}

func (r *holdRepo) ExpireVenue(ctx context.Context, venueID string, asOf time.Time) (int64, error) {
	freed, err := r.expire(ctx, func(h domain.Hold) bool { return h.VenueID == venueID }, asOf)
	return int64(len(freed)), err
}

func (r *holdRepo) SweepExpired(ctx context.Context, asOf time.Time) ([]repository.Freed, error) {
	return r.expire(ctx, func(domain.Hold) bool { return true }, asOf)
}

func (r *holdRepo) expire(ctx context.Context, match func(domain.Hold) bool, asOf time.Time) ([]repository.Freed, error) {
	var freed []repository.Freed
	err := r.run(ctx, func(st *state) error {
		for id, h := range st.holds {
			if match(h) && h.Status == domain.HoldActive && !asOf.Before(h.ExpiresAt) {
				h.Status = domain.HoldExpired
				h.UpdatedAt = asOf
				st.holds[id] = h
				freed = append(freed, repository.Freed{VenueID: h.VenueID, Ranges: h.Ranges})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return freed, nil
}

type bookingRepo struct {
	run runner
}

func (r *bookingRepo) Insert(ctx context.Context, b domain.Booking) error {
	return r.run(ctx, func(st *state) error {
		if _, ok := st.bookings[b.ID]; ok {
			return repository.ErrConflict
		}
		for _, other := range st.bookings {
			if other.HoldID == b.HoldID {
				return repository.ErrConflict
			}
		}
		if b.Status.Blocking() && st.occupied(b.VenueID, b.Ranges) {
			return repository.ErrConflict
		}
		st.bookings[b.ID] = copyBooking(b)
		return nil
	})
}

func (r *bookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var out *domain.Booking
	err := r.run(ctx, func(st *state) error {
		b, ok := st.bookings[id]
		if !ok {
			return repository.ErrNotFound
		}
		cp := copyBooking(b)
		out = &cp
		return nil
	})
	return out, err
}

func (r *bookingRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return r.Get(ctx, id)
}

func (r *bookingRepo) GetByHold(ctx context.Context, holdID uuid.UUID) (*domain.Booking, error) {
	var out *domain.Booking
	err := r.run(ctx, func(st *state) error {
		for _, b := range st.bookings {
			if b.HoldID == holdID {
				cp := copyBooking(b)
				out = &cp
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *bookingRepo) Find(ctx context.Context, venueID string, window domain.TimeRange) ([]domain.Booking, error) {
	var out []domain.Booking
	err := r.run(ctx, func(st *state) error {
		for _, b := range st.bookings {
			if b.VenueID == venueID && b.Status.Blocking() && domain.AnyOverlap(b.Ranges, []domain.TimeRange{window}) {
				out = append(out, copyBooking(b))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r *bookingRepo) Transition(
	ctx context.Context,
	id uuid.UUID,
	from []domain.BookingStatus,
	to domain.BookingStatus,
	at time.Time,
) (bool, error) {
	var moved bool
	err := r.run(ctx, func(st *state) error {
		b, ok := st.bookings[id]
		if !ok || !statusIn(b.Status, from) {
			return nil
		}
		b.Status = to
		b.UpdatedAt = at
		if to != domain.BookingTempHold && to != domain.BookingPending {
			b.ExpiresAt = nil
		}
		st.bookings[id] = b
		moved = true
		return nil
	})
	return moved, err
}

func (r *bookingRepo) SweepExpired(ctx context.Context, asOf time.Time) ([]repository.Freed, error) {
	var freed []repository.Freed
	err := r.run(ctx, func(st *state) error {
		for id, b := range st.bookings {
			if (b.Status == domain.BookingTempHold || b.Status == domain.BookingPending) &&
				b.ExpiresAt != nil && !asOf.Before(*b.ExpiresAt) {
				b.Status = domain.BookingExpired
				b.UpdatedAt = asOf
				st.bookings[id] = b
				freed = append(freed, repository.Freed{VenueID: b.VenueID, Ranges: b.Ranges})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return freed, nil
}

func statusIn(s domain.BookingStatus, set []domain.BookingStatus) bool {
	for _, c := range set {
		if s == c {
			return true
		}
	}
	return false
}

func copyHold(h domain.Hold) domain.Hold {
	h.Ranges = append([]domain.TimeRange(nil), h.Ranges...)
	return h
}

func copyBooking(b domain.Booking) domain.Booking {
	b.Ranges = append([]domain.TimeRange(nil), b.Ranges...)
	if b.ExpiresAt != nil {
		t := *b.ExpiresAt
		b.ExpiresAt = &t
	}
	return b
}
