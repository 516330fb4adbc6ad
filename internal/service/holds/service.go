package holds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venue-hold/internal/clock"
	"github.com/kirinyoku/venue-hold/internal/domain"
	"github.com/kirinyoku/venue-hold/internal/repository"
	"github.com/kirinyoku/venue-hold/internal/uow"
)

type Config struct {
	DefaultTTL time.Duration
	MinTTL     time.Duration
	MaxTTL     time.Duration
}

type Checker interface {
	Check(ctx context.Context, venueID string, ranges []domain.TimeRange, exclude uuid.UUID) (*domain.AvailabilityResult, error)
}

// Notifier is told, after commit, that the occupancy of a venue changed.
type Notifier interface {
	VenueChanged(ctx context.Context, venueID string, ranges []domain.TimeRange)
}

type Service struct {
	store    repository.Store
	checker  Checker
	notifier Notifier
	uow      *uow.UoW
	clock    clock.Clock
	cfg      Config
}

func New(
	store repository.Store,
	checker Checker,
	notifier Notifier,
	clk clock.Clock,
	cfg Config,
) *Service {
	if cfg.MinTTL <= 0 {
		cfg.MinTTL = time.Minute
	}

	if cfg.MaxTTL <= 0 || cfg.MaxTTL < cfg.MinTTL {
		cfg.MaxTTL = 2 * time.Hour
	}

	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 30 * time.Minute
	}

	return &Service{
		store:    store,
		checker:  checker,
		notifier: notifier,
		uow:      uow.NewUoW(store),
		clock:    clk,
		cfg:      cfg,
	}
}

type CreateInput struct {
	VenueID    string
	Ranges     []domain.TimeRange
	OwnerToken string
	// TTL of zero means the configured default.
	TTL time.Duration
}

// Create places a hold on the requested ranges for the owner, replacing any
// hold the owner already has on the venue.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: venue, ranges, owner and an optional TTL (clamped to the configured bounds).
//
// Returns:
//   - *domain.Hold: the created hold.
//   - error: domain.ErrValidation for bad input.
//   - error: *domain.ConflictError (matches domain.ErrConflict) if the ranges
//     are taken, either by the advisory check or by a concurrent writer.
//   - error: domain.ErrStoreUnavailable on storage failure.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Hold, error) {
	const op = "service.holds.Create"

	if strings.TrimSpace(in.VenueID) == "" {
		return nil, fmt.Errorf("%s:%w: venue id is required", op, domain.ErrValidation)
	}

	if strings.TrimSpace(in.OwnerToken) == "" {
		return nil, fmt.Errorf("%s:%w: owner token is required", op, domain.ErrValidation)
	}

	ranges, err := domain.NormalizeRanges(in.Ranges)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	ttl := s.clampTTL(in.TTL)

	hold, err := s.tryCreate(ctx, in.VenueID, in.OwnerToken, ranges, ttl)
	if errors.Is(err, repository.ErrConflict) {
		// a concurrent writer won the race; look again once
		hold, err = s.tryCreate(ctx, in.VenueID, in.OwnerToken, ranges, ttl)
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s:%w", op, s.conflictAfterRace(ctx, in.VenueID, in.OwnerToken, ranges))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return hold, nil
}

// tryCreate runs one advisory check followed by the atomic insert. A
// repository.ErrConflict return means the insert lost against the storage
// constraint.
func (s *Service) tryCreate(
	ctx context.Context,
	venueID, owner string,
	ranges []domain.TimeRange,
	ttl time.Duration,
) (*domain.Hold, error) {
	now := s.clock.Now()

	prior, err := s.store.Holds().FindActiveByOwner(ctx, venueID, owner, now)
	if err != nil {
		return nil, domain.Unavailable(err)
	}

	exclude := uuid.Nil
	if prior != nil {
		exclude = prior.ID
	}

	res, err := s.checker.Check(ctx, venueID, ranges, exclude)
	if err != nil {
		return nil, err
	}

	if !res.Available {
		return nil, domain.NewConflictError(res)
	}

	hold := &domain.Hold{
		ID:         uuid.New(),
		VenueID:    venueID,
		Ranges:     ranges,
		OwnerToken: owner,
		Status:     domain.HoldActive,
		TTL:        ttl,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		UpdatedAt:  now,
	}

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		if _, err := tx.Holds().ExpireVenue(ctx, venueID, now); err != nil {
			return domain.Unavailable(err)
		}

		released, err := tx.Holds().ReleaseByOwner(ctx, venueID, owner, now)
		if err != nil {
			return domain.Unavailable(err)
		}

		if err := tx.Holds().Insert(ctx, *hold); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return err
			}

			return domain.Unavailable(err)
		}

		changed := ranges
		if len(released) > 0 && prior != nil {
			changed = append(append([]domain.TimeRange(nil), ranges...), prior.Ranges...)
		}

		after(func(ctx context.Context) {
			s.notify(ctx, venueID, changed)
		})

		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, err
		}

		return nil, domain.Unavailable(err)
	}

	return hold, nil
}

// conflictAfterRace describes what now blocks ranges after the insert lost
// twice. A failing lookup still yields a conflict, just without details.
func (s *Service) conflictAfterRace(
	ctx context.Context,
	venueID, owner string,
	ranges []domain.TimeRange,
) *domain.ConflictError {
	exclude := uuid.Nil
	if prior, err := s.store.Holds().FindActiveByOwner(ctx, venueID, owner, s.clock.Now()); err == nil && prior != nil {
		exclude = prior.ID
	}

	res, err := s.checker.Check(ctx, venueID, ranges, exclude)
	if err != nil {
		return &domain.ConflictError{}
	}

	return domain.NewConflictError(res)
}

// Refresh pushes the hold's expiry to now plus its TTL. The expiry never
// moves backwards.
//
// Returns:
//   - error: domain.ErrNotFound for an unknown hold or another owner's hold.
//   - error: domain.ErrExpired if the hold is no longer active.
func (s *Service) Refresh(ctx context.Context, holdID uuid.UUID, ownerToken string) (*domain.Hold, error) {
	const op = "service.holds.Refresh"

	now := s.clock.Now()

	hold, err := s.load(ctx, holdID, now)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if hold.OwnerToken != ownerToken {
		return nil, fmt.Errorf("%s:%w: hold %s", op, domain.ErrNotFound, holdID)
	}

	if !hold.IsLive(now) {
		return nil, fmt.Errorf("%s:%w: hold %s is %s", op, domain.ErrExpired, holdID, hold.Status)
	}

	updated, err := s.store.Holds().Extend(ctx, holdID, now.Add(hold.TTL), now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// released, promoted or expired since it was read
			return nil, fmt.Errorf("%s:%w: hold %s", op, domain.ErrExpired, holdID)
		}

		return nil, fmt.Errorf("%s:%w", op, domain.Unavailable(err))
	}

	return updated, nil
}

// Release frees the hold's ranges. Releasing an unknown or already terminal
// hold succeeds without doing anything.
//
// Returns:
//   - error: domain.ErrNotFound if the hold belongs to another owner.
func (s *Service) Release(ctx context.Context, holdID uuid.UUID, ownerToken string) error {
	const op = "service.holds.Release"

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		hold, err := tx.Holds().GetForUpdate(ctx, holdID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}

			return domain.Unavailable(err)
		}

		if hold.OwnerToken != ownerToken {
			return fmt.Errorf("%w: hold %s", domain.ErrNotFound, holdID)
		}

		moved, err := tx.Holds().Transition(ctx, holdID, domain.HoldReleased, s.clock.Now())
		if err != nil {
			return domain.Unavailable(err)
		}

		if moved {
			after(func(ctx context.Context) {
				s.notify(ctx, hold.VenueID, hold.Ranges)
			})
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, err)
		}

		return fmt.Errorf("%s:%w", op, domain.Unavailable(err))
	}

	return nil
}

// Get returns the hold. An active hold past its expiry is reported, and
// stored, as expired.
func (s *Service) Get(ctx context.Context, holdID uuid.UUID) (*domain.Hold, error) {
	const op = "service.holds.Get"

	hold, err := s.load(ctx, holdID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return hold, nil
}

// Sweep expires overdue holds and bookings across all venues and announces
// every venue that got slots back.
//
// Returns:
//   - int64: holds moved to expired.
//   - int64: bookings moved to expired.
//   - error: domain.ErrStoreUnavailable on storage failure.
func (s *Service) Sweep(ctx context.Context) (int64, int64, error) {
	const op = "service.holds.Sweep"

	now := s.clock.Now()

	holds, err := s.store.Holds().SweepExpired(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("%s:%w", op, domain.Unavailable(err))
	}
	s.notifyFreed(ctx, holds)

	bookings, err := s.store.Bookings().SweepExpired(ctx, now)
	if err != nil {
		return int64(len(holds)), 0, fmt.Errorf("%s:%w", op, domain.Unavailable(err))
	}
	s.notifyFreed(ctx, bookings)

	return int64(len(holds)), int64(len(bookings)), nil
}

// notifyFreed announces each venue once with all of its freed ranges.
func (s *Service) notifyFreed(ctx context.Context, freed []repository.Freed) {
	if s.notifier == nil || len(freed) == 0 {
		return
	}

	byVenue := make(map[string][]domain.TimeRange)
	order := make([]string, 0, len(freed))
	for _, f := range freed {
		if _, seen := byVenue[f.VenueID]; !seen {
			order = append(order, f.VenueID)
		}
		byVenue[f.VenueID] = append(byVenue[f.VenueID], f.Ranges...)
	}

	for _, venueID := range order {
		s.notifier.VenueChanged(ctx, venueID, byVenue[venueID])
	}
}

// load reads a hold and lazily expires it when it is active but overdue.
func (s *Service) load(ctx context.Context, holdID uuid.UUID, now time.Time) (*domain.Hold, error) {
	hold, err := s.store.Holds().Get(ctx, holdID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: hold %s", domain.ErrNotFound, holdID)
		}

		return nil, domain.Unavailable(err)
	}

	if hold.Status == domain.HoldActive && !hold.IsLive(now) {
		moved, err := s.store.Holds().Transition(ctx, holdID, domain.HoldExpired, now)
		if err != nil {
			return nil, domain.Unavailable(err)
		}

		if moved {
			hold.Status = domain.HoldExpired
			hold.UpdatedAt = now
			s.notify(ctx, hold.VenueID, hold.Ranges)
		}
	}

	return hold, nil
}

func (s *Service) notify(ctx context.Context, venueID string, ranges []domain.TimeRange) {
	if s.notifier != nil {
		s.notifier.VenueChanged(ctx, venueID, ranges)
	}
}

func (s *Service) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}

	if ttl < s.cfg.MinTTL {
		return s.cfg.MinTTL
	}

	if ttl > s.cfg.MaxTTL {
		return s.cfg.MaxTTL
	}

	return ttl
}
