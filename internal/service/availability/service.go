package availability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venue-hold/internal/clock"
	"github.com/kirinyoku/venue-hold/internal/domain"
	"github.com/kirinyoku/venue-hold/internal/repository"
)

type Config struct {
	// Step is the increment the alternative scan moves forward by.
	Step time.Duration
	// Horizon bounds how far past a requested range alternatives are searched.
	Horizon time.Duration
	// MaxAlternatives caps the suggestions returned with a conflict.
	MaxAlternatives int
}

// Service answers advisory availability questions. It always reads the store
// of record and never caches. The storage exclusion constraint stays the final
// authority on overlap.
type Service struct {
	store repository.Tx
	clock clock.Clock
	cfg   Config
}

func New(store repository.Tx, clk clock.Clock, cfg Config) *Service {
	if cfg.Step <= 0 {
		cfg.Step = 24 * time.Hour
	}

	if cfg.Horizon <= 0 {
		cfg.Horizon = 90 * 24 * time.Hour
	}

	if cfg.MaxAlternatives <= 0 {
		cfg.MaxAlternatives = 3
	}

	return &Service{
		store: store,
		clock: clk,
		cfg:   cfg,
	}
}

type interval struct {
	source domain.ConflictSource
	id     uuid.UUID
	r      domain.TimeRange
}

// Check reports whether every range is free on the venue.
//
// Parameters:
//   - ctx: request-scoped context.
//   - venueID: venue to check.
//   - ranges: candidate ranges; they are normalized before use.
//   - exclude: a hold whose ranges are ignored, typically the caller's own
//     hold being replaced or promoted. uuid.Nil excludes nothing.
//
// Returns:
//   - *domain.AvailabilityResult: conflicts with existing holds and bookings,
//     plus suggested alternatives when something conflicts.
//   - error: domain.ErrValidation for bad input, domain.ErrStoreUnavailable
//     if the store could not be read.
func (s *Service) Check(
	ctx context.Context,
	venueID string,
	ranges []domain.TimeRange,
	exclude uuid.UUID,
) (*domain.AvailabilityResult, error) {
	const op = "service.availability.Check"

	if strings.TrimSpace(venueID) == "" {
		return nil, fmt.Errorf("%s:%w: venue id is required", op, domain.ErrValidation)
	}

	candidates, err := domain.NormalizeRanges(ranges)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	busy, err := s.occupied(ctx, venueID, candidates, exclude)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	res := &domain.AvailabilityResult{
		Available:             true,
		Conflicts:             []domain.Conflict{},
		SuggestedAlternatives: []domain.TimeRange{},
	}

	var blocked []domain.TimeRange
	for _, c := range candidates {
		hit := false
		for _, b := range busy {
			if domain.Overlaps(c, b.r) {
				res.Conflicts = append(res.Conflicts, domain.Conflict{Source: b.source, ID: b.id, Range: b.r})
				hit = true
			}
		}
		if hit {
			blocked = append(blocked, c)
		}
	}

	if len(blocked) == 0 {
		return res, nil
	}

	res.Available = false
	res.SuggestedAlternatives = s.alternatives(blocked, candidates, busy)

	return res, nil
}

// occupied loads every interval that blocks the venue around the candidates.
func (s *Service) occupied(
	ctx context.Context,
	venueID string,
	candidates []domain.TimeRange,
	exclude uuid.UUID,
) ([]interval, error) {
	now := s.clock.Now()

	holds, err := s.store.Holds().FindActive(ctx, venueID, now)
	if err != nil {
		return nil, domain.Unavailable(err)
	}

	window := domain.Envelope(candidates)
	window.End = window.End.Add(s.cfg.Horizon)

	bookings, err := s.store.Bookings().Find(ctx, venueID, window)
	if err != nil {
		return nil, domain.Unavailable(err)
	}

	var out []interval
	for _, h := range holds {
		if exclude != uuid.Nil && h.ID == exclude {
			continue
		}
		for _, r := range h.Ranges {
			out = append(out, interval{source: domain.ConflictHold, id: h.ID, r: r})
		}
	}
	for _, b := range bookings {
		for _, r := range b.Ranges {
			out = append(out, interval{source: domain.ConflictBooking, id: b.ID, r: r})
		}
	}

	return out, nil
}

// alternatives scans forward from each blocked candidate in Step increments
// and keeps shifted ranges of the same length that clash with nothing.
// The earliest MaxAlternatives across all candidates win.
func (s *Service) alternatives(blocked, candidates []domain.TimeRange, busy []interval) []domain.TimeRange {
	free := func(r domain.TimeRange) bool {
		for _, b := range busy {
			if domain.Overlaps(r, b.r) {
				return false
			}
		}
		for _, c := range candidates {
			if domain.Overlaps(r, c) {
				return false
			}
		}
		return true
	}

	var found []domain.TimeRange
	for _, c := range blocked {
		n := 0
		for shift := s.cfg.Step; shift <= s.cfg.Horizon && n < s.cfg.MaxAlternatives; shift += s.cfg.Step {
			r := c.Shift(shift)
			if free(r) {
				found = append(found, r)
				n++
			}
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].Start.Equal(found[j].Start) {
			return found[i].End.Before(found[j].End)
		}
		return found[i].Start.Before(found[j].Start)
	})

	out := make([]domain.TimeRange, 0, s.cfg.MaxAlternatives)
	for _, r := range found {
		if len(out) == s.cfg.MaxAlternatives {
			break
		}
		if len(out) > 0 && out[len(out)-1].Equal(r) {
			continue
		}
		out = append(out, r)
	}

	return out
}
