package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venue-hold/internal/clock"
	"github.com/kirinyoku/venue-hold/internal/domain"
	"github.com/kirinyoku/venue-hold/internal/repository"
	"github.com/kirinyoku/venue-hold/internal/uow"
)

type Config struct {
	CalendarTTL time.Duration
	// Location is the venue time zone months are cut in.
	Location *time.Location
}

// CalendarCache serves rendered calendars. It is never consulted by the
// availability or hold decisions.
type CalendarCache interface {
	Calendar(
		ctx context.Context,
		venueID, month string,
		ttl time.Duration,
		load func(ctx context.Context) (domain.Calendar, error),
	) (domain.Calendar, error)
}

type Notifier interface {
	VenueChanged(ctx context.Context, venueID string, ranges []domain.TimeRange)
}

type Publisher interface {
	PublishBookingEvent(ctx context.Context, ev domain.BookingEvent) error
}

type Service struct {
	store     repository.Store
	cache     CalendarCache
	notifier  Notifier
	publisher Publisher
	uow       *uow.UoW
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config
}

func New(
	store repository.Store,
	cache CalendarCache,
	notifier Notifier,
	publisher Publisher,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.CalendarTTL <= 0 {
		cfg.CalendarTTL = 30 * time.Second
	}

	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:     store,
		cache:     cache,
		notifier:  notifier,
		publisher: publisher,
		uow:       uow.NewUoW(store),
		clock:     clk,
		logger:    logger,
		cfg:       cfg,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "service.bookings.Get"

	b, err := s.store.Bookings().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w: booking %s", op, domain.ErrNotFound, id)
		}

		return nil, fmt.Errorf("%s:%w", op, domain.Unavailable(err))
	}

	return b, nil
}

// Confirm moves a temp_hold or pending booking to confirmed, as the payment
// or approval collaborator decides. Confirming a confirmed booking returns it
// unchanged.
//
// Returns:
//   - error: domain.ErrNotFound for an unknown booking.
//   - error: domain.ErrExpired if the completion deadline has passed.
//   - error: domain.ErrInvalidTransition for cancelled or expired bookings.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "service.bookings.Confirm"

	var out *domain.Booking

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		b, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()

		switch {
		case b.Status == domain.BookingConfirmed:
			out = b
			return nil
		case b.Status != domain.BookingTempHold && b.Status != domain.BookingPending:
			return fmt.Errorf("%w: booking %s is %s", domain.ErrInvalidTransition, id, b.Status)
		case b.ExpiresAt != nil && !now.Before(*b.ExpiresAt):
			return fmt.Errorf("%w: booking %s passed its deadline", domain.ErrExpired, id)
		}

		if _, err := tx.Bookings().Transition(
			ctx, id,
			[]domain.BookingStatus{domain.BookingTempHold, domain.BookingPending},
			domain.BookingConfirmed, now,
		); err != nil {
			return domain.Unavailable(err)
		}

		b.Status = domain.BookingConfirmed
		b.ExpiresAt = nil
		b.UpdatedAt = now
		out = b

		after(func(ctx context.Context) {
			s.notify(ctx, b.VenueID, b.Ranges)
			s.publish(ctx, domain.NewBookingEvent(domain.EventBookingConfirmed, b, now))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, classify(err))
	}

	return out, nil
}

// Cancel moves a booking in a blocking status to cancelled and frees its
// ranges. Cancelling a cancelled booking returns it unchanged.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "service.bookings.Cancel"

	var out *domain.Booking

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		b, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}

		if b.Status == domain.BookingCancelled {
			out = b
			return nil
		}

		if !b.Status.Blocking() {
			return fmt.Errorf("%w: booking %s is %s", domain.ErrInvalidTransition, id, b.Status)
		}

		now := s.clock.Now()
		if _, err := tx.Bookings().Transition(ctx, id, domain.BlockingStatuses, domain.BookingCancelled, now); err != nil {
			return domain.Unavailable(err)
		}

		b.Status = domain.BookingCancelled
		b.ExpiresAt = nil
		b.UpdatedAt = now
		out = b

		after(func(ctx context.Context) {
			s.notify(ctx, b.VenueID, b.Ranges)
			s.publish(ctx, domain.NewBookingEvent(domain.EventBookingCancelled, b, now))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, classify(err))
	}

	return out, nil
}

// Calendar lists what occupies the venue during a month given as YYYY-MM:
// bookings in a blocking status and live holds.
//
// Parameters:
//   - ctx: request-scoped context.
//   - venueID: venue to render.
//   - month: calendar month in the venue time zone.
//
// Returns:
//   - *domain.Calendar: busy slots ordered by start.
//   - error: domain.ErrValidation for a malformed month.
func (s *Service) Calendar(ctx context.Context, venueID, month string) (*domain.Calendar, error) {
	const op = "service.bookings.Calendar"

	if strings.TrimSpace(venueID) == "" {
		return nil, fmt.Errorf("%s:%w: venue id is required", op, domain.ErrValidation)
	}

	window, err := domain.MonthWindow(month, s.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	load := func(ctx context.Context) (domain.Calendar, error) {
		return s.loadCalendar(ctx, venueID, window)
	}

	var cal domain.Calendar
	if s.cache != nil {
		cal, err = s.cache.Calendar(ctx, venueID, month, s.cfg.CalendarTTL, load)
	} else {
		cal, err = load(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &cal, nil
}

func (s *Service) loadCalendar(ctx context.Context, venueID string, window domain.TimeRange) (domain.Calendar, error) {
	now := s.clock.Now()

	holds, err := s.store.Holds().FindActive(ctx, venueID, now)
	if err != nil {
		return domain.Calendar{}, domain.Unavailable(err)
	}

	bookings, err := s.store.Bookings().Find(ctx, venueID, window)
	if err != nil {
		return domain.Calendar{}, domain.Unavailable(err)
	}

	busy := make([]domain.BusySlot, 0, len(holds)+len(bookings))
	for _, h := range holds {
		for _, r := range h.Ranges {
			if r.Overlaps(window) {
				busy = append(busy, domain.BusySlot{Source: domain.ConflictHold, ID: h.ID, Status: string(h.Status), Range: r})
			}
		}
	}
	for _, b := range bookings {
		for _, r := range b.Ranges {
			if r.Overlaps(window) {
				busy = append(busy, domain.BusySlot{Source: domain.ConflictBooking, ID: b.ID, Status: string(b.Status), Range: r})
			}
		}
	}

	sort.Slice(busy, func(i, j int) bool {
		return busy[i].Range.Start.Before(busy[j].Range.Start)
	})

	return domain.Calendar{
		VenueID: venueID,
		Window:  window,
		Busy:    busy,
		AsOf:    now,
	}, nil
}

func (s *Service) lock(ctx context.Context, tx repository.Tx, id uuid.UUID) (*domain.Booking, error) {
	b, err := tx.Bookings().GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: booking %s", domain.ErrNotFound, id)
		}

		return nil, domain.Unavailable(err)
	}

	return b, nil
}

func (s *Service) notify(ctx context.Context, venueID string, ranges []domain.TimeRange) {
	if s.notifier != nil {
		s.notifier.VenueChanged(ctx, venueID, ranges)
	}
}

func (s *Service) publish(ctx context.Context, ev domain.BookingEvent) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.PublishBookingEvent(ctx, ev); err != nil {
		s.logger.Error("failed to publish booking event",
			"type", ev.Type, "booking_id", ev.BookingID, "error", err)
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrInvalidTransition):
		return err
	default:
		return domain.Unavailable(err)
	}
}
