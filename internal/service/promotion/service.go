package promotion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venue-hold/internal/clock"
	"github.com/kirinyoku/venue-hold/internal/domain"
	"github.com/kirinyoku/venue-hold/internal/repository"
	"github.com/kirinyoku/venue-hold/internal/uow"
)

type Config struct {
	// BookingDeadline is how long a temp_hold or pending booking may wait for
	// payment or approval before the sweeper expires it.
	BookingDeadline time.Duration
}

type Checker interface {
	Check(ctx context.Context, venueID string, ranges []domain.TimeRange, exclude uuid.UUID) (*domain.AvailabilityResult, error)
}

type Notifier interface {
	VenueChanged(ctx context.Context, venueID string, ranges []domain.TimeRange)
}

type Publisher interface {
	PublishBookingEvent(ctx context.Context, ev domain.BookingEvent) error
}

type Service struct {
	store     repository.Store
	checker   Checker
	notifier  Notifier
	publisher Publisher
	uow       *uow.UoW
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config
}

func New(
	store repository.Store,
	checker Checker,
	notifier Notifier,
	publisher Publisher,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.BookingDeadline <= 0 {
		cfg.BookingDeadline = 24 * time.Hour
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:     store,
		checker:   checker,
		notifier:  notifier,
		publisher: publisher,
		uow:       uow.NewUoW(store),
		clock:     clk,
		logger:    logger,
		cfg:       cfg,
	}
}

// Details are the customer and payment facts carried onto the booking.
type Details struct {
	// OwnerToken must match the hold's owner.
	OwnerToken    string
	CustomerRef   string
	PaymentStatus domain.PaymentStatus
	// RequireApproval creates the booking as pending instead of temp_hold.
	RequireApproval bool
}

// Promote turns an active hold into a booking over the same ranges.
//
// The hold is moved to promoted and the booking inserted in one transaction;
// if the booking collides with an occupied slot nothing is written and the
// hold stays active. There is no automatic retry.
//
// Parameters:
//   - ctx: request-scoped context.
//   - holdID: the hold to promote.
//   - d: customer and payment details.
//
// Returns:
//   - *domain.Booking: the created booking.
//   - error: domain.ErrValidation for bad details.
//   - error: domain.ErrNotFound if the hold does not exist or belongs to
//     another owner.
//   - error: domain.ErrExpired if the hold is not active or past its expiry.
//   - error: *domain.ConflictError (matches domain.ErrConflict) on overlap.
//   - error: domain.ErrStoreUnavailable on storage failure.
func (s *Service) Promote(ctx context.Context, holdID uuid.UUID, d Details) (*domain.Booking, error) {
	const op = "service.promotion.Promote"

	if strings.TrimSpace(d.CustomerRef) == "" {
		return nil, fmt.Errorf("%s:%w: customer reference is required", op, domain.ErrValidation)
	}

	if d.PaymentStatus == "" {
		d.PaymentStatus = domain.PaymentUnpaid
	}

	if !d.PaymentStatus.Valid() {
		return nil, fmt.Errorf("%s:%w: unknown payment status %q", op, domain.ErrValidation, d.PaymentStatus)
	}

	hold, err := s.store.Holds().Get(ctx, holdID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w: hold %s", op, domain.ErrNotFound, holdID)
		}

		return nil, fmt.Errorf("%s:%w", op, domain.Unavailable(err))
	}

	if hold.OwnerToken != d.OwnerToken {
		return nil, fmt.Errorf("%s:%w: hold %s", op, domain.ErrNotFound, holdID)
	}

	now := s.clock.Now()
	if !hold.IsLive(now) {
		return nil, fmt.Errorf("%s:%w: hold %s", op, domain.ErrExpired, holdID)
	}

	res, err := s.checker.Check(ctx, hold.VenueID, hold.Ranges, hold.ID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !res.Available {
		return nil, fmt.Errorf("%s:%w", op, domain.NewConflictError(res))
	}

	status := domain.BookingTempHold
	if d.RequireApproval {
		status = domain.BookingPending
	}

	deadline := now.Add(s.cfg.BookingDeadline)
	booking := &domain.Booking{
		ID:            uuid.New(),
		VenueID:       hold.VenueID,
		HoldID:        hold.ID,
		Ranges:        hold.Ranges,
		Status:        status,
		PaymentStatus: d.PaymentStatus,
		CustomerRef:   d.CustomerRef,
		ExpiresAt:     &deadline,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		locked, err := tx.Holds().GetForUpdate(ctx, holdID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: hold %s", domain.ErrNotFound, holdID)
			}

			return domain.Unavailable(err)
		}

		// re-validate under the row lock: a refresh, release or sweep may
		// have landed since the first read
		if !locked.IsLive(now) {
			return fmt.Errorf("%w: hold %s", domain.ErrExpired, holdID)
		}

		moved, err := tx.Holds().Transition(ctx, holdID, domain.HoldPromoted, now)
		if err != nil {
			return domain.Unavailable(err)
		}

		if !moved {
			return fmt.Errorf("%w: hold %s", domain.ErrExpired, holdID)
		}

		if err := tx.Bookings().Insert(ctx, *booking); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return err
			}

			return domain.Unavailable(err)
		}

		after(func(ctx context.Context) {
			if s.notifier != nil {
				s.notifier.VenueChanged(ctx, booking.VenueID, booking.Ranges)
			}

			s.publish(ctx, domain.NewBookingEvent(domain.EventBookingCreated, booking, now))
		})

		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("%s:%w", op, s.conflictDetails(ctx, hold))
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrExpired):
			return nil, fmt.Errorf("%s:%w", op, err)
		default:
			return nil, fmt.Errorf("%s:%w", op, domain.Unavailable(err))
		}
	}

	return booking, nil
}

// conflictDetails describes what beat the promotion. Failing to look it up
// still yields a conflict, only without details.
func (s *Service) conflictDetails(ctx context.Context, hold *domain.Hold) *domain.ConflictError {
	res, err := s.checker.Check(ctx, hold.VenueID, hold.Ranges, hold.ID)
	if err != nil {
		return &domain.ConflictError{}
	}

	return domain.NewConflictError(res)
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
