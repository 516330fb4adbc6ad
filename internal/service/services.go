package service

import (
	"context"
	"log/slog"

	"github.com/kirinyoku/venue-hold/internal/clock"
	"github.com/kirinyoku/venue-hold/internal/domain"
	"github.com/kirinyoku/venue-hold/internal/repository"
	"github.com/kirinyoku/venue-hold/internal/service/availability"
	"github.com/kirinyoku/venue-hold/internal/service/bookings"
	"github.com/kirinyoku/venue-hold/internal/service/holds"
	"github.com/kirinyoku/venue-hold/internal/service/promotion"
)

type Services struct {
	Availability *availability.Service
	Holds        *holds.Service
	Promotion    *promotion.Service
	Bookings     *bookings.Service
}

type Config struct {
	Availability availability.Config
	Holds        holds.Config
	Promotion    promotion.Config
	Bookings     bookings.Config
}

// Notifier hears about committed occupancy changes.
type Notifier interface {
	VenueChanged(ctx context.Context, venueID string, ranges []domain.TimeRange)
}

type Publisher interface {
	PublishBookingEvent(ctx context.Context, ev domain.BookingEvent) error
}

// NewServices wires the services over one store. cache, notifier and
// publisher may be nil; the services then skip those side effects.
func NewServices(
	store repository.Store,
	cache bookings.CalendarCache,
	notifier Notifier,
	publisher Publisher,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Services {
	checker := availability.New(store, clk, cfg.Availability)

	return &Services{
		Availability: checker,
		Holds:        holds.New(store, checker, notifier, clk, cfg.Holds),
		Promotion:    promotion.New(store, checker, notifier, publisher, clk, logger, cfg.Promotion),
		Bookings:     bookings.New(store, cache, notifier, publisher, clk, logger, cfg.Bookings),
	}
}
