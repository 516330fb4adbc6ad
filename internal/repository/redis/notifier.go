package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirinyoku/venue-hold/internal/domain"
)

// VenueNotifier drops the cached calendars a change touches and announces
// the change. Both steps are best effort: failures are logged, never returned,
// because the write they follow has already committed.
type VenueNotifier struct {
	cache  *Cache
	pubsub *VenuesPubSub
	loc    *time.Location
	logger *slog.Logger
}

func NewVenueNotifier(cache *Cache, pubsub *VenuesPubSub, loc *time.Location, logger *slog.Logger) *VenueNotifier {
	if loc == nil {
		loc = time.UTC
	}

	return &VenueNotifier{
		cache:  cache,
		pubsub: pubsub,
		loc:    loc,
		logger: logger,
	}
}

func (n *VenueNotifier) VenueChanged(ctx context.Context, venueID string, ranges []domain.TimeRange) {
	months := domain.MonthsCovering(ranges, n.loc)

	if n.cache != nil {
		if err := n.cache.InvalidateVenueMonths(ctx, venueID, months...); err != nil {
			n.logger.Warn("failed to invalidate calendar cache", "venue_id", venueID, "error", err)
		}
	}

	if n.pubsub != nil {
		if err := n.pubsub.PublishVenueChanged(ctx, venueID, months); err != nil {
			n.logger.Warn("failed to publish venue change", "venue_id", venueID, "error", err)
		}
	}
}
