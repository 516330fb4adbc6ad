package httpgin

import (
	"fmt"
	"time"

	"github.com/kirinyoku/venue-hold/internal/domain"
)

type RangeInput struct {
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
}

// SlotRequest names the wanted time either as explicit ranges or as calendar
// days (YYYY-MM-DD) of one session.
type SlotRequest struct {
	Ranges  []RangeInput `json:"ranges" binding:"omitempty,dive"`
	Dates   []string     `json:"dates"`
	Session string       `json:"session"`
}

type CreateHoldRequest struct {
	SlotRequest
	TTLMinutes int `json:"ttl_minutes" binding:"gte=0"`
}

type PromoteHoldRequest struct {
	CustomerRef     string `json:"customer_ref" binding:"required"`
	PaymentStatus   string `json:"payment_status"`
	RequireApproval bool   `json:"require_approval"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ConflictResponse struct {
	Error                 string             `json:"error"`
	Conflicts             []domain.Conflict  `json:"conflicts"`
	SuggestedAlternatives []domain.TimeRange `json:"suggested_alternatives"`
}

type HoldTicket struct {
	HoldID    string    `json:"hold_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type HoldResponse struct {
	ID         string             `json:"id"`
	VenueID    string             `json:"venue_id"`
	Ranges     []domain.TimeRange `json:"ranges"`
	Status     domain.HoldStatus  `json:"status"`
	TTLSeconds int64              `json:"ttl_seconds"`
	CreatedAt  time.Time          `json:"created_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
}

type BookingResponse struct {
	ID            string               `json:"id"`
	VenueID       string               `json:"venue_id"`
	HoldID        string               `json:"hold_id"`
	Ranges        []domain.TimeRange   `json:"ranges"`
	Status        domain.BookingStatus `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	CustomerRef   string               `json:"customer_ref"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func toHoldResponse(h *domain.Hold) HoldResponse {
	return HoldResponse{
		ID:         h.ID.String(),
		VenueID:    h.VenueID,
		Ranges:     h.Ranges,
		Status:     h.Status,
		TTLSeconds: int64(h.TTL / time.Second),
		CreatedAt:  h.CreatedAt,
		ExpiresAt:  h.ExpiresAt,
	}
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:            b.ID.String(),
		VenueID:       b.VenueID,
		HoldID:        b.HoldID.String(),
		Ranges:        b.Ranges,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		CustomerRef:   b.CustomerRef,
		ExpiresAt:     b.ExpiresAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

// toRanges resolves the request into normalized ranges. Exactly one of
// ranges or dates must be given.
func (r SlotRequest) toRanges(loc *time.Location) ([]domain.TimeRange, error) {
	switch {
	case len(r.Ranges) > 0 && len(r.Dates) > 0:
		return nil, fmt.Errorf("%w: give either ranges or dates", domain.ErrValidation)
	case len(r.Ranges) > 0:
		out := make([]domain.TimeRange, 0, len(r.Ranges))
		for _, in := range r.Ranges {
			out = append(out, domain.TimeRange{Start: in.Start.UTC(), End: in.End.UTC()})
		}
		return domain.NormalizeRanges(out)
	case len(r.Dates) > 0:
		session, err := domain.ParseSession(r.Session)
		if err != nil {
			return nil, err
		}

		days := make([]time.Time, 0, len(r.Dates))
		for _, s := range r.Dates {
			d, err := time.ParseInLocation(time.DateOnly, s, loc)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid date %q (YYYY-MM-DD)", domain.ErrValidation, s)
			}
			days = append(days, d)
		}
		return domain.NormalizeDays(days, session, loc)
	default:
		return nil, domain.ErrNoRanges
	}
}
