package domain

import (
	"time"

	"github.com/google/uuid"
)

type HoldStatus string

const (
	HoldActive   HoldStatus = "active"
	HoldExpired  HoldStatus = "expired"
	HoldReleased HoldStatus = "released"
	HoldPromoted HoldStatus = "promoted"
)

func (s HoldStatus) Terminal() bool {
	return s != HoldActive
}

type BookingStatus string

const (
	BookingTempHold  BookingStatus = "temp_hold"
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingExpired   BookingStatus = "expired"
)

// BlockingStatuses are the booking statuses that occupy their time ranges.
var BlockingStatuses = []BookingStatus{BookingTempHold, BookingPending, BookingConfirmed}

func (s BookingStatus) Blocking() bool {
	for _, b := range BlockingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentPaid          PaymentStatus = "paid"
	PaymentRefunded      PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentUnpaid, PaymentPartiallyPaid, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

type Hold struct {
	ID         uuid.UUID
	VenueID    string
	Ranges     []TimeRange
	OwnerToken string
	Status     HoldStatus
	TTL        time.Duration
	CreatedAt  time.Time
	ExpiresAt  time.Time
	UpdatedAt  time.Time
}

// IsLive reports whether the hold still blocks its ranges at now. An active
// hold past its expiry is treated as expired even before the sweep marks it.
func (h *Hold) IsLive(now time.Time) bool {
	return h.Status == HoldActive && now.Before(h.ExpiresAt)
}

type Booking struct {
	ID            uuid.UUID
	VenueID       string
	HoldID        uuid.UUID
	Ranges        []TimeRange
	Status        BookingStatus
	PaymentStatus PaymentStatus
	CustomerRef   string
	// ExpiresAt is the completion deadline while the booking is temp_hold or pending.
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ConflictSource string

const (
	ConflictHold    ConflictSource = "hold"
	ConflictBooking ConflictSource = "booking"
)

type Conflict struct {
	Source ConflictSource `json:"source"`
	ID     uuid.UUID      `json:"id"`
	Range  TimeRange      `json:"range"`
}

type AvailabilityResult struct {
	Available             bool        `json:"available"`
	Conflicts             []Conflict  `json:"conflicts"`
	SuggestedAlternatives []TimeRange `json:"suggested_alternatives"`
}

// BusySlot is one occupied range on a venue calendar.
type BusySlot struct {
	Source ConflictSource `json:"source"`
	ID     uuid.UUID      `json:"id"`
	Status string         `json:"status"`
	Range  TimeRange      `json:"range"`
}

type Calendar struct {
	VenueID string     `json:"venue_id"`
	Window  TimeRange  `json:"window"`
	Busy    []BusySlot `json:"busy"`
	AsOf    time.Time  `json:"as_of"`
}
