package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingEventType string

const (
	EventBookingCreated   BookingEventType = "booking.created"
	EventBookingConfirmed BookingEventType = "booking.confirmed"
	EventBookingCancelled BookingEventType = "booking.cancelled"
)

// BookingEvent is handed to the booking-management and payment subsystems
// whenever a booking is created or changes status.
type BookingEvent struct {
	Type          BookingEventType `json:"type"`
	BookingID     uuid.UUID        `json:"booking_id"`
	HoldID        uuid.UUID        `json:"hold_id"`
	VenueID       string           `json:"venue_id"`
	Ranges        []TimeRange      `json:"ranges"`
	Status        BookingStatus    `json:"status"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	CustomerRef   string           `json:"customer_ref"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

func NewBookingEvent(t BookingEventType, b *Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:          t,
		BookingID:     b.ID,
		HoldID:        b.HoldID,
		VenueID:       b.VenueID,
		Ranges:        b.Ranges,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		CustomerRef:   b.CustomerRef,
		OccurredAt:    at,
	}
}
