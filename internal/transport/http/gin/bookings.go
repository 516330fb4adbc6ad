package httpgin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/venue-hold/internal/domain"
)

// @Summary  Get booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200  {object}  BookingResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /bookings/{id} [get]
func handleGetBooking(d *deps) gin.HandlerFunc {
	return bookingAction(d, d.svcs.Bookings.Get)
}

// @Summary  Confirm booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200  {object}  BookingResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "invalid transition"
// @Failure  410  {object}  ErrorResponse "deadline passed"
// @Router   /bookings/{id}/confirm [post]
func handleConfirmBooking(d *deps) gin.HandlerFunc {
	return bookingAction(d, d.svcs.Bookings.Confirm)
}

// @Summary  Cancel booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200  {object}  BookingResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "invalid transition"
// @Router   /bookings/{id}/cancel [post]
func handleCancelBooking(d *deps) gin.HandlerFunc {
	return bookingAction(d, d.svcs.Bookings.Cancel)
}

func bookingAction(
	d *deps,
	fn func(ctx context.Context, id uuid.UUID) (*domain.Booking, error),
) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		b, err := fn(c.Request.Context(), id)
		if err != nil {
			respondErr(c, d.logger, err)
			return
		}

		c.JSON(http.StatusOK, toBookingResponse(b))
	}
}
