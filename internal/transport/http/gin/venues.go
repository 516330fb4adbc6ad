package httpgin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// @Summary  Check availability
// @Param    id   path  string       true  "Venue ID"
// @Param    req  body  SlotRequest  true  "ranges or dates with a session"
// @Success  200  {object}  domain.AvailabilityResult
// @Failure  400  {object}  ErrorResponse
// @Failure  503  {object}  ErrorResponse
// @Router   /venues/{id}/availability [post]
func handleCheckAvailability(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SlotRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ranges, err := req.toRanges(d.loc)
		if err != nil {
			respondErr(c, d.logger, err)
			return
		}

		res, err := d.svcs.Availability.Check(c.Request.Context(), c.Param("id"), ranges, uuid.Nil)
		if err != nil {
			respondErr(c, d.logger, err)
			return
		}

		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Venue calendar for a month
// @Param    id     path   string  true   "Venue ID"
// @Param    month  query  string  false  "YYYY-MM, defaults to the current month"
// @Success  200  {object}  domain.Calendar
// @Failure  400  {object}  ErrorResponse
// @Router   /venues/{id}/calendar [get]
func handleGetCalendar(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		month := c.Query("month")
		if month == "" {
			month = time.Now().In(d.loc).Format("2006-01")
		}

		cal, err := d.svcs.Bookings.Calendar(c.Request.Context(), c.Param("id"), month)
		if err != nil {
			respondErr(c, d.logger, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, cal, "public, max-age=15", true)
	}
}
