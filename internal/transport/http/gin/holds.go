package httpgin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/venue-hold/internal/domain"
	redisrepo "github.com/kirinyoku/venue-hold/internal/repository/redis"
	"github.com/kirinyoku/venue-hold/internal/service/holds"
	"github.com/kirinyoku/venue-hold/internal/service/promotion"
)

const idemLockTTL = 60 * time.Second

// @Summary  Create hold (idempotent)
// @Param    id   path    string             true   "Venue ID"
// @Param    req  body    CreateHoldRequest  true   "payload"
// @Param    Idempotency-Key  header  string  false  "replays the first response"
// @Param    X-Session-ID     header  string  false  "anonymous owner"
// @Success  201  {object}  HoldTicket
// @Failure  400  {object}  ErrorResponse
// @Failure  401  {object}  ErrorResponse
// @Failure  409  {object}  ConflictResponse
// @Failure  429  {object}  ErrorResponse "rate limited"
// @Router   /venues/{id}/holds [post]
func handleCreateHold(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		venueID := c.Param("id")

		owner, ok := requireOwner(c)
		if !ok {
			return
		}

		var req CreateHoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ranges, err := req.toRanges(d.loc)
		if err != nil {
			respondErr(c, d.logger, err)
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if d.idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemHold(venueID, owner, idemKey)

			if payload, ok, _ := d.idem.GetResult(ctx, idemStorageKey); ok {
				replay(c, idemKey, payload)
				return
			}

			locked, err := d.idem.AcquireLock(ctx, idemStorageKey, idemLockTTL)
			if err != nil {
				d.logger.Warn("idempotency store unavailable", "error", err)
				idemStorageKey = ""
			} else if !locked {
				if payload, ok, _ := d.idem.GetResult(ctx, idemStorageKey); ok {
					replay(c, idemKey, payload)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		release := func() {
			if idemStorageKey != "" {
				_ = d.idem.Release(ctx, idemStorageKey)
			}
		}

		if d.limiter != nil {
			dec, err := d.limiter.Allow(ctx, owner)
			switch {
			case err != nil:
				d.logger.Warn("rate limiter unavailable", "error", err)
			case !dec.Allowed:
				release()
				secs := int(dec.RetryAfter.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				c.Header("Retry-After", strconv.Itoa(secs))
				c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
				return
			}
		}

		hold, err := d.svcs.Holds.Create(ctx, holds.CreateInput{
			VenueID:    venueID,
			Ranges:     ranges,
			OwnerToken: owner,
			TTL:        time.Duration(req.TTLMinutes) * time.Minute,
		})
		if err != nil {
			release()
			respondErr(c, d.logger, err)
			return
		}

		resp := HoldTicket{HoldID: hold.ID.String(), ExpiresAt: hold.ExpiresAt}

		if idemStorageKey != "" {
			b, _ := json.Marshal(resp)
			_ = d.idem.SaveResult(ctx, idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

func replay(c *gin.Context, idemKey, payload string) {
	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
}

// @Summary  Get hold
// @Param    id  path  string  true  "Hold ID (uuid)"
// @Success  200  {object}  HoldResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /holds/{id} [get]
func handleGetHold(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		h, err := d.svcs.Holds.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, d.logger, err)
			return
		}

		c.JSON(http.StatusOK, toHoldResponse(h))
	}
}

// @Summary  Refresh hold
// @Description Pushes the expiry to now plus the hold's TTL. Only the owner may refresh.
// @Param    id  path  string  true  "Hold ID (uuid)"
// @Success  200  {object}  HoldTicket
// @Failure  401  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  410  {object}  ErrorResponse "hold expired"
// @Router   /holds/{id}/refresh [post]
func handleRefreshHold(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		owner, ok := requireOwner(c)
		if !ok {
			return
		}

		h, err := d.svcs.Holds.Refresh(c.Request.Context(), id, owner)
		if err != nil {
			respondErr(c, d.logger, err)
			return
		}

		c.JSON(http.StatusOK, HoldTicket{HoldID: h.ID.String(), ExpiresAt: h.ExpiresAt})
	}
}

// @Summary  Release hold
// @Description Frees the hold's ranges. Only the owner may release; releasing twice is a no-op.
// @Param    id  path  string  true  "Hold ID (uuid)"
// @Success  204
// @Failure  401  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /holds/{id} [delete]
func handleReleaseHold(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		owner, ok := requireOwner(c)
		if !ok {
			return
		}

		if err := d.svcs.Holds.Release(c.Request.Context(), id, owner); err != nil {
			respondErr(c, d.logger, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// @Summary  Promote hold to booking
// @Param    id   path  string              true  "Hold ID (uuid)"
// @Param    req  body  PromoteHoldRequest  true  "payload"
// @Success  201  {object}  BookingResponse
// @Failure  401  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ConflictResponse
// @Failure  410  {object}  ErrorResponse "hold expired"
// @Router   /holds/{id}/promote [post]
func handlePromoteHold(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		owner, ok := requireOwner(c)
		if !ok {
			return
		}

		var req PromoteHoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		b, err := d.svcs.Promotion.Promote(c.Request.Context(), id, promotion.Details{
			OwnerToken:      owner,
			CustomerRef:     req.CustomerRef,
			PaymentStatus:   domain.PaymentStatus(req.PaymentStatus),
			RequireApproval: req.RequireApproval,
		})
		if err != nil {
			respondErr(c, d.logger, err)
			return
		}

		c.JSON(http.StatusCreated, toBookingResponse(b))
	}
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
