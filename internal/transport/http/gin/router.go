package httpgin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	redisrepo "github.com/kirinyoku/venue-hold/internal/repository/redis"
	"github.com/kirinyoku/venue-hold/internal/service"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Config struct {
	// JWTSecret enables bearer identities; empty means session ids only.
	JWTSecret string
	// Location is the venue time zone dates and months are read in.
	Location *time.Location
}

type deps struct {
	svcs    *service.Services
	idem    *redisrepo.IdempotencyStore
	limiter *redisrepo.SlidingWindowLimiter
	logger  *slog.Logger
	loc     *time.Location
}

// NewRouter builds the HTTP API. idem and limiter may be nil.
func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	cfg Config,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	d := &deps{
		svcs:    svcs,
		idem:    idem,
		limiter: limiter,
		logger:  logger,
		loc:     cfg.Location,
	}

	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/", IdentityMiddleware(cfg.JWTSecret))
	{
		api.POST("/venues/:id/availability", handleCheckAvailability(d))
		api.GET("/venues/:id/calendar", handleGetCalendar(d))
		api.POST("/venues/:id/holds", handleCreateHold(d))

		api.GET("/holds/:id", handleGetHold(d))
		api.POST("/holds/:id/refresh", handleRefreshHold(d))
		api.DELETE("/holds/:id", handleReleaseHold(d))
		api.POST("/holds/:id/promote", handlePromoteHold(d))

		api.GET("/bookings/:id", handleGetBooking(d))
		api.POST("/bookings/:id/confirm", handleConfirmBooking(d))
		api.POST("/bookings/:id/cancel", handleCancelBooking(d))
	}

	return r
}
