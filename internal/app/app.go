package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/venue-hold/internal/clock"
	"github.com/kirinyoku/venue-hold/internal/config"
	"github.com/kirinyoku/venue-hold/internal/postgres"
	"github.com/kirinyoku/venue-hold/internal/queue"
	"github.com/kirinyoku/venue-hold/internal/redis"
	postgresrepo "github.com/kirinyoku/venue-hold/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/venue-hold/internal/repository/redis"
	"github.com/kirinyoku/venue-hold/internal/scheduler"
	"github.com/kirinyoku/venue-hold/internal/service"
	"github.com/kirinyoku/venue-hold/internal/service/availability"
	"github.com/kirinyoku/venue-hold/internal/service/bookings"
	"github.com/kirinyoku/venue-hold/internal/service/holds"
	"github.com/kirinyoku/venue-hold/internal/service/promotion"
	httpgin "github.com/kirinyoku/venue-hold/internal/transport/http/gin"
	"github.com/kirinyoku/venue-hold/migrations"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	sweeper    *scheduler.Sweeper
	pool       *pgxpool.Pool
	rdb        *goredis.Client
	publisher  *queue.Publisher
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx := context.Background()

	pgxPool, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.Postgres.DSN(),
		MaxConns: cfg.Postgres.MaxConns,
		AppName:  "venuehold",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	if cfg.MigrateOnStart {
		if err := migrations.Apply(ctx, pgxPool); err != nil {
			pgxPool.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("migrations applied")
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		pool:   pgxPool,
	}

	store := postgresrepo.NewStore(pgxPool)

	// Redis only backs rendering and request hygiene; run without it if it is down.
	var (
		cache    bookings.CalendarCache
		notifier service.Notifier
		idem     *redisrepo.IdempotencyStore
		limiter  *redisrepo.SlidingWindowLimiter
	)

	rdb, err := redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		logger.Warn("redis unavailable, running without cache and rate limits", "error", err)
	} else {
		a.rdb = rdb
		c := redisrepo.New(rdb)

		cache = c
		notifier = redisrepo.NewVenueNotifier(c, redisrepo.NewVenuesPubSub(rdb), cfg.Booking.Location, logger)
		idem = redisrepo.NewIdempotencyStore(rdb, 24*time.Hour)
		limiter = redisrepo.NewSlidingWindowLimiter(rdb, "holds", cfg.Holds.RateLimitPerMinute, time.Minute)
	}

	var publisher service.Publisher
	if cfg.RabbitMQURL != "" {
		p, err := queue.NewPublisher(cfg.RabbitMQURL)
		if err != nil {
			logger.Warn("rabbitmq unavailable, booking events disabled", "error", err)
		} else {
			a.publisher = p
			publisher = p
		}
	}

	services := service.NewServices(store, cache, notifier, publisher, clock.NewSystem(), logger, service.Config{
		Availability: availability.Config{
			Horizon:         cfg.Holds.SuggestHorizon,
			MaxAlternatives: cfg.Holds.SuggestLimit,
		},
		Holds: holds.Config{
			DefaultTTL: cfg.Holds.DefaultTTL,
			MinTTL:     cfg.Holds.MinTTL,
			MaxTTL:     cfg.Holds.MaxTTL,
		},
		Promotion: promotion.Config{
			BookingDeadline: cfg.Booking.Deadline,
		},
		Bookings: bookings.Config{
			Location: cfg.Booking.Location,
		},
	})

	a.sweeper = scheduler.NewSweeper(services.Holds.Sweep, cfg.Holds.SweepInterval, logger)

	gin.SetMode(cfg.Server.GinMode)
	router := httpgin.NewRouter(services, idem, limiter, logger, httpgin.Config{
		JWTSecret: cfg.Auth.JWTSecret,
		Location:  cfg.Booking.Location,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.sweeper.Run(gCtx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	err := g.Wait()
	a.close()

	return err
}

func (a *App) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq publisher", "error", err)
		}
	}

	if a.rdb != nil {
		_ = a.rdb.Close()
	}

	a.pool.Close()
}
