package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hms/scheduler/internal/config"
	"github.com/hms/scheduler/internal/domain/directory"
	"github.com/hms/scheduler/internal/domain/scheduling"
	"github.com/hms/scheduler/internal/platform/auth"
	"github.com/hms/scheduler/internal/platform/db"
	"github.com/hms/scheduler/internal/platform/metrics"
	"github.com/hms/scheduler/internal/platform/middleware"
	"github.com/hms/scheduler/internal/platform/slotlock"
	"github.com/hms/scheduler/internal/platform/validation"
)

// services is the wired scheduling stack for one configuration.
type services struct {
	doctors directory.Directory
	editor  *scheduling.ScheduleEditor
	leaves  *scheduling.LeaveRegistry
	ledger  *scheduling.BookingLedger
	avail   *scheduling.AvailabilityService
	handler *scheduling.Handler

	checks  []db.Check
	closers []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		logger = logger.Level(lvl)
	}
	return logger
}

// buildServices connects the configured backend and assembles the domain services.
func buildServices(ctx context.Context, cfg *config.Config, logger zerolog.Logger, reg prometheus.Registerer) (*services, error) {
	svc := &services{}
	var (
		schedules scheduling.ScheduleRepository
		leaveRepo scheduling.LeaveRepository
		bookings  scheduling.BookingRepository
	)

	var seed []directory.Doctor
	if cfg.DoctorsFile != "" {
		doctors, err := directory.LoadFile(cfg.DoctorsFile)
		if err != nil {
			return nil, err
		}
		seed = doctors
	}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		svc.doctors = directory.NewMemoryDirectory(seed...)
		schedules = scheduling.NewMemoryScheduleRepo(svc.doctors)
		leaveRepo = scheduling.NewMemoryLeaveRepo()
		bookings = scheduling.NewMemoryBookingRepo()
		logger.Warn().Int("doctors", len(seed)).Msg("using in-memory store; data is lost on restart")
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		svc.closers = append(svc.closers, pool.Close)
		logger.Info().Msg("connected to database")

		if len(seed) > 0 {
			if err := directory.SeedPG(ctx, pool, seed); err != nil {
				svc.Close()
				return nil, err
			}
			logger.Info().Int("doctors", len(seed)).Msg("doctor directory seeded")
		}
		svc.doctors = directory.NewDirectoryPG(pool)
		schedules = scheduling.NewScheduleRepoPG(pool)
		leaveRepo = scheduling.NewLeaveRepoPG(pool)
		bookings = scheduling.NewBookingRepoPG(pool)
		svc.checks = append(svc.checks, db.PoolCheck(pool))
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	m := metrics.NewSchedulingMetrics(reg)
	svc.editor = scheduling.NewScheduleEditor(schedules, svc.doctors, m, logger)
	svc.leaves = scheduling.NewLeaveRegistry(leaveRepo, svc.doctors, logger,
		scheduling.WithBackfill(cfg.LeaveAllowBackfill))
	svc.ledger = scheduling.NewBookingLedger(bookings, logger)

	opts := []scheduling.AvailabilityOption{
		scheduling.WithDoctors(svc.doctors),
		scheduling.WithMetrics(m),
	}
	if cfg.Strict() {
		locker, err := newLocker(ctx, cfg, logger, svc)
		if err != nil {
			svc.Close()
			return nil, err
		}
		opts = append(opts, scheduling.WithStrictCapacity(locker))
	}
	svc.avail = scheduling.NewAvailabilityService(schedules, svc.leaves, svc.ledger, logger, opts...)
	svc.handler = scheduling.NewHandler(svc.editor, svc.leaves, svc.ledger, svc.avail, svc.doctors)
	return svc, nil
}

// newLocker picks the shared Redis locker when REDIS_URL is set, the in-process one otherwise.
func newLocker(ctx context.Context, cfg *config.Config, logger zerolog.Logger, svc *services) (scheduling.SlotLocker, error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("strict capacity mode with in-process slot locks")
		return slotlock.NewLocalLocker(), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	svc.closers = append(svc.closers, func() { _ = client.Close() })
	svc.checks = append(svc.checks, db.Check{
		Name: "redis",
		Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() },
	})
	logger.Info().Str("addr", opts.Addr).Msg("strict capacity mode with redis slot locks")
	return slotlock.NewRedisLocker(client, logger), nil
}

// newServer builds the echo instance: global middleware, /health, /metrics and the
// authenticated /api/v1 group.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *services, gatherer prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", db.HealthHandler(svc.checks...))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	apiV1 := e.Group("/api/v1")
	if cfg.AuthEnabled() {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	} else {
		logger.Warn().Msg("authentication disabled: requests without a token run as dev-user (admin)")
		apiV1.Use(auth.DevAuthMiddleware())
	}

	// Keyed by user, so it runs after authentication.
	if cfg.RateLimitRPS > 0 {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimitRPS
		rl.BurstSize = cfg.RateLimitBurst
		apiV1.Use(middleware.RateLimit(rl))
	}

	svc.handler.RegisterRoutes(apiV1)
	return e
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
