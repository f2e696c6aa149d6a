package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/barangay/bhc/internal/config"
	"github.com/barangay/bhc/internal/domain/assessment"
	"github.com/barangay/bhc/internal/domain/dashboard"
	"github.com/barangay/bhc/internal/domain/identity"
	"github.com/barangay/bhc/internal/domain/prescription"
	"github.com/barangay/bhc/internal/domain/scheduling"
	"github.com/barangay/bhc/internal/platform/auth"
	"github.com/barangay/bhc/internal/platform/db"
	"github.com/barangay/bhc/internal/platform/lock"
	"github.com/barangay/bhc/internal/platform/middleware"
	"github.com/barangay/bhc/internal/platform/notification"
	"github.com/barangay/bhc/internal/platform/telemetry"
	"github.com/barangay/bhc/internal/platform/validation"
)

const (
	version         = "0.1.0"
	shutdownTimeout = 10 * time.Second
	requestTimeout  = 30 * time.Second
	bodyLimit       = "2M"
)

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// newLocker picks the booking lock: Redis when REDIS_URL is set so several
// server instances exclude each other, an in-process lock otherwise.
func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func() error, error) {
	if cfg.RedisURL == "" {
		return lock.NewLocalLocker(), func() error { return nil }, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	return lock.NewRedisLocker(client), client.Close, nil
}

// newPublisher sends appointment events to Kafka when brokers are configured
// and to the log otherwise. Either way the patient-facing text is rendered
// first.
func newPublisher(cfg *config.Config, logger zerolog.Logger) (notification.Publisher, func() error) {
	templates := notification.NewTemplateEngine(cfg.ClinicName)
	if len(cfg.KafkaBrokers) == 0 {
		return notification.NewDispatcher(notification.NewLogPublisher(logger), templates), func() error { return nil }
	}
	kp := notification.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	return notification.NewDispatcher(kp, templates), kp.Close
}

// services bundles the domain services the HTTP layer serves.
type services struct {
	identity     *identity.Service
	scheduling   *scheduling.Service
	assessment   *assessment.Service
	prescription *prescription.Service
	dashboard    *dashboard.Service
}

func newServices(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, loc *time.Location,
	locker lock.Locker, publisher notification.Publisher, metrics *telemetry.Metrics) *services {
	identitySvc := identity.NewService(
		identity.NewPatientRepoPG(pool), identity.NewStaffRepoPG(pool),
		identity.WithLogger(logger.With().Str("domain", "identity").Logger()),
	)
	schedulingSvc := scheduling.NewService(
		scheduling.NewAvailabilityRepoPG(pool),
		scheduling.NewConsultationTypeRepoPG(pool),
		scheduling.NewAppointmentRepoPG(pool),
		scheduling.NewSlotHoldRepoPG(pool),
		scheduling.WithLocker(locker),
		scheduling.WithPublisher(publisher),
		scheduling.WithRecorder(metrics),
		scheduling.WithLogger(logger.With().Str("domain", "scheduling").Logger()),
		scheduling.WithHoldTTL(cfg.SlotHoldTTL),
		scheduling.WithLocation(loc),
	)
	assessmentSvc := assessment.NewService(
		assessment.NewVitalsRepoPG(pool), assessment.NewAssessmentRepoPG(pool), schedulingSvc,
		assessment.WithLogger(logger.With().Str("domain", "assessment").Logger()),
	)
	prescriptionSvc := prescription.NewService(
		prescription.NewRepoPG(pool), identitySvc,
		prescription.WithLogger(logger.With().Str("domain", "prescription").Logger()),
		prescription.WithClinicName(cfg.ClinicName),
		prescription.WithLocation(loc),
	)
	dashboardSvc := dashboard.NewService(
		dashboard.NewRepoPG(pool),
		dashboard.WithLogger(logger.With().Str("domain", "dashboard").Logger()),
		dashboard.WithLocation(loc),
	)
	return &services{
		identity:     identitySvc,
		scheduling:   schedulingSvc,
		assessment:   assessmentSvc,
		prescription: prescriptionSvc,
		dashboard:    dashboardSvc,
	}
}

// newEcho builds the HTTP server. pool backs the tenant middleware and the
// database health check.
func newEcho(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, metrics *telemetry.Metrics, svc *services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics(metrics))
	if !cfg.IsDev() {
		e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	}
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(middleware.RequestTimeout(requestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	// Auth middleware
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
	if cfg.AuthSigningKey == "" {
		jwtCfg.SigningKey = nil
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.Use(auth.SkipPublic(db.TenantMiddleware(pool, cfg.DefaultTenant)))
	e.Use(middleware.Audit(logger, metrics))

	// Public endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	identity.NewHandler(svc.identity).RegisterRoutes(apiV1)
	scheduling.NewHandler(svc.scheduling).RegisterRoutes(apiV1)
	assessment.NewHandler(svc.assessment).RegisterRoutes(apiV1)
	prescription.NewHandler(svc.prescription).RegisterRoutes(apiV1)
	dashboard.NewHandler(svc.dashboard).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"), os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, _ := cfg.Location()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	metrics := telemetry.New()
	metrics.RegisterPool(pool)

	locker, closeLocker, err := newLocker(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up booking lock")
	}
	publisher, closePublisher := newPublisher(cfg, logger)
	logger.Info().
		Bool("redis_lock", cfg.RedisURL != "").
		Bool("kafka", len(cfg.KafkaBrokers) > 0).
		Str("timezone", loc.String()).
		Msg("infrastructure ready")

	svc := newServices(cfg, logger, pool, loc, locker, publisher, metrics)
	e := newEcho(cfg, logger, pool, metrics, svc)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := closePublisher(); err != nil {
		logger.Error().Err(err).Msg("closing event publisher")
	}
	if err := closeLocker(); err != nil {
		logger.Error().Err(err).Msg("closing redis client")
	}
	logger.Info().Msg("server stopped")
	return nil
}
