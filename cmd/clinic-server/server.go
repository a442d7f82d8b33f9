package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/domain/booking"
	"github.com/clinicdesk/clinicdesk/internal/domain/catalog"
	"github.com/clinicdesk/clinicdesk/internal/domain/identity"
	"github.com/clinicdesk/clinicdesk/internal/domain/lab"
	"github.com/clinicdesk/clinicdesk/internal/domain/pharmacy"
	"github.com/clinicdesk/clinicdesk/internal/domain/treatment"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/blobstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/db"
	"github.com/clinicdesk/clinicdesk/internal/platform/middleware"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
	"github.com/clinicdesk/clinicdesk/internal/platform/validate"
)

const version = "0.1.0"

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	files, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure file storage")
	}

	var doctors catalog.DoctorResolver = catalog.NewResolver(catalog.NewDoctorRepoPG(pool))
	if cfg.RedisURL != "" {
		rdb, err := newRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		doctors = catalog.NewCachedDoctorResolver(doctors, rdb, cfg.DoctorCacheTTL, logger)
		logger.Info().Dur("ttl", cfg.DoctorCacheTTL).Msg("doctor cache enabled")
	}

	// Repositories fall back to the pool; per-request clinic connections come
	// from ClinicMiddleware.
	tx := db.NewTxRunner(pool)
	users := identity.NewService(identity.NewUserRepoPG(pool))
	appts := booking.NewAppointmentRepoPG(pool)

	bookingSvc := booking.NewService(appts, doctors, catalog.NewServiceRepoPG(pool), users, metrics, logger)
	labSvc := lab.NewService(lab.NewRequestRepoPG(pool), appts, users, files, tx, metrics, logger)
	pharmacySvc := pharmacy.NewService(pharmacy.NewOrderRepoPG(pool), pharmacy.NewInventoryRepoPG(pool), metrics, logger)
	treatmentSvc := treatment.NewService(treatment.NewPlanRepoPG(pool), appts, files, tx, labSvc, pharmacySvc, metrics, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Clinic-ID"},
	}))
	e.Use(middleware.BodyLimit(middleware.DefaultJSONBodyLimit, cfg.MaxUploadBytes))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	if cfg.IsDev() {
		logger.Warn().Msg("development auth enabled: X-Dev-User and X-Dev-Role are trusted")
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	apiV1 := apiGroup(e, middleware.RateLimit(rateLimitConfig(cfg)), db.ClinicMiddleware(pool, cfg.DefaultClinic))

	catalog.NewHandler(doctors).RegisterRoutes(apiV1)
	booking.NewHandler(bookingSvc).RegisterRoutes(apiV1)
	treatment.NewHandler(treatmentSvc).RegisterRoutes(apiV1)
	lab.NewHandler(labSvc).RegisterRoutes(apiV1)
	pharmacy.NewHandler(pharmacySvc).RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	if cfg.MetricsEnabled {
		e.GET("/metrics", telemetry.Handler(reg))
	}
	if mem, ok := files.(*blobstore.MemoryStore); ok {
		e.GET("/files/*", memoryFileHandler(mem))
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// apiGroup mounts /api/v1 with the limiter ahead of the clinic middleware,
// so throttled requests never acquire a database connection.
func apiGroup(e *echo.Echo, limit, clinic echo.MiddlewareFunc) *echo.Group {
	return e.Group("/api/v1", limit, clinic)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 {
		return middleware.DefaultRateLimitConfig()
	}
	return rl
}

func newRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (blobstore.Store, error) {
	switch cfg.BlobBackend {
	case "s3":
		s3cfg := blobstore.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicURL,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			MaxFileSize:     cfg.MaxUploadBytes,
		}
		client, err := blobstore.NewS3Client(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("bucket", cfg.S3Bucket).Msg("storing files in s3")
		return blobstore.NewS3Store(client, s3cfg, logger), nil
	case "", "memory":
		logger.Warn().Msg("storing files in memory; uploads are lost on restart")
		return blobstore.NewMemoryStore(cfg.BlobBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown BLOB_BACKEND %q", cfg.BlobBackend)
	}
}

// memoryFileHandler serves files held by the in-memory store so returned URLs
// resolve in development.
func memoryFileHandler(store *blobstore.MemoryStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, err := store.Get(c.Request().Context(), c.Param("*"))
		if errors.Is(err, blobstore.ErrObjectNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "file not found")
		}
		if err != nil {
			return err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, http.DetectContentType(data), data)
	}
}
