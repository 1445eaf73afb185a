package main

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

	"boxoffice/api/routes"
	"boxoffice/internal/audit"
	"boxoffice/internal/payments"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/database"
	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/shared/utils/validation"
	"boxoffice/pkg/logger"
	"boxoffice/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// @title        Boxoffice API
// @version      1.0
// @description  Seat reservation, checkout and ticketing for shows.
// @BasePath     /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	// Load config
	cfg := config.Load()

	// Set Gin mode first: the logger picks text or JSON output from it
	gin.SetMode(cfg.GinMode)
	appLogger = logger.NewWithWriter(os.Stdout, cfg.LogLevel)
	logger.SetDefault(appLogger)

	validation.Register()

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	sink, closeSink := setupAuditSink(cfg, db)
	defer closeSink()

	authority := setupAuthority(cfg)

	// Initialize Rate Limiter
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && db.Redis != nil {
		rateLimiter = ratelimit.NewRateLimiter(db.Redis, &ratelimit.Config{
			Enabled:                 cfg.RateLimit.Enabled,
			WindowDuration:          cfg.RateLimit.WindowDuration,
			DefaultRequests:         cfg.RateLimit.DefaultRequests,
			PublicRequests:          cfg.RateLimit.PublicRequests,
			BookingRequests:         cfg.RateLimit.BookingRequests,
			BookingCriticalRequests: cfg.RateLimit.BookingCriticalRequests,
			WebhookRequests:         cfg.RateLimit.WebhookRequests,
			AdminRequests:           cfg.RateLimit.AdminRequests,
			HealthRequests:          cfg.RateLimit.HealthRequests,
			WhitelistedIPs:          cfg.RateLimit.WhitelistedIPs,
		})
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	appRouter := routes.NewRouter(cfg, db, sink, authority)
	engine := setupRouter(cfg, appRouter, rateLimiter)

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        engine,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_status", fmt.Sprintf("http://localhost:%s/status", cfg.Port)),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.Bool("redis", db.Redis != nil),
			slog.Bool("rate_limiting", rateLimiter != nil),
			slog.String("payment_provider", cfg.Payment.Provider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Sweeper.Enabled {
		group.Go(func() error {
			return appRouter.Jobs().Run(groupCtx)
		})
	} else {
		appLogger.Info("Expiration sweeper disabled: run sweeps through the admin endpoint")
	}

	// Graceful shutdown once a signal arrives or a component fails
	group.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		appLogger.Error("Server stopped with error", slog.Any("error", err))
		return
	}
	appLogger.Info("Server exited gracefully")
}

// setupAuditSink always records to PostgreSQL and additionally streams to
// Kafka when enabled. A broker that cannot be reached leaves the database sink.
func setupAuditSink(cfg *config.Config, db *database.DB) (audit.Sink, func()) {
	appLogger := logger.GetDefault()
	gormSink := audit.NewGormSink(db.SQL)

	if !cfg.Kafka.Enabled {
		return gormSink, func() {}
	}

	kafkaSink, err := audit.NewKafkaSink(audit.DefaultKafkaSinkConfig(cfg.Kafka))
	if err != nil {
		appLogger.Error("Failed to initialize Kafka audit stream", slog.Any("error", err))
		appLogger.Info("Continuing with database audit log only")
		return gormSink, func() {}
	}

	return audit.MultiSink{gormSink, kafkaSink}, func() {
		if err := kafkaSink.Close(); err != nil {
			appLogger.Error("Error closing Kafka audit stream", slog.Any("error", err))
		}
	}
}

func setupAuthority(cfg *config.Config) payments.Authority {
	if cfg.Payment.Provider == "http" {
		logger.GetDefault().Info("Using HTTP charge authority", slog.String("base_url", cfg.Payment.BaseURL))
		return payments.NewHTTPAuthority(cfg.Payment)
	}

	if cfg.IsProduction() {
		logger.GetDefault().Warn("Sandbox charge authority in production: payments are simulated")
	}
	return payments.NewSandboxAuthority()
}

func setupRouter(cfg *config.Config, appRouter *routes.Router, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	// Built-in middleware: logs requests + recovers from panics
	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			middleware.SessionHeader, payments.IdempotencyHeader,
		},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
		appLogger.Info("Rate limiting middleware applied to all routes")
	}

	appRouter.SetupRoutes(engine)

	if cfg.IsDevelopment() {
		appLogger.Info("API docs available", slog.String("url", fmt.Sprintf("http://localhost:%s/swagger/index.html", cfg.Port)))
	}
	return engine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.LogHTTPRequest(c, time.Since(start))
	}
}
