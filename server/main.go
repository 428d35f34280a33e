package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"festival/api/routes"
	"festival/internal/notifications"
	"festival/internal/shared/config"
	"festival/internal/shared/database"
	"festival/internal/shared/middleware"
	"festival/internal/tickets"
	"festival/pkg/logger"
	"festival/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

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

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Rate limiter: Redis sliding window when available, in-process otherwise
	rateLimiterConfig := &ratelimit.Config{
		Enabled:         cfg.RateLimit.Enabled,
		WindowDuration:  cfg.RateLimit.WindowDuration,
		DefaultRequests: cfg.RateLimit.DefaultRequests,
		PublicRequests:  cfg.RateLimit.PublicRequests,
		AdminRequests:   cfg.RateLimit.AdminRequests,
		HealthRequests:  cfg.RateLimit.HealthRequests,
		ReserveRequests: cfg.RateLimit.ReserveRequests,
		WhitelistedIPs:  cfg.RateLimit.WhitelistedIPs,
	}
	var rateLimiter ratelimit.Limiter
	if db.Redis != nil {
		rateLimiter = ratelimit.NewRateLimiter(db.Redis, rateLimiterConfig)
	} else {
		rateLimiter = ratelimit.NewMemoryRateLimiter(rateLimiterConfig)
	}
	appLogger.Info("Rate limiter initialized",
		slog.Bool("enabled", cfg.RateLimit.Enabled),
		slog.Bool("redis", db.Redis != nil),
		slog.Duration("window", cfg.RateLimit.WindowDuration),
		slog.Int("reserve_requests", cfg.RateLimit.ReserveRequests),
	)

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	defer backgroundCancel()

	// Notifications never block the request path; a broken broker degrades to logging
	sink, err := notifications.NewSinkFromConfig(cfg.Notifications)
	if err != nil {
		appLogger.Error("Failed to initialize notification sink, falling back to log sink", slog.Any("error", err))
		sink = notifications.LogSink{}
	}
	dispatcher := notifications.NewDispatcher(sink, cfg.Notifications.BufferSize)
	if err := dispatcher.Start(backgroundCtx); err != nil {
		appLogger.Error("Failed to start notification dispatcher", slog.Any("error", err))
	}
	defer func() {
		appLogger.Info("Stopping notification dispatcher...")
		if err := dispatcher.Stop(); err != nil {
			appLogger.Error("Error stopping notification dispatcher", slog.Any("error", err))
		}
	}()

	appRouter := routes.NewRouter(cfg, db, dispatcher, rateLimiter)
	router := setupRouter(appRouter, rateLimiter)

	if cfg.Tickets.PhaseSweepEnabled {
		sweeper := tickets.NewPhaseSweeper(appRouter.TicketService(), cfg.Tickets.PhaseSweepInterval)
		sweeper.Start(backgroundCtx)
		defer sweeper.Stop()
	}

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_base", cfg.GetAPIBasePath()),
			slog.String("version", Version),
			slog.String("build_time", BuildTime),
			slog.String("commit", GitCommit),
			slog.Bool("redis_cache", db.Redis != nil),
			slog.String("notify_broker", cfg.Notifications.Broker),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupRouter(appRouter *routes.Router, rateLimiter ratelimit.Limiter) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	engine.Use(middleware.RequestID(), middleware.RequestLogger(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Reservation routes are throttled inside the ticket service instead
	engine.Use(ratelimit.Middleware(rateLimiter))

	appRouter.SetupRoutes(engine)

	return engine
}
