package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astrogeo/backend/internal/api/handlers"
	"github.com/astrogeo/backend/internal/config"
	"github.com/astrogeo/backend/internal/database"
	"github.com/astrogeo/backend/internal/health"
	"github.com/astrogeo/backend/internal/integrity"
	"github.com/astrogeo/backend/internal/metrics"
	"github.com/astrogeo/backend/internal/middleware"
	"github.com/astrogeo/backend/internal/migration"
	"github.com/astrogeo/backend/internal/repository"
	"github.com/astrogeo/backend/internal/services"
	"github.com/astrogeo/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	logger := utils.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbManager, err := database.NewManager(ctx, database.ConfigFrom(cfg), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database manager")
	}
	defer dbManager.Close()

	if cfg.Migrations.Auto {
		runner := migration.NewRunner(dbManager.DB, migration.Files(), logger)
		if err := runner.RunMigrations(ctx); err != nil {
			logger.WithError(err).Fatal("Database migrations failed")
		}
	}

	repoManager := repository.NewRepositoryManager(
		dbManager.DB,
		integrity.ParseMode(cfg.Database.EmulateForeignKeys),
		logger,
	)
	cache := database.NewCache(dbManager.Redis, logger)
	statsService := services.NewStatsService(repoManager, cache, cfg.Redis.StatsTTL, logger)
	checker := health.NewHealthChecker(dbManager, cache, logger)

	if cache.Enabled() {
		go checker.PeriodicHealthCheck(ctx, 30*time.Second)
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.PerMinute)
	defer limiter.Stop()

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.SecurityHeaders(),
		middleware.RequestLogger(logger),
	)

	router.GET("/health", handlers.NewHealthHandler(checker).HandleHealth)
	router.GET("/metrics", metrics.MetricsHandler())

	v1 := router.Group("/api/v1", limiter.RateLimit())
	handlers.NewStatsHandler(statsService, logger).Register(v1.Group("/stats"))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}

	logger.Info("Server stopped")
}
