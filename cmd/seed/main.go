package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astrogeo/backend/internal/config"
	"github.com/astrogeo/backend/internal/database"
	"github.com/astrogeo/backend/internal/integrity"
	"github.com/astrogeo/backend/internal/migration"
	"github.com/astrogeo/backend/internal/repository"
	"github.com/astrogeo/backend/internal/seeder"
	"github.com/astrogeo/backend/internal/services"
	"github.com/astrogeo/backend/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		dryRun  = flag.Bool("dry-run", false, "Report what would be seeded without writing")
		verbose = flag.Bool("verbose", false, "Enable debug logging")
		users   = flag.Int("users", 3, "Number of demo users to seed")
		timeout = flag.Duration("timeout", 2*time.Minute, "Overall seeding timeout")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	logger := utils.GetLogger()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	dbManager, err := database.NewManager(ctx, database.ConfigFrom(cfg), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database manager")
	}
	defer dbManager.Close()

	if err := migration.NewRunner(dbManager.DB, migration.Files(), logger).RunMigrations(ctx); err != nil {
		logger.WithError(err).Fatal("Database migrations failed")
	}

	repoManager := repository.NewRepositoryManager(
		dbManager.DB,
		integrity.ParseMode(cfg.Database.EmulateForeignKeys),
		logger,
	)

	logger.WithFields(logrus.Fields{
		"users":   *users,
		"dry_run": *dryRun,
		"dialect": dbManager.Dialect(),
	}).Info("Starting demo data seeding")

	summary, err := seeder.NewSeeder(repoManager, logger, *dryRun).Seed(ctx, *users)
	if err != nil {
		logger.WithError(err).Fatal("Seeding failed")
	}

	if !*dryRun {
		cache := database.NewCache(dbManager.Redis, logger)
		stats := services.NewStatsService(repoManager, cache, cfg.Redis.StatsTTL, logger)
		if err := stats.Invalidate(ctx); err != nil {
			logger.WithError(err).Warn("Failed to invalidate cached statistics")
		}
	}

	logger.WithField("query_logs", summary.QueryLogs).Info("Done")
}
