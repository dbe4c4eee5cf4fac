package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/astrogeo/backend/internal/config"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrCacheDisabled is returned by redis operations when no redis URL was
// configured.
var ErrCacheDisabled = errors.New("redis cache disabled")

// Database connection manager
type Manager struct {
	DB     *gorm.DB
	Redis  *redis.Client
	logger *logrus.Logger
}

// Database configuration
type Config struct {
	Driver          string
	DatabaseURL     string
	RedisURL        string
	LogLevel        string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	// ForeignKeys turns on SQLite foreign key enforcement. Postgres always
	// enforces them.
	ForeignKeys bool
	Retry       RetryConfig
	// NowFunc overrides the clock gorm uses for created_at and that
	// repositories use for updated_at.
	NowFunc func() time.Time
}

// ConfigFrom maps the application configuration onto a manager Config.
func ConfigFrom(cfg *config.Config) *Config {
	backoff := DefaultRetryConfig()
	backoff.MaxRetries = cfg.Database.ConnectRetries

	return &Config{
		Driver:          cfg.Database.Driver,
		DatabaseURL:     cfg.Database.URL,
		RedisURL:        cfg.Redis.URL,
		LogLevel:        cfg.Database.LogLevel,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ForeignKeys:     !cfg.Database.EmulateForeignKeys,
		Retry:           backoff,
	}
}

// NewGormLogger routes gorm statement logging through logrus. Anything other
// than "debug", "info", "warn" or "error" silences it.
func NewGormLogger(logger *logrus.Logger, level string) gormlogger.Interface {
	levels := map[string]gormlogger.LogLevel{
		"debug": gormlogger.Info,
		"info":  gormlogger.Info,
		"warn":  gormlogger.Warn,
		"error": gormlogger.Error,
	}
	lvl, ok := levels[level]
	if !ok {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	return gormlogger.New(logger, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Open builds the gorm handle for config without touching redis.
func Open(config *Config, logger *logrus.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case "postgres", "":
		dialector = postgres.Open(config.DatabaseURL)
	case "sqlite":
		dialector = sqlite.Open(SQLiteDSN(config.DatabaseURL, config.ForeignKeys))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}

	nowFunc := config.NowFunc
	if nowFunc == nil {
		nowFunc = func() time.Time { return time.Now().UTC() }
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 NewGormLogger(logger, config.LogLevel),
		NowFunc:                nowFunc,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	return db, nil
}

// SQLiteDSN appends the go-sqlite3 foreign key switch to dsn. The pragma is
// per connection, so it has to travel in the DSN to reach every pooled one.
func SQLiteDSN(dsn string, foreignKeys bool) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if foreignKeys {
		return dsn + sep + "_foreign_keys=on"
	}
	return dsn + sep + "_foreign_keys=off"
}

// NewManager connects to the database, retrying with backoff, and to redis
// when a URL is configured.
func NewManager(ctx context.Context, config *Config, logger *logrus.Logger) (*Manager, error) {
	var db *gorm.DB
	err := retry(ctx, config.Retry, logger, "database connect", func() error {
		var err error
		db, err = Open(config, logger)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			sqlDB.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	manager := &Manager{DB: db, logger: logger}
	if config.RedisURL == "" {
		logger.Info("Redis URL empty, statistics cache disabled")
		return manager, nil
	}

	redisOpts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.PoolSize = 20
	redisOpts.MinIdleConns = 5
	redisOpts.MaxConnAge = time.Hour
	redisOpts.IdleTimeout = 30 * time.Minute

	manager.Redis = redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := manager.Redis.Ping(pingCtx).Err(); err != nil {
		// The cache is optional; statistics fall through to the database.
		logger.WithError(err).Warn("Redis unreachable at startup")
	}

	logger.WithField("driver", config.Driver).Info("Database connection established")
	return manager, nil
}

// Close closes all database connections
func (m *Manager) Close() error {
	if m.Redis != nil {
		if err := m.Redis.Close(); err != nil {
			m.logger.WithError(err).Error("Failed to close Redis connection")
		}
	}

	if m.DB != nil {
		sqlDB, err := m.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return nil
}

// Health check methods
func (m *Manager) PingDatabase(ctx context.Context) error {
	sqlDB, err := m.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (m *Manager) PingRedis(ctx context.Context) error {
	if m.Redis == nil {
		return ErrCacheDisabled
	}
	return m.Redis.Ping(ctx).Err()
}

// Dialect is the gorm dialector name, "postgres" or "sqlite".
func (m *Manager) Dialect() string {
	return m.DB.Dialector.Name()
}
