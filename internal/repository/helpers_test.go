package repository

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/astrogeo/backend/internal/database"
	"github.com/astrogeo/backend/internal/integrity"
	"github.com/astrogeo/backend/internal/migration"
	"github.com/astrogeo/backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// clock is a manual clock in whole seconds so SQLite text timestamps compare
// in order.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db    *gorm.DB
	clock *clock
	repos *RepositoryManager
	ctx   context.Context
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := newClock()
	logger := quietLogger()

	db, err := database.Open(&database.Config{
		Driver:       "sqlite",
		DatabaseURL:  "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		ForeignKeys:  true,
		NowFunc:      c.Now,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	require.NoError(t, migration.NewRunner(db, migration.Files(), logger).RunMigrations(context.Background()))

	return &fixture{
		db:    db,
		clock: c,
		repos: NewRepositoryManager(db, integrity.Native, logger),
		ctx:   context.Background(),
	}
}

func credential(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func (f *fixture) user(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := f.repos.User.Create(f.ctx, username, username+"@example.com", credential(t), nil)
	require.NoError(t, err)
	return u
}

func (f *fixture) queryLog(t *testing.T, userID *uint, queryType string, seconds float64) *models.QueryLog {
	t.Helper()
	q, err := f.repos.QueryLog.Record(f.ctx, &models.QueryLog{
		UserID:                userID,
		QueryText:             "NDVI trend over Bengaluru",
		QueryType:             queryType,
		ProcessingTimeSeconds: seconds,
		ResultStatus:          "success",
	})
	require.NoError(t, err)
	return q
}

func (f *fixture) feedback(t *testing.T, userID *uint, queryLogID uint, rating int) *models.Feedback {
	t.Helper()
	fb, err := f.repos.Feedback.Submit(f.ctx, models.FeedbackSubmission{
		UserID:     userID,
		QueryLogID: queryLogID,
		Rating:     rating,
		Type:       "accuracy",
	})
	require.NoError(t, err)
	return fb
}

func ptr[T any](v T) *T {
	return &v
}
