package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/astrogeo/backend/internal/errs"
	"github.com/astrogeo/backend/internal/integrity"
	"github.com/astrogeo/backend/internal/metrics"
	"github.com/astrogeo/backend/internal/models"
	"github.com/astrogeo/backend/internal/sqlerr"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// base carries what every repository needs: the pooled handle and the table
// it speaks for.
type base struct {
	db     *gorm.DB
	entity string
}

// conn scopes the pooled handle to one call.
func (b base) conn(ctx context.Context) *gorm.DB {
	return b.db.WithContext(ctx)
}

// now is the clock used for every updated_at write.
func (b base) now() time.Time {
	return b.db.NowFunc()
}

// fail translates err into the errs taxonomy and counts it.
func (b base) fail(err error) error {
	err = sqlerr.Translate(b.entity, err)
	metrics.RepositoryErrors.WithLabelValues(b.entity, strings.ToLower(string(errs.KindOf(err)))).Inc()
	return err
}

// findOne runs a single-row lookup; a missing row is (nil, nil).
func findOne[T any](b base, q *gorm.DB) (*T, error) {
	var row T
	err := q.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, b.fail(err)
	}
	return &row, nil
}

// getByID is findOne that reports a missing row as NotFound.
func getByID[T any](ctx context.Context, b base, id uint) (*T, error) {
	row, err := findOne[T](b, b.conn(ctx).Where("id = ?", id))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, b.fail(errs.NotFound(b.entity, id))
	}
	return row, nil
}

// list returns at most limit rows, newest first.
func list[T any](b base, q *gorm.DB, limit int) ([]T, error) {
	rows := make([]T, 0)
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, b.fail(err)
	}
	return rows, nil
}

// groupCount is the scan target of GROUP BY label queries.
type groupCount struct {
	Label string
	Total int64
}

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	User      models.UserRepository
	QueryLog  models.QueryLogRepository
	APIUsage  models.APIUsageRepository
	Feedback  models.FeedbackRepository
	Integrity *integrity.Enforcer
}

func NewRepositoryManager(db *gorm.DB, mode integrity.Mode, logger *logrus.Logger) *RepositoryManager {
	return &RepositoryManager{
		User:      NewUserRepository(db),
		QueryLog:  NewQueryLogRepository(db),
		APIUsage:  NewAPIUsageRepository(db),
		Feedback:  NewFeedbackRepository(db),
		Integrity: integrity.NewEnforcer(db, mode, logger),
	}
}
