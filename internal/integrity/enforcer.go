// Package integrity performs the administrative deletes whose effects reach
// dependent tables: users (set-null children) and query logs (cascading
// feedback).
package integrity

import (
	"context"
	"fmt"
	"strings"

	"github.com/astrogeo/backend/internal/errs"
	"github.com/astrogeo/backend/internal/metrics"
	"github.com/astrogeo/backend/internal/models"
	"github.com/astrogeo/backend/internal/sqlerr"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Mode selects who carries out the dependent-row effects of a delete.
type Mode string

const (
	// Native relies on the ON DELETE rules declared in the schema.
	Native Mode = "native"
	// Emulated performs the set-null and cascade steps itself, inside one
	// transaction, for engines running without foreign key enforcement.
	Emulated Mode = "emulated"
)

// ParseMode maps the database.emulate_foreign_keys setting to a Mode.
func ParseMode(emulate bool) Mode {
	if emulate {
		return Emulated
	}
	return Native
}

// Enforcer owns DeleteUser and DeleteQueryLog.
type Enforcer struct {
	db     *gorm.DB
	mode   Mode
	logger *logrus.Logger
}

func NewEnforcer(db *gorm.DB, mode Mode, logger *logrus.Logger) *Enforcer {
	if mode != Emulated {
		mode = Native
	}
	return &Enforcer{db: db, mode: mode, logger: logger}
}

func (e *Enforcer) Mode() Mode {
	return e.mode
}

// userChildren are the tables whose user_id is cleared when the user goes.
var userChildren = []string{
	models.TableQueryLogs,
	models.TableAPIUsage,
	models.TableFeedback,
}

// DeleteUser removes a user. Query logs, API usage and feedback rows that
// referenced it survive with user_id NULL.
func (e *Enforcer) DeleteUser(ctx context.Context, id uint) error {
	log := e.logger.WithFields(logrus.Fields{"user_id": id, "mode": e.mode})

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if e.mode == Emulated {
			if err := exists(tx, models.TableUsers, id); err != nil {
				return err
			}
			for _, table := range userChildren {
				res := tx.Table(table).Where("user_id = ?", id).Update("user_id", nil)
				if res.Error != nil {
					return res.Error
				}
				log.WithFields(logrus.Fields{"table": table, "rows": res.RowsAffected}).Debug("Detached rows from user")
			}
		}

		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.NotFound(models.TableUsers, id)
		}
		return nil
	})
	if err != nil {
		return fail(models.TableUsers, err)
	}

	log.Info("User deleted")
	return nil
}

// DeleteQueryLog removes a query log together with exactly the feedback rows
// that reference it.
func (e *Enforcer) DeleteQueryLog(ctx context.Context, id uint) error {
	log := e.logger.WithFields(logrus.Fields{"query_log_id": id, "mode": e.mode})

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if e.mode == Emulated {
			if err := exists(tx, models.TableQueryLogs, id); err != nil {
				return err
			}
			res := tx.Where("query_log_id = ?", id).Delete(&models.Feedback{})
			if res.Error != nil {
				return res.Error
			}
			log.WithField("rows", res.RowsAffected).Debug("Removed feedback for query log")
		}

		res := tx.Delete(&models.QueryLog{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.NotFound(models.TableQueryLogs, id)
		}
		return nil
	})
	if err != nil {
		return fail(models.TableQueryLogs, err)
	}

	log.Info("Query log deleted")
	return nil
}

// fail translates err and counts it with the repository failures.
func fail(entity string, err error) error {
	err = sqlerr.Translate(entity, err)
	metrics.RepositoryErrors.WithLabelValues(entity, strings.ToLower(string(errs.KindOf(err)))).Inc()
	return err
}

func exists(tx *gorm.DB, table string, id uint) error {
	var count int64
	if err := tx.Table(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("look up %s %d: %w", table, id, err)
	}
	if count == 0 {
		return errs.NotFound(table, id)
	}
	return nil
}
