package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/astrogeo/backend/internal/errs"
	"github.com/astrogeo/backend/internal/metrics"
	"github.com/astrogeo/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedbackRepositoryImpl implements FeedbackRepository
type FeedbackRepositoryImpl struct {
	base
}

func NewFeedbackRepository(db *gorm.DB) models.FeedbackRepository {
	return &FeedbackRepositoryImpl{base: base{db: db, entity: models.TableFeedback}}
}

// Submit stores new open feedback. The query log must exist at creation
// time; lookup and insert share one transaction.
func (r *FeedbackRepositoryImpl) Submit(ctx context.Context, in models.FeedbackSubmission) (*models.Feedback, error) {
	if err := in.Validate(); err != nil {
		return nil, r.fail(err)
	}

	feedback := &models.Feedback{
		UserID:       in.UserID,
		QueryLogID:   in.QueryLogID,
		Rating:       in.Rating,
		FeedbackType: in.Type,
		FeedbackText: in.Text,
		Category:     in.Category,
		IsResolved:   false,
	}

	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.QueryLog{}).
			Where("id = ?", in.QueryLogID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return errs.Referential(r.entity, "query_log_id", fmt.Sprintf("query log %d does not exist", in.QueryLogID), nil)
		}
		return tx.Omit(clause.Associations).Create(feedback).Error
	})
	if err != nil {
		return nil, r.fail(err)
	}

	metrics.FeedbackSubmitted.WithLabelValues(strconv.Itoa(feedback.Rating)).Inc()
	return feedback, nil
}

func (r *FeedbackRepositoryImpl) GetByID(ctx context.Context, id uint) (*models.Feedback, error) {
	return getByID[models.Feedback](ctx, r.base, id)
}

// Resolve moves feedback to Resolved. Repeating it keeps the state but still
// stores the response and refreshes updated_at.
func (r *FeedbackRepositoryImpl) Resolve(ctx context.Context, id uint, adminResponse string) (*models.Feedback, error) {
	var feedback models.Feedback
	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Feedback{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"is_resolved":    true,
				"admin_response": adminResponse,
				"updated_at":     r.now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.NotFound(r.entity, id)
		}
		return tx.First(&feedback, id).Error
	})
	if err != nil {
		return nil, r.fail(err)
	}

	metrics.FeedbackResolved.Inc()
	return &feedback, nil
}

func (r *FeedbackRepositoryImpl) ListByCategory(ctx context.Context, category string, limit int) ([]models.Feedback, error) {
	return list[models.Feedback](r.base, r.conn(ctx).Where("category = ?", category), models.ListLimit(limit, models.DefaultListLimit))
}

func (r *FeedbackRepositoryImpl) ListByRating(ctx context.Context, rating int, limit int) ([]models.Feedback, error) {
	if err := models.ValidateRating(rating); err != nil {
		return nil, r.fail(err)
	}
	return list[models.Feedback](r.base, r.conn(ctx).Where("rating = ?", rating), models.ListLimit(limit, models.DefaultListLimit))
}

func (r *FeedbackRepositoryImpl) ListUnresolved(ctx context.Context, limit int) ([]models.Feedback, error) {
	return list[models.Feedback](r.base, r.conn(ctx).Where("is_resolved = ?", false), models.ListLimit(limit, models.DefaultListLimit))
}

func (r *FeedbackRepositoryImpl) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Feedback, error) {
	return list[models.Feedback](r.base, r.conn(ctx).Where("user_id = ?", userID), models.ListLimit(limit, models.DefaultUserListLimit))
}

func (r *FeedbackRepositoryImpl) ListByQueryLog(ctx context.Context, queryLogID uint, limit int) ([]models.Feedback, error) {
	return list[models.Feedback](r.base, r.conn(ctx).Where("query_log_id = ?", queryLogID), models.ListLimit(limit, models.DefaultListLimit))
}

// Statistics covers all feedback: mean rating, rating and category
// distributions, and how much is still open.
func (r *FeedbackRepositoryImpl) Statistics(ctx context.Context) (*models.FeedbackStatistics, error) {
	table := func() *gorm.DB {
		return r.conn(ctx).Model(&models.Feedback{})
	}

	var totals struct {
		Total     int64
		AvgRating *float64
		Resolved  int64
	}
	err := table().
		Select(`COUNT(*) AS total,
			AVG(rating) AS avg_rating,
			COALESCE(SUM(CASE WHEN is_resolved THEN 1 ELSE 0 END), 0) AS resolved`).
		Scan(&totals).Error
	if err != nil {
		return nil, r.fail(err)
	}

	var byRating []struct {
		Rating int
		Total  int64
	}
	if err := table().Select("rating, COUNT(*) AS total").Group("rating").Scan(&byRating).Error; err != nil {
		return nil, r.fail(err)
	}

	var byCategory []groupCount
	err = table().
		Select("COALESCE(category, '') AS label, COUNT(*) AS total").
		Group("category").
		Scan(&byCategory).Error
	if err != nil {
		return nil, r.fail(err)
	}

	stats := &models.FeedbackStatistics{
		TotalFeedback:       totals.Total,
		RatingsDistribution: make(map[int]int64, len(byRating)),
		FeedbackByCategory:  make(map[string]int64, len(byCategory)),
		Resolved:            totals.Resolved,
		Unresolved:          totals.Total - totals.Resolved,
	}
	if totals.AvgRating != nil {
		stats.AverageRating = *totals.AvgRating
	}
	for _, g := range byRating {
		stats.RatingsDistribution[g.Rating] = g.Total
	}
	for _, g := range byCategory {
		stats.FeedbackByCategory[g.Label] += g.Total
	}
	return stats, nil
}
