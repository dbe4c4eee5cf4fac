package repository

import (
	"context"

	"github.com/astrogeo/backend/internal/errs"
	"github.com/astrogeo/backend/internal/metrics"
	"github.com/astrogeo/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryLogRepositoryImpl implements QueryLogRepository. There is no update or
// delete: removal goes through integrity.Enforcer.DeleteQueryLog.
type QueryLogRepositoryImpl struct {
	base
}

func NewQueryLogRepository(db *gorm.DB) models.QueryLogRepository {
	return &QueryLogRepositoryImpl{base: base{db: db, entity: models.TableQueryLogs}}
}

func (r *QueryLogRepositoryImpl) Record(ctx context.Context, entry *models.QueryLog) (*models.QueryLog, error) {
	if entry == nil {
		return nil, r.fail(errs.InvalidArgument(r.entity, "", "entry is required"))
	}
	if entry.ID != 0 {
		return nil, r.fail(errs.InvalidArgument(r.entity, "id", "is assigned by storage"))
	}
	if err := entry.Validate(); err != nil {
		return nil, r.fail(err)
	}

	if err := r.conn(ctx).Omit(clause.Associations).Create(entry).Error; err != nil {
		return nil, r.fail(err)
	}

	metrics.QueryLogsRecorded.WithLabelValues(entry.QueryType, entry.ResultStatus).Inc()
	metrics.QueryProcessingSeconds.WithLabelValues(entry.QueryType).Observe(entry.ProcessingTimeSeconds)
	return entry, nil
}

func (r *QueryLogRepositoryImpl) GetByID(ctx context.Context, id uint) (*models.QueryLog, error) {
	return getByID[models.QueryLog](ctx, r.base, id)
}

// ListByUser returns the user's logs newest first, optionally bounded by window.
func (r *QueryLogRepositoryImpl) ListByUser(ctx context.Context, userID uint, window *models.TimeRange, limit int) ([]models.QueryLog, error) {
	q := r.conn(ctx).Where("user_id = ?", userID)
	if window != nil {
		if err := window.Validate(); err != nil {
			return nil, r.fail(err)
		}
		q = window.Apply(q, "created_at")
	}
	return list[models.QueryLog](r.base, q, models.ListLimit(limit, models.DefaultUserListLimit))
}

func (r *QueryLogRepositoryImpl) ListByType(ctx context.Context, queryType string, limit int) ([]models.QueryLog, error) {
	return list[models.QueryLog](r.base, r.conn(ctx).Where("query_type = ?", queryType), models.ListLimit(limit, models.DefaultListLimit))
}

func (r *QueryLogRepositoryImpl) ListByStatus(ctx context.Context, status string, limit int) ([]models.QueryLog, error) {
	return list[models.QueryLog](r.base, r.conn(ctx).Where("result_status = ?", status), models.ListLimit(limit, models.DefaultListLimit))
}

func (r *QueryLogRepositoryImpl) ListByWindow(ctx context.Context, window models.TimeRange, limit int) ([]models.QueryLog, error) {
	if err := window.Validate(); err != nil {
		return nil, r.fail(err)
	}
	return list[models.QueryLog](r.base, window.Apply(r.conn(ctx), "created_at"), models.ListLimit(limit, models.DefaultListLimit))
}

// Statistics reports totals, per-type and per-status counts and the mean
// processing time inside window.
func (r *QueryLogRepositoryImpl) Statistics(ctx context.Context, window models.TimeRange) (*models.QueryStatistics, error) {
	if err := window.Validate(); err != nil {
		return nil, r.fail(err)
	}
	scoped := func() *gorm.DB {
		return window.Apply(r.conn(ctx).Model(&models.QueryLog{}), "created_at")
	}

	var totals struct {
		Total      int64
		AvgSeconds *float64
	}
	err := scoped().
		Select("COUNT(*) AS total, AVG(processing_time_seconds) AS avg_seconds").
		Scan(&totals).Error
	if err != nil {
		return nil, r.fail(err)
	}

	var byType []groupCount
	err = scoped().
		Select("COALESCE(query_type, '') AS label, COUNT(*) AS total").
		Group("query_type").
		Scan(&byType).Error
	if err != nil {
		return nil, r.fail(err)
	}

	var byStatus []groupCount
	err = scoped().
		Select("COALESCE(result_status, '') AS label, COUNT(*) AS total").
		Group("result_status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, r.fail(err)
	}

	stats := &models.QueryStatistics{
		From:            window.From,
		To:              window.To,
		TotalQueries:    totals.Total,
		QueriesByType:   make(map[string]int64, len(byType)),
		QueriesByStatus: make(map[string]int64, len(byStatus)),
	}
	if totals.AvgSeconds != nil {
		stats.AvgProcessingTimeSecs = *totals.AvgSeconds
	}
	for _, g := range byType {
		stats.QueriesByType[g.Label] += g.Total
	}
	for _, g := range byStatus {
		stats.QueriesByStatus[g.Label] += g.Total
	}
	return stats, nil
}
