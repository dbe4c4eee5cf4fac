package repository

import (
	"context"

	"github.com/astrogeo/backend/internal/errs"
	"github.com/astrogeo/backend/internal/metrics"
	"github.com/astrogeo/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// APIUsageRepositoryImpl implements APIUsageRepository. Append-only.
type APIUsageRepositoryImpl struct {
	base
}

func NewAPIUsageRepository(db *gorm.DB) models.APIUsageRepository {
	return &APIUsageRepositoryImpl{base: base{db: db, entity: models.TableAPIUsage}}
}

func (r *APIUsageRepositoryImpl) Record(ctx context.Context, entry *models.APIUsageRecord) (*models.APIUsageRecord, error) {
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

	metrics.APICallsRecorded.WithLabelValues(entry.APIProvider, metrics.StatusClass(entry.ResponseStatus)).Inc()
	metrics.APIResponseMs.WithLabelValues(entry.APIProvider).Observe(entry.ResponseTimeMs)
	return entry, nil
}

func (r *APIUsageRepositoryImpl) GetByID(ctx context.Context, id uint) (*models.APIUsageRecord, error) {
	return getByID[models.APIUsageRecord](ctx, r.base, id)
}

func (r *APIUsageRepositoryImpl) ListByProvider(ctx context.Context, provider string, limit int) ([]models.APIUsageRecord, error) {
	return list[models.APIUsageRecord](r.base, r.conn(ctx).Where("api_provider = ?", provider), models.ListLimit(limit, models.DefaultListLimit))
}

func (r *APIUsageRepositoryImpl) ListByEndpoint(ctx context.Context, endpoint string, limit int) ([]models.APIUsageRecord, error) {
	return list[models.APIUsageRecord](r.base, r.conn(ctx).Where("endpoint = ?", endpoint), models.ListLimit(limit, models.DefaultListLimit))
}

func (r *APIUsageRepositoryImpl) ListByStatus(ctx context.Context, status int, limit int) ([]models.APIUsageRecord, error) {
	return list[models.APIUsageRecord](r.base, r.conn(ctx).Where("response_status = ?", status), models.ListLimit(limit, models.DefaultListLimit))
}

func (r *APIUsageRepositoryImpl) ListByUser(ctx context.Context, userID uint, limit int) ([]models.APIUsageRecord, error) {
	return list[models.APIUsageRecord](r.base, r.conn(ctx).Where("user_id = ?", userID), models.ListLimit(limit, models.DefaultUserListLimit))
}

func (r *APIUsageRepositoryImpl) ListByWindow(ctx context.Context, window models.TimeRange, limit int) ([]models.APIUsageRecord, error) {
	if err := window.Validate(); err != nil {
		return nil, r.fail(err)
	}
	return list[models.APIUsageRecord](r.base, window.Apply(r.conn(ctx), "created_at"), models.ListLimit(limit, models.DefaultListLimit))
}

// Statistics groups calls inside window by provider: volume, mean latency,
// error responses (status >= 400) and bytes transferred.
func (r *APIUsageRepositoryImpl) Statistics(ctx context.Context, window models.TimeRange) (*models.APIUsageStatistics, error) {
	if err := window.Validate(); err != nil {
		return nil, r.fail(err)
	}

	var rows []struct {
		Label  string
		Total  int64
		AvgMs  *float64
		Errors int64
		Bytes  int64
	}
	err := window.Apply(r.conn(ctx).Model(&models.APIUsageRecord{}), "created_at").
		Select(`api_provider AS label,
			COUNT(*) AS total,
			AVG(response_time_ms) AS avg_ms,
			SUM(CASE WHEN response_status >= 400 THEN 1 ELSE 0 END) AS errors,
			COALESCE(SUM(data_size_bytes), 0) AS bytes`).
		Group("api_provider").
		Scan(&rows).Error
	if err != nil {
		return nil, r.fail(err)
	}

	stats := &models.APIUsageStatistics{
		From:              window.From,
		To:                window.To,
		UsageByProvider:   make(map[string]int64, len(rows)),
		AvgResponseTimeMs: make(map[string]float64, len(rows)),
		ErrorCounts:       make(map[string]int64, len(rows)),
	}
	for _, row := range rows {
		stats.UsageByProvider[row.Label] = row.Total
		if row.AvgMs != nil {
			stats.AvgResponseTimeMs[row.Label] = *row.AvgMs
		}
		stats.ErrorCounts[row.Label] = row.Errors
		stats.TotalBytes += row.Bytes
	}
	return stats, nil
}
