package services

import (
	"context"
	"errors"
	"time"

	"github.com/astrogeo/backend/internal/database"
	"github.com/astrogeo/backend/internal/metrics"
	"github.com/astrogeo/backend/internal/models"
	"github.com/astrogeo/backend/internal/repository"
	"github.com/sirupsen/logrus"
)

// Report names, used in cache keys and metric labels.
const (
	ReportQueries  = "queries"
	ReportAPIUsage = "api_usage"
	ReportFeedback = "feedback"
)

// StatsService serves the statistics reports, reading through the redis
// cache when one is configured.
type StatsService struct {
	repoManager *repository.RepositoryManager
	cache       *database.Cache
	ttl         time.Duration
	logger      *logrus.Logger
}

func NewStatsService(
	repoManager *repository.RepositoryManager,
	cache *database.Cache,
	ttl time.Duration,
	logger *logrus.Logger,
) *StatsService {
	return &StatsService{
		repoManager: repoManager,
		cache:       cache,
		ttl:         ttl,
		logger:      logger,
	}
}

func (s *StatsService) QueryStatistics(ctx context.Context, window models.TimeRange) (*models.QueryStatistics, error) {
	return cached(ctx, s, ReportQueries, windowKey(window), func() (*models.QueryStatistics, error) {
		return s.repoManager.QueryLog.Statistics(ctx, window)
	})
}

func (s *StatsService) APIUsageStatistics(ctx context.Context, window models.TimeRange) (*models.APIUsageStatistics, error) {
	return cached(ctx, s, ReportAPIUsage, windowKey(window), func() (*models.APIUsageStatistics, error) {
		return s.repoManager.APIUsage.Statistics(ctx, window)
	})
}

func (s *StatsService) FeedbackStatistics(ctx context.Context) (*models.FeedbackStatistics, error) {
	return cached(ctx, s, ReportFeedback, "all", func() (*models.FeedbackStatistics, error) {
		return s.repoManager.Feedback.Statistics(ctx)
	})
}

// Invalidate drops all cached reports.
func (s *StatsService) Invalidate(ctx context.Context) error {
	return s.cache.InvalidateStats(ctx)
}

// cached returns the report from the cache or loads and stores it. Cache
// failures are logged and never fail the request.
func cached[T any](ctx context.Context, s *StatsService, report, window string, load func() (*T, error)) (*T, error) {
	key := database.StatsCacheKey(report, window)

	if s.cache.Enabled() {
		var hit T
		err := s.cache.GetJSON(ctx, key, &hit)
		if err == nil {
			metrics.StatsCacheHits.WithLabelValues(report).Inc()
			return &hit, nil
		}
		if !errors.Is(err, database.ErrCacheMiss) {
			s.logger.WithError(err).WithField("key", key).Warn("Stats cache read failed")
		}
		metrics.StatsCacheMisses.WithLabelValues(report).Inc()
	}

	result, err := load()
	if err != nil {
		return nil, err
	}

	if s.cache.Enabled() && s.ttl > 0 {
		if err := s.cache.SetJSON(ctx, key, result, s.ttl); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Stats cache write failed")
		}
	}
	return result, nil
}

func windowKey(window models.TimeRange) string {
	bound := func(t time.Time) string {
		if t.IsZero() {
			return "open"
		}
		return t.UTC().Format(time.RFC3339Nano)
	}
	return bound(window.From) + "_" + bound(window.To)
}
