package health

import (
	"context"
	"errors"
	"time"

	"github.com/astrogeo/backend/internal/database"
	"github.com/sirupsen/logrus"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusDisabled  = "disabled"
)

// Pinger is the part of database.Manager the checker needs.
type Pinger interface {
	PingDatabase(ctx context.Context) error
	PingRedis(ctx context.Context) error
	Dialect() string
}

// HealthChecker manages health checks for all services
type HealthChecker struct {
	pinger  Pinger
	cache   *database.Cache
	logger  *logrus.Logger
	timeout time.Duration
	started time.Time
}

func NewHealthChecker(pinger Pinger, cache *database.Cache, logger *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		pinger:  pinger,
		cache:   cache,
		logger:  logger,
		timeout: 5 * time.Second,
		started: time.Now(),
	}
}

// ServiceHealth represents the health status of a service
type ServiceHealth struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ResponseTime int    `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
	LastChecked  string `json:"last_checked"`
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
	Uptime   string          `json:"uptime"`
}

func (h *HealthChecker) check(ctx context.Context, name string, ping func(context.Context) error) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := ping(ctx)
	responseTime := int(time.Since(start).Milliseconds())

	result := ServiceHealth{
		Name:         name,
		Status:       StatusHealthy,
		ResponseTime: responseTime,
		LastChecked:  time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		h.logger.WithError(err).WithField("service", name).Error("Health check failed")
	}
	return result
}

// CheckDatabase checks the relational store.
func (h *HealthChecker) CheckDatabase(ctx context.Context) ServiceHealth {
	return h.check(ctx, h.pinger.Dialect(), h.pinger.PingDatabase)
}

// CheckRedis checks the statistics cache. A disabled cache is reported but
// does not count against overall health.
func (h *HealthChecker) CheckRedis(ctx context.Context) ServiceHealth {
	disabled := false
	result := h.check(ctx, "redis", func(ctx context.Context) error {
		err := h.pinger.PingRedis(ctx)
		if errors.Is(err, database.ErrCacheDisabled) {
			disabled = true
			return nil
		}
		return err
	})
	if disabled {
		result.Status = StatusDisabled
	}
	return result
}

// CheckAll performs health checks on all services. The database decides
// between healthy and unhealthy; a failing cache only degrades.
func (h *HealthChecker) CheckAll(ctx context.Context) OverallHealth {
	db := h.CheckDatabase(ctx)
	cache := h.CheckRedis(ctx)

	overall := StatusHealthy
	switch {
	case db.Status == StatusUnhealthy:
		overall = StatusUnhealthy
	case cache.Status == StatusUnhealthy:
		overall = StatusDegraded
	}

	return OverallHealth{
		Status:   overall,
		Services: []ServiceHealth{db, cache},
		Uptime:   time.Since(h.started).Round(time.Second).String(),
	}
}

// CheckCached returns the last snapshot stored by PeriodicHealthCheck.
func (h *HealthChecker) CheckCached(ctx context.Context) (*OverallHealth, error) {
	var snapshot OverallHealth
	if err := h.cache.GetCachedSystemHealth(ctx, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// PeriodicHealthCheck runs health checks periodically
func (h *HealthChecker) PeriodicHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health := h.CheckAll(ctx)

			if err := h.cache.CacheSystemHealth(ctx, health, 2*interval); err != nil && !errors.Is(err, context.Canceled) {
				h.logger.WithError(err).Error("Failed to cache health status")
			}

			h.logger.WithField("status", health.Status).Debug("Periodic health check completed")
		}
	}
}
