package handlers

import (
	"net/http"
	"time"

	"github.com/astrogeo/backend/internal/errs"
	"github.com/astrogeo/backend/internal/models"
	"github.com/astrogeo/backend/internal/services"
	"github.com/astrogeo/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type StatsHandler struct {
	statsService *services.StatsService
	logger       *logrus.Logger
}

func NewStatsHandler(statsService *services.StatsService, logger *logrus.Logger) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
		logger:       logger,
	}
}

// Register mounts the handlers under group.
func (h *StatsHandler) Register(group *gin.RouterGroup) {
	group.GET("/queries", h.HandleQueryStats)
	group.GET("/api-usage", h.HandleAPIUsageStats)
	group.GET("/feedback", h.HandleFeedbackStats)
}

// HandleQueryStats serves GET /stats/queries?from=&to= (RFC 3339, both optional)
func (h *StatsHandler) HandleQueryStats(c *gin.Context) {
	window, err := parseWindow(c)
	if err != nil {
		utils.DomainError(c, "Invalid time window", err)
		return
	}

	stats, err := h.statsService.QueryStatistics(c.Request.Context(), window)
	if err != nil {
		h.fail(c, "query statistics", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", stats)
}

// HandleAPIUsageStats serves GET /stats/api-usage?from=&to=
func (h *StatsHandler) HandleAPIUsageStats(c *gin.Context) {
	window, err := parseWindow(c)
	if err != nil {
		utils.DomainError(c, "Invalid time window", err)
		return
	}

	stats, err := h.statsService.APIUsageStatistics(c.Request.Context(), window)
	if err != nil {
		h.fail(c, "api usage statistics", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", stats)
}

// HandleFeedbackStats serves GET /stats/feedback
func (h *StatsHandler) HandleFeedbackStats(c *gin.Context) {
	stats, err := h.statsService.FeedbackStatistics(c.Request.Context())
	if err != nil {
		h.fail(c, "feedback statistics", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", stats)
}

func (h *StatsHandler) fail(c *gin.Context, report string, err error) {
	h.logger.WithError(err).WithFields(logrus.Fields{
		"report":     report,
		"request_id": c.GetString("request_id"),
	}).Error("Failed to build report")
	utils.DomainError(c, "Failed to load "+report, err)
}

func parseWindow(c *gin.Context) (models.TimeRange, error) {
	var window models.TimeRange
	for _, bound := range []struct {
		param string
		dst   *time.Time
	}{
		{"from", &window.From},
		{"to", &window.To},
	} {
		raw := c.Query(bound.param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return window, errs.InvalidArgument("", bound.param, "must be an RFC 3339 timestamp")
		}
		*bound.dst = t.UTC()
	}
	return window, window.Validate()
}
