package handlers

import (
	"net/http"

	"github.com/astrogeo/backend/internal/health"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	checker *health.HealthChecker
}

func NewHealthHandler(checker *health.HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// HandleHealth runs the checks live; ?cached=true serves the last periodic
// snapshot when there is one.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	if c.Query("cached") == "true" {
		if snapshot, err := h.checker.CheckCached(c.Request.Context()); err == nil {
			c.JSON(statusCode(snapshot.Status), snapshot)
			return
		}
	}

	result := h.checker.CheckAll(c.Request.Context())
	c.JSON(statusCode(result.Status), result)
}

func statusCode(status string) int {
	if status == health.StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
