package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smsgate/pulse-core/internal/services"
	"github.com/smsgate/pulse-core/pkg/logger"
)

type MetricsHandler struct {
	engine services.HealthEngine
	logger logger.Logger
}

func NewMetricsHandler(engine services.HealthEngine, log logger.Logger) *MetricsHandler {
	return &MetricsHandler{engine: engine, logger: log}
}

// GET /api/v1/metrics/system?window=60
func (h *MetricsHandler) GetSystemMetrics(c *gin.Context) {
	window, ok := parseWindow(c)
	if !ok {
		return
	}

	sys, err := h.engine.ComputeSystemMetrics(c.Request.Context(), window)
	if err != nil {
		// Registry failure is the one condition distinguishable from a
		// degraded-but-present result.
		h.logger.Error("System metrics pass failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sys)
}

// GET /api/v1/metrics/providers/:providerId?window=60
func (h *MetricsHandler) GetProviderMetrics(c *gin.Context) {
	window, ok := parseWindow(c)
	if !ok {
		return
	}
	providerID := c.Param("providerId")

	m, err := h.engine.ComputeProviderMetrics(c.Request.Context(), providerID, window)
	if err != nil {
		if strings.Contains(err.Error(), "unknown provider") {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Provider metrics pass failed", "provider", providerID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m)
}

// parseWindow reads the optional window query parameter. Zero means "use the
// configured default"; the engine clamps oversized values.
func parseWindow(c *gin.Context) (int, bool) {
	raw := c.Query("window")
	if raw == "" {
		return 0, true
	}
	window, err := strconv.Atoi(raw)
	if err != nil || window < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "window must be a non-negative integer of minutes"})
		return 0, false
	}
	return window, true
}
