package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smsgate/pulse-core/pkg/cache"
	"github.com/smsgate/pulse-core/pkg/logger"
)

type HealthHandler struct {
	cache  cache.Valkey
	logger logger.Logger
}

func NewHealthHandler(c cache.Valkey, log logger.Logger) *HealthHandler {
	return &HealthHandler{cache: c, logger: log}
}

// GET /health - quick liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "pulse-core",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GET /ready - readiness depends on the Valkey keyspace being reachable,
// since every engine read and write goes through it.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK
	resp := gin.H{
		"service":   "pulse-core",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if h.cache != nil {
		if err := h.cache.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			resp["error"] = err.Error()
		}
	}
	resp["status"] = status
	c.JSON(httpStatus, resp)
}
