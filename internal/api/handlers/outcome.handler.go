package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smsgate/pulse-core/internal/models"
	"github.com/smsgate/pulse-core/internal/services"
	"github.com/smsgate/pulse-core/pkg/logger"
)

// OutcomeHandler is the single mutating entry point: upstream call sites
// report their request outcomes here.
type OutcomeHandler struct {
	engine services.HealthEngine
	logger logger.Logger
}

func NewOutcomeHandler(engine services.HealthEngine, log logger.Logger) *OutcomeHandler {
	return &OutcomeHandler{engine: engine, logger: log}
}

type outcomeRequest struct {
	ProviderID  string `json:"providerId" binding:"required"`
	Success     *bool  `json:"success" binding:"required"`
	LatencyMs   int64  `json:"latencyMs"`
	TimestampMs int64  `json:"timestampMs"`
}

// POST /api/v1/outcomes
func (h *OutcomeHandler) Record(c *gin.Context) {
	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "providerId and success are required"})
		return
	}
	if req.LatencyMs < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latencyMs must not be negative"})
		return
	}

	h.engine.RecordOutcome(c.Request.Context(), models.RequestOutcome{
		ProviderID:  req.ProviderID,
		TimestampMs: req.TimestampMs,
		Success:     *req.Success,
		LatencyMs:   req.LatencyMs,
	})
	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}
