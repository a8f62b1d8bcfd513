package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smsgate/pulse-core/internal/breaker"
	"github.com/smsgate/pulse-core/internal/models"
	"github.com/smsgate/pulse-core/pkg/logger"
)

// CircuitHandler exposes breaker snapshots and the manual override
// operations used by operators during provider incidents.
type CircuitHandler struct {
	breaker *breaker.Breaker
	logger  logger.Logger
}

func NewCircuitHandler(b *breaker.Breaker, log logger.Logger) *CircuitHandler {
	return &CircuitHandler{breaker: b, logger: log}
}

type circuitResponse struct {
	models.CircuitHealth
	Description string `json:"description"`
}

func describe(h models.CircuitHealth) circuitResponse {
	return circuitResponse{CircuitHealth: h, Description: h.State.Description()}
}

// GET /api/v1/circuit
func (h *CircuitHandler) GetAll(c *gin.Context) {
	all := h.breaker.AllHealth(c.Request.Context())
	out := make([]circuitResponse, len(all))
	for i, ch := range all {
		out[i] = describe(ch)
	}
	c.JSON(http.StatusOK, gin.H{"circuits": out})
}

// GET /api/v1/circuit/:providerId
// Unknown providers report a closed circuit; health must never 404, it is
// itself the monitoring signal.
func (h *CircuitHandler) Get(c *gin.Context) {
	providerID := c.Param("providerId")
	c.JSON(http.StatusOK, describe(h.breaker.Health(c.Request.Context(), providerID)))
}

// POST /api/v1/circuit/:providerId/open - manual trip
func (h *CircuitHandler) ForceOpen(c *gin.Context) {
	providerID := c.Param("providerId")
	h.logger.Warn("Circuit manually opened", "provider", providerID, "request_id", c.GetString("request_id"))
	c.JSON(http.StatusOK, describe(h.breaker.ForceOpen(c.Request.Context(), providerID)))
}

// POST /api/v1/circuit/:providerId/reset - manual close
func (h *CircuitHandler) Reset(c *gin.Context) {
	providerID := c.Param("providerId")
	h.logger.Warn("Circuit manually reset", "provider", providerID, "request_id", c.GetString("request_id"))
	c.JSON(http.StatusOK, describe(h.breaker.Reset(c.Request.Context(), providerID)))
}
