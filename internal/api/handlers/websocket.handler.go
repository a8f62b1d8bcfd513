package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/smsgate/pulse-core/internal/breaker"
	"github.com/smsgate/pulse-core/internal/config"
	"github.com/smsgate/pulse-core/internal/monitoring"
	"github.com/smsgate/pulse-core/pkg/logger"
)

// CircuitStreamHandler pushes circuit transitions to connected dashboards as
// they happen. Broadcast is wired into the breaker's transition hook.
type CircuitStreamHandler struct {
	upgrader     websocket.Upgrader
	logger       logger.Logger
	pingInterval time.Duration

	mu      sync.RWMutex
	clients map[string]chan breaker.Transition
}

func NewCircuitStreamHandler(cfg config.WebSocketConfig, log logger.Logger) *CircuitStreamHandler {
	ping := time.Duration(cfg.PingIntervalSeconds) * time.Second
	if ping <= 0 {
		ping = 30 * time.Second
	}
	return &CircuitStreamHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// TODO: check Origin against the CORS allow-list
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:       log,
		pingInterval: ping,
		clients:      make(map[string]chan breaker.Transition),
	}
}

// Broadcast fans one transition out to every connected client. Slow clients
// drop events rather than blocking the breaker.
func (h *CircuitStreamHandler) Broadcast(t breaker.Transition) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- t:
		default:
		}
	}
}

// GET /api/v1/ws/health - WebSocket stream of circuit transitions
func (h *CircuitStreamHandler) HandleStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	events := make(chan breaker.Transition, 16)
	h.mu.Lock()
	h.clients[clientID] = events
	h.mu.Unlock()
	monitoring.WebSocketConnected()
	defer func() {
		h.mu.Lock()
		delete(h.clients, clientID)
		h.mu.Unlock()
		monitoring.WebSocketDisconnected()
	}()

	h.logger.Info("WebSocket client connected", "clientId", clientID, "stream", "circuit")

	// Read pump: we never expect client frames, but reading surfaces closes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(h.pingInterval)
	defer heartbeat.Stop()

	for {
		select {
		case t := <-events:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(map[string]interface{}{
				"type": "circuit_transition",
				"data": t,
			}); err != nil {
				h.logger.Warn("WebSocket write failed", "clientId", clientID, "error", err)
				return
			}
		case <-heartbeat.C:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// ClientCount is exposed for tests and the readiness surface.
func (h *CircuitStreamHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
