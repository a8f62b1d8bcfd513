package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smsgate/pulse-core/internal/api/handlers"
	"github.com/smsgate/pulse-core/internal/api/middleware"
	"github.com/smsgate/pulse-core/internal/breaker"
	"github.com/smsgate/pulse-core/internal/config"
	"github.com/smsgate/pulse-core/internal/monitoring"
	"github.com/smsgate/pulse-core/internal/services"
	"github.com/smsgate/pulse-core/pkg/cache"
	"github.com/smsgate/pulse-core/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	cache      cache.Valkey
	engine     services.HealthEngine
	breaker    *breaker.Breaker
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	valkey cache.Valkey,
	engine services.HealthEngine,
	circuitBreaker *breaker.Breaker,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:  cfg,
		logger:  log,
		cache:   valkey,
		engine:  engine,
		breaker: circuitBreaker,
		router:  gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.MetricsMiddleware())

	if s.config.Monitoring.Enabled {
		monitoring.SetupPrometheusMetrics(s.router)
	}
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.cache, s.logger)
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	v1 := s.router.Group("/api/v1")

	metricsHandler := handlers.NewMetricsHandler(s.engine, s.logger)
	v1.GET("/metrics/system", metricsHandler.GetSystemMetrics)
	v1.GET("/metrics/providers/:providerId", metricsHandler.GetProviderMetrics)

	circuitHandler := handlers.NewCircuitHandler(s.breaker, s.logger)
	v1.GET("/circuit", circuitHandler.GetAll)
	v1.GET("/circuit/:providerId", circuitHandler.Get)
	v1.POST("/circuit/:providerId/open", circuitHandler.ForceOpen)
	v1.POST("/circuit/:providerId/reset", circuitHandler.Reset)

	outcomeHandler := handlers.NewOutcomeHandler(s.engine, s.logger)
	v1.POST("/outcomes", outcomeHandler.Record)

	if s.config.WebSocket.Enabled {
		ws := handlers.NewCircuitStreamHandler(s.config.WebSocket, s.logger)
		s.breaker.OnTransition(ws.Broadcast)
		v1.GET("/ws/health", ws.HandleStream)
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("pulse-core API server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down pulse-core gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the underlying Gin engine so tests can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}
