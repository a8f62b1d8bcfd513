// Package monitoring provides Prometheus self-metrics for PULSE-CORE.
//
// Usage:
//
//  1. Setup metrics in your main function:
//     router := gin.New()
//     monitoring.SetupPrometheusMetrics(router)
//
//  2. Add the HTTP metrics middleware from internal/api/middleware.
//
//  3. Record custom metrics where events happen:
//
//	monitoring.RecordCacheOperation("get", "hit")
//	monitoring.RecordCircuitTransition("provider-1", "closed", "open")
//	monitoring.RecordOutcomeIngested("provider-1", true)
//	monitoring.ObserveComputePass("system", time.Since(start), true)
package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_core_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_core_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Valkey cache metrics
	cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_core_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"}, // result: hit, miss, success, error
	)

	// Outcome ingestion metrics
	outcomesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_core_outcomes_ingested_total",
			Help: "Total number of request outcomes recorded",
		},
		[]string{"provider", "success"},
	)

	// Circuit breaker transitions
	circuitTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_core_circuit_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"provider", "from", "to"},
	)

	circuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulse_core_circuit_state",
			Help: "Current circuit state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	// Metrics computation metrics
	computePassDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_core_compute_pass_duration_seconds",
			Help:    "Metrics computation pass duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"scope"}, // system, provider
	)

	computePassTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_core_compute_passes_total",
			Help: "Total number of metrics computation passes",
		},
		[]string{"scope", "status"},
	)

	// Active WebSocket health-stream connections
	activeWebSocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_core_websocket_connections_active",
			Help: "Number of active WebSocket health-stream connections",
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_core_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"}, // type: http, cache, store, engine
	)
)

// SetupPrometheusMetrics registers PULSE-CORE metrics and exposes /metrics.
func SetupPrometheusMetrics(router gin.IRoutes) {
	// Register build info (ignore if already registered)
	_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pulse_core_build_info",
		Help: "Build information for PULSE-CORE",
		ConstLabels: prometheus.Labels{
			"version":   "v1.4.0",
			"component": "pulse-core",
		},
	}, func() float64 { return 1 }))

	// Register metrics (ignore if already registered; tests re-register)
	_ = prometheus.Register(HTTPRequestsTotal)
	_ = prometheus.Register(HTTPRequestDuration)
	_ = prometheus.Register(cacheOperationsTotal)
	_ = prometheus.Register(outcomesIngestedTotal)
	_ = prometheus.Register(circuitTransitionsTotal)
	_ = prometheus.Register(circuitState)
	_ = prometheus.Register(computePassDuration)
	_ = prometheus.Register(computePassTotal)
	_ = prometheus.Register(activeWebSocketConnections)
	_ = prometheus.Register(errorsTotal)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RecordCacheOperation records cache operation metrics
func RecordCacheOperation(operation, result string) {
	cacheOperationsTotal.WithLabelValues(operation, result).Inc()
	if result == "error" {
		errorsTotal.WithLabelValues("cache", operation).Inc()
	}
}

// RecordOutcomeIngested records one ingested request outcome
func RecordOutcomeIngested(provider string, success bool) {
	label := "true"
	if !success {
		label = "false"
	}
	outcomesIngestedTotal.WithLabelValues(provider, label).Inc()
}

// RecordCircuitTransition records a circuit breaker state change
func RecordCircuitTransition(provider, from, to string) {
	circuitTransitionsTotal.WithLabelValues(provider, from, to).Inc()
	circuitState.WithLabelValues(provider).Set(circuitStateValue(to))
}

// ObserveComputePass records a metrics computation pass
func ObserveComputePass(scope string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
		errorsTotal.WithLabelValues("engine", scope).Inc()
	}
	computePassTotal.WithLabelValues(scope, status).Inc()
	computePassDuration.WithLabelValues(scope).Observe(duration.Seconds())
}

// WebSocketConnected / WebSocketDisconnected track the health-stream gauge.
func WebSocketConnected()    { activeWebSocketConnections.Inc() }
func WebSocketDisconnected() { activeWebSocketConnections.Dec() }

// RecordError records a component error
func RecordError(errType, component string) {
	errorsTotal.WithLabelValues(errType, component).Inc()
}

func circuitStateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half-open":
		return 1
	default:
		return 0
	}
}
