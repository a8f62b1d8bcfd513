package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smsgate/pulse-core/internal/breaker"
	"github.com/smsgate/pulse-core/internal/config"
	"github.com/smsgate/pulse-core/internal/models"
	"github.com/smsgate/pulse-core/pkg/logger"
)

type stubEngine struct{}

func (stubEngine) ComputeSystemMetrics(ctx context.Context, windowMinutes int) (*models.SystemMetrics, error) {
	return &models.SystemMetrics{TimeWindowMinutes: windowMinutes}, nil
}

func (stubEngine) ComputeProviderMetrics(ctx context.Context, providerID string, windowMinutes int) (*models.ProviderMetrics, error) {
	return &models.ProviderMetrics{ProviderID: providerID}, nil
}

func (stubEngine) RecordOutcome(ctx context.Context, outcome models.RequestOutcome) {}

func (stubEngine) CircuitHealth(ctx context.Context, providerID string) models.CircuitHealth {
	return models.CircuitHealth{ProviderID: providerID, State: models.CircuitClosed}
}

func (stubEngine) AllCircuitHealth(ctx context.Context) []models.CircuitHealth { return nil }

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{Environment: "test", Port: 0}
	b := breaker.New(breaker.Config{}, logger.NewNop(), nil)
	return NewServer(cfg, logger.NewNop(), nil, stubEngine{}, b)
}

func TestServerRoutes(t *testing.T) {
	s := testServer(t)

	cases := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/api/v1/metrics/system", http.StatusOK},
		{http.MethodGet, "/api/v1/metrics/providers/acme", http.StatusOK},
		{http.MethodGet, "/api/v1/circuit", http.StatusOK},
		{http.MethodGet, "/api/v1/circuit/acme", http.StatusOK},
		{http.MethodPost, "/api/v1/circuit/acme/open", http.StatusOK},
		{http.MethodPost, "/api/v1/circuit/acme/reset", http.StatusOK},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(c.method, c.path, nil))
		assert.Equalf(t, c.status, w.Code, "%s %s", c.method, c.path)
	}
}

func TestServerStampsRequestID(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	// A caller-supplied ID is preserved.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestHealthPayloadShape(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "pulse-core", resp["service"])
}
