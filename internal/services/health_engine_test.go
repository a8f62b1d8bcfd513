package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smsgate/pulse-core/internal/breaker"
	"github.com/smsgate/pulse-core/internal/config"
	"github.com/smsgate/pulse-core/internal/metrics"
	"github.com/smsgate/pulse-core/internal/models"
	"github.com/smsgate/pulse-core/internal/outcomelog"
	"github.com/smsgate/pulse-core/pkg/cache"
	"github.com/smsgate/pulse-core/pkg/logger"
)

type fakeActivations struct {
	byProvider map[string][]models.ActivationRecord
}

func (f *fakeActivations) QueryRange(ctx context.Context, providerID string, since time.Time) []models.ActivationRecord {
	return f.byProvider[providerID]
}

type fakeTransactions struct {
	byFilter map[string][]models.TransactionRecord
}

func (f *fakeTransactions) QueryRange(ctx context.Context, since time.Time, filter string) []models.TransactionRecord {
	return f.byFilter[filter]
}

type fakeQueues struct{ depths map[string]models.QueueDepth }

func (f *fakeQueues) Get(ctx context.Context, queueName string) models.QueueDepth {
	return f.depths[queueName]
}

type fakeRegistry struct {
	providers []models.Provider
	err       error
	calls     int
}

func (f *fakeRegistry) ListActive(ctx context.Context) ([]models.Provider, error) {
	f.calls++
	return f.providers, f.err
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		DefaultWindowMinutes: 60,
		MaxWindowMinutes:     1440,
		ProviderConcurrency:  4,
		FetchTimeoutMs:       1500,
	}
}

func testSLA() config.SLAConfig {
	return config.SLAConfig{
		SuccessRatePct:        95.0,
		P95LatencyMs:          2000.0,
		P99LatencyMs:          5000.0,
		CompletionTimeSeconds: 120.0,
		CostFallbackRatio:     0.70,
		DegradationGapPoints:  20.0,
		Score:                 config.Ladder{Excellent: 90, Good: 75, Warning: 50},
		FailureRate:           config.Ladder{Excellent: 1, Good: 5, Warning: 10},
		Ratio:                 config.Ladder{Excellent: 10, Good: 25, Warning: 50},
		Saturation:            config.Ladder{Excellent: 20, Good: 50, Warning: 80},
		Margin:                config.Ladder{Excellent: 30, Good: 20, Warning: 10},
	}
}

func newTestEngine(t *testing.T, cfg config.EngineConfig, registry *fakeRegistry, valkey cache.Valkey) *HealthEngineImpl {
	t.Helper()
	log := logger.NewNop()
	return NewHealthEngine(cfg, metrics.NewCalculator(testSLA()), HealthEngineDeps{
		Breaker:      breaker.New(breaker.Config{}, log, nil),
		Outcomes:     outcomelog.New(outcomelog.Config{}, cache.NewNoopValkey(log), log),
		Activations:  &fakeActivations{byProvider: map[string][]models.ActivationRecord{}},
		Transactions: &fakeTransactions{byFilter: map[string][]models.TransactionRecord{}},
		Queues:       &fakeQueues{depths: map[string]models.QueueDepth{}},
		Registry:     registry,
		Cache:        valkey,
		Logger:       log,
	})
}

func TestComputeSystemMetricsFansOutAllProviders(t *testing.T) {
	registry := &fakeRegistry{providers: []models.Provider{
		{ID: "acme", Name: "AcmeSMS"},
		{ID: "zen", Name: "ZenSMS"},
	}}
	engine := newTestEngine(t, testEngineConfig(), registry, nil)

	for i := 0; i < 10; i++ {
		engine.RecordOutcome(context.Background(), models.RequestOutcome{ProviderID: "acme", Success: true, LatencyMs: 500})
	}
	for i := 0; i < 6; i++ {
		engine.RecordOutcome(context.Background(), models.RequestOutcome{ProviderID: "zen", Success: false, LatencyMs: 900})
	}

	sys, err := engine.ComputeSystemMetrics(context.Background(), 60)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(sys.Providers) != 2 {
		t.Fatalf("expected 2 provider metric sets, got %d", len(sys.Providers))
	}
	if sys.Providers[0].ProviderID != "acme" || sys.Providers[1].ProviderID != "zen" {
		t.Fatalf("registry order not preserved: %s, %s", sys.Providers[0].ProviderID, sys.Providers[1].ProviderID)
	}
	if sys.Providers[0].StrictFailureRate.Value != 0 {
		t.Errorf("acme strictFailureRate = %v, want 0", sys.Providers[0].StrictFailureRate.Value)
	}
	if sys.Providers[1].StrictFailureRate.Value != 100 {
		t.Errorf("zen strictFailureRate = %v, want 100", sys.Providers[1].StrictFailureRate.Value)
	}
	// Six consecutive failures tripped zen's breaker during ingestion.
	if got := engine.CircuitHealth(context.Background(), "zen").State; got != models.CircuitOpen {
		t.Errorf("zen circuit = %s, want open", got)
	}
	if sys.TimeWindowMinutes != 60 {
		t.Errorf("window = %d, want 60", sys.TimeWindowMinutes)
	}
}

func TestComputeSystemMetricsRegistryFailureIsTopLevel(t *testing.T) {
	registry := &fakeRegistry{err: errors.New("registry down")}
	engine := newTestEngine(t, testEngineConfig(), registry, nil)

	if _, err := engine.ComputeSystemMetrics(context.Background(), 60); err == nil {
		t.Fatal("expected a top-level error when the registry is unavailable")
	}
}

func TestComputeSystemMetricsClampsWindow(t *testing.T) {
	registry := &fakeRegistry{providers: []models.Provider{{ID: "acme", Name: "AcmeSMS"}}}
	engine := newTestEngine(t, testEngineConfig(), registry, nil)

	sys, err := engine.ComputeSystemMetrics(context.Background(), 0)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if sys.TimeWindowMinutes != 60 {
		t.Errorf("zero window should fall back to default 60, got %d", sys.TimeWindowMinutes)
	}

	sys, err = engine.ComputeSystemMetrics(context.Background(), 100000)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if sys.TimeWindowMinutes != 1440 {
		t.Errorf("oversized window should clamp to 1440, got %d", sys.TimeWindowMinutes)
	}
}

func TestComputeSystemMetricsServesCachedResult(t *testing.T) {
	registry := &fakeRegistry{providers: []models.Provider{{ID: "acme", Name: "AcmeSMS"}}}
	cfg := testEngineConfig()
	cfg.ResultCacheTTLSeconds = 30
	engine := newTestEngine(t, cfg, registry, cache.NewNoopValkey(logger.NewNop()))

	if _, err := engine.ComputeSystemMetrics(context.Background(), 60); err != nil {
		t.Fatalf("first compute: %v", err)
	}
	if _, err := engine.ComputeSystemMetrics(context.Background(), 60); err != nil {
		t.Fatalf("second compute: %v", err)
	}
	if registry.calls != 1 {
		t.Errorf("second pass should come from cache; registry called %d times", registry.calls)
	}

	// A different window misses the cache.
	if _, err := engine.ComputeSystemMetrics(context.Background(), 120); err != nil {
		t.Fatalf("third compute: %v", err)
	}
	if registry.calls != 2 {
		t.Errorf("different window must recompute; registry called %d times", registry.calls)
	}
}

func TestComputeProviderMetrics(t *testing.T) {
	registry := &fakeRegistry{providers: []models.Provider{{ID: "acme", Name: "AcmeSMS"}}}
	engine := newTestEngine(t, testEngineConfig(), registry, nil)

	engine.RecordOutcome(context.Background(), models.RequestOutcome{ProviderID: "acme", Success: true, LatencyMs: 700})

	m, err := engine.ComputeProviderMetrics(context.Background(), "acme", 60)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if m.ProviderName != "AcmeSMS" {
		t.Errorf("providerName = %s, want AcmeSMS", m.ProviderName)
	}

	if _, err := engine.ComputeProviderMetrics(context.Background(), "ghost", 60); err == nil {
		t.Fatal("unknown provider must be an error for the single-provider endpoint")
	}
}

func TestRecordOutcomeFeedsBreakerAndLog(t *testing.T) {
	registry := &fakeRegistry{providers: []models.Provider{{ID: "acme", Name: "AcmeSMS"}}}
	engine := newTestEngine(t, testEngineConfig(), registry, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		engine.RecordOutcome(ctx, models.RequestOutcome{ProviderID: "acme", Success: false, LatencyMs: 100})
	}
	if got := engine.CircuitHealth(ctx, "acme").State; got != models.CircuitOpen {
		t.Fatalf("circuit = %s, want open after 5 consecutive failures", got)
	}
	outcomes := engine.outcomes.Query(ctx, "acme", time.Now().Add(-time.Minute))
	if len(outcomes) != 5 {
		t.Fatalf("outcome log has %d entries, want 5", len(outcomes))
	}
	// Timestamps are stamped on ingest when the caller leaves them zero.
	if outcomes[0].TimestampMs == 0 {
		t.Error("outcome timestamp was not stamped")
	}
}
