package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/smsgate/pulse-core/internal/breaker"
	"github.com/smsgate/pulse-core/internal/config"
	"github.com/smsgate/pulse-core/internal/metrics"
	"github.com/smsgate/pulse-core/internal/models"
	"github.com/smsgate/pulse-core/internal/monitoring"
	"github.com/smsgate/pulse-core/internal/outcomelog"
	"github.com/smsgate/pulse-core/internal/stores"
	"github.com/smsgate/pulse-core/pkg/cache"
	"github.com/smsgate/pulse-core/pkg/logger"
)

// HealthEngine is the engine's surface to the HTTP layer: metric computation
// passes, circuit health snapshots, and the single mutating path for request
// outcomes.
type HealthEngine interface {
	// ComputeSystemMetrics derives per-provider and platform-wide metrics
	// over the given window. The only top-level error is registry failure;
	// every other backend problem degrades individual metrics.
	ComputeSystemMetrics(ctx context.Context, windowMinutes int) (*models.SystemMetrics, error)

	// ComputeProviderMetrics derives the metric set for one provider.
	ComputeProviderMetrics(ctx context.Context, providerID string, windowMinutes int) (*models.ProviderMetrics, error)

	// RecordOutcome ingests one upstream call result.
	RecordOutcome(ctx context.Context, outcome models.RequestOutcome)

	// CircuitHealth returns the breaker snapshot for one provider.
	CircuitHealth(ctx context.Context, providerID string) models.CircuitHealth

	// AllCircuitHealth returns every known provider circuit.
	AllCircuitHealth(ctx context.Context) []models.CircuitHealth
}

// HealthEngineImpl wires the breaker, outcome log, external store readers,
// and the calculator into on-demand computation passes.
type HealthEngineImpl struct {
	cfg        config.EngineConfig
	calculator *metrics.Calculator
	breaker    *breaker.Breaker
	outcomes   *outcomelog.Log

	activations  stores.ActivationStore
	transactions stores.TransactionStore
	queues       stores.QueueDepthSource
	registry     stores.ProviderRegistry

	cache  cache.Valkey
	logger logger.Logger
	now    func() time.Time // test hook
}

type HealthEngineDeps struct {
	Breaker      *breaker.Breaker
	Outcomes     *outcomelog.Log
	Activations  stores.ActivationStore
	Transactions stores.TransactionStore
	Queues       stores.QueueDepthSource
	Registry     stores.ProviderRegistry
	Cache        cache.Valkey
	Logger       logger.Logger
}

func NewHealthEngine(cfg config.EngineConfig, calc *metrics.Calculator, deps HealthEngineDeps) *HealthEngineImpl {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	return &HealthEngineImpl{
		cfg:          cfg,
		calculator:   calc,
		breaker:      deps.Breaker,
		outcomes:     deps.Outcomes,
		activations:  deps.Activations,
		transactions: deps.Transactions,
		queues:       deps.Queues,
		registry:     deps.Registry,
		cache:        deps.Cache,
		logger:       deps.Logger,
		now:          time.Now,
	}
}

// RecordOutcome feeds the breaker first so circuit transitions never lag the
// log, then appends to the outcome log.
func (e *HealthEngineImpl) RecordOutcome(ctx context.Context, outcome models.RequestOutcome) {
	if outcome.TimestampMs == 0 {
		outcome.TimestampMs = e.now().UnixMilli()
	}
	e.breaker.RecordOutcome(ctx, outcome.ProviderID, outcome.Success, outcome.LatencyMs)
	if err := e.outcomes.Record(ctx, outcome); err != nil {
		e.logger.Warn("Outcome not persisted to log", "provider", outcome.ProviderID, "error", err)
	}
}

func (e *HealthEngineImpl) CircuitHealth(ctx context.Context, providerID string) models.CircuitHealth {
	return e.breaker.Health(ctx, providerID)
}

func (e *HealthEngineImpl) AllCircuitHealth(ctx context.Context) []models.CircuitHealth {
	return e.breaker.AllHealth(ctx)
}

func (e *HealthEngineImpl) ComputeSystemMetrics(ctx context.Context, windowMinutes int) (*models.SystemMetrics, error) {
	start := e.now()
	window := e.clampWindow(windowMinutes)

	if cached := e.cachedResult(ctx, window); cached != nil {
		return cached, nil
	}

	providers, err := e.registry.ListActive(ctx)
	if err != nil {
		monitoring.ObserveComputePass("system", e.now().Sub(start), false)
		return nil, fmt.Errorf("provider registry unavailable: %w", err)
	}

	snaps := e.fetchSnapshots(ctx, providers, window)
	perProvider := make([]models.ProviderMetrics, len(snaps))
	for i, snap := range snaps {
		perProvider[i] = e.calculator.Compute(snap)
	}

	sys := metrics.Aggregate(start, window, perProvider, snaps)
	monitoring.ObserveComputePass("system", e.now().Sub(start), true)
	e.storeResult(ctx, window, &sys)

	e.logger.Info("Metrics pass complete",
		"providers", len(providers),
		"window_minutes", window,
		"duration_ms", e.now().Sub(start).Milliseconds())
	return &sys, nil
}

func (e *HealthEngineImpl) ComputeProviderMetrics(ctx context.Context, providerID string, windowMinutes int) (*models.ProviderMetrics, error) {
	start := e.now()
	window := e.clampWindow(windowMinutes)

	providers, err := e.registry.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("provider registry unavailable: %w", err)
	}
	var provider *models.Provider
	for i := range providers {
		if providers[i].ID == providerID {
			provider = &providers[i]
			break
		}
	}
	if provider == nil {
		return nil, fmt.Errorf("unknown provider %q", providerID)
	}

	snap := e.fetchSnapshot(ctx, *provider, start, window)
	m := e.calculator.Compute(snap)
	monitoring.ObserveComputePass("provider", e.now().Sub(start), true)
	return &m, nil
}

func (e *HealthEngineImpl) clampWindow(minutes int) int {
	if minutes <= 0 {
		minutes = e.cfg.DefaultWindowMinutes
	}
	if e.cfg.MaxWindowMinutes > 0 && minutes > e.cfg.MaxWindowMinutes {
		minutes = e.cfg.MaxWindowMinutes
	}
	return minutes
}

// fetchSnapshots fans out across providers, bounded by ProviderConcurrency.
func (e *HealthEngineImpl) fetchSnapshots(ctx context.Context, providers []models.Provider, window int) []metrics.Snapshot {
	now := e.now()
	snaps := make([]metrics.Snapshot, len(providers))

	limit := e.cfg.ProviderConcurrency
	if limit <= 0 {
		limit = 8
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, p models.Provider) {
			defer wg.Done()
			defer func() { <-sem }()
			snaps[i] = e.fetchSnapshot(ctx, p, now, window)
		}(i, p)
	}
	wg.Wait()
	return snaps
}

// fetchSnapshot runs the four external reads for one provider in parallel,
// each under its own timeout. A slow backend degrades that read to empty;
// the pass never blocks on one dependency.
func (e *HealthEngineImpl) fetchSnapshot(ctx context.Context, p models.Provider, now time.Time, window int) metrics.Snapshot {
	since := now.Add(-time.Duration(window) * time.Minute)
	snap := metrics.Snapshot{
		Provider:      p,
		Now:           now,
		WindowMinutes: window,
	}

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		fctx, cancel := e.fetchContext(ctx)
		defer cancel()
		snap.Outcomes = e.outcomes.Query(fctx, p.ID, since)
	}()
	go func() {
		defer wg.Done()
		fctx, cancel := e.fetchContext(ctx)
		defer cancel()
		snap.Activations = e.activations.QueryRange(fctx, p.ID, since)
	}()
	go func() {
		defer wg.Done()
		fctx, cancel := e.fetchContext(ctx)
		defer cancel()
		snap.Transactions = e.transactions.QueryRange(fctx, since, p.Name)
	}()
	go func() {
		defer wg.Done()
		fctx, cancel := e.fetchContext(ctx)
		defer cancel()
		snap.Queue = e.queues.Get(fctx, providerQueueName(p.ID))
	}()
	wg.Wait()

	snap.Circuit = e.breaker.Health(ctx, p.ID)
	return snap
}

func (e *HealthEngineImpl) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(e.cfg.FetchTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return context.WithTimeout(ctx, timeout)
}

// providerQueueName maps a provider to its job broker queue.
func providerQueueName(providerID string) string {
	return providerID + "-activations"
}

func (e *HealthEngineImpl) cachedResult(ctx context.Context, window int) *models.SystemMetrics {
	if e.cache == nil || e.cfg.ResultCacheTTLSeconds <= 0 {
		return nil
	}
	raw, err := e.cache.Get(ctx, resultCacheKey(window))
	if err != nil {
		return nil
	}
	var sys models.SystemMetrics
	if err := json.Unmarshal(raw, &sys); err != nil {
		return nil
	}
	return &sys
}

func (e *HealthEngineImpl) storeResult(ctx context.Context, window int, sys *models.SystemMetrics) {
	if e.cache == nil || e.cfg.ResultCacheTTLSeconds <= 0 {
		return
	}
	ttl := time.Duration(e.cfg.ResultCacheTTLSeconds) * time.Second
	if err := e.cache.Set(ctx, resultCacheKey(window), sys, ttl); err != nil {
		e.logger.Warn("Metrics result not cached", "error", err)
	}
}

func resultCacheKey(window int) string {
	return fmt.Sprintf("metrics:system:%d", window)
}
