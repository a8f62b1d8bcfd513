// Package breaker owns the per-provider circuit state machine. It is the only
// component that mutates CircuitHealth; everything else reads snapshots.
package breaker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/smsgate/pulse-core/internal/models"
	"github.com/smsgate/pulse-core/internal/monitoring"
	"github.com/smsgate/pulse-core/pkg/cache"
	"github.com/smsgate/pulse-core/pkg/logger"
)

// Transition describes one circuit state change, delivered to the optional
// transition hook (websocket stream, alerting).
type Transition struct {
	ProviderID string              `json:"providerId"`
	From       models.CircuitState `json:"from"`
	To         models.CircuitState `json:"to"`
	At         time.Time           `json:"at"`
}

// Config tunes the state machine. Zero fields fall back to defaults.
type Config struct {
	// FailureThreshold opens the circuit after this many consecutive failures.
	FailureThreshold int
	// Cooldown is how long an open circuit waits before probing (half-open).
	Cooldown time.Duration
	// LatencySampleSize bounds the per-provider latency ring.
	LatencySampleSize int
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 60 * time.Second
	}
	if c.LatencySampleSize <= 0 {
		c.LatencySampleSize = 100
	}
	return c
}

// Breaker tracks circuit health for every provider that has reported at
// least one outcome. Writes for the same provider serialize on a per-provider
// mutex; cross-provider operations need no coordination.
type Breaker struct {
	cfg    Config
	logger logger.Logger
	cache  cache.Valkey // optional; snapshots are mirrored best-effort

	onTransition func(Transition)

	mu        sync.RWMutex
	providers map[string]*providerCircuit

	now func() time.Time // test hook
}

type providerCircuit struct {
	mu                  sync.Mutex
	state               models.CircuitState
	consecutiveFailures int
	lastTransitionAt    time.Time
	latency             *latencyRing
}

func New(cfg Config, log logger.Logger, valkey cache.Valkey) *Breaker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Breaker{
		cfg:       cfg.withDefaults(),
		logger:    log,
		cache:     valkey,
		providers: make(map[string]*providerCircuit),
		now:       time.Now,
	}
}

// OnTransition registers a hook called after every state change. Must be set
// before the breaker starts receiving outcomes.
func (b *Breaker) OnTransition(fn func(Transition)) {
	b.onTransition = fn
}

// RecordOutcome applies one upstream call result to the provider's circuit.
// This is the engine's only mutating entry point for circuit health.
func (b *Breaker) RecordOutcome(ctx context.Context, providerID string, success bool, latencyMs int64) {
	pc := b.circuit(ctx, providerID, true)

	pc.mu.Lock()

	b.maybeCoolDown(providerID, pc)
	pc.latency.Add(latencyMs)

	if success {
		switch pc.state {
		case models.CircuitHalfOpen:
			b.transition(providerID, pc, models.CircuitClosed)
			pc.consecutiveFailures = 0
		case models.CircuitClosed:
			pc.consecutiveFailures = 0
		}
		// A success while Open carries no signal: traffic should have been
		// short-circuited upstream, and recovery is probed via half-open.
	} else {
		pc.consecutiveFailures++
		switch pc.state {
		case models.CircuitClosed:
			if pc.consecutiveFailures >= b.cfg.FailureThreshold {
				b.transition(providerID, pc, models.CircuitOpen)
			}
		case models.CircuitHalfOpen:
			b.transition(providerID, pc, models.CircuitOpen)
		}
	}

	snapshot := b.snapshotLocked(providerID, pc)
	pc.mu.Unlock()

	monitoring.RecordOutcomeIngested(providerID, success)
	b.mirror(ctx, snapshot)
}

// Health returns an immutable snapshot of the provider's circuit. Unknown
// providers report Closed with zero failures; health is a monitoring signal
// and must never itself become unavailable. Reading health while Open also
// advances the cooldown transition to HalfOpen when due.
func (b *Breaker) Health(ctx context.Context, providerID string) models.CircuitHealth {
	pc := b.circuit(ctx, providerID, false)
	if pc == nil {
		return models.CircuitHealth{
			ProviderID:       providerID,
			State:            models.CircuitClosed,
			LatencySamplesMs: []int64{},
		}
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	b.maybeCoolDown(providerID, pc)
	return b.snapshotLocked(providerID, pc)
}

// AllHealth returns snapshots for every provider the breaker has seen.
func (b *Breaker) AllHealth(ctx context.Context) []models.CircuitHealth {
	b.mu.RLock()
	ids := make([]string, 0, len(b.providers))
	for id := range b.providers {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	out := make([]models.CircuitHealth, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.Health(ctx, id))
	}
	return out
}

// ForceOpen is a manual operator override: the circuit opens regardless of
// the failure count and stays open until the cooldown elapses or Reset.
func (b *Breaker) ForceOpen(ctx context.Context, providerID string) models.CircuitHealth {
	pc := b.circuit(ctx, providerID, true)
	pc.mu.Lock()
	if pc.state != models.CircuitOpen {
		b.transition(providerID, pc, models.CircuitOpen)
	} else {
		pc.lastTransitionAt = b.now()
	}
	snapshot := b.snapshotLocked(providerID, pc)
	pc.mu.Unlock()
	b.mirror(ctx, snapshot)
	return snapshot
}

// Reset is a manual operator override back to a clean closed circuit.
func (b *Breaker) Reset(ctx context.Context, providerID string) models.CircuitHealth {
	pc := b.circuit(ctx, providerID, true)
	pc.mu.Lock()
	if pc.state != models.CircuitClosed {
		b.transition(providerID, pc, models.CircuitClosed)
	}
	pc.consecutiveFailures = 0
	snapshot := b.snapshotLocked(providerID, pc)
	pc.mu.Unlock()
	b.mirror(ctx, snapshot)
	return snapshot
}

/* ------------------------------ internals ------------------------------ */

// circuit returns the provider's circuit, hydrating from the mirrored Valkey
// snapshot on first sight so restarts keep last-known state. When create is
// false and nothing is known, it returns nil.
func (b *Breaker) circuit(ctx context.Context, providerID string, create bool) *providerCircuit {
	b.mu.RLock()
	pc, ok := b.providers[providerID]
	b.mu.RUnlock()
	if ok {
		return pc
	}

	hydrated := b.hydrate(ctx, providerID)
	if hydrated == nil && !create {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.providers[providerID]; ok {
		return existing
	}
	if hydrated == nil {
		hydrated = &providerCircuit{
			state:   models.CircuitClosed,
			latency: newLatencyRing(b.cfg.LatencySampleSize),
		}
	}
	b.providers[providerID] = hydrated
	return hydrated
}

func (b *Breaker) hydrate(ctx context.Context, providerID string) *providerCircuit {
	if b.cache == nil {
		return nil
	}
	data, err := b.cache.Get(ctx, circuitKey(providerID))
	if err != nil {
		return nil
	}
	var h models.CircuitHealth
	if err := json.Unmarshal(data, &h); err != nil {
		b.logger.Warn("Discarding malformed circuit snapshot", "provider", providerID, "error", err)
		return nil
	}
	pc := &providerCircuit{
		state:               h.State,
		consecutiveFailures: h.ConsecutiveFailures,
		lastTransitionAt:    h.LastTransitionAt,
		latency:             newLatencyRing(b.cfg.LatencySampleSize),
	}
	if pc.state == "" {
		pc.state = models.CircuitClosed
	}
	pc.latency.seed(h.LatencySamplesMs)
	return pc
}

// maybeCoolDown advances Open to HalfOpen once the cooldown has elapsed.
// Caller holds pc.mu.
func (b *Breaker) maybeCoolDown(providerID string, pc *providerCircuit) {
	if pc.state != models.CircuitOpen {
		return
	}
	if b.now().Sub(pc.lastTransitionAt) >= b.cfg.Cooldown {
		b.transition(providerID, pc, models.CircuitHalfOpen)
	}
}

// transition moves the circuit to a new state. Caller holds pc.mu.
func (b *Breaker) transition(providerID string, pc *providerCircuit, to models.CircuitState) {
	from := pc.state
	pc.state = to
	pc.lastTransitionAt = b.now()

	b.logger.Info("Circuit transition",
		"provider", providerID,
		"from", string(from),
		"to", string(to),
		"consecutiveFailures", pc.consecutiveFailures,
	)
	monitoring.RecordCircuitTransition(providerID, string(from), string(to))

	if b.onTransition != nil {
		b.onTransition(Transition{
			ProviderID: providerID,
			From:       from,
			To:         to,
			At:         pc.lastTransitionAt,
		})
	}
}

// snapshotLocked copies the circuit into an immutable health record. Caller
// holds pc.mu.
func (b *Breaker) snapshotLocked(providerID string, pc *providerCircuit) models.CircuitHealth {
	return models.CircuitHealth{
		ProviderID:          providerID,
		State:               pc.state,
		ConsecutiveFailures: pc.consecutiveFailures,
		LastTransitionAt:    pc.lastTransitionAt,
		LatencySamplesMs:    pc.latency.Snapshot(),
	}
}

// mirror persists the snapshot to Valkey so sibling replicas and restarts see
// last-known health. Best-effort: a cache outage never fails the outcome path.
func (b *Breaker) mirror(ctx context.Context, h models.CircuitHealth) {
	if b.cache == nil {
		return
	}
	mctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := b.cache.Set(mctx, circuitKey(h.ProviderID), h, 24*time.Hour); err != nil {
		b.logger.Warn("Failed to mirror circuit snapshot", "provider", h.ProviderID, "error", err)
	}
}

func circuitKey(providerID string) string {
	return fmt.Sprintf("circuit:%s", providerID)
}
