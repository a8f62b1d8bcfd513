// Package outcomelog keeps the append-only, time-ordered record of upstream
// call outcomes per provider. Entries live in a Valkey list per provider,
// newest first, trimmed to a hard cap; age-based pruning happens on read.
package outcomelog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smsgate/pulse-core/internal/models"
	"github.com/smsgate/pulse-core/pkg/cache"
	"github.com/smsgate/pulse-core/pkg/logger"
)

// Config bounds the log. Zero fields fall back to defaults.
type Config struct {
	// MaxEntriesPerProvider is the hard cap on retained outcomes.
	MaxEntriesPerProvider int
	// Retention is the maximum age of an outcome worth returning; it should
	// cover the largest configured metrics window.
	Retention time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxEntriesPerProvider <= 0 {
		c.MaxEntriesPerProvider = 10000
	}
	if c.Retention <= 0 {
		c.Retention = 24 * time.Hour
	}
	return c
}

// Log records and serves request outcomes. Reads fail open: a cache outage
// yields an empty window, never an error into metric computation.
type Log struct {
	cfg    Config
	cache  cache.Valkey
	logger logger.Logger
	now    func() time.Time // test hook
}

func New(cfg Config, valkey cache.Valkey, log logger.Logger) *Log {
	if log == nil {
		log = logger.NewNop()
	}
	return &Log{
		cfg:    cfg.withDefaults(),
		cache:  valkey,
		logger: log,
		now:    time.Now,
	}
}

// Record appends one outcome and trims the provider's list to the cap.
func (l *Log) Record(ctx context.Context, outcome models.RequestOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome for provider %s: %w", outcome.ProviderID, err)
	}

	key := outcomesKey(outcome.ProviderID)
	if err := l.cache.ListPush(ctx, key, data); err != nil {
		return fmt.Errorf("append outcome for provider %s: %w", outcome.ProviderID, err)
	}
	if err := l.cache.ListTrim(ctx, key, 0, int64(l.cfg.MaxEntriesPerProvider)-1); err != nil {
		// The list still has the entry; an oversized list self-corrects on
		// the next successful trim.
		l.logger.Warn("Failed to trim outcome log", "provider", outcome.ProviderID, "error", err)
	}
	return nil
}

// Query returns the provider's outcomes at or after since, oldest first.
// Malformed entries are skipped; backend unavailability degrades to an empty
// result so callers always get a well-formed (possibly partial) window.
func (l *Log) Query(ctx context.Context, providerID string, since time.Time) []models.RequestOutcome {
	entries, err := l.cache.ListRange(ctx, outcomesKey(providerID), 0, int64(l.cfg.MaxEntriesPerProvider)-1)
	if err != nil {
		l.logger.Warn("Outcome log unavailable, serving empty window", "provider", providerID, "error", err)
		return []models.RequestOutcome{}
	}

	cutoff := since
	if floor := l.now().Add(-l.cfg.Retention); floor.After(cutoff) {
		cutoff = floor
	}
	cutoffMs := cutoff.UnixMilli()

	// Entries are newest first; collect until we fall below the cutoff.
	newestFirst := make([]models.RequestOutcome, 0, len(entries))
	for _, raw := range entries {
		var o models.RequestOutcome
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			l.logger.Warn("Skipping malformed outcome entry", "provider", providerID, "error", err)
			continue
		}
		if o.TimestampMs < cutoffMs {
			break
		}
		newestFirst = append(newestFirst, o)
	}

	// Reverse to oldest first.
	out := make([]models.RequestOutcome, len(newestFirst))
	for i, o := range newestFirst {
		out[len(newestFirst)-1-i] = o
	}
	return out
}

func outcomesKey(providerID string) string {
	return fmt.Sprintf("outcomes:%s", providerID)
}
