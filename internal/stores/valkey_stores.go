package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smsgate/pulse-core/internal/models"
	"github.com/smsgate/pulse-core/pkg/cache"
	"github.com/smsgate/pulse-core/pkg/logger"
)

// listScanCap bounds how many cached records one read deserializes. The
// lifecycle manager trims its published windows; this is the local backstop.
const listScanCap = 20000

/* ---------------------------- activation store ---------------------------- */

type valkeyActivationStore struct {
	cache  cache.Valkey
	logger logger.Logger
}

func NewValkeyActivationStore(valkey cache.Valkey, log logger.Logger) ActivationStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &valkeyActivationStore{cache: valkey, logger: log}
}

func (s *valkeyActivationStore) QueryRange(ctx context.Context, providerID string, since time.Time) []models.ActivationRecord {
	key := fmt.Sprintf("activations:%s", providerID)
	entries, err := s.cache.ListRange(ctx, key, 0, listScanCap-1)
	if err != nil {
		s.logger.Warn("Activation store unavailable, serving empty window", "provider", providerID, "error", err)
		return []models.ActivationRecord{}
	}

	out := make([]models.ActivationRecord, 0, len(entries))
	for _, raw := range entries {
		var rec models.ActivationRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.logger.Warn("Skipping malformed activation record", "provider", providerID, "error", err)
			continue
		}
		if rec.CreatedAt.Before(since) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

/* ---------------------------- transaction store ---------------------------- */

type valkeyTransactionStore struct {
	cache  cache.Valkey
	logger logger.Logger
}

func NewValkeyTransactionStore(valkey cache.Valkey, log logger.Logger) TransactionStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &valkeyTransactionStore{cache: valkey, logger: log}
}

func (s *valkeyTransactionStore) QueryRange(ctx context.Context, since time.Time, providerNameFilter string) []models.TransactionRecord {
	entries, err := s.cache.ListRange(ctx, "transactions:recent", 0, listScanCap-1)
	if err != nil {
		s.logger.Warn("Transaction store unavailable, serving empty window", "error", err)
		return []models.TransactionRecord{}
	}

	out := make([]models.TransactionRecord, 0, len(entries))
	for _, raw := range entries {
		var rec models.TransactionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.logger.Warn("Skipping malformed transaction record", "error", err)
			continue
		}
		if rec.CreatedAt.Before(since) {
			continue
		}
		// Substring join on description; the ledger has no provider FK.
		if providerNameFilter != "" && !strings.Contains(rec.Description, providerNameFilter) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

/* ----------------------------- queue counters ----------------------------- */

type valkeyQueueDepthSource struct {
	cache  cache.Valkey
	logger logger.Logger
}

func NewValkeyQueueDepthSource(valkey cache.Valkey, log logger.Logger) QueueDepthSource {
	if log == nil {
		log = logger.NewNop()
	}
	return &valkeyQueueDepthSource{cache: valkey, logger: log}
}

func (s *valkeyQueueDepthSource) Get(ctx context.Context, queueName string) models.QueueDepth {
	fields, err := s.cache.HashGetAll(ctx, fmt.Sprintf("queue:%s", queueName))
	if err != nil {
		s.logger.Warn("Queue depth source unavailable, serving zero counters", "queue", queueName, "error", err)
		return models.QueueDepth{}
	}
	return models.QueueDepth{
		Waiting:   parseCounter(fields["waiting"]),
		Active:    parseCounter(fields["active"]),
		Failed:    parseCounter(fields["failed"]),
		Completed: parseCounter(fields["completed"]),
	}
}

func parseCounter(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

/* ---------------------------- provider registry ---------------------------- */

type valkeyProviderRegistry struct {
	cache  cache.Valkey
	logger logger.Logger
}

func NewValkeyProviderRegistry(valkey cache.Valkey, log logger.Logger) ProviderRegistry {
	if log == nil {
		log = logger.NewNop()
	}
	return &valkeyProviderRegistry{cache: valkey, logger: log}
}

func (r *valkeyProviderRegistry) ListActive(ctx context.Context) ([]models.Provider, error) {
	ids, err := r.cache.SetMembers(ctx, "providers:active")
	if err != nil {
		// Registry failure is the one non-degradable dependency: without it
		// there is no provider set to compute over.
		return nil, fmt.Errorf("provider registry unavailable: %w", err)
	}

	providers := make([]models.Provider, 0, len(ids))
	for _, id := range ids {
		data, err := r.cache.Get(ctx, fmt.Sprintf("provider:%s", id))
		if err != nil {
			r.logger.Warn("Provider entry missing, using bare registry row", "provider", id, "error", err)
			providers = append(providers, models.Provider{ID: id, Name: id})
			continue
		}
		var p models.Provider
		if err := json.Unmarshal(data, &p); err != nil {
			r.logger.Warn("Skipping malformed provider entry", "provider", id, "error", err)
			continue
		}
		providers = append(providers, p)
	}
	return providers, nil
}
