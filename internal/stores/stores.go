// Package stores holds the read-only surfaces this engine consumes from its
// external collaborators: the activation lifecycle manager, the wallet
// ledger, the job broker, and the provider registry. All of them publish
// windows into the shared Valkey keyspace; this engine never writes to them.
//
// Every reader except the registry fails open: timeouts and backend outages
// degrade to an empty result so one slow dependency cannot abort a metrics
// pass. The registry is the exception — without it there is nothing to
// compute, so its failure surfaces as a top-level error.
package stores

import (
	"context"
	"time"

	"github.com/smsgate/pulse-core/internal/models"
)

// ActivationStore serves time-windowed activation records per provider.
type ActivationStore interface {
	// QueryRange returns activations created at or after since, including
	// terminal and non-terminal states. An empty result is valid.
	QueryRange(ctx context.Context, providerID string, since time.Time) []models.ActivationRecord
}

// TransactionStore serves time-windowed wallet transactions.
type TransactionStore interface {
	// QueryRange returns transactions created at or after since whose
	// description contains providerNameFilter. The substring join is a known
	// imprecision carried from the ledger schema, which has no structured
	// provider reference.
	QueryRange(ctx context.Context, since time.Time, providerNameFilter string) []models.TransactionRecord
}

// QueueDepthSource serves counters from the external job broker.
type QueueDepthSource interface {
	Get(ctx context.Context, queueName string) models.QueueDepth
}

// ProviderRegistry lists the providers the engine computes metrics for.
type ProviderRegistry interface {
	ListActive(ctx context.Context) ([]models.Provider, error)
}
