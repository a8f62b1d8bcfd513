package cache

import (
	"context"
	"time"
)

// Valkey is the narrow keyspace surface the engine needs. All ephemeral
// operational state (outcome logs, circuit snapshots, queue counters,
// registry entries) lives behind it, partitioned by provider ID.
type Valkey interface {
	// Plain key/value
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// List operations backing the per-provider outcome log ring
	ListPush(ctx context.Context, key string, values ...interface{}) error
	ListTrim(ctx context.Context, key string, start, stop int64) error
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Hash operations backing queue depth counters
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	// Set operations backing the provider index
	SetAdd(ctx context.Context, key string, members ...interface{}) error
	SetMembers(ctx context.Context, key string) ([]string, error)

	HealthCheck(ctx context.Context) error
}
