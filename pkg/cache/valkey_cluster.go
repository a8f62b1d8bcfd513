package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/smsgate/pulse-core/internal/monitoring"
	"github.com/smsgate/pulse-core/pkg/logger"
)

// valkeyClusterImpl implements Valkey against a Valkey/Redis cluster.
//
// Key layout note: all engine keys embed the provider ID
// (outcomes:{providerId}, circuit:{providerId}, ...) so related state hashes
// to a stable slot per provider.
type valkeyClusterImpl struct {
	client *redis.ClusterClient
	logger logger.Logger
	ttl    time.Duration
}

func NewValkeyCluster(nodes []string, password string, defaultTTL time.Duration) (Valkey, error) {
	client := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        nodes,
		Password:     password,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey cluster: %w", err)
	}

	return &valkeyClusterImpl{
		client: client,
		logger: logger.New("info"),
		ttl:    defaultTTL,
	}, nil
}

func (v *valkeyClusterImpl) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := v.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		monitoring.RecordCacheOperation("get", "miss")
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if err != nil {
		monitoring.RecordCacheOperation("get", "error")
		return nil, err
	}
	monitoring.RecordCacheOperation("get", "hit")
	return b, nil
}

func (v *valkeyClusterImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encodeValue(key, value)
	if err != nil {
		monitoring.RecordCacheOperation("set", "error")
		return err
	}
	if ttl <= 0 {
		ttl = v.ttl
	}
	if err := v.client.Set(ctx, key, data, ttl).Err(); err != nil {
		monitoring.RecordCacheOperation("set", "error")
		return err
	}
	monitoring.RecordCacheOperation("set", "success")
	return nil
}

func (v *valkeyClusterImpl) Delete(ctx context.Context, key string) error {
	if err := v.client.Del(ctx, key).Err(); err != nil {
		monitoring.RecordCacheOperation("delete", "error")
		return err
	}
	monitoring.RecordCacheOperation("delete", "success")
	return nil
}

func (v *valkeyClusterImpl) ListPush(ctx context.Context, key string, values ...interface{}) error {
	if err := v.client.LPush(ctx, key, values...).Err(); err != nil {
		monitoring.RecordCacheOperation("list_push", "error")
		return err
	}
	monitoring.RecordCacheOperation("list_push", "success")
	return nil
}

func (v *valkeyClusterImpl) ListTrim(ctx context.Context, key string, start, stop int64) error {
	if err := v.client.LTrim(ctx, key, start, stop).Err(); err != nil {
		monitoring.RecordCacheOperation("list_trim", "error")
		return err
	}
	monitoring.RecordCacheOperation("list_trim", "success")
	return nil
}

func (v *valkeyClusterImpl) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	entries, err := v.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		monitoring.RecordCacheOperation("list_range", "error")
		return nil, err
	}
	monitoring.RecordCacheOperation("list_range", "success")
	return entries, nil
}

func (v *valkeyClusterImpl) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := v.client.HGetAll(ctx, key).Result()
	if err != nil {
		monitoring.RecordCacheOperation("hash_get_all", "error")
		return nil, err
	}
	monitoring.RecordCacheOperation("hash_get_all", "success")
	return fields, nil
}

func (v *valkeyClusterImpl) SetAdd(ctx context.Context, key string, members ...interface{}) error {
	if err := v.client.SAdd(ctx, key, members...).Err(); err != nil {
		monitoring.RecordCacheOperation("set_add", "error")
		return err
	}
	monitoring.RecordCacheOperation("set_add", "success")
	return nil
}

func (v *valkeyClusterImpl) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := v.client.SMembers(ctx, key).Result()
	if err != nil {
		monitoring.RecordCacheOperation("set_members", "error")
		return nil, err
	}
	monitoring.RecordCacheOperation("set_members", "success")
	return members, nil
}

// HealthCheck pings the Valkey cluster.
func (v *valkeyClusterImpl) HealthCheck(ctx context.Context) error {
	if ctx == nil {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ctx = c
	}
	return v.client.Ping(ctx).Err()
}
