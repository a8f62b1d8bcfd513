package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/smsgate/pulse-core/internal/monitoring"
	"github.com/smsgate/pulse-core/pkg/logger"
)

// valkeySingleImpl implements Valkey against a single-node Valkey/Redis
// instance.
type valkeySingleImpl struct {
	client *redis.Client
	logger logger.Logger
	ttl    time.Duration
}

func NewValkeySingle(addr string, db int, password string, defaultTTL time.Duration) (Valkey, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey single-node: %w", err)
	}

	return &valkeySingleImpl{
		client: client,
		logger: logger.New("info"),
		ttl:    defaultTTL,
	}, nil
}

func (v *valkeySingleImpl) Get(ctx context.Context, key string) ([]byte, error) {
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

func (v *valkeySingleImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
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

func (v *valkeySingleImpl) Delete(ctx context.Context, key string) error {
	if err := v.client.Del(ctx, key).Err(); err != nil {
		monitoring.RecordCacheOperation("delete", "error")
		return err
	}
	monitoring.RecordCacheOperation("delete", "success")
	return nil
}

func (v *valkeySingleImpl) ListPush(ctx context.Context, key string, values ...interface{}) error {
	if err := v.client.LPush(ctx, key, values...).Err(); err != nil {
		monitoring.RecordCacheOperation("list_push", "error")
		return err
	}
	monitoring.RecordCacheOperation("list_push", "success")
	return nil
}

func (v *valkeySingleImpl) ListTrim(ctx context.Context, key string, start, stop int64) error {
	if err := v.client.LTrim(ctx, key, start, stop).Err(); err != nil {
		monitoring.RecordCacheOperation("list_trim", "error")
		return err
	}
	monitoring.RecordCacheOperation("list_trim", "success")
	return nil
}

func (v *valkeySingleImpl) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	entries, err := v.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		monitoring.RecordCacheOperation("list_range", "error")
		return nil, err
	}
	monitoring.RecordCacheOperation("list_range", "success")
	return entries, nil
}

func (v *valkeySingleImpl) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := v.client.HGetAll(ctx, key).Result()
	if err != nil {
		monitoring.RecordCacheOperation("hash_get_all", "error")
		return nil, err
	}
	monitoring.RecordCacheOperation("hash_get_all", "success")
	return fields, nil
}

func (v *valkeySingleImpl) SetAdd(ctx context.Context, key string, members ...interface{}) error {
	if err := v.client.SAdd(ctx, key, members...).Err(); err != nil {
		monitoring.RecordCacheOperation("set_add", "error")
		return err
	}
	monitoring.RecordCacheOperation("set_add", "success")
	return nil
}

func (v *valkeySingleImpl) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := v.client.SMembers(ctx, key).Result()
	if err != nil {
		monitoring.RecordCacheOperation("set_members", "error")
		return nil, err
	}
	monitoring.RecordCacheOperation("set_members", "success")
	return members, nil
}

// HealthCheck pings the Valkey single-node instance.
func (v *valkeySingleImpl) HealthCheck(ctx context.Context) error {
	if ctx == nil {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ctx = c
	}
	return v.client.Ping(ctx).Err()
}

// encodeValue normalizes values to bytes; structs go through JSON.
func encodeValue(key string, value interface{}) ([]byte, error) {
	switch x := value.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		j, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %s: %w", key, err)
		}
		return j, nil
	}
}
