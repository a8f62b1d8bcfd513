package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smsgate/pulse-core/pkg/logger"
)

// noopValkey provides an in-memory, process-local fallback that satisfies
// Valkey when the external cache is unavailable. It is best-effort and
// intended for development, tests, and degraded operation; data is not shared
// across replicas and is lost on restart. TTLs are honored lazily on read.
type noopValkey struct {
	mu     sync.RWMutex
	kv     map[string]noopEntry
	lists  map[string][]string
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}
	logger logger.Logger
}

type noopEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func NewNoopValkey(log logger.Logger) Valkey {
	log.Warn("Valkey unavailable; using in-memory fallback (noop)")
	return &noopValkey{
		kv:     make(map[string]noopEntry),
		lists:  make(map[string][]string),
		hashes: make(map[string]map[string]string),
		sets:   make(map[string]map[string]struct{}),
		logger: log,
	}
}

func (n *noopValkey) Get(ctx context.Context, key string) ([]byte, error) {
	n.mu.RLock()
	e, ok := n.kv[key]
	n.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		n.mu.Lock()
		delete(n.kv, key)
		n.mu.Unlock()
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return e.value, nil
}

func (n *noopValkey) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := encodeValue(key, value)
	if err != nil {
		return err
	}
	e := noopEntry{value: b}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	n.mu.Lock()
	n.kv[key] = e
	n.mu.Unlock()
	return nil
}

func (n *noopValkey) Delete(ctx context.Context, key string) error {
	n.mu.Lock()
	delete(n.kv, key)
	delete(n.lists, key)
	delete(n.hashes, key)
	delete(n.sets, key)
	n.mu.Unlock()
	return nil
}

func (n *noopValkey) ListPush(ctx context.Context, key string, values ...interface{}) error {
	encoded := make([]string, 0, len(values))
	for _, v := range values {
		b, err := encodeValue(key, v)
		if err != nil {
			return err
		}
		encoded = append(encoded, string(b))
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	// LPUSH semantics: newest entries at the head.
	for _, s := range encoded {
		n.lists[key] = append([]string{s}, n.lists[key]...)
	}
	return nil
}

func (n *noopValkey) ListTrim(ctx context.Context, key string, start, stop int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	l := n.lists[key]
	length := int64(len(l))
	if length == 0 {
		return nil
	}
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if start > stop {
		n.lists[key] = nil
		return nil
	}
	n.lists[key] = l[start : stop+1]
	return nil
}

func (n *noopValkey) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	l := n.lists[key]
	length := int64(len(l))
	if length == 0 {
		return []string{}, nil
	}
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if start > stop {
		return []string{}, nil
	}
	out := make([]string, stop-start+1)
	copy(out, l[start:stop+1])
	return out, nil
}

func (n *noopValkey) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	src := n.hashes[key]
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out, nil
}

// HashSet is not part of the Valkey interface; the external broker owns queue
// counters. The noop keeps it so tests and the degraded mode can seed state.
func (n *noopValkey) HashSet(ctx context.Context, key, field, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.hashes[key] == nil {
		n.hashes[key] = make(map[string]string)
	}
	n.hashes[key][field] = value
	return nil
}

func (n *noopValkey) SetAdd(ctx context.Context, key string, members ...interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sets[key] == nil {
		n.sets[key] = make(map[string]struct{})
	}
	for _, m := range members {
		b, err := encodeValue(key, m)
		if err != nil {
			return err
		}
		n.sets[key][string(b)] = struct{}{}
	}
	return nil
}

func (n *noopValkey) SetMembers(ctx context.Context, key string) ([]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	members := make([]string, 0, len(n.sets[key]))
	for m := range n.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

func (n *noopValkey) HealthCheck(ctx context.Context) error {
	return nil
}
