package cache

import (
	"context"
	"sync"
	"time"

	"github.com/smsgate/pulse-core/pkg/logger"
)

// autoSwapValkey wraps a Valkey implementation and can swap from a fallback
// (the in-memory noop) to a real Valkey client once it becomes available. It
// satisfies the Valkey interface by delegating all calls to the currently
// active implementation.
type autoSwapValkey struct {
	mu      sync.RWMutex
	current Valkey
	logger  logger.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// autoSwapRetryInterval is how often the connector retries the real backend.
var autoSwapRetryInterval = 5 * time.Second

// NewAutoSwapValkey creates an auto-swapping cache that starts with fallback
// and keeps trying dialReal until it succeeds, then atomically swaps.
// Outcome-log and circuit state written to the fallback before the swap is
// lost; callers already tolerate partial windows.
func NewAutoSwapValkey(fallback Valkey, log logger.Logger, dialReal func() (Valkey, error)) Valkey {
	a := &autoSwapValkey{
		current: fallback,
		logger:  log,
		stopCh:  make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(autoSwapRetryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopCh:
				return
			case <-ticker.C:
				real, err := dialReal()
				if err != nil {
					a.logger.Warn("Valkey connection attempt failed; will retry", "error", err)
					continue
				}
				a.mu.Lock()
				a.current = real
				a.mu.Unlock()
				a.logger.Info("Valkey connection established; switched from in-memory to real cache")
				return // stop after first successful swap
			}
		}
	}()

	return a
}

func (a *autoSwapValkey) active() Valkey {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Stop terminates the background connector goroutine.
func (a *autoSwapValkey) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
}

func (a *autoSwapValkey) Get(ctx context.Context, key string) ([]byte, error) {
	return a.active().Get(ctx, key)
}

func (a *autoSwapValkey) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return a.active().Set(ctx, key, value, ttl)
}

func (a *autoSwapValkey) Delete(ctx context.Context, key string) error {
	return a.active().Delete(ctx, key)
}

func (a *autoSwapValkey) ListPush(ctx context.Context, key string, values ...interface{}) error {
	return a.active().ListPush(ctx, key, values...)
}

func (a *autoSwapValkey) ListTrim(ctx context.Context, key string, start, stop int64) error {
	return a.active().ListTrim(ctx, key, start, stop)
}

func (a *autoSwapValkey) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return a.active().ListRange(ctx, key, start, stop)
}

func (a *autoSwapValkey) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	return a.active().HashGetAll(ctx, key)
}

func (a *autoSwapValkey) SetAdd(ctx context.Context, key string, members ...interface{}) error {
	return a.active().SetAdd(ctx, key, members...)
}

func (a *autoSwapValkey) SetMembers(ctx context.Context, key string) ([]string, error) {
	return a.active().SetMembers(ctx, key)
}

func (a *autoSwapValkey) HealthCheck(ctx context.Context) error {
	return a.active().HealthCheck(ctx)
}
