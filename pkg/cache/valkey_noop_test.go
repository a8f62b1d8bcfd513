package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smsgate/pulse-core/pkg/logger"
)

func TestNoopKeyValueTTL(t *testing.T) {
	v := NewNoopValkey(logger.NewNop())
	ctx := context.Background()

	if err := v.Set(ctx, "k", "hello", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := v.Get(ctx, "k")
	if err != nil || string(got) != "hello" {
		t.Fatalf("get = %q, %v", got, err)
	}

	if err := v.Set(ctx, "expiring", "x", time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := v.Get(ctx, "expiring"); err == nil {
		t.Error("expired key should not be readable")
	}

	if _, err := v.Get(ctx, "missing"); err == nil {
		t.Error("missing key should be an error")
	}
}

func TestNoopListPushNewestFirst(t *testing.T) {
	v := NewNoopValkey(logger.NewNop())
	ctx := context.Background()

	for _, s := range []string{"a", "b", "c"} {
		if err := v.ListPush(ctx, "l", s); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	got, err := v.ListRange(ctx, "l", 0, -1)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	// LPUSH semantics: last pushed value sits at the head.
	want := []string{"c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("range = %v, want %v", got, want)
		}
	}
}

func TestNoopListTrimBoundsRing(t *testing.T) {
	v := NewNoopValkey(logger.NewNop())
	ctx := context.Background()

	for _, s := range []string{"1", "2", "3", "4", "5"} {
		_ = v.ListPush(ctx, "ring", s)
	}
	if err := v.ListTrim(ctx, "ring", 0, 2); err != nil {
		t.Fatalf("trim: %v", err)
	}
	got, _ := v.ListRange(ctx, "ring", 0, -1)
	if len(got) != 3 || got[0] != "5" || got[2] != "3" {
		t.Fatalf("after trim = %v, want [5 4 3]", got)
	}
}

func TestNoopHashAndSet(t *testing.T) {
	v := NewNoopValkey(logger.NewNop())
	ctx := context.Background()

	seeder := v.(interface {
		HashSet(ctx context.Context, key, field, value string) error
	})
	_ = seeder.HashSet(ctx, "h", "waiting", "7")
	h, err := v.HashGetAll(ctx, "h")
	if err != nil || h["waiting"] != "7" {
		t.Fatalf("hash = %v, %v", h, err)
	}

	_ = v.SetAdd(ctx, "s", "a", "b", "a")
	members, err := v.SetMembers(ctx, "s")
	if err != nil || len(members) != 2 {
		t.Fatalf("set members = %v, %v", members, err)
	}
}

func TestAutoSwapPromotesWhenBackendReturns(t *testing.T) {
	prev := autoSwapRetryInterval
	autoSwapRetryInterval = 10 * time.Millisecond
	defer func() { autoSwapRetryInterval = prev }()

	log := logger.NewNop()
	backend := NewNoopValkey(log)
	_ = backend.Set(context.Background(), "shared", "from-backend", 0)

	var attempts atomic.Int32
	dial := func() (Valkey, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("still down")
		}
		return backend, nil
	}

	swap := NewAutoSwapValkey(NewNoopValkey(log), log, dial)
	ctx := context.Background()

	// Served by the fallback until the dialer succeeds.
	if _, err := swap.Get(ctx, "shared"); err == nil {
		t.Fatal("fallback should not see backend keys yet")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got, err := swap.Get(ctx, "shared"); err == nil && string(got) == "from-backend" {
			return // swapped
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("connector never swapped to the real backend (%d attempts)", attempts.Load())
}
