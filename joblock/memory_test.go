package joblock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryExclusive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := m.Acquire(ctx, "generate-rent", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Acquire(ctx, "generate-rent", time.Minute); !errors.Is(err, ErrHeld) {
		t.Fatalf("second acquire: got %v, want ErrHeld", err)
	}
	if _, err := m.Acquire(ctx, "apply-late-fees", time.Minute); err != nil {
		t.Fatalf("other job should be free: %v", err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Acquire(ctx, "generate-rent", time.Minute); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.nowFn = func() time.Time { return now }

	stale, err := m.Acquire(ctx, "job", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Minute)
	fresh, err := m.Acquire(ctx, "job", time.Minute)
	if err != nil {
		t.Fatalf("expired lock should be reclaimable: %v", err)
	}

	// A stale lease must not free the new holder's lock.
	_ = stale.Release(ctx)
	if _, err := m.Acquire(ctx, "job", time.Minute); !errors.Is(err, ErrHeld) {
		t.Fatalf("stale release freed the lock: %v", err)
	}
	_ = fresh.Release(ctx)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var inner error
	err := Run(ctx, m, "job", 0, func(ctx context.Context) error {
		_, inner = m.Acquire(ctx, "job", time.Minute)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(inner, ErrHeld) {
		t.Errorf("lock not held during run: %v", inner)
	}
	if _, err := m.Acquire(ctx, "job", time.Minute); err != nil {
		t.Errorf("lock not released after run: %v", err)
	}

	called := false
	if err := Run(ctx, nil, "job", 0, func(context.Context) error { called = true; return nil }); err != nil || !called {
		t.Errorf("nil locker should run fn directly: called=%v err=%v", called, err)
	}
}
