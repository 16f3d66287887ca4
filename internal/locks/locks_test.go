package locks_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chaptercast/internal/locks"
	"chaptercast/internal/testsupport"
)

func newManager(t *testing.T) *locks.Manager {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return locks.NewManager(testsupport.MustOpenDB(t, cfg))
}

func TestAcquireAndRelease(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	ok, err := mgr.Acquire(ctx, "sync:book-1", "worker-a", time.Minute)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected to take a free lock")
	}

	held, err := mgr.IsHeld(ctx, "sync:book-1")
	if err != nil {
		t.Fatalf("IsHeld failed: %v", err)
	}
	if !held {
		t.Fatal("expected lock to be held")
	}

	ok, err = mgr.Acquire(ctx, "sync:book-1", "worker-b", time.Minute)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if ok {
		t.Fatal("second holder must not take a live lock")
	}

	if err := mgr.Release(ctx, "sync:book-1", "worker-a"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	ok, err = mgr.Acquire(ctx, "sync:book-1", "worker-b", time.Minute)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected released lock to be acquirable")
	}
}

func TestReacquireRefreshes(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := mgr.Acquire(ctx, "sync:book-1", "worker-a", time.Minute)
		if err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		if !ok {
			t.Fatal("holder must be able to refresh its own lock")
		}
	}
}

func TestExpiredLockIsFree(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	ok, err := mgr.Acquire(ctx, "sync:book-1", "worker-a", 50*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("Acquire failed: ok=%v err=%v", ok, err)
	}

	time.Sleep(100 * time.Millisecond)

	held, err := mgr.IsHeld(ctx, "sync:book-1")
	if err != nil {
		t.Fatalf("IsHeld failed: %v", err)
	}
	if held {
		t.Fatal("expired lock must read as free")
	}

	ok, err = mgr.Acquire(ctx, "sync:book-1", "worker-b", time.Minute)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expired lock must be acquirable by a new holder")
	}
}

func TestReleaseByNonHolderIsNoOp(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	ok, err := mgr.Acquire(ctx, "sync:book-1", "worker-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire failed: ok=%v err=%v", ok, err)
	}

	if err := mgr.Release(ctx, "sync:book-1", "worker-b"); err != nil {
		t.Fatalf("Release by non-holder errored: %v", err)
	}
	held, err := mgr.IsHeld(ctx, "sync:book-1")
	if err != nil {
		t.Fatalf("IsHeld failed: %v", err)
	}
	if !held {
		t.Fatal("release by non-holder must not free the lock")
	}
}

func TestMutualExclusionUnderContention(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			holder := string(rune('a' + n))
			ok, err := mgr.Acquire(ctx, "sync:book-1", holder, time.Minute)
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			if ok {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}
