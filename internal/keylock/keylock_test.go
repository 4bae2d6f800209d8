package keylock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bookclub/internal/keylock"
)

func TestLockSerializesSameKey(t *testing.T) {
	locker := keylock.New()
	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "book-1")
			if err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen.Load() != 1 {
		t.Fatalf("expected exclusive access, saw %d concurrent holders", maxSeen.Load())
	}
	if locker.Len() != 0 {
		t.Fatalf("expected entries to be released, got %d", locker.Len())
	}
}

func TestLockDifferentKeysDoNotBlock(t *testing.T) {
	locker := keylock.New()
	unlockA, err := locker.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("Lock a failed: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := locker.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("expected b to lock independently: %v", err)
	}
	unlockB()
}

func TestLockHonoursContext(t *testing.T) {
	locker := keylock.New()
	unlock, err := locker.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	unlock()
	unlock()
	if locker.Len() != 0 {
		t.Fatalf("expected no entries after release, got %d", locker.Len())
	}
}
