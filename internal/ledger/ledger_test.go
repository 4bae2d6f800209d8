package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bookclub/internal/ledger"
	"bookclub/internal/logging"
	"bookclub/internal/services"
	"bookclub/internal/store"
	"bookclub/internal/testsupport"
)

func TestIncrementAndDecrementClamp(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	book := testsupport.SeedBook(t, st, "Dracula")
	l := ledger.New(st, logging.NewNop())

	err := st.Update(ctx, func(tx *store.Tx) error {
		if n, err := l.Increment(ctx, tx, book.ID); err != nil || n != 1 {
			t.Fatalf("Increment = %d, %v", n, err)
		}
		if n, err := l.Decrement(ctx, tx, book.ID); err != nil || n != 0 {
			t.Fatalf("Decrement = %d, %v", n, err)
		}
		if n, err := l.Decrement(ctx, tx, book.ID); err != nil || n != 0 {
			t.Fatalf("Decrement below zero = %d, %v", n, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if n, err := l.Snapshot(ctx, book.ID); err != nil || n != 0 {
		t.Fatalf("Snapshot = %d, %v", n, err)
	}
}

func TestReleaseAndRecordRead(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	book := testsupport.SeedBook(t, st, "Frankenstein")
	l := ledger.New(st, logging.NewNop())

	err := st.Update(ctx, func(tx *store.Tx) error {
		for i := 0; i < 4; i++ {
			if _, err := l.Increment(ctx, tx, book.ID); err != nil {
				return err
			}
		}
		if n, err := l.Release(ctx, tx, book.ID, 3); err != nil || n != 1 {
			t.Fatalf("Release = %d, %v", n, err)
		}
		if n, err := l.Release(ctx, tx, book.ID, 10); err != nil || n != 0 {
			t.Fatalf("Release past zero = %d, %v", n, err)
		}
		if n, err := l.RecordRead(ctx, tx, book.ID); err != nil || n != 1 {
			t.Fatalf("RecordRead = %d, %v", n, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got := testsupport.LoadBook(t, st, book.ID)
	if got.WaitingReaders != 0 || got.TotalReads != 1 {
		t.Fatalf("unexpected counters waiting=%d reads=%d", got.WaitingReaders, got.TotalReads)
	}
}

func TestUnknownBook(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	l := ledger.New(st, logging.NewNop())

	err := st.Update(ctx, func(tx *store.Tx) error {
		if n, err := l.Decrement(ctx, tx, "ghost"); err != nil || n != 0 {
			t.Fatalf("Decrement of unknown book = %d, %v", n, err)
		}
		_, err := l.Increment(ctx, tx, "ghost")
		return err
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := l.Snapshot(ctx, "ghost"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found from snapshot, got %v", err)
	}
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	book := testsupport.SeedBook(t, st, "Rebecca")
	l := ledger.New(st, logging.NewNop())

	const workers = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := st.Update(ctx, func(tx *store.Tx) error {
				_, err := l.Increment(ctx, tx, book.ID)
				return err
			}); err != nil {
				t.Errorf("Increment failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if n, err := l.Snapshot(ctx, book.ID); err != nil || n != workers {
		t.Fatalf("Snapshot = %d, %v; want %d", n, err, workers)
	}
}
