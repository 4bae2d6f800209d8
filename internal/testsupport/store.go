package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"bookclub/internal/config"
	"bookclub/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedBook inserts a book with the given title and returns it.
func SeedBook(t testing.TB, st *store.Store, title string) *store.Book {
	t.Helper()

	book := &store.Book{
		ID:        uuid.NewString(),
		Title:     title,
		Author:    "Author of " + title,
		Genre:     "Fiction",
		PageCount: 300,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := st.Update(context.Background(), func(tx *store.Tx) error {
		return tx.InsertBook(context.Background(), book)
	}); err != nil {
		t.Fatalf("seed book %q: %v", title, err)
	}
	return book
}

// SeedReader inserts a reader with the given display name and returns it.
func SeedReader(t testing.TB, st *store.Store, name string) *store.Reader {
	t.Helper()

	reader := &store.Reader{
		ID:          uuid.NewString(),
		DisplayName: name,
		CreatedAt:   time.Now(),
	}
	if err := st.Update(context.Background(), func(tx *store.Tx) error {
		return tx.InsertReader(context.Background(), reader)
	}); err != nil {
		t.Fatalf("seed reader %q: %v", name, err)
	}
	return reader
}

// SeedReaders inserts n readers named reader-1..reader-n.
func SeedReaders(t testing.TB, st *store.Store, n int) []*store.Reader {
	t.Helper()

	readers := make([]*store.Reader, 0, n)
	for i := 1; i <= n; i++ {
		readers = append(readers, SeedReader(t, st, fmt.Sprintf("reader-%d", i)))
	}
	return readers
}

// LoadBook re-reads a book, failing the test when it is missing.
func LoadBook(t testing.TB, st *store.Store, id string) *store.Book {
	t.Helper()

	var book *store.Book
	err := st.View(context.Background(), func(tx *store.Tx) error {
		var err error
		book, err = tx.Book(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("load book: %v", err)
	}
	if book == nil {
		t.Fatalf("book %s not found", id)
	}
	return book
}

// LoadReader re-reads a reader, failing the test when it is missing.
func LoadReader(t testing.TB, st *store.Store, id string) *store.Reader {
	t.Helper()

	var reader *store.Reader
	err := st.View(context.Background(), func(tx *store.Tx) error {
		var err error
		reader, err = tx.Reader(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("load reader: %v", err)
	}
	if reader == nil {
		t.Fatalf("reader %s not found", id)
	}
	return reader
}

// LoadQueue returns the book ids in a reader's queue.
func LoadQueue(t testing.TB, st *store.Store, readerID string) []string {
	t.Helper()

	var entries []store.QueueEntry
	err := st.View(context.Background(), func(tx *store.Tx) error {
		var err error
		entries, err = tx.Queue(context.Background(), readerID)
		return err
	})
	if err != nil {
		t.Fatalf("load queue: %v", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.BookID)
	}
	return ids
}

// QueueBook appends bookID to the reader's queue and bumps the book's demand
// the same way an enqueue does, without triggering matching.
func QueueBook(t testing.TB, st *store.Store, readerID, bookID string) {
	t.Helper()

	ctx := context.Background()
	err := st.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.AppendQueue(ctx, readerID, bookID, time.Now()); err != nil {
			return err
		}
		_, _, err := tx.AdjustWaitingReaders(ctx, bookID, 1)
		return err
	})
	if err != nil {
		t.Fatalf("queue book: %v", err)
	}
}
