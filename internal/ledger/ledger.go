// Package ledger owns each book's demand counters: how many readers are
// waiting for it and how many groups have read it.
//
// The counters live on the book row and change only through this package.
// Every mutation is a single clamped UPDATE executed inside the caller's
// transaction, so concurrent enqueues and formations never lose an update.
package ledger

import (
	"context"
	"log/slog"

	"bookclub/internal/logging"
	"bookclub/internal/services"
	"bookclub/internal/store"
)

// Ledger adjusts book demand.
type Ledger struct {
	store  *store.Store
	logger *slog.Logger
}

// New constructs a Ledger over st.
func New(st *store.Store, logger *slog.Logger) *Ledger {
	return &Ledger{store: st, logger: logging.NewComponentLogger(logger, "ledger")}
}

// Increment adds one waiting reader and returns the new count.
func (l *Ledger) Increment(ctx context.Context, tx *store.Tx, bookID string) (int, error) {
	count, found, err := tx.AdjustWaitingReaders(ctx, bookID, 1)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, services.Wrap(services.ErrNotFound, "ledger", "increment", "book "+bookID+" not found", nil)
	}
	return count, nil
}

// Decrement removes one waiting reader, never going below zero. A missing
// book is logged and ignored.
func (l *Ledger) Decrement(ctx context.Context, tx *store.Tx, bookID string) (int, error) {
	return l.Release(ctx, tx, bookID, 1)
}

// Release removes n waiting readers at once, clamped at zero.
func (l *Ledger) Release(ctx context.Context, tx *store.Tx, bookID string, n int) (int, error) {
	if n <= 0 {
		return l.current(ctx, tx, bookID)
	}
	count, found, err := tx.AdjustWaitingReaders(ctx, bookID, -n)
	if err != nil {
		return 0, err
	}
	if !found {
		l.logger.Warn("demand release for unknown book ignored",
			logging.BookID(bookID),
			logging.Int("count", n),
			logging.String(logging.FieldEventType, "ledger_unknown_book"),
		)
		return 0, nil
	}
	return count, nil
}

// RecordRead counts one more group formed for the book.
func (l *Ledger) RecordRead(ctx context.Context, tx *store.Tx, bookID string) (int, error) {
	count, found, err := tx.IncrementTotalReads(ctx, bookID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, services.Wrap(services.ErrNotFound, "ledger", "record read", "book "+bookID+" not found", nil)
	}
	return count, nil
}

// Demand returns the waiting count as seen by tx.
func (l *Ledger) Demand(ctx context.Context, tx *store.Tx, bookID string) (int, error) {
	book, err := tx.Book(ctx, bookID)
	if err != nil {
		return 0, err
	}
	if book == nil {
		return 0, services.Wrap(services.ErrNotFound, "ledger", "demand", "book "+bookID+" not found", nil)
	}
	return book.WaitingReaders, nil
}

// Snapshot reads the current waiting count outside any transaction.
func (l *Ledger) Snapshot(ctx context.Context, bookID string) (int, error) {
	var count int
	err := l.store.View(ctx, func(tx *store.Tx) error {
		var err error
		count, err = l.Demand(ctx, tx, bookID)
		return err
	})
	return count, err
}

func (l *Ledger) current(ctx context.Context, tx *store.Tx, bookID string) (int, error) {
	book, err := tx.Book(ctx, bookID)
	if err != nil || book == nil {
		return 0, err
	}
	return book.WaitingReaders, nil
}
