package queue

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"bookclub/internal/keylock"
	"bookclub/internal/ledger"
	"bookclub/internal/logging"
	"bookclub/internal/metrics"
	"bookclub/internal/services"
	"bookclub/internal/store"
)

// Matcher evaluates a book for group formation after its demand changed.
type Matcher interface {
	Evaluate(ctx context.Context, bookID string) (*store.Group, error)
}

// Entry is a queue row joined with its book.
type Entry struct {
	Position int64
	QueuedAt time.Time
	Book     *store.Book
}

// EnqueueResult reports the outcome of an enqueue.
type EnqueueResult struct {
	Entry  store.QueueEntry
	Demand int
	Group  *store.Group

	// FormationErr is set when the enqueue committed but evaluation failed.
	FormationErr error
}

// DequeueResult reports the outcome of a dequeue.
type DequeueResult struct {
	Removed bool
	Demand  int
}

// Service implements reader queue operations.
type Service struct {
	store   *store.Store
	ledger  *ledger.Ledger
	books   *keylock.Locker
	matcher Matcher
	logger  *slog.Logger
}

// New constructs a Service. books must be the locker shared with matching.
func New(st *store.Store, led *ledger.Ledger, books *keylock.Locker, matcher Matcher, logger *slog.Logger) *Service {
	return &Service{
		store:   st,
		ledger:  led,
		books:   books,
		matcher: matcher,
		logger:  logging.NewComponentLogger(logger, "queue"),
	}
}

// Enqueue adds bookID to the reader's queue and triggers matching.
func (s *Service) Enqueue(ctx context.Context, readerID, bookID string) (EnqueueResult, error) {
	readerID, bookID = strings.TrimSpace(readerID), strings.TrimSpace(bookID)
	if readerID == "" || bookID == "" {
		metrics.EnqueueTotal.WithLabelValues(services.KindValidation).Inc()
		return EnqueueResult{}, services.Wrap(services.ErrValidation, "queue", "enqueue", "reader id and book id are required", nil)
	}
	ctx = services.WithBookID(services.WithReaderID(ctx, readerID), bookID)
	logger := logging.WithContext(ctx, s.logger)

	result, err := s.append(ctx, readerID, bookID)
	if err != nil {
		metrics.EnqueueTotal.WithLabelValues(services.Kind(err)).Inc()
		if !services.IsDomain(err) {
			logging.ErrorWithContext(logger, "enqueue failed", "enqueue_failed", logging.Error(err))
		}
		return EnqueueResult{}, err
	}
	metrics.EnqueueTotal.WithLabelValues("ok").Inc()
	logger.Info("book queued",
		logging.Int("demand", result.Demand),
		logging.String(logging.FieldEventType, "book_queued"),
	)

	if s.matcher == nil {
		return result, nil
	}
	group, err := s.matcher.Evaluate(ctx, bookID)
	if err != nil {
		logging.WarnWithContext(logger, "matching after enqueue failed", "formation_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "reader stays queued; the next enqueue retries formation"),
		)
		result.FormationErr = err
	}
	result.Group = group
	if demand, err := s.ledger.Snapshot(ctx, bookID); err == nil {
		result.Demand = demand
	}
	return result, nil
}

func (s *Service) append(ctx context.Context, readerID, bookID string) (EnqueueResult, error) {
	unlock, err := s.books.Lock(ctx, bookID)
	if err != nil {
		return EnqueueResult{}, err
	}
	defer unlock()

	var result EnqueueResult
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		reader, err := tx.Reader(ctx, readerID)
		if err != nil {
			return err
		}
		if reader == nil {
			return services.Wrap(services.ErrNotFound, "queue", "enqueue", "reader "+readerID+" not found", nil)
		}
		book, err := tx.Book(ctx, bookID)
		if err != nil {
			return err
		}
		if book == nil {
			return services.Wrap(services.ErrNotFound, "queue", "enqueue", "book "+bookID+" not found", nil)
		}
		queued, err := tx.InQueue(ctx, readerID, bookID)
		if err != nil {
			return err
		}
		if queued {
			return services.Wrap(services.ErrAlreadyQueued, "queue", "enqueue", "book already in queue", nil)
		}
		entry, err := tx.AppendQueue(ctx, readerID, bookID, time.Now().UTC())
		if err != nil {
			return err
		}
		demand, err := s.ledger.Increment(ctx, tx, bookID)
		if err != nil {
			return err
		}
		result = EnqueueResult{Entry: entry, Demand: demand}
		return nil
	})
	return result, err
}

// Dequeue removes bookID from the reader's queue. Removing a book that is not
// queued succeeds without touching demand.
func (s *Service) Dequeue(ctx context.Context, readerID, bookID string) (DequeueResult, error) {
	readerID, bookID = strings.TrimSpace(readerID), strings.TrimSpace(bookID)
	if readerID == "" || bookID == "" {
		return DequeueResult{}, services.Wrap(services.ErrValidation, "queue", "dequeue", "reader id and book id are required", nil)
	}
	unlock, err := s.books.Lock(ctx, bookID)
	if err != nil {
		return DequeueResult{}, err
	}
	defer unlock()

	var result DequeueResult
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		result = DequeueResult{}
		reader, err := tx.Reader(ctx, readerID)
		if err != nil {
			return err
		}
		if reader == nil {
			return services.Wrap(services.ErrNotFound, "queue", "dequeue", "reader "+readerID+" not found", nil)
		}
		removed, err := tx.RemoveFromQueue(ctx, readerID, bookID)
		if err != nil {
			return err
		}
		result.Removed = removed
		if removed {
			result.Demand, err = s.ledger.Decrement(ctx, tx, bookID)
			return err
		}
		book, err := tx.Book(ctx, bookID)
		if err != nil || book == nil {
			return err
		}
		result.Demand = book.WaitingReaders
		return nil
	})
	if err != nil {
		return DequeueResult{}, err
	}
	metrics.DequeueTotal.WithLabelValues(boolLabel(result.Removed)).Inc()
	if result.Removed {
		s.logger.Info("book dequeued",
			logging.ReaderID(readerID),
			logging.BookID(bookID),
			logging.Int("demand", result.Demand),
			logging.String(logging.FieldEventType, "book_dequeued"),
		)
	}
	return result, nil
}

// List returns the reader's queue in insertion order.
func (s *Service) List(ctx context.Context, readerID string) ([]Entry, error) {
	readerID = strings.TrimSpace(readerID)
	var entries []Entry
	err := s.store.View(ctx, func(tx *store.Tx) error {
		reader, err := tx.Reader(ctx, readerID)
		if err != nil {
			return err
		}
		if reader == nil {
			return services.Wrap(services.ErrNotFound, "queue", "list", "reader "+readerID+" not found", nil)
		}
		rows, err := tx.Queue(ctx, readerID)
		if err != nil {
			return err
		}
		entries = make([]Entry, 0, len(rows))
		for _, row := range rows {
			book, err := tx.Book(ctx, row.BookID)
			if err != nil {
				return err
			}
			if book == nil {
				continue
			}
			entries = append(entries, Entry{Position: row.Position, QueuedAt: row.QueuedAt, Book: book})
		}
		return nil
	})
	return entries, err
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
