// Package matching turns accumulated demand into reading groups.
//
// Evaluate is reactive: the queue calls it after every enqueue and it forms
// at most one group per call. The decision and every side effect of a
// formation commit together in one transaction taken under the book lock, so
// two evaluations for the same book can never claim the same readers.
package matching

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"bookclub/internal/ledger"
	"bookclub/internal/lifecycle"
	"bookclub/internal/logging"
	"bookclub/internal/metrics"
	"bookclub/internal/services"
	"bookclub/internal/store"
)

const (
	// FormationThreshold is the demand at which a group forms.
	FormationThreshold = 3
	// IntakeCap bounds how many waiting readers one formation takes.
	IntakeCap = 6
)

// Engine evaluates books for group formation.
type Engine struct {
	store     *store.Store
	ledger    *ledger.Ledger
	lifecycle *lifecycle.Manager
	logger    *slog.Logger
	intake    int
}

// New constructs an Engine. Intake is IntakeCap clamped to the group member cap.
func New(st *store.Store, led *ledger.Ledger, mgr *lifecycle.Manager, logger *slog.Logger) *Engine {
	intake := IntakeCap
	if limit := mgr.MaxMembers(); limit < intake {
		intake = limit
	}
	return &Engine{
		store:     st,
		ledger:    led,
		lifecycle: mgr,
		logger:    logging.NewComponentLogger(logger, "matching"),
		intake:    intake,
	}
}

// Intake returns the number of readers a formation takes at most.
func (e *Engine) Intake() int { return e.intake }

// Evaluate forms a group for bookID when enough eligible readers are waiting.
// It returns nil without error when no group was formed.
func (e *Engine) Evaluate(ctx context.Context, bookID string) (*store.Group, error) {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return nil, services.Wrap(services.ErrValidation, "matching", "evaluate", "book id is required", nil)
	}
	ctx = services.WithBookID(ctx, bookID)
	logger := logging.WithContext(ctx, e.logger)

	unlock, err := e.lifecycle.BookLocks().Lock(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return e.evaluateLocked(ctx, logger, bookID)
}

// evaluateLocked runs with the book lock already held.
func (e *Engine) evaluateLocked(ctx context.Context, logger *slog.Logger, bookID string) (*store.Group, error) {
	started := time.Now()
	defer func() { metrics.FormationDuration.Observe(time.Since(started).Seconds()) }()

	var (
		group  *store.Group
		skip   string
		demand int
	)
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		group, skip = nil, ""
		var err error
		demand, err = e.ledger.Demand(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if demand < FormationThreshold {
			skip = "below_threshold"
			return nil
		}
		eligible, err := tx.EligibleReaders(ctx, bookID, e.intake)
		if err != nil {
			return err
		}
		if len(eligible) < FormationThreshold {
			skip = "ineligible_readers"
			return nil
		}
		group, err = e.lifecycle.Form(ctx, tx, lifecycle.FormRequest{BookID: bookID, ReaderIDs: eligible})
		return err
	})
	if err != nil {
		logging.ErrorWithContext(logger, "group formation failed", "formation_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "formation rolled back; demand and queues are unchanged"),
		)
		return nil, err
	}

	if group == nil {
		metrics.FormationSkipped.WithLabelValues(skip).Inc()
		logger.Debug("no group formed",
			logging.String("reason", skip),
			logging.Int("demand", demand),
			logging.String(logging.FieldEventType, "formation_skipped"),
		)
		return nil, nil
	}
	e.lifecycle.Announce(ctx, group, lifecycle.TriggerAuto)
	return group, nil
}
