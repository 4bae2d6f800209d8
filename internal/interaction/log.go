// Package interaction keeps each group's chat log and its members' reading
// progress.
//
// Messages are append-only and listed in insertion order. Progress is one
// row per (group, reader), upserted with partial updates. Mutations for one
// group are serialised with the shared per-group lock.
package interaction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"bookclub/internal/keylock"
	"bookclub/internal/logging"
	"bookclub/internal/metrics"
	"bookclub/internal/services"
	"bookclub/internal/store"
)

// Options tunes message limits and the progress membership policy.
type Options struct {
	MaxMessageLength int
	PageSize         int
	Now              func() time.Time

	// RequireMembershipForProgress rejects progress from readers who are
	// not active members of the group.
	RequireMembershipForProgress bool
}

// ProgressUpdate carries the fields to change; nil keeps the stored value.
type ProgressUpdate struct {
	CurrentPage *int
	Percentage  *float64
}

// MessagePage is one slice of a group's log.
type MessagePage struct {
	Messages []store.Message
	Total    int
	Offset   int
	Limit    int
}

// Log implements group chat and progress tracking.
type Log struct {
	store  *store.Store
	groups *keylock.Locker
	logger *slog.Logger
	opts   Options
}

// New constructs a Log. groups must be the locker shared with lifecycle.
func New(st *store.Store, groups *keylock.Locker, logger *slog.Logger, opts Options) *Log {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 1000
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Log{
		store:  st,
		groups: groups,
		logger: logging.NewComponentLogger(logger, "interaction"),
		opts:   opts,
	}
}

// PostMessage appends text to the group's log on behalf of an active member.
func (l *Log) PostMessage(ctx context.Context, groupID, readerID, text string) (*store.Message, error) {
	body := strings.TrimSpace(text)
	if body == "" {
		return nil, services.Wrap(services.ErrEmptyMessage, "interaction", "post message", "message text is empty", nil)
	}
	groupID, readerID = strings.TrimSpace(groupID), strings.TrimSpace(readerID)

	unlock, err := l.groups.Lock(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var msg *store.Message
	err = l.store.Update(ctx, func(tx *store.Tx) error {
		group, err := requireGroup(ctx, tx, groupID, "post message")
		if err != nil {
			return err
		}
		if !group.IsActiveMember(readerID) {
			return services.Wrap(services.ErrNotMember, "interaction", "post message",
				"reader "+readerID+" is not an active member", nil)
		}
		if n := utf8.RuneCountInString(body); n > l.opts.MaxMessageLength {
			return services.Wrap(services.ErrValidation, "interaction", "post message",
				fmt.Sprintf("message is %d characters, limit is %d", n, l.opts.MaxMessageLength), nil)
		}
		msg = &store.Message{
			GroupID:   group.ID,
			ReaderID:  readerID,
			Body:      body,
			CreatedAt: l.opts.Now().UTC(),
		}
		return tx.InsertMessage(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	metrics.MessagesPosted.Inc()
	l.logger.Debug("message posted",
		logging.GroupID(groupID),
		logging.ReaderID(readerID),
		logging.Int64("message_id", msg.ID),
		logging.String(logging.FieldEventType, "message_posted"),
	)
	return msg, nil
}

// ListMessages returns messages [offset, offset+limit) in insertion order.
// A non-positive limit uses the configured page size.
func (l *Log) ListMessages(ctx context.Context, groupID string, offset, limit int) (MessagePage, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = l.opts.PageSize
	}
	page := MessagePage{Offset: offset, Limit: limit}
	err := l.store.View(ctx, func(tx *store.Tx) error {
		if _, err := requireGroup(ctx, tx, groupID, "list messages"); err != nil {
			return err
		}
		var err error
		if page.Messages, err = tx.Messages(ctx, groupID, offset, limit); err != nil {
			return err
		}
		page.Total, err = tx.MessageCount(ctx, groupID)
		return err
	})
	return page, err
}

// UpdateProgress upserts the reader's progress in the group. Percentage is
// clamped to [0, 100]; a negative page is rejected.
func (l *Log) UpdateProgress(ctx context.Context, groupID, readerID string, update ProgressUpdate) (*store.Progress, error) {
	groupID, readerID = strings.TrimSpace(groupID), strings.TrimSpace(readerID)
	if update.CurrentPage != nil && *update.CurrentPage < 0 {
		return nil, services.Wrap(services.ErrValidation, "interaction", "update progress", "current page must not be negative", nil)
	}

	unlock, err := l.groups.Lock(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var progress *store.Progress
	err = l.store.Update(ctx, func(tx *store.Tx) error {
		group, err := requireGroup(ctx, tx, groupID, "update progress")
		if err != nil {
			return err
		}
		reader, err := tx.Reader(ctx, readerID)
		if err != nil {
			return err
		}
		if reader == nil {
			return services.Wrap(services.ErrNotFound, "interaction", "update progress", "reader "+readerID+" not found", nil)
		}
		if l.opts.RequireMembershipForProgress && !group.IsActiveMember(readerID) {
			return services.Wrap(services.ErrNotMember, "interaction", "update progress",
				"reader "+readerID+" is not an active member", nil)
		}

		existing, err := tx.Progress(ctx, groupID, readerID)
		if err != nil {
			return err
		}
		next := store.Progress{GroupID: groupID, ReaderID: readerID}
		if existing != nil {
			next = *existing
		}
		if update.CurrentPage != nil {
			next.CurrentPage = *update.CurrentPage
		}
		if update.Percentage != nil {
			next.Percentage = clampPercentage(*update.Percentage)
		}
		next.UpdatedAt = l.opts.Now().UTC()
		if err := tx.UpsertProgress(ctx, next); err != nil {
			return err
		}
		progress = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ProgressUpdates.Inc()
	return progress, nil
}

// Progress lists every progress row for the group.
func (l *Log) Progress(ctx context.Context, groupID string) ([]store.Progress, error) {
	var rows []store.Progress
	err := l.store.View(ctx, func(tx *store.Tx) error {
		if _, err := requireGroup(ctx, tx, groupID, "progress"); err != nil {
			return err
		}
		var err error
		rows, err = tx.GroupProgress(ctx, groupID)
		return err
	})
	return rows, err
}

func clampPercentage(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func requireGroup(ctx context.Context, tx *store.Tx, groupID, op string) (*store.Group, error) {
	group, err := tx.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, services.Wrap(services.ErrNotFound, "interaction", op, "group "+groupID+" not found", nil)
	}
	return group, nil
}
