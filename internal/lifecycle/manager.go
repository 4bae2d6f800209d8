// Package lifecycle creates reading groups and moves them and their members
// through their states.
//
// Group: forming -> active -> completed, with disbanded reachable from forming
// or active. Member: active -> left or active -> completed. Every mutation of
// one group runs under that group's lock; formation runs under the book lock
// held by the caller. Locks are always taken before the transaction starts.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookclub/internal/keylock"
	"bookclub/internal/ledger"
	"bookclub/internal/logging"
	"bookclub/internal/metrics"
	"bookclub/internal/notifications"
	"bookclub/internal/services"
	"bookclub/internal/store"
)

// MinMembers is the smallest group that may be created.
const MinMembers = 3

const (
	TriggerAuto   = "auto"
	TriggerManual = "manual"
)

// Options tunes group creation.
type Options struct {
	MaxMembers int
	Duration   time.Duration
	Now        func() time.Time
}

// Manager owns group creation and transitions.
type Manager struct {
	store    *store.Store
	ledger   *ledger.Ledger
	books    *keylock.Locker
	groups   *keylock.Locker
	notifier notifications.Service
	logger   *slog.Logger
	opts     Options
}

// New constructs a Manager. books and groups are the shared per-book and
// per-group lockers; they must be the same instances the queue and
// interaction services use.
func New(st *store.Store, led *ledger.Ledger, books, groups *keylock.Locker, notifier notifications.Service, logger *slog.Logger, opts Options) *Manager {
	if opts.MaxMembers <= 0 {
		opts.MaxMembers = 6
	}
	if opts.Duration <= 0 {
		opts.Duration = 30 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if notifier == nil {
		notifier = notifications.Noop()
	}
	return &Manager{
		store:    st,
		ledger:   led,
		books:    books,
		groups:   groups,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "lifecycle"),
		opts:     opts,
	}
}

// MaxMembers returns the configured member cap.
func (m *Manager) MaxMembers() int { return m.opts.MaxMembers }

// BookLocks exposes the per-book locker so callers serialise with formation.
func (m *Manager) BookLocks() *keylock.Locker { return m.books }

// GroupLocks exposes the per-group locker.
func (m *Manager) GroupLocks() *keylock.Locker { return m.groups }

// FormRequest describes a group to create inside an existing transaction.
type FormRequest struct {
	BookID    string
	ReaderIDs []string
}

// Form creates a group for req inside tx. It validates every reader, inserts
// the group as forming with its schedule, points each member at it, removes
// the book from their queues, releases the book's demand by the number of
// queue entries removed, records a read and activates the group. The caller
// holds the book lock and commits; any error must roll tx back.
func (m *Manager) Form(ctx context.Context, tx *store.Tx, req FormRequest) (*store.Group, error) {
	if len(req.ReaderIDs) < MinMembers {
		return nil, services.Wrap(services.ErrValidation, "lifecycle", "form",
			fmt.Sprintf("a group needs at least %d readers", MinMembers), nil)
	}
	if len(req.ReaderIDs) > m.opts.MaxMembers {
		return nil, services.Wrap(services.ErrGroupFull, "lifecycle", "form",
			fmt.Sprintf("a group holds at most %d readers", m.opts.MaxMembers), nil)
	}

	book, err := tx.Book(ctx, req.BookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, services.Wrap(services.ErrNotFound, "lifecycle", "form", "book "+req.BookID+" not found", nil)
	}

	for _, readerID := range req.ReaderIDs {
		reader, err := tx.Reader(ctx, readerID)
		if err != nil {
			return nil, err
		}
		if reader == nil {
			return nil, services.Wrap(services.ErrNotFound, "lifecycle", "form", "reader "+readerID+" not found", nil)
		}
		if reader.HasCurrentGroup() {
			return nil, services.Wrap(services.ErrAlreadyMember, "lifecycle", "form",
				"reader "+readerID+" is already in group "+reader.CurrentGroupID, nil)
		}
	}

	_, previous, err := tx.ListGroups(ctx, store.GroupFilter{BookID: book.ID, Limit: 1})
	if err != nil {
		return nil, err
	}

	now := m.opts.Now().UTC()
	group := &store.Group{
		ID:         uuid.NewString(),
		BookID:     book.ID,
		Name:       fmt.Sprintf("%s Reading Group #%d", book.Title, previous+1),
		Status:     store.GroupForming,
		MaxMembers: m.opts.MaxMembers,
		Schedule:   BuildSchedule(now),
		StartDate:  now,
		EndDate:    now.Add(m.opts.Duration),
		CreatedAt:  now,
	}
	for _, readerID := range req.ReaderIDs {
		group.Members = append(group.Members, store.Member{ReaderID: readerID, Status: store.MemberActive, JoinedAt: now})
	}
	if err := tx.InsertGroup(ctx, group); err != nil {
		return nil, err
	}

	queued := 0
	for _, readerID := range req.ReaderIDs {
		if err := tx.SetCurrentGroup(ctx, readerID, group.ID); err != nil {
			return nil, err
		}
		removed, err := tx.RemoveFromQueue(ctx, readerID, book.ID)
		if err != nil {
			return nil, err
		}
		if removed {
			queued++
		}
	}
	if _, err := m.ledger.Release(ctx, tx, book.ID, queued); err != nil {
		return nil, err
	}
	if _, err := m.ledger.RecordRead(ctx, tx, book.ID); err != nil {
		return nil, err
	}

	ok, err := tx.SetGroupStatus(ctx, group.ID, store.GroupForming, store.GroupActive)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("activate new group %s: status changed underneath", group.ID)
	}
	group.Status = store.GroupActive
	return group, nil
}

// Announce records metrics and sends the formation notification for a group
// that has been committed. Notification failures are logged only.
func (m *Manager) Announce(ctx context.Context, group *store.Group, trigger string) {
	if group == nil {
		return
	}
	metrics.RecordFormation(trigger, len(group.Members))
	metrics.GroupTransitions.WithLabelValues(string(store.GroupActive)).Inc()

	info := m.groupInfo(ctx, group)
	m.logger.Info("reading group formed",
		logging.GroupID(group.ID),
		logging.BookID(group.BookID),
		logging.String("name", group.Name),
		logging.Int("members", len(group.Members)),
		logging.String("trigger", trigger),
		logging.String(logging.FieldEventType, "group_formed"),
	)
	if err := m.notifier.NotifyGroupFormed(ctx, info, trigger); err != nil {
		m.notifyFailed(group.ID, "group_formed", err)
	}
}

// CreateManual forms a group from an explicit reader list.
func (m *Manager) CreateManual(ctx context.Context, bookID string, readerIDs []string) (*store.Group, error) {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return nil, services.Wrap(services.ErrValidation, "lifecycle", "create", "book id is required", nil)
	}
	ids, err := distinctIDs(readerIDs)
	if err != nil {
		return nil, err
	}

	unlock, err := m.books.Lock(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var group *store.Group
	err = m.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		group, err = m.Form(ctx, tx, FormRequest{BookID: bookID, ReaderIDs: ids})
		return err
	})
	if err != nil {
		return nil, err
	}
	m.Announce(ctx, group, TriggerManual)
	return group, nil
}

func distinctIDs(readerIDs []string) ([]string, error) {
	seen := make(map[string]struct{}, len(readerIDs))
	ids := make([]string, 0, len(readerIDs))
	for _, raw := range readerIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, services.Wrap(services.ErrValidation, "lifecycle", "create", "reader ids must not be empty", nil)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) < MinMembers {
		return nil, services.Wrap(services.ErrValidation, "lifecycle", "create",
			fmt.Sprintf("at least %d distinct readers are required", MinMembers), nil)
	}
	return ids, nil
}

// AddMember adds readerID to an open group. The reader must not belong to
// another group; the book leaves their queue if it was there.
func (m *Manager) AddMember(ctx context.Context, groupID, readerID string) (*store.Group, error) {
	var group *store.Group
	err := m.withGroup(ctx, groupID, "add member", func(tx *store.Tx, current *store.Group) error {
		if !current.Status.IsOpen() {
			return services.Wrap(services.ErrInvalidTransition, "lifecycle", "add member",
				"group is "+string(current.Status), nil)
		}
		reader, err := m.requireReader(ctx, tx, readerID, "add member")
		if err != nil {
			return err
		}
		if _, exists := current.Member(reader.ID); exists {
			return services.Wrap(services.ErrAlreadyMember, "lifecycle", "add member",
				"reader "+reader.ID+" already has a membership row", nil)
		}
		if reader.HasCurrentGroup() {
			return services.Wrap(services.ErrAlreadyMember, "lifecycle", "add member",
				"reader "+reader.ID+" is already in group "+reader.CurrentGroupID, nil)
		}
		if len(current.Members) >= current.MaxMembers {
			return services.Wrap(services.ErrGroupFull, "lifecycle", "add member",
				fmt.Sprintf("group has %d of %d members", len(current.Members), current.MaxMembers), nil)
		}

		if err := tx.AddMember(ctx, current.ID, store.Member{
			ReaderID: reader.ID,
			Status:   store.MemberActive,
			JoinedAt: m.opts.Now().UTC(),
		}); err != nil {
			return err
		}
		if err := tx.SetCurrentGroup(ctx, reader.ID, current.ID); err != nil {
			return err
		}
		removed, err := tx.RemoveFromQueue(ctx, reader.ID, current.BookID)
		if err != nil {
			return err
		}
		if removed {
			if _, err := m.ledger.Decrement(ctx, tx, current.BookID); err != nil {
				return err
			}
		}
		group, err = tx.Group(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("member added",
		logging.GroupID(group.ID),
		logging.ReaderID(readerID),
		logging.String(logging.FieldEventType, "member_added"),
	)
	return group, nil
}

// Leave marks the reader's own membership as left.
func (m *Manager) Leave(ctx context.Context, groupID, readerID string) (*store.Group, error) {
	return m.departMember(ctx, groupID, readerID, "leave")
}

// RemoveMember is the administrative form of Leave.
func (m *Manager) RemoveMember(ctx context.Context, groupID, readerID string) (*store.Group, error) {
	return m.departMember(ctx, groupID, readerID, "remove member")
}

func (m *Manager) departMember(ctx context.Context, groupID, readerID, op string) (*store.Group, error) {
	readerID = strings.TrimSpace(readerID)
	var (
		group      *store.Group
		readerName string
		changed    bool
	)
	err := m.withGroup(ctx, groupID, op, func(tx *store.Tx, current *store.Group) error {
		member, ok := current.Member(readerID)
		if !ok {
			return services.Wrap(services.ErrNotMember, "lifecycle", op,
				"reader "+readerID+" is not a member of group "+current.ID, nil)
		}
		if member.Status == store.MemberLeft {
			group = current
			return nil
		}
		if !member.Status.CanTransition(store.MemberLeft) {
			return services.Wrap(services.ErrInvalidTransition, "lifecycle", op,
				"member is "+string(member.Status), nil)
		}
		if err := tx.SetMemberStatus(ctx, current.ID, readerID, store.MemberLeft); err != nil {
			return err
		}
		if _, err := tx.ClearCurrentGroup(ctx, readerID, current.ID); err != nil {
			return err
		}
		if reader, err := tx.Reader(ctx, readerID); err == nil && reader != nil {
			readerName = reader.DisplayName
		}
		changed = true
		var err error
		group, err = tx.Group(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		metrics.MembersLeft.Inc()
		m.logger.Info("member left group",
			logging.GroupID(group.ID),
			logging.ReaderID(readerID),
			logging.Int("active_members", group.ActiveMemberCount()),
			logging.String(logging.FieldEventType, "member_left"),
		)
		info := m.groupInfo(ctx, group)
		if err := m.notifier.NotifyMemberLeft(ctx, info, readerName); err != nil {
			m.notifyFailed(group.ID, "member_left", err)
		}
	}
	return group, nil
}

// MarkDiscussionComplete marks week as held and records readerID as an
// attendee. Repeating the call is harmless.
func (m *Manager) MarkDiscussionComplete(ctx context.Context, groupID string, week int, readerID string) (*store.Group, error) {
	var (
		group       *store.Group
		firstFinish bool
	)
	err := m.withGroup(ctx, groupID, "complete discussion", func(tx *store.Tx, current *store.Group) error {
		discussion, ok := current.Discussion(week)
		if !ok {
			return services.Wrap(services.ErrNotFound, "lifecycle", "complete discussion",
				fmt.Sprintf("week %d not scheduled for group %s", week, current.ID), nil)
		}
		reader, err := m.requireReader(ctx, tx, readerID, "complete discussion")
		if err != nil {
			return err
		}
		found, err := tx.CompleteDiscussion(ctx, current.ID, week, reader.ID, m.opts.Now().UTC())
		if err != nil {
			return err
		}
		if !found {
			return services.Wrap(services.ErrNotFound, "lifecycle", "complete discussion",
				fmt.Sprintf("week %d not scheduled for group %s", week, current.ID), nil)
		}
		firstFinish = !discussion.Completed
		group, err = tx.Group(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if firstFinish {
		info := m.groupInfo(ctx, group)
		if err := m.notifier.NotifyDiscussionCompleted(ctx, info, week, Topic(week)); err != nil {
			m.notifyFailed(group.ID, "discussion_completed", err)
		}
	}
	return group, nil
}

// Activate moves a forming group to active.
func (m *Manager) Activate(ctx context.Context, groupID string) (*store.Group, error) {
	return m.transition(ctx, groupID, store.GroupActive, "")
}

// Complete closes an active group; active members become completed and are
// free to be matched again.
func (m *Manager) Complete(ctx context.Context, groupID string) (*store.Group, error) {
	return m.transition(ctx, groupID, store.GroupCompleted, store.MemberCompleted)
}

// Disband dissolves a forming or active group; active members become left.
func (m *Manager) Disband(ctx context.Context, groupID string) (*store.Group, error) {
	return m.transition(ctx, groupID, store.GroupDisbanded, store.MemberLeft)
}

func (m *Manager) transition(ctx context.Context, groupID string, to store.GroupStatus, memberTo store.MemberStatus) (*store.Group, error) {
	op := "transition to " + string(to)
	var group *store.Group
	err := m.withGroup(ctx, groupID, op, func(tx *store.Tx, current *store.Group) error {
		if !current.Status.CanTransition(to) {
			return services.Wrap(services.ErrInvalidTransition, "lifecycle", op,
				fmt.Sprintf("group %s cannot move from %s to %s", current.ID, current.Status, to), nil)
		}
		ok, err := tx.SetGroupStatus(ctx, current.ID, current.Status, to)
		if err != nil {
			return err
		}
		if !ok {
			return services.Wrap(services.ErrInvalidTransition, "lifecycle", op, "group status changed concurrently", nil)
		}
		if memberTo != "" {
			for _, member := range current.Members {
				if member.Status != store.MemberActive {
					continue
				}
				if err := tx.SetMemberStatus(ctx, current.ID, member.ReaderID, memberTo); err != nil {
					return err
				}
				if _, err := tx.ClearCurrentGroup(ctx, member.ReaderID, current.ID); err != nil {
					return err
				}
			}
		}
		group, err = tx.Group(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.GroupTransitions.WithLabelValues(string(to)).Inc()
	m.logger.Info("group status changed",
		logging.GroupID(group.ID),
		logging.String("status", string(to)),
		logging.String(logging.FieldEventType, "group_"+string(to)),
	)
	if to == store.GroupCompleted || to == store.GroupDisbanded {
		info := m.groupInfo(ctx, group)
		if err := m.notifier.NotifyGroupClosed(ctx, info, string(to)); err != nil {
			m.notifyFailed(group.ID, "group_closed", err)
		}
	}
	return group, nil
}

// Get loads one group.
func (m *Manager) Get(ctx context.Context, groupID string) (*store.Group, error) {
	var group *store.Group
	err := m.store.View(ctx, func(tx *store.Tx) error {
		var err error
		group, err = m.requireGroup(ctx, tx, groupID, "get")
		return err
	})
	return group, err
}

// List returns one page of groups and the total matching count.
func (m *Manager) List(ctx context.Context, filter store.GroupFilter) ([]*store.Group, int, error) {
	var (
		groups []*store.Group
		total  int
	)
	err := m.store.View(ctx, func(tx *store.Tx) error {
		var err error
		groups, total, err = tx.ListGroups(ctx, filter)
		return err
	})
	return groups, total, err
}

// Counts returns how many groups sit in each status. Every status is present.
func (m *Manager) Counts(ctx context.Context) (map[store.GroupStatus]int, error) {
	counts := make(map[store.GroupStatus]int)
	for _, status := range store.AllGroupStatuses() {
		counts[status] = 0
	}
	err := m.store.View(ctx, func(tx *store.Tx) error {
		stored, err := tx.GroupCounts(ctx)
		for status, n := range stored {
			counts[status] = n
		}
		return err
	})
	return counts, err
}

// Current returns the reader's active group, or nil when they have none.
func (m *Manager) Current(ctx context.Context, readerID string) (*store.Group, error) {
	var group *store.Group
	err := m.store.View(ctx, func(tx *store.Tx) error {
		reader, err := m.requireReader(ctx, tx, readerID, "current group")
		if err != nil {
			return err
		}
		if !reader.HasCurrentGroup() {
			return nil
		}
		group, err = tx.Group(ctx, reader.CurrentGroupID)
		return err
	})
	return group, err
}

// ReaderGroups lists every group the reader has belonged to, newest first.
func (m *Manager) ReaderGroups(ctx context.Context, readerID string) ([]*store.Group, error) {
	var groups []*store.Group
	err := m.store.View(ctx, func(tx *store.Tx) error {
		if _, err := m.requireReader(ctx, tx, readerID, "reader groups"); err != nil {
			return err
		}
		var err error
		groups, _, err = tx.ListGroups(ctx, store.GroupFilter{ReaderID: strings.TrimSpace(readerID)})
		return err
	})
	return groups, err
}

// withGroup locks groupID, opens a transaction and hands fn the current group.
func (m *Manager) withGroup(ctx context.Context, groupID, op string, fn func(*store.Tx, *store.Group) error) error {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return services.Wrap(services.ErrValidation, "lifecycle", op, "group id is required", nil)
	}
	unlock, err := m.groups.Lock(ctx, groupID)
	if err != nil {
		return err
	}
	defer unlock()

	return m.store.Update(ctx, func(tx *store.Tx) error {
		current, err := m.requireGroup(ctx, tx, groupID, op)
		if err != nil {
			return err
		}
		return fn(tx, current)
	})
}

func (m *Manager) requireGroup(ctx context.Context, tx *store.Tx, groupID, op string) (*store.Group, error) {
	groupID = strings.TrimSpace(groupID)
	group, err := tx.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, services.Wrap(services.ErrNotFound, "lifecycle", op, "group "+groupID+" not found", nil)
	}
	return group, nil
}

func (m *Manager) requireReader(ctx context.Context, tx *store.Tx, readerID, op string) (*store.Reader, error) {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return nil, services.Wrap(services.ErrValidation, "lifecycle", op, "reader id is required", nil)
	}
	reader, err := tx.Reader(ctx, readerID)
	if err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, services.Wrap(services.ErrNotFound, "lifecycle", op, "reader "+readerID+" not found", nil)
	}
	return reader, nil
}

func (m *Manager) groupInfo(ctx context.Context, group *store.Group) notifications.GroupInfo {
	info := notifications.GroupInfo{
		ID:        group.ID,
		Name:      group.Name,
		Members:   group.ActiveMemberCount(),
		StartDate: group.StartDate,
	}
	err := m.store.View(ctx, func(tx *store.Tx) error {
		book, err := tx.Book(ctx, group.BookID)
		if err != nil {
			return err
		}
		if book != nil {
			info.BookTitle = book.Title
		}
		return nil
	})
	if err != nil {
		m.logger.Debug("book title lookup for notification failed",
			logging.GroupID(group.ID),
			logging.BookID(group.BookID),
			logging.String(logging.FieldEventType, "notification_title_missing"),
			logging.Error(err),
		)
	}
	return info
}

func (m *Manager) notifyFailed(groupID, event string, err error) {
	logging.WarnWithContext(m.logger, "group notification failed", "notification_failed",
		logging.GroupID(groupID),
		logging.String("event", event),
		logging.Error(err),
		logging.String(logging.FieldImpact, "members were not pushed this update"),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and ntfy reachability"),
	)
}
