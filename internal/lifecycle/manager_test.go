package lifecycle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookclub/internal/config"
	"bookclub/internal/keylock"
	"bookclub/internal/ledger"
	"bookclub/internal/lifecycle"
	"bookclub/internal/logging"
	"bookclub/internal/services"
	"bookclub/internal/store"
	"bookclub/internal/testsupport"
)

var fixedNow = time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)

func newManager(t *testing.T, opts ...testsupport.ConfigOption) (*lifecycle.Manager, *store.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := lifecycle.New(st, ledger.New(st, logger), keylock.New(), keylock.New(), nil, logger, lifecycle.Options{
		MaxMembers: cfg.Groups.MaxMembers,
		Duration:   cfg.GroupDuration(),
		Now:        func() time.Time { return fixedNow },
	})
	return mgr, st, cfg
}

func readerIDs(readers []*store.Reader) []string {
	ids := make([]string, 0, len(readers))
	for _, r := range readers {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestCreateManualFormsActiveGroupWithSchedule(t *testing.T) {
	ctx := context.Background()
	mgr, st, _ := newManager(t)
	book := testsupport.SeedBook(t, st, "Dune")
	readers := testsupport.SeedReaders(t, st, 4)
	for _, r := range readers[:3] {
		testsupport.QueueBook(t, st, r.ID, book.ID)
	}

	group, err := mgr.CreateManual(ctx, book.ID, readerIDs(readers))
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}
	if group.Status != store.GroupActive {
		t.Fatalf("status = %s, want active", group.Status)
	}
	if group.Name != "Dune Reading Group #1" {
		t.Fatalf("name = %q", group.Name)
	}
	if len(group.Members) != 4 {
		t.Fatalf("members = %d, want 4", len(group.Members))
	}
	if !group.EndDate.Equal(fixedNow.Add(30 * 24 * time.Hour)) {
		t.Fatalf("end date = %s", group.EndDate)
	}
	if len(group.Schedule) != lifecycle.ScheduleWeeks {
		t.Fatalf("schedule length = %d", len(group.Schedule))
	}
	for i, d := range group.Schedule {
		want := fixedNow.AddDate(0, 0, 7*(i+1))
		if d.Week != i+1 || !d.ScheduledDate.Equal(want) || d.Topic != lifecycle.Topic(i+1) || d.Completed {
			t.Fatalf("week %d = %+v", i+1, d)
		}
	}

	stored := testsupport.LoadBook(t, st, book.ID)
	if stored.WaitingReaders != 0 {
		t.Fatalf("waiting readers = %d, want 0", stored.WaitingReaders)
	}
	if stored.TotalReads != 1 {
		t.Fatalf("total reads = %d, want 1", stored.TotalReads)
	}
	for _, r := range readers {
		if got := testsupport.LoadReader(t, st, r.ID).CurrentGroupID; got != group.ID {
			t.Fatalf("reader %s current group = %q", r.DisplayName, got)
		}
		if q := testsupport.LoadQueue(t, st, r.ID); len(q) != 0 {
			t.Fatalf("reader %s queue = %v, want empty", r.DisplayName, q)
		}
	}

	second := testsupport.SeedReaders(t, st, 3)
	again, err := mgr.CreateManual(ctx, book.ID, readerIDs(second))
	if err != nil {
		t.Fatalf("second CreateManual: %v", err)
	}
	if again.Name != "Dune Reading Group #2" {
		t.Fatalf("second name = %q", again.Name)
	}
}

func TestCreateManualReleasesOnlyQueuedDemand(t *testing.T) {
	ctx := context.Background()
	mgr, st, _ := newManager(t)
	book := testsupport.SeedBook(t, st, "Emma")
	members := testsupport.SeedReaders(t, st, 3)
	bystander := testsupport.SeedReader(t, st, "bystander")
	testsupport.QueueBook(t, st, members[0].ID, book.ID)
	testsupport.QueueBook(t, st, bystander.ID, book.ID)

	if _, err := mgr.CreateManual(ctx, book.ID, readerIDs(members)); err != nil {
		t.Fatalf("CreateManual: %v", err)
	}
	if got := testsupport.LoadBook(t, st, book.ID).WaitingReaders; got != 1 {
		t.Fatalf("waiting readers = %d, want 1 (bystander only)", got)
	}
	if q := testsupport.LoadQueue(t, st, bystander.ID); len(q) != 1 {
		t.Fatalf("bystander queue = %v", q)
	}
}

func TestCreateManualRejections(t *testing.T) {
	ctx := context.Background()
	mgr, st, _ := newManager(t)
	book := testsupport.SeedBook(t, st, "Ulysses")
	readers := testsupport.SeedReaders(t, st, 7)
	ids := readerIDs(readers)

	if _, err := mgr.CreateManual(ctx, book.ID, readerIDs(testsupport.SeedReaders(t, st, 3))); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	var busy []string
	_ = st.View(ctx, func(tx *store.Tx) error {
		groups, _, err := tx.ListGroups(ctx, store.GroupFilter{})
		if err == nil && len(groups) == 1 {
			busy = append(busy, groups[0].Members[0].ReaderID)
		}
		return err
	})

	tests := []struct {
		name    string
		bookID  string
		readers []string
		want    error
	}{
		{"too few", book.ID, ids[:2], services.ErrValidation},
		{"duplicates collapse", book.ID, []string{ids[0], ids[0], ids[1]}, services.ErrValidation},
		{"blank id", book.ID, []string{ids[0], " ", ids[1]}, services.ErrValidation},
		{"too many", book.ID, ids, services.ErrGroupFull},
		{"unknown book", "missing", ids[:3], services.ErrNotFound},
		{"unknown reader", book.ID, []string{ids[0], ids[1], "ghost"}, services.ErrNotFound},
		{"reader already grouped", book.ID, []string{ids[0], ids[1], busy[0]}, services.ErrAlreadyMember},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := mgr.CreateManual(ctx, tc.bookID, tc.readers)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	for _, id := range ids[:2] {
		if testsupport.LoadReader(t, st, id).HasCurrentGroup() {
			t.Fatalf("failed creation left reader %s grouped", id)
		}
	}
}

func TestLeaveIsIdempotentAndClearsCurrentGroup(t *testing.T) {
	ctx := context.Background()
	mgr, st, _ := newManager(t)
	book := testsupport.SeedBook(t, st, "Beloved")
	readers := testsupport.SeedReaders(t, st, 3)
	group, err := mgr.CreateManual(ctx, book.ID, readerIDs(readers))
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}

	updated, err := mgr.Leave(ctx, group.ID, readers[0].ID)
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if m, _ := updated.Member(readers[0].ID); m.Status != store.MemberLeft {
		t.Fatalf("member status = %s", m.Status)
	}
	if len(updated.Members) != 3 || updated.ActiveMemberCount() != 2 {
		t.Fatalf("members = %d active = %d", len(updated.Members), updated.ActiveMemberCount())
	}
	if updated.Status != store.GroupActive {
		t.Fatalf("group status = %s, want active", updated.Status)
	}
	if testsupport.LoadReader(t, st, readers[0].ID).HasCurrentGroup() {
		t.Fatal("current group not cleared")
	}

	if _, err := mgr.Leave(ctx, group.ID, readers[0].ID); err != nil {
		t.Fatalf("second Leave: %v", err)
	}
	outsider := testsupport.SeedReader(t, st, "outsider")
	if _, err := mgr.RemoveMember(ctx, group.ID, outsider.ID); !errors.Is(err, services.ErrNotMember) {
		t.Fatalf("RemoveMember outsider err = %v", err)
	}
	if _, err := mgr.Leave(ctx, "nope", readers[1].ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Leave unknown group err = %v", err)
	}
}

func TestAddMember(t *testing.T) {
	ctx := context.Background()
	mgr, st, _ := newManager(t, testsupport.WithMaxMembers(4))
	book := testsupport.SeedBook(t, st, "Middlemarch")
	readers := testsupport.SeedReaders(t, st, 5)
	group, err := mgr.CreateManual(ctx, book.ID, readerIDs(readers[:3]))
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}

	testsupport.QueueBook(t, st, readers[3].ID, book.ID)
	updated, err := mgr.AddMember(ctx, group.ID, readers[3].ID)
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if !updated.IsActiveMember(readers[3].ID) {
		t.Fatal("new member not active")
	}
	if got := testsupport.LoadBook(t, st, book.ID).WaitingReaders; got != 0 {
		t.Fatalf("waiting = %d, want 0", got)
	}
	if q := testsupport.LoadQueue(t, st, readers[3].ID); len(q) != 0 {
		t.Fatalf("queue = %v", q)
	}

	if _, err := mgr.AddMember(ctx, group.ID, readers[3].ID); !errors.Is(err, services.ErrAlreadyMember) {
		t.Fatalf("duplicate AddMember err = %v", err)
	}
	if _, err := mgr.AddMember(ctx, group.ID, readers[4].ID); !errors.Is(err, services.ErrGroupFull) {
		t.Fatalf("full AddMember err = %v", err)
	}

	// Left rows still count toward the cap.
	if _, err := mgr.Leave(ctx, group.ID, readers[0].ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if _, err := mgr.AddMember(ctx, group.ID, readers[4].ID); !errors.Is(err, services.ErrGroupFull) {
		t.Fatalf("AddMember after leave err = %v", err)
	}
}

func TestCompleteAndDisbandTransitions(t *testing.T) {
	ctx := context.Background()
	mgr, st, _ := newManager(t)
	book := testsupport.SeedBook(t, st, "Persuasion")
	first := testsupport.SeedReaders(t, st, 3)
	second := testsupport.SeedReaders(t, st, 3)

	g1, err := mgr.CreateManual(ctx, book.ID, readerIDs(first))
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}
	if _, err := mgr.Leave(ctx, g1.ID, first[0].ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if _, err := mgr.Activate(ctx, g1.ID); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("Activate active err = %v", err)
	}

	completed, err := mgr.Complete(ctx, g1.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != store.GroupCompleted {
		t.Fatalf("status = %s", completed.Status)
	}
	if m, _ := completed.Member(first[0].ID); m.Status != store.MemberLeft {
		t.Fatalf("left member became %s", m.Status)
	}
	for _, r := range first[1:] {
		if m, _ := completed.Member(r.ID); m.Status != store.MemberCompleted {
			t.Fatalf("member %s status = %s", r.DisplayName, m.Status)
		}
		if testsupport.LoadReader(t, st, r.ID).HasCurrentGroup() {
			t.Fatalf("reader %s still grouped", r.DisplayName)
		}
	}
	if _, err := mgr.Leave(ctx, g1.ID, first[1].ID); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("Leave completed member err = %v", err)
	}
	if _, err := mgr.Disband(ctx, g1.ID); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("Disband completed err = %v", err)
	}

	g2, err := mgr.CreateManual(ctx, book.ID, readerIDs(second))
	if err != nil {
		t.Fatalf("CreateManual second: %v", err)
	}
	disbanded, err := mgr.Disband(ctx, g2.ID)
	if err != nil {
		t.Fatalf("Disband: %v", err)
	}
	for _, m := range disbanded.Members {
		if m.Status != store.MemberLeft {
			t.Fatalf("member status after disband = %s", m.Status)
		}
	}
	if testsupport.LoadReader(t, st, second[0].ID).HasCurrentGroup() {
		t.Fatal("disband did not clear current group")
	}
}

func TestMarkDiscussionComplete(t *testing.T) {
	ctx := context.Background()
	mgr, st, _ := newManager(t)
	book := testsupport.SeedBook(t, st, "Dubliners")
	readers := testsupport.SeedReaders(t, st, 3)
	group, err := mgr.CreateManual(ctx, book.ID, readerIDs(readers))
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}

	for i := 0; i < 2; i++ {
		updated, err := mgr.MarkDiscussionComplete(ctx, group.ID, 2, readers[0].ID)
		if err != nil {
			t.Fatalf("MarkDiscussionComplete #%d: %v", i, err)
		}
		d, _ := updated.Discussion(2)
		if !d.Completed || len(d.Attendees) != 1 || d.Attendees[0] != readers[0].ID {
			t.Fatalf("week 2 = %+v", d)
		}
	}
	if _, err := mgr.MarkDiscussionComplete(ctx, group.ID, 5, readers[0].ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("week 5 err = %v", err)
	}
	if _, err := mgr.MarkDiscussionComplete(ctx, "missing", 1, readers[0].ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing group err = %v", err)
	}
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	mgr, st, _ := newManager(t)
	book := testsupport.SeedBook(t, st, "Walden")
	readers := testsupport.SeedReaders(t, st, 3)
	loner := testsupport.SeedReader(t, st, "loner")

	group, err := mgr.CreateManual(ctx, book.ID, readerIDs(readers))
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}
	current, err := mgr.Current(ctx, readers[0].ID)
	if err != nil || current == nil || current.ID != group.ID {
		t.Fatalf("Current = %v, %v", current, err)
	}
	if none, err := mgr.Current(ctx, loner.ID); err != nil || none != nil {
		t.Fatalf("Current for loner = %v, %v", none, err)
	}
	if _, err := mgr.Current(ctx, "ghost"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Current ghost err = %v", err)
	}

	if _, err := mgr.Leave(ctx, group.ID, readers[0].ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	history, err := mgr.ReaderGroups(ctx, readers[0].ID)
	if err != nil || len(history) != 1 {
		t.Fatalf("ReaderGroups = %d, %v", len(history), err)
	}

	groups, total, err := mgr.List(ctx, store.GroupFilter{Status: store.GroupActive})
	if err != nil || total != 1 || len(groups) != 1 {
		t.Fatalf("List = %d/%d, %v", len(groups), total, err)
	}
	if _, err := mgr.Get(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Get missing err = %v", err)
	}

	counts, err := mgr.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[store.GroupActive] != 1 || counts[store.GroupCompleted] != 0 || len(counts) != len(store.AllGroupStatuses()) {
		t.Fatalf("Counts = %v", counts)
	}
}
