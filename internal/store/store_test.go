package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookclub/internal/store"
	"bookclub/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	states, err := st.Migrations(context.Background())
	if err != nil {
		t.Fatalf("Migrations failed: %v", err)
	}
	if len(states) == 0 {
		t.Fatal("expected embedded migrations")
	}
	for _, state := range states {
		if !state.Applied {
			t.Fatalf("migration %d not applied", state.Version)
		}
	}
	if st.Path() != cfg.DatabasePath() {
		t.Fatalf("unexpected path %q", st.Path())
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	book := testsupport.SeedBook(t, st, "Dune")
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	got := testsupport.LoadBook(t, reopened, book.ID)
	if got.Title != "Dune" {
		t.Fatalf("unexpected title %q", got.Title)
	}
}

func TestAdjustWaitingReadersClampsAtZero(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	book := testsupport.SeedBook(t, st, "Emma")

	var counts []int
	err := st.Update(ctx, func(tx *store.Tx) error {
		for _, delta := range []int{1, 1, -5, 2} {
			n, found, err := tx.AdjustWaitingReaders(ctx, book.ID, delta)
			if err != nil {
				return err
			}
			if !found {
				t.Fatalf("expected book to be found")
			}
			counts = append(counts, n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	want := []int{1, 2, 0, 2}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("step %d: got %d want %d", i, counts[i], want[i])
		}
	}

	err = st.Update(ctx, func(tx *store.Tx) error {
		_, found, err := tx.AdjustWaitingReaders(ctx, "missing", 1)
		if found {
			t.Fatal("expected missing book")
		}
		return err
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	book := testsupport.SeedBook(t, st, "Ulysses")
	reader := testsupport.SeedReader(t, st, "ana")

	sentinel := errors.New("abort")
	err := st.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.AppendQueue(ctx, reader.ID, book.ID, time.Now()); err != nil {
			return err
		}
		if _, _, err := tx.AdjustWaitingReaders(ctx, book.ID, 1); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if queue := testsupport.LoadQueue(t, st, reader.ID); len(queue) != 0 {
		t.Fatalf("expected empty queue after rollback, got %v", queue)
	}
	if got := testsupport.LoadBook(t, st, book.ID).WaitingReaders; got != 0 {
		t.Fatalf("expected waiting readers 0 after rollback, got %d", got)
	}
}

func TestQueueOrderingAndEligibility(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	book := testsupport.SeedBook(t, st, "Beloved")
	readers := testsupport.SeedReaders(t, st, 4)

	err := st.Update(ctx, func(tx *store.Tx) error {
		for _, r := range readers {
			if _, err := tx.AppendQueue(ctx, r.ID, book.ID, time.Now()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed queue: %v", err)
	}

	var eligible []string
	err = st.Update(ctx, func(tx *store.Tx) error {
		group := &store.Group{
			ID:         "g-1",
			BookID:     book.ID,
			Name:       "Existing",
			Status:     store.GroupActive,
			MaxMembers: 6,
			StartDate:  time.Now(),
			EndDate:    time.Now().Add(30 * 24 * time.Hour),
			Members:    []store.Member{{ReaderID: readers[1].ID, Status: store.MemberActive, JoinedAt: time.Now()}},
		}
		if err := tx.InsertGroup(ctx, group); err != nil {
			return err
		}
		if err := tx.SetCurrentGroup(ctx, readers[1].ID, group.ID); err != nil {
			return err
		}
		var err error
		eligible, err = tx.EligibleReaders(ctx, book.ID, 2)
		return err
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(eligible) != 2 || eligible[0] != readers[0].ID || eligible[1] != readers[2].ID {
		t.Fatalf("unexpected eligible readers %v", eligible)
	}
}

func TestDuplicateQueueEntryRejected(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	book := testsupport.SeedBook(t, st, "Middlemarch")
	reader := testsupport.SeedReader(t, st, "bo")

	err := st.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.AppendQueue(ctx, reader.ID, book.ID, time.Now()); err != nil {
			return err
		}
		_, err := tx.AppendQueue(ctx, reader.ID, book.ID, time.Now())
		return err
	})
	if err == nil {
		t.Fatal("expected unique constraint violation")
	}
}

func TestGroupRoundTripAndTransitions(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	book := testsupport.SeedBook(t, st, "Persuasion")
	readers := testsupport.SeedReaders(t, st, 3)

	now := time.Now().UTC()
	group := &store.Group{
		ID:         "g-round",
		BookID:     book.ID,
		Name:       "Persuasion Circle",
		Status:     store.GroupForming,
		MaxMembers: 6,
		StartDate:  now,
		EndDate:    now.Add(30 * 24 * time.Hour),
		CreatedAt:  now,
	}
	for _, r := range readers {
		group.Members = append(group.Members, store.Member{ReaderID: r.ID, Status: store.MemberActive, JoinedAt: now})
	}
	for week := 1; week <= 4; week++ {
		group.Schedule = append(group.Schedule, store.Discussion{Week: week, ScheduledDate: now.AddDate(0, 0, 7*week), Topic: "topic"})
	}

	err := st.Update(ctx, func(tx *store.Tx) error {
		if err := tx.InsertGroup(ctx, group); err != nil {
			return err
		}
		ok, err := tx.SetGroupStatus(ctx, group.ID, store.GroupForming, store.GroupActive)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("expected forming -> active to apply")
		}
		ok, err = tx.SetGroupStatus(ctx, group.ID, store.GroupForming, store.GroupDisbanded)
		if err != nil {
			return err
		}
		if ok {
			t.Fatal("expected stale transition to be rejected")
		}
		if err := tx.SetMemberStatus(ctx, group.ID, readers[2].ID, store.MemberLeft); err != nil {
			return err
		}
		found, err := tx.CompleteDiscussion(ctx, group.ID, 2, readers[0].ID, now)
		if err != nil {
			return err
		}
		if !found {
			t.Fatal("expected week 2 to exist")
		}
		if _, err := tx.CompleteDiscussion(ctx, group.ID, 2, readers[0].ID, now); err != nil {
			return err
		}
		found, err = tx.CompleteDiscussion(ctx, group.ID, 9, readers[0].ID, now)
		if found {
			t.Fatal("expected week 9 to be missing")
		}
		return err
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	var loaded *store.Group
	if err := st.View(ctx, func(tx *store.Tx) error {
		var err error
		loaded, err = tx.Group(ctx, group.ID)
		return err
	}); err != nil {
		t.Fatalf("load group: %v", err)
	}
	if loaded.Status != store.GroupActive {
		t.Fatalf("expected active, got %s", loaded.Status)
	}
	if len(loaded.Members) != 3 || loaded.ActiveMemberCount() != 2 {
		t.Fatalf("unexpected members %+v", loaded.Members)
	}
	if loaded.Members[0].ReaderID != readers[0].ID {
		t.Fatalf("expected member order to be preserved")
	}
	if len(loaded.Schedule) != 4 {
		t.Fatalf("expected 4 discussions, got %d", len(loaded.Schedule))
	}
	week2, _ := loaded.Discussion(2)
	if !week2.Completed || len(week2.Attendees) != 1 || week2.Attendees[0] != readers[0].ID {
		t.Fatalf("unexpected week 2 %+v", week2)
	}

	var listed []*store.Group
	var total int
	if err := st.View(ctx, func(tx *store.Tx) error {
		var err error
		listed, total, err = tx.ListGroups(ctx, store.GroupFilter{Status: store.GroupActive, ReaderID: readers[2].ID})
		return err
	}); err != nil {
		t.Fatalf("list groups: %v", err)
	}
	if total != 1 || len(listed) != 1 || listed[0].ID != group.ID {
		t.Fatalf("unexpected listing total=%d groups=%v", total, listed)
	}

	var counts map[store.GroupStatus]int
	if err := st.View(ctx, func(tx *store.Tx) error {
		var err error
		counts, err = tx.GroupCounts(ctx)
		return err
	}); err != nil {
		t.Fatalf("group counts: %v", err)
	}
	if counts[store.GroupActive] != 1 || counts[store.GroupForming] != 0 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestProgressUpsertKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	book := testsupport.SeedBook(t, st, "Walden")
	reader := testsupport.SeedReader(t, st, "cy")

	err := st.Update(ctx, func(tx *store.Tx) error {
		group := &store.Group{ID: "g-p", BookID: book.ID, Name: "Walden", Status: store.GroupActive, MaxMembers: 6, StartDate: time.Now(), EndDate: time.Now()}
		if err := tx.InsertGroup(ctx, group); err != nil {
			return err
		}
		if err := tx.UpsertProgress(ctx, store.Progress{GroupID: "g-p", ReaderID: reader.ID, CurrentPage: 10, Percentage: 5}); err != nil {
			return err
		}
		return tx.UpsertProgress(ctx, store.Progress{GroupID: "g-p", ReaderID: reader.ID, CurrentPage: 50, Percentage: 25})
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	var rows []store.Progress
	if err := st.View(ctx, func(tx *store.Tx) error {
		var err error
		rows, err = tx.GroupProgress(ctx, "g-p")
		return err
	}); err != nil {
		t.Fatalf("GroupProgress failed: %v", err)
	}
	if len(rows) != 1 || rows[0].CurrentPage != 50 || rows[0].Percentage != 25 {
		t.Fatalf("unexpected progress rows %+v", rows)
	}
}

func TestGroupStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to store.GroupStatus
		want     bool
	}{
		{store.GroupForming, store.GroupActive, true},
		{store.GroupForming, store.GroupDisbanded, true},
		{store.GroupActive, store.GroupCompleted, true},
		{store.GroupActive, store.GroupDisbanded, true},
		{store.GroupActive, store.GroupForming, false},
		{store.GroupCompleted, store.GroupActive, false},
		{store.GroupDisbanded, store.GroupActive, false},
		{store.GroupForming, store.GroupCompleted, false},
	}
	for _, tc := range tests {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
	if !store.MemberActive.CanTransition(store.MemberLeft) || store.MemberLeft.CanTransition(store.MemberActive) {
		t.Fatal("member transitions must only move forward")
	}
	if status, ok := store.ParseGroupStatus(" Active "); !ok || status != store.GroupActive {
		t.Fatalf("ParseGroupStatus: %v %v", status, ok)
	}
	if _, ok := store.ParseGroupStatus("paused"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestListGroupsNewestFirstWithinOneSecond(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	book := testsupport.SeedBook(t, st, "Dune")

	second := time.Date(2026, 3, 1, 18, 0, 5, 0, time.UTC)
	older := &store.Group{
		ID: "g-older", BookID: book.ID, Name: "Dune Reading Group #1",
		Status: store.GroupActive, MaxMembers: 6,
		StartDate: second, EndDate: second.AddDate(0, 0, 30),
		CreatedAt: second.Add(100 * time.Millisecond),
	}
	newer := &store.Group{
		ID: "g-newer", BookID: book.ID, Name: "Dune Reading Group #2",
		Status: store.GroupActive, MaxMembers: 6,
		StartDate: second, EndDate: second.AddDate(0, 0, 30),
		CreatedAt: second.Add(120 * time.Millisecond),
	}
	if err := st.Update(ctx, func(tx *store.Tx) error {
		if err := tx.InsertGroup(ctx, older); err != nil {
			return err
		}
		return tx.InsertGroup(ctx, newer)
	}); err != nil {
		t.Fatalf("insert groups: %v", err)
	}

	var groups []*store.Group
	if err := st.View(ctx, func(tx *store.Tx) error {
		var err error
		groups, _, err = tx.ListGroups(ctx, store.GroupFilter{BookID: book.ID})
		return err
	}); err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 2 || groups[0].ID != "g-newer" || groups[1].ID != "g-older" {
		t.Fatalf("expected newest group first, got %+v", groups)
	}
	if !groups[1].CreatedAt.Equal(older.CreatedAt) {
		t.Fatalf("created_at round trip: got %v want %v", groups[1].CreatedAt, older.CreatedAt)
	}
}
