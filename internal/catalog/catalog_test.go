package catalog_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bookclub/internal/catalog"
	"bookclub/internal/logging"
	"bookclub/internal/services"
	"bookclub/internal/store"
	"bookclub/internal/testsupport"
	"bookclub/internal/validation"
)

func newCatalog(t *testing.T) (*catalog.Catalog, *store.Store) {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	return catalog.New(st, logging.NewNop(), catalog.Options{}), st
}

func TestCanonicalGenre(t *testing.T) {
	tests := map[string]string{
		"science fiction":     "Science Fiction",
		"  SELF-HELP ":        "Self-Help",
		"young_adult":         "Young Adult",
		"comic/graphic novel": "Comic/Graphic Novel",
		"":                    "Other",
		"cookbooks":           "Other",
	}
	for in, want := range tests {
		if got := catalog.CanonicalGenre(in); got != want {
			t.Errorf("CanonicalGenre(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAddBook(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)

	book, err := c.AddBook(ctx, catalog.NewBook{Title: "  The   Left Hand of Darkness ", Author: "Ursula K. Le Guin", Genre: "science fiction", PageCount: 304})
	if err != nil {
		t.Fatalf("AddBook: %v", err)
	}
	if book.Title != "The Left Hand of Darkness" || book.Genre != "Science Fiction" || book.WaitingReaders != 0 {
		t.Fatalf("book = %+v", book)
	}

	_, err = c.AddBook(ctx, catalog.NewBook{Title: "the left hand of darkness", Author: "URSULA K. LE GUIN"})
	if !errors.Is(err, services.ErrAlreadyExists) {
		t.Fatalf("duplicate err = %v", err)
	}

	_, err = c.AddBook(ctx, catalog.NewBook{Title: strings.Repeat("x", 201), Author: ""})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("invalid err = %v", err)
	}
	if fields := validation.Details(err); len(fields) != 2 {
		t.Fatalf("fields = %+v", fields)
	}

	got, err := c.Book(ctx, book.ID)
	if err != nil || got.ID != book.ID {
		t.Fatalf("Book = %+v, %v", got, err)
	}
	if _, err := c.Book(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing book err = %v", err)
	}
}

func TestListBooksAndAlmostReady(t *testing.T) {
	ctx := context.Background()
	c, st := newCatalog(t)
	quiet := testsupport.SeedBook(t, st, "Quiet")
	busy := testsupport.SeedBook(t, st, "Busy")
	warm := testsupport.SeedBook(t, st, "Warm")
	readers := testsupport.SeedReaders(t, st, 3)
	for _, r := range readers {
		testsupport.QueueBook(t, st, r.ID, busy.ID)
	}
	testsupport.QueueBook(t, st, readers[0].ID, warm.ID)
	testsupport.QueueBook(t, st, readers[1].ID, warm.ID)

	books, total, err := c.ListBooks(ctx, store.BookFilter{Sort: store.SortByDemand})
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if total != 3 || books[0].ID != busy.ID || books[1].ID != warm.ID || books[2].ID != quiet.ID {
		t.Fatalf("order = %v", []string{books[0].Title, books[1].Title, books[2].Title})
	}

	if _, total, _ := c.ListBooks(ctx, store.BookFilter{Genre: "fiction"}); total != 3 {
		t.Fatalf("genre filter total = %d", total)
	}
	if _, total, _ := c.ListBooks(ctx, store.BookFilter{Genre: "Horror"}); total != 0 {
		t.Fatalf("horror total = %d", total)
	}

	ready, err := c.AlmostReady(ctx)
	if err != nil {
		t.Fatalf("AlmostReady: %v", err)
	}
	if len(ready) != 2 || ready[0].ID != busy.ID || ready[1].ID != warm.ID {
		t.Fatalf("almost ready = %d books", len(ready))
	}
}

func TestReaders(t *testing.T) {
	ctx := context.Background()
	c, st := newCatalog(t)

	reader, err := c.RegisterReader(ctx, catalog.NewReader{DisplayName: " Ada "})
	if err != nil {
		t.Fatalf("RegisterReader: %v", err)
	}
	if reader.DisplayName != "Ada" {
		t.Fatalf("display name = %q", reader.DisplayName)
	}
	if _, err := c.RegisterReader(ctx, catalog.NewReader{DisplayName: "A"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("short name err = %v", err)
	}

	book := testsupport.SeedBook(t, st, "Dune")
	testsupport.QueueBook(t, st, reader.ID, book.ID)

	profile, err := c.Reader(ctx, reader.ID)
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	if len(profile.Queue) != 1 || profile.Queue[0].BookID != book.ID || len(profile.GroupIDs) != 0 {
		t.Fatalf("profile = %+v", profile)
	}

	stats, err := c.Stats(ctx, reader.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.QueueSize != 1 || stats.TotalGroups != 0 || stats.HasCurrentGroup {
		t.Fatalf("stats = %+v", stats)
	}

	if _, err := c.ResolveReader(ctx, "ghost"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("ghost err = %v", err)
	}
	if _, err := c.ResolveReader(ctx, ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("blank err = %v", err)
	}
}
