// Package catalog is the minimal book and reader registry the matching
// core addresses by id. It adds books and readers, lists books by demand and
// answers identity lookups for the API.
package catalog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"bookclub/internal/logging"
	"bookclub/internal/services"
	"bookclub/internal/store"
	"bookclub/internal/validation"
)

// Genres is the fixed list books are filed under.
var Genres = []string{
	"Fiction",
	"Non-Fiction",
	"Science Fiction",
	"Fantasy",
	"Mystery",
	"Thriller",
	"Romance",
	"Historical Fiction",
	"Biography",
	"Self-Help",
	"Poetry",
	"Drama",
	"Horror",
	"Young Adult",
	"Classic",
	"Comic/Graphic Novel",
	"Fanfiction",
	"Manga",
	"Other",
}

// GenreOther is used when a genre is not recognised.
const GenreOther = "Other"

// genreKeys maps the folded form of each genre to its display form.
var genreKeys = func() map[string]string {
	folder := cases.Fold()
	m := make(map[string]string, len(Genres))
	for _, g := range Genres {
		m[folder.String(g)] = g
	}
	return m
}()

// CanonicalGenre maps free text onto the genre list, case-insensitively.
// Unknown or empty input becomes GenreOther.
func CanonicalGenre(raw string) string {
	raw = strings.Join(strings.Fields(raw), " ")
	if raw == "" {
		return GenreOther
	}
	// Casers carry state and must not be shared between goroutines.
	folder := cases.Fold()
	if g, ok := genreKeys[folder.String(raw)]; ok {
		return g
	}
	spaced := strings.Join(strings.Fields(strings.ReplaceAll(raw, "_", " ")), " ")
	if g, ok := genreKeys[folder.String(spaced)]; ok {
		return g
	}
	return GenreOther
}

// NewBook is the input to AddBook.
type NewBook struct {
	Title     string `json:"title" validate:"required,max=200"`
	Author    string `json:"author" validate:"required,max=100"`
	Genre     string `json:"genre"`
	PageCount int    `json:"pageCount" validate:"gte=0"`
}

// NewReader is the input to RegisterReader.
type NewReader struct {
	DisplayName string `json:"displayName" validate:"required,min=2,max=50"`
}

// Options tunes listing sizes.
type Options struct {
	AlmostReadyMin   int
	AlmostReadyLimit int
	PageSize         int
}

// Profile is a reader with their queue and group history.
type Profile struct {
	Reader   *store.Reader
	Queue    []store.QueueEntry
	GroupIDs []string
}

// Stats summarises a reader's activity.
type Stats struct {
	QueueSize       int
	TotalGroups     int
	CompletedBooks  int
	HasCurrentGroup bool
}

// Catalog serves book and reader records.
type Catalog struct {
	store  *store.Store
	logger *slog.Logger
	opts   Options
}

// New constructs a Catalog.
func New(st *store.Store, logger *slog.Logger, opts Options) *Catalog {
	if opts.AlmostReadyMin <= 0 {
		opts.AlmostReadyMin = 2
	}
	if opts.AlmostReadyLimit <= 0 {
		opts.AlmostReadyLimit = 20
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	return &Catalog{store: st, logger: logging.NewComponentLogger(logger, "catalog"), opts: opts}
}

// PageSize returns the default book page size.
func (c *Catalog) PageSize() int { return c.opts.PageSize }

func cleanText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// AddBook registers a book. A book with the same title and author
// (case-insensitive) fails with AlreadyExists.
func (c *Catalog) AddBook(ctx context.Context, in NewBook) (*store.Book, error) {
	in.Title = cleanText(in.Title)
	in.Author = cleanText(in.Author)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	book := &store.Book{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Author:    in.Author,
		Genre:     CanonicalGenre(in.Genre),
		PageCount: in.PageCount,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	err := c.store.Update(ctx, func(tx *store.Tx) error {
		existing, err := tx.BookByTitleAuthor(ctx, book.Title, book.Author)
		if err != nil {
			return err
		}
		if existing != nil {
			return services.Wrap(services.ErrAlreadyExists, "catalog", "add book",
				"book already exists with id "+existing.ID, nil)
		}
		return tx.InsertBook(ctx, book)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("book added",
		logging.BookID(book.ID),
		logging.String("title", book.Title),
		logging.String("genre", book.Genre),
		logging.String(logging.FieldEventType, "book_added"),
	)
	return book, nil
}

// Book loads one book.
func (c *Catalog) Book(ctx context.Context, id string) (*store.Book, error) {
	var book *store.Book
	err := c.store.View(ctx, func(tx *store.Tx) error {
		var err error
		book, err = tx.Book(ctx, strings.TrimSpace(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "book", "book "+id+" not found", nil)
	}
	return book, nil
}

// ListBooks returns one page of active books and the total count. An empty
// genre matches all; a non-empty one is canonicalised first.
func (c *Catalog) ListBooks(ctx context.Context, filter store.BookFilter) ([]*store.Book, int, error) {
	if strings.TrimSpace(filter.Genre) != "" {
		filter.Genre = CanonicalGenre(filter.Genre)
	}
	if filter.Limit <= 0 {
		filter.Limit = c.opts.PageSize
	}
	var (
		books []*store.Book
		total int
	)
	err := c.store.View(ctx, func(tx *store.Tx) error {
		var err error
		books, total, err = tx.ListBooks(ctx, filter)
		return err
	})
	return books, total, err
}

// AlmostReady lists books close to forming a group, highest demand first.
func (c *Catalog) AlmostReady(ctx context.Context) ([]*store.Book, error) {
	var books []*store.Book
	err := c.store.View(ctx, func(tx *store.Tx) error {
		var err error
		books, err = tx.BooksByDemand(ctx, c.opts.AlmostReadyMin, c.opts.AlmostReadyLimit)
		return err
	})
	return books, err
}

// RegisterReader creates a reader identity.
func (c *Catalog) RegisterReader(ctx context.Context, in NewReader) (*store.Reader, error) {
	in.DisplayName = cleanText(in.DisplayName)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	reader := &store.Reader{
		ID:          uuid.NewString(),
		DisplayName: in.DisplayName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.store.Update(ctx, func(tx *store.Tx) error {
		return tx.InsertReader(ctx, reader)
	}); err != nil {
		return nil, err
	}
	c.logger.Info("reader registered",
		logging.ReaderID(reader.ID),
		logging.String(logging.FieldEventType, "reader_registered"),
	)
	return reader, nil
}

// ResolveReader confirms id names a reader.
func (c *Catalog) ResolveReader(ctx context.Context, id string) (*store.Reader, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "resolve reader", "reader id is required", nil)
	}
	var reader *store.Reader
	err := c.store.View(ctx, func(tx *store.Tx) error {
		var err error
		reader, err = tx.Reader(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "resolve reader", "reader "+id+" not found", nil)
	}
	return reader, nil
}

// Reader returns a reader profile.
func (c *Catalog) Reader(ctx context.Context, id string) (*Profile, error) {
	reader, err := c.ResolveReader(ctx, id)
	if err != nil {
		return nil, err
	}
	profile := &Profile{Reader: reader}
	err = c.store.View(ctx, func(tx *store.Tx) error {
		var err error
		if profile.Queue, err = tx.Queue(ctx, reader.ID); err != nil {
			return err
		}
		profile.GroupIDs, err = tx.ReaderGroupIDs(ctx, reader.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Stats returns activity totals for a reader.
func (c *Catalog) Stats(ctx context.Context, id string) (Stats, error) {
	reader, err := c.ResolveReader(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	var counts store.ReaderCounts
	err = c.store.View(ctx, func(tx *store.Tx) error {
		var err error
		counts, err = tx.CountReaderActivity(ctx, reader.ID)
		return err
	})
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		QueueSize:       counts.Queued,
		TotalGroups:     counts.Groups,
		CompletedBooks:  counts.CompletedGroups,
		HasCurrentGroup: reader.HasCurrentGroup(),
	}, nil
}
