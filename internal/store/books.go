package store

import (
	"context"
	"fmt"
)

const bookColumns = "id, title, author, genre, page_count, waiting_readers, total_reads, is_active, created_at, updated_at"

func scanBook(row scanner) (*Book, error) {
	var (
		book               Book
		active             int
		createdRaw, updRaw string
	)
	if err := row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.Genre,
		&book.PageCount,
		&book.WaitingReaders,
		&book.TotalReads,
		&active,
		&createdRaw,
		&updRaw,
	); err != nil {
		return nil, err
	}
	book.Active = active != 0
	book.CreatedAt = parseTime(createdRaw)
	book.UpdatedAt = parseTime(updRaw)
	return &book, nil
}

// InsertBook stores a new catalog entry. Demand counters start at zero.
func (tx *Tx) InsertBook(ctx context.Context, book *Book) error {
	created := formatTime(book.CreatedAt)
	_, err := tx.q.ExecContext(ctx,
		`INSERT INTO books (id, title, author, genre, page_count, waiting_readers, total_reads, is_active, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?, ?)`,
		book.ID, book.Title, book.Author, book.Genre, book.PageCount, boolInt(book.Active), created, created,
	)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	book.WaitingReaders = 0
	book.TotalReads = 0
	book.CreatedAt = parseTime(created)
	book.UpdatedAt = book.CreatedAt
	return nil
}

// Book loads a book by id.
func (tx *Tx) Book(ctx context.Context, id string) (*Book, error) {
	row := tx.q.QueryRowContext(ctx, "SELECT "+bookColumns+" FROM books WHERE id = ?", id)
	book, err := scanBook(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// BookByTitleAuthor finds a book by case-insensitive title and author.
func (tx *Tx) BookByTitleAuthor(ctx context.Context, title, author string) (*Book, error) {
	row := tx.q.QueryRowContext(ctx,
		"SELECT "+bookColumns+" FROM books WHERE lower(title) = lower(?) AND lower(author) = lower(?)",
		title, author,
	)
	book, err := scanBook(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find book: %w", err)
	}
	return book, nil
}

// ListBooks returns one page of active books plus the total matching count.
func (tx *Tx) ListBooks(ctx context.Context, filter BookFilter) ([]*Book, int, error) {
	where := "WHERE is_active = 1"
	args := []any{}
	if filter.Genre != "" {
		where += " AND genre = ?"
		args = append(args, filter.Genre)
	}

	var total int
	if err := tx.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM books "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	order := "waiting_readers DESC, created_at DESC"
	switch filter.Sort {
	case SortByReads:
		order = "total_reads DESC, created_at DESC"
	case SortByNewest:
		order = "created_at DESC"
	case SortByTitle:
		order = "lower(title) ASC"
	}
	query := "SELECT " + bookColumns + " FROM books " + where + " ORDER BY " + order + ", id LIMIT ? OFFSET ?"
	args = append(args, limitOrAll(filter.Limit), max(filter.Offset, 0))

	books, err := tx.queryBooks(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// BooksByDemand lists active books with at least minWaiting waiting readers,
// highest demand first.
func (tx *Tx) BooksByDemand(ctx context.Context, minWaiting, limit int) ([]*Book, error) {
	return tx.queryBooks(ctx,
		"SELECT "+bookColumns+" FROM books WHERE is_active = 1 AND waiting_readers >= ? ORDER BY waiting_readers DESC, created_at ASC, id LIMIT ?",
		minWaiting, limitOrAll(limit),
	)
}

func (tx *Tx) queryBooks(ctx context.Context, query string, args ...any) ([]*Book, error) {
	rows, err := tx.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

// AdjustWaitingReaders adds delta to the book's waiting count, clamping at
// zero, and returns the new count. found is false when the book is missing.
func (tx *Tx) AdjustWaitingReaders(ctx context.Context, id string, delta int) (count int, found bool, err error) {
	err = tx.q.QueryRowContext(ctx,
		`UPDATE books SET waiting_readers = MAX(0, waiting_readers + ?), updated_at = ?
         WHERE id = ? RETURNING waiting_readers`,
		delta, nowString(), id,
	).Scan(&count)
	if noRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("adjust waiting readers: %w", err)
	}
	return count, true, nil
}

// IncrementTotalReads records one formed group for the book.
func (tx *Tx) IncrementTotalReads(ctx context.Context, id string) (count int, found bool, err error) {
	err = tx.q.QueryRowContext(ctx,
		`UPDATE books SET total_reads = total_reads + 1, updated_at = ? WHERE id = ? RETURNING total_reads`,
		nowString(), id,
	).Scan(&count)
	if noRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment total reads: %w", err)
	}
	return count, true, nil
}
