package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertReader registers a reader.
func (tx *Tx) InsertReader(ctx context.Context, reader *Reader) error {
	created := formatTime(reader.CreatedAt)
	if _, err := tx.q.ExecContext(ctx,
		"INSERT INTO readers (id, display_name, current_group_id, created_at) VALUES (?, ?, ?, ?)",
		reader.ID, reader.DisplayName, nullableString(reader.CurrentGroupID), created,
	); err != nil {
		return fmt.Errorf("insert reader: %w", err)
	}
	reader.CreatedAt = parseTime(created)
	return nil
}

// Reader loads a reader by id.
func (tx *Tx) Reader(ctx context.Context, id string) (*Reader, error) {
	var (
		reader     Reader
		current    sql.NullString
		createdRaw string
	)
	err := tx.q.QueryRowContext(ctx,
		"SELECT id, display_name, current_group_id, created_at FROM readers WHERE id = ?", id,
	).Scan(&reader.ID, &reader.DisplayName, &current, &createdRaw)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reader: %w", err)
	}
	reader.CurrentGroupID = current.String
	reader.CreatedAt = parseTime(createdRaw)
	return &reader, nil
}

// Queue returns a reader's queue in insertion order.
func (tx *Tx) Queue(ctx context.Context, readerID string) ([]QueueEntry, error) {
	rows, err := tx.q.QueryContext(ctx,
		"SELECT position, reader_id, book_id, queued_at FROM reader_queue WHERE reader_id = ? ORDER BY position",
		readerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		var (
			entry     QueueEntry
			queuedRaw string
		)
		if err := rows.Scan(&entry.Position, &entry.ReaderID, &entry.BookID, &queuedRaw); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entry.QueuedAt = parseTime(queuedRaw)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue: %w", err)
	}
	return entries, nil
}

// InQueue reports whether bookID is in the reader's queue.
func (tx *Tx) InQueue(ctx context.Context, readerID, bookID string) (bool, error) {
	var n int
	if err := tx.q.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM reader_queue WHERE reader_id = ? AND book_id = ?", readerID, bookID,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("check queue: %w", err)
	}
	return n > 0, nil
}

// AppendQueue adds bookID to the end of the reader's queue.
func (tx *Tx) AppendQueue(ctx context.Context, readerID, bookID string, at time.Time) (QueueEntry, error) {
	queued := formatTime(at)
	res, err := tx.q.ExecContext(ctx,
		"INSERT INTO reader_queue (reader_id, book_id, queued_at) VALUES (?, ?, ?)",
		readerID, bookID, queued,
	)
	if err != nil {
		return QueueEntry{}, fmt.Errorf("append queue: %w", err)
	}
	position, err := res.LastInsertId()
	if err != nil {
		return QueueEntry{}, fmt.Errorf("last insert id: %w", err)
	}
	return QueueEntry{Position: position, ReaderID: readerID, BookID: bookID, QueuedAt: parseTime(queued)}, nil
}

// RemoveFromQueue deletes bookID from the reader's queue and reports whether
// a row existed.
func (tx *Tx) RemoveFromQueue(ctx context.Context, readerID, bookID string) (bool, error) {
	res, err := tx.q.ExecContext(ctx,
		"DELETE FROM reader_queue WHERE reader_id = ? AND book_id = ?", readerID, bookID,
	)
	if err != nil {
		return false, fmt.Errorf("remove from queue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// EligibleReaders returns up to limit readers who queued bookID and are not
// in an active group, in queue order.
func (tx *Tx) EligibleReaders(ctx context.Context, bookID string, limit int) ([]string, error) {
	rows, err := tx.q.QueryContext(ctx,
		`SELECT q.reader_id
           FROM reader_queue q
           JOIN readers r ON r.id = q.reader_id
          WHERE q.book_id = ? AND r.current_group_id IS NULL
          ORDER BY q.position
          LIMIT ?`,
		bookID, limitOrAll(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query eligible readers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan eligible reader: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eligible readers: %w", err)
	}
	return ids, nil
}

// SetCurrentGroup points the reader at groupID.
func (tx *Tx) SetCurrentGroup(ctx context.Context, readerID, groupID string) error {
	if _, err := tx.q.ExecContext(ctx,
		"UPDATE readers SET current_group_id = ? WHERE id = ?", nullableString(groupID), readerID,
	); err != nil {
		return fmt.Errorf("set current group: %w", err)
	}
	return nil
}

// ClearCurrentGroup clears the reader's current group only when it is groupID.
func (tx *Tx) ClearCurrentGroup(ctx context.Context, readerID, groupID string) (bool, error) {
	res, err := tx.q.ExecContext(ctx,
		"UPDATE readers SET current_group_id = NULL WHERE id = ? AND current_group_id = ?", readerID, groupID,
	)
	if err != nil {
		return false, fmt.Errorf("clear current group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ReaderGroupIDs lists every group the reader has been a member of, newest first.
func (tx *Tx) ReaderGroupIDs(ctx context.Context, readerID string) ([]string, error) {
	rows, err := tx.q.QueryContext(ctx,
		`SELECT m.group_id FROM group_members m
           JOIN reading_groups g ON g.id = m.group_id
          WHERE m.reader_id = ?
          ORDER BY g.created_at DESC, g.id`,
		readerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query reader groups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reader group: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reader groups: %w", err)
	}
	return ids, nil
}

// ReaderCounts summarizes a reader's activity.
type ReaderCounts struct {
	Queued          int
	Groups          int
	CompletedGroups int
}

// CountReaderActivity returns queue and membership totals for a reader.
func (tx *Tx) CountReaderActivity(ctx context.Context, readerID string) (ReaderCounts, error) {
	var counts ReaderCounts
	err := tx.q.QueryRowContext(ctx,
		`SELECT
            (SELECT COUNT(*) FROM reader_queue WHERE reader_id = ?),
            (SELECT COUNT(*) FROM group_members WHERE reader_id = ?),
            (SELECT COUNT(*) FROM group_members WHERE reader_id = ? AND status = ?)`,
		readerID, readerID, readerID, MemberCompleted,
	).Scan(&counts.Queued, &counts.Groups, &counts.CompletedGroups)
	if err != nil {
		return ReaderCounts{}, fmt.Errorf("count reader activity: %w", err)
	}
	return counts, nil
}
