package store

import (
	"context"
	"fmt"
)

// InsertMessage appends a message and assigns its id.
func (tx *Tx) InsertMessage(ctx context.Context, msg *Message) error {
	created := formatTime(msg.CreatedAt)
	res, err := tx.q.ExecContext(ctx,
		"INSERT INTO messages (group_id, reader_id, body, created_at, edited) VALUES (?, ?, ?, ?, ?)",
		msg.GroupID, msg.ReaderID, msg.Body, created, boolInt(msg.Edited),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	msg.ID = id
	msg.CreatedAt = parseTime(created)
	return nil
}

// Messages returns a contiguous slice of a group's log in insertion order.
func (tx *Tx) Messages(ctx context.Context, groupID string, offset, limit int) ([]Message, error) {
	rows, err := tx.q.QueryContext(ctx,
		"SELECT id, group_id, reader_id, body, created_at, edited FROM messages WHERE group_id = ? ORDER BY id LIMIT ? OFFSET ?",
		groupID, limitOrAll(limit), max(offset, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			msg        Message
			createdRaw string
			edited     int
		)
		if err := rows.Scan(&msg.ID, &msg.GroupID, &msg.ReaderID, &msg.Body, &createdRaw, &edited); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = parseTime(createdRaw)
		msg.Edited = edited != 0
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// MessageCount returns the number of messages in a group's log.
func (tx *Tx) MessageCount(ctx context.Context, groupID string) (int, error) {
	var n int
	if err := tx.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE group_id = ?", groupID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// UpsertProgress writes the single progress row for (group, reader).
func (tx *Tx) UpsertProgress(ctx context.Context, p Progress) error {
	if _, err := tx.q.ExecContext(ctx,
		`INSERT INTO reading_progress (group_id, reader_id, current_page, percentage, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (group_id, reader_id) DO UPDATE SET
             current_page = excluded.current_page,
             percentage = excluded.percentage,
             updated_at = excluded.updated_at`,
		p.GroupID, p.ReaderID, p.CurrentPage, p.Percentage, formatTime(p.UpdatedAt),
	); err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

// Progress loads one reader's progress row.
func (tx *Tx) Progress(ctx context.Context, groupID, readerID string) (*Progress, error) {
	var (
		p          Progress
		updatedRaw string
	)
	err := tx.q.QueryRowContext(ctx,
		"SELECT group_id, reader_id, current_page, percentage, updated_at FROM reading_progress WHERE group_id = ? AND reader_id = ?",
		groupID, readerID,
	).Scan(&p.GroupID, &p.ReaderID, &p.CurrentPage, &p.Percentage, &updatedRaw)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	p.UpdatedAt = parseTime(updatedRaw)
	return &p, nil
}

// GroupProgress lists every progress row for a group.
func (tx *Tx) GroupProgress(ctx context.Context, groupID string) ([]Progress, error) {
	rows, err := tx.q.QueryContext(ctx,
		"SELECT group_id, reader_id, current_page, percentage, updated_at FROM reading_progress WHERE group_id = ? ORDER BY updated_at, reader_id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var out []Progress
	for rows.Next() {
		var (
			p          Progress
			updatedRaw string
		)
		if err := rows.Scan(&p.GroupID, &p.ReaderID, &p.CurrentPage, &p.Percentage, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		p.UpdatedAt = parseTime(updatedRaw)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return out, nil
}
