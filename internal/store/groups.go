package store

import (
	"context"
	"fmt"
	"time"
)

const groupColumns = "id, book_id, name, status, max_members, start_date, end_date, created_at, updated_at"

func scanGroup(row scanner) (*Group, error) {
	var (
		group                                   Group
		status                                  string
		startRaw, endRaw, createdRaw, updateRaw string
	)
	if err := row.Scan(
		&group.ID,
		&group.BookID,
		&group.Name,
		&status,
		&group.MaxMembers,
		&startRaw,
		&endRaw,
		&createdRaw,
		&updateRaw,
	); err != nil {
		return nil, err
	}
	group.Status = GroupStatus(status)
	group.StartDate = parseTime(startRaw)
	group.EndDate = parseTime(endRaw)
	group.CreatedAt = parseTime(createdRaw)
	group.UpdatedAt = parseTime(updateRaw)
	return &group, nil
}

// InsertGroup stores a group together with its members and schedule.
func (tx *Tx) InsertGroup(ctx context.Context, group *Group) error {
	created := formatTime(group.CreatedAt)
	if _, err := tx.q.ExecContext(ctx,
		`INSERT INTO reading_groups (id, book_id, name, status, max_members, start_date, end_date, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID, group.BookID, group.Name, group.Status, group.MaxMembers,
		formatTime(group.StartDate), formatTime(group.EndDate), created, created,
	); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	for i, member := range group.Members {
		if err := tx.insertMember(ctx, group.ID, member, i); err != nil {
			return err
		}
	}
	for _, discussion := range group.Schedule {
		if _, err := tx.q.ExecContext(ctx,
			"INSERT INTO discussions (group_id, week, scheduled_date, topic, completed) VALUES (?, ?, ?, ?, ?)",
			group.ID, discussion.Week, formatTime(discussion.ScheduledDate), discussion.Topic, boolInt(discussion.Completed),
		); err != nil {
			return fmt.Errorf("insert discussion week %d: %w", discussion.Week, err)
		}
	}
	group.CreatedAt = parseTime(created)
	group.UpdatedAt = group.CreatedAt
	return nil
}

func (tx *Tx) insertMember(ctx context.Context, groupID string, member Member, position int) error {
	if _, err := tx.q.ExecContext(ctx,
		"INSERT INTO group_members (group_id, reader_id, status, position, joined_at) VALUES (?, ?, ?, ?, ?)",
		groupID, member.ReaderID, member.Status, position, formatTime(member.JoinedAt),
	); err != nil {
		return fmt.Errorf("insert member %s: %w", member.ReaderID, err)
	}
	return nil
}

// AddMember appends a membership row after the existing members.
func (tx *Tx) AddMember(ctx context.Context, groupID string, member Member) error {
	var next int
	if err := tx.q.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM group_members WHERE group_id = ?", groupID,
	).Scan(&next); err != nil {
		return fmt.Errorf("next member position: %w", err)
	}
	return tx.insertMember(ctx, groupID, member, next)
}

// SetMemberStatus updates one membership row.
func (tx *Tx) SetMemberStatus(ctx context.Context, groupID, readerID string, status MemberStatus) error {
	if _, err := tx.q.ExecContext(ctx,
		"UPDATE group_members SET status = ? WHERE group_id = ? AND reader_id = ?", status, groupID, readerID,
	); err != nil {
		return fmt.Errorf("set member status: %w", err)
	}
	return tx.touchGroup(ctx, groupID)
}

// SetGroupStatus moves a group from one status to another. It reports false
// when the group is not currently in from.
func (tx *Tx) SetGroupStatus(ctx context.Context, groupID string, from, to GroupStatus) (bool, error) {
	res, err := tx.q.ExecContext(ctx,
		"UPDATE reading_groups SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		to, nowString(), groupID, from,
	)
	if err != nil {
		return false, fmt.Errorf("set group status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (tx *Tx) touchGroup(ctx context.Context, groupID string) error {
	if _, err := tx.q.ExecContext(ctx,
		"UPDATE reading_groups SET updated_at = ? WHERE id = ?", nowString(), groupID,
	); err != nil {
		return fmt.Errorf("touch group: %w", err)
	}
	return nil
}

// CompleteDiscussion marks a week complete and records the attendee. It
// reports false when the week does not exist for the group.
func (tx *Tx) CompleteDiscussion(ctx context.Context, groupID string, week int, readerID string, at time.Time) (bool, error) {
	res, err := tx.q.ExecContext(ctx,
		"UPDATE discussions SET completed = 1 WHERE group_id = ? AND week = ?", groupID, week,
	)
	if err != nil {
		return false, fmt.Errorf("complete discussion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if _, err := tx.q.ExecContext(ctx,
		`INSERT INTO discussion_attendees (group_id, week, reader_id, attended_at) VALUES (?, ?, ?, ?)
         ON CONFLICT (group_id, week, reader_id) DO NOTHING`,
		groupID, week, readerID, formatTime(at),
	); err != nil {
		return false, fmt.Errorf("record attendee: %w", err)
	}
	return true, tx.touchGroup(ctx, groupID)
}

// Group loads a group with members and schedule.
func (tx *Tx) Group(ctx context.Context, id string) (*Group, error) {
	row := tx.q.QueryRowContext(ctx, "SELECT "+groupColumns+" FROM reading_groups WHERE id = ?", id)
	group, err := scanGroup(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if err := tx.loadGroupDetails(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// ListGroups returns one page of groups, newest first, plus the total count.
func (tx *Tx) ListGroups(ctx context.Context, filter GroupFilter) ([]*Group, int, error) {
	where := "WHERE 1 = 1"
	args := []any{}
	if filter.Status != "" {
		where += " AND g.status = ?"
		args = append(args, filter.Status)
	}
	if filter.BookID != "" {
		where += " AND g.book_id = ?"
		args = append(args, filter.BookID)
	}
	if filter.ReaderID != "" {
		where += " AND EXISTS (SELECT 1 FROM group_members m WHERE m.group_id = g.id AND m.reader_id = ?)"
		args = append(args, filter.ReaderID)
	}

	var total int
	if err := tx.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM reading_groups g "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count groups: %w", err)
	}

	args = append(args, limitOrAll(filter.Limit), max(filter.Offset, 0))
	rows, err := tx.q.QueryContext(ctx,
		"SELECT g.id, g.book_id, g.name, g.status, g.max_members, g.start_date, g.end_date, g.created_at, g.updated_at FROM reading_groups g "+
			where+" ORDER BY g.created_at DESC, g.id LIMIT ? OFFSET ?",
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query groups: %w", err)
	}
	var groups []*Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, fmt.Errorf("iterate groups: %w", err)
	}
	rows.Close()

	for _, group := range groups {
		if err := tx.loadGroupDetails(ctx, group); err != nil {
			return nil, 0, err
		}
	}
	return groups, total, nil
}

// GroupCounts returns the number of groups in each status.
func (tx *Tx) GroupCounts(ctx context.Context) (map[GroupStatus]int, error) {
	rows, err := tx.q.QueryContext(ctx, "SELECT status, COUNT(*) FROM reading_groups GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count groups by status: %w", err)
	}
	defer rows.Close()
	counts := make(map[GroupStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan group count: %w", err)
		}
		counts[GroupStatus(status)] = count
	}
	return counts, rows.Err()
}

func (tx *Tx) loadGroupDetails(ctx context.Context, group *Group) error {
	members, err := tx.groupMembers(ctx, group.ID)
	if err != nil {
		return err
	}
	group.Members = members

	schedule, err := tx.groupSchedule(ctx, group.ID)
	if err != nil {
		return err
	}
	attendees, err := tx.groupAttendees(ctx, group.ID)
	if err != nil {
		return err
	}
	for i := range schedule {
		schedule[i].Attendees = attendees[schedule[i].Week]
	}
	group.Schedule = schedule
	return nil
}

func (tx *Tx) groupMembers(ctx context.Context, groupID string) ([]Member, error) {
	rows, err := tx.q.QueryContext(ctx,
		"SELECT reader_id, status, joined_at FROM group_members WHERE group_id = ? ORDER BY position", groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var (
			member           Member
			status, joinedAt string
		)
		if err := rows.Scan(&member.ReaderID, &status, &joinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		member.Status = MemberStatus(status)
		member.JoinedAt = parseTime(joinedAt)
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

func (tx *Tx) groupSchedule(ctx context.Context, groupID string) ([]Discussion, error) {
	rows, err := tx.q.QueryContext(ctx,
		"SELECT week, scheduled_date, topic, completed FROM discussions WHERE group_id = ? ORDER BY week", groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("query schedule: %w", err)
	}
	defer rows.Close()

	var schedule []Discussion
	for rows.Next() {
		var (
			discussion   Discussion
			scheduledRaw string
			completed    int
		)
		if err := rows.Scan(&discussion.Week, &scheduledRaw, &discussion.Topic, &completed); err != nil {
			return nil, fmt.Errorf("scan discussion: %w", err)
		}
		discussion.ScheduledDate = parseTime(scheduledRaw)
		discussion.Completed = completed != 0
		schedule = append(schedule, discussion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule: %w", err)
	}
	return schedule, nil
}

func (tx *Tx) groupAttendees(ctx context.Context, groupID string) (map[int][]string, error) {
	rows, err := tx.q.QueryContext(ctx,
		"SELECT week, reader_id FROM discussion_attendees WHERE group_id = ? ORDER BY week, attended_at, rowid", groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("query attendees: %w", err)
	}
	defer rows.Close()

	attendees := make(map[int][]string)
	for rows.Next() {
		var (
			week     int
			readerID string
		)
		if err := rows.Scan(&week, &readerID); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		attendees[week] = append(attendees[week], readerID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendees: %w", err)
	}
	return attendees, nil
}
