package api

import (
	"time"

	"bookclub/internal/catalog"
	"bookclub/internal/queue"
	"bookclub/internal/store"
)

// FormatTime renders t in the API timestamp format. The zero time is empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromBook converts a book record.
func FromBook(b *store.Book) Book {
	if b == nil {
		return Book{}
	}
	return Book{
		ID:             b.ID,
		Title:          b.Title,
		Author:         b.Author,
		Genre:          b.Genre,
		PageCount:      b.PageCount,
		WaitingReaders: b.WaitingReaders,
		TotalReads:     b.TotalReads,
		CreatedAt:      FormatTime(b.CreatedAt),
	}
}

// FromBooks converts a slice of books; the result is never nil.
func FromBooks(books []*store.Book) []Book {
	out := make([]Book, 0, len(books))
	for _, b := range books {
		out = append(out, FromBook(b))
	}
	return out
}

// FromReader converts a reader record.
func FromReader(r *store.Reader) Reader {
	if r == nil {
		return Reader{}
	}
	return Reader{
		ID:             r.ID,
		DisplayName:    r.DisplayName,
		CurrentGroupID: r.CurrentGroupID,
		CreatedAt:      FormatTime(r.CreatedAt),
	}
}

// FromQueueEntry converts a bare queue row.
func FromQueueEntry(e store.QueueEntry) QueueEntry {
	return QueueEntry{Position: e.Position, BookID: e.BookID, QueuedAt: FormatTime(e.QueuedAt)}
}

// FromQueue converts queue entries joined with their books.
func FromQueue(entries []queue.Entry) []QueueEntry {
	out := make([]QueueEntry, 0, len(entries))
	for _, e := range entries {
		dto := QueueEntry{Position: e.Position, QueuedAt: FormatTime(e.QueuedAt)}
		if e.Book != nil {
			b := FromBook(e.Book)
			dto.BookID = b.ID
			dto.Book = &b
		}
		out = append(out, dto)
	}
	return out
}

// FromGroup converts a group with its members and schedule.
func FromGroup(g *store.Group) Group {
	if g == nil {
		return Group{}
	}
	dto := Group{
		ID:            g.ID,
		BookID:        g.BookID,
		Name:          g.Name,
		Status:        string(g.Status),
		MaxMembers:    g.MaxMembers,
		ActiveMembers: g.ActiveMemberCount(),
		Members:       make([]Member, 0, len(g.Members)),
		Schedule:      make([]Discussion, 0, len(g.Schedule)),
		StartDate:     FormatTime(g.StartDate),
		EndDate:       FormatTime(g.EndDate),
		CreatedAt:     FormatTime(g.CreatedAt),
		UpdatedAt:     FormatTime(g.UpdatedAt),
	}
	for _, m := range g.Members {
		dto.Members = append(dto.Members, Member{
			ReaderID: m.ReaderID,
			Status:   string(m.Status),
			JoinedAt: FormatTime(m.JoinedAt),
		})
	}
	for _, d := range g.Schedule {
		attendees := d.Attendees
		if attendees == nil {
			attendees = []string{}
		}
		dto.Schedule = append(dto.Schedule, Discussion{
			Week:          d.Week,
			ScheduledDate: FormatTime(d.ScheduledDate),
			Topic:         d.Topic,
			Completed:     d.Completed,
			Attendees:     attendees,
		})
	}
	return dto
}

// FromGroups converts a slice of groups; the result is never nil.
func FromGroups(groups []*store.Group) []Group {
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, FromGroup(g))
	}
	return out
}

// FromMessage converts a chat message.
func FromMessage(m store.Message) Message {
	return Message{
		ID:        m.ID,
		GroupID:   m.GroupID,
		ReaderID:  m.ReaderID,
		Text:      m.Body,
		CreatedAt: FormatTime(m.CreatedAt),
		Edited:    m.Edited,
	}
}

// FromMessages converts a slice of messages; the result is never nil.
func FromMessages(messages []store.Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, FromMessage(m))
	}
	return out
}

// FromProgress converts a progress row.
func FromProgress(p store.Progress) Progress {
	return Progress{
		GroupID:     p.GroupID,
		ReaderID:    p.ReaderID,
		CurrentPage: p.CurrentPage,
		Percentage:  p.Percentage,
		UpdatedAt:   FormatTime(p.UpdatedAt),
	}
}

// FromProgressRows converts progress rows; the result is never nil.
func FromProgressRows(rows []store.Progress) []Progress {
	out := make([]Progress, 0, len(rows))
	for _, p := range rows {
		out = append(out, FromProgress(p))
	}
	return out
}

// FromProfile converts a catalog profile.
func FromProfile(p *catalog.Profile) ReaderProfile {
	if p == nil {
		return ReaderProfile{}
	}
	dto := ReaderProfile{
		Reader:   FromReader(p.Reader),
		Queue:    make([]QueueEntry, 0, len(p.Queue)),
		GroupIDs: p.GroupIDs,
	}
	if dto.GroupIDs == nil {
		dto.GroupIDs = []string{}
	}
	for _, e := range p.Queue {
		dto.Queue = append(dto.Queue, FromQueueEntry(e))
	}
	return dto
}

// FromStats converts reader stats.
func FromStats(s catalog.Stats) ReaderStats {
	return ReaderStats(s)
}

// FromEnqueue converts an enqueue result.
func FromEnqueue(r queue.EnqueueResult) EnqueueResponse {
	resp := EnqueueResponse{
		Entry:          FromQueueEntry(r.Entry),
		WaitingReaders: r.Demand,
		GroupFormed:    r.Group != nil,
	}
	if r.Group != nil {
		g := FromGroup(r.Group)
		resp.Group = &g
	}
	if r.FormationErr != nil {
		resp.FormationError = r.FormationErr.Error()
	}
	return resp
}

// FromMigrations converts migration states.
func FromMigrations(states []store.MigrationState) []MigrationStatus {
	out := make([]MigrationStatus, 0, len(states))
	for _, s := range states {
		out = append(out, MigrationStatus{
			Version:   s.Version,
			Source:    s.Source,
			Applied:   s.Applied,
			AppliedAt: FormatTime(s.AppliedAt),
		})
	}
	return out
}

// TotalPages returns the number of pages of size limit needed for total.
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
