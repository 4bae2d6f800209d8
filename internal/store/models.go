package store

import (
	"strings"
	"time"
)

// GroupStatus represents the lifecycle of a reading group.
type GroupStatus string

const (
	GroupForming   GroupStatus = "forming"
	GroupActive    GroupStatus = "active"
	GroupCompleted GroupStatus = "completed"
	GroupDisbanded GroupStatus = "disbanded"
)

var allGroupStatuses = []GroupStatus{
	GroupForming,
	GroupActive,
	GroupCompleted,
	GroupDisbanded,
}

type groupTransition struct {
	from GroupStatus
	to   GroupStatus
}

var groupTransitions = map[groupTransition]struct{}{
	{from: GroupForming, to: GroupActive}:    {},
	{from: GroupForming, to: GroupDisbanded}: {},
	{from: GroupActive, to: GroupCompleted}:  {},
	{from: GroupActive, to: GroupDisbanded}:  {},
}

// AllGroupStatuses returns the ordered list of known group statuses.
func AllGroupStatuses() []GroupStatus {
	cp := make([]GroupStatus, len(allGroupStatuses))
	copy(cp, allGroupStatuses)
	return cp
}

// ParseGroupStatus converts a string into a known GroupStatus.
func ParseGroupStatus(value string) (GroupStatus, bool) {
	normalized := GroupStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allGroupStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// CanTransition reports whether a group may move from s to next.
func (s GroupStatus) CanTransition(next GroupStatus) bool {
	_, ok := groupTransitions[groupTransition{from: s, to: next}]
	return ok
}

// IsOpen reports whether the group still accepts members and activity.
func (s GroupStatus) IsOpen() bool {
	return s == GroupForming || s == GroupActive
}

// MemberStatus represents a reader's standing inside one group.
type MemberStatus string

const (
	MemberActive    MemberStatus = "active"
	MemberLeft      MemberStatus = "left"
	MemberCompleted MemberStatus = "completed"
)

// CanTransition reports whether a member may move from s to next. Staying in
// the same state is always allowed; otherwise only active members move.
func (s MemberStatus) CanTransition(next MemberStatus) bool {
	if s == next {
		return true
	}
	return s == MemberActive && (next == MemberLeft || next == MemberCompleted)
}

// Book is a catalog entry plus its demand counters.
type Book struct {
	ID             string
	Title          string
	Author         string
	Genre          string
	PageCount      int
	WaitingReaders int
	TotalReads     int
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Reader is a registered participant.
type Reader struct {
	ID             string
	DisplayName    string
	CurrentGroupID string
	CreatedAt      time.Time
}

// HasCurrentGroup reports whether the reader is in an active group.
func (r Reader) HasCurrentGroup() bool {
	return r.CurrentGroupID != ""
}

// QueueEntry is one book in a reader's interest queue.
type QueueEntry struct {
	Position int64
	ReaderID string
	BookID   string
	QueuedAt time.Time
}

// Member is one reader's membership row in a group.
type Member struct {
	ReaderID string
	Status   MemberStatus
	JoinedAt time.Time
}

// Discussion is one scheduled weekly discussion.
type Discussion struct {
	Week          int
	ScheduledDate time.Time
	Topic         string
	Completed     bool
	Attendees     []string
}

// Group is a reading group with its members and schedule.
type Group struct {
	ID         string
	BookID     string
	Name       string
	Status     GroupStatus
	MaxMembers int
	Members    []Member
	Schedule   []Discussion
	StartDate  time.Time
	EndDate    time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Member returns the membership row for readerID.
func (g *Group) Member(readerID string) (Member, bool) {
	for _, m := range g.Members {
		if m.ReaderID == readerID {
			return m, true
		}
	}
	return Member{}, false
}

// IsActiveMember reports whether readerID is an active member.
func (g *Group) IsActiveMember(readerID string) bool {
	m, ok := g.Member(readerID)
	return ok && m.Status == MemberActive
}

// ActiveMemberCount counts members whose status is active.
func (g *Group) ActiveMemberCount() int {
	n := 0
	for _, m := range g.Members {
		if m.Status == MemberActive {
			n++
		}
	}
	return n
}

// Discussion returns the scheduled discussion for week.
func (g *Group) Discussion(week int) (Discussion, bool) {
	for _, d := range g.Schedule {
		if d.Week == week {
			return d, true
		}
	}
	return Discussion{}, false
}

// Message is one chat entry in a group's log.
type Message struct {
	ID        int64
	GroupID   string
	ReaderID  string
	Body      string
	CreatedAt time.Time
	Edited    bool
}

// Progress is a reader's reading position within a group.
type Progress struct {
	GroupID     string
	ReaderID    string
	CurrentPage int
	Percentage  float64
	UpdatedAt   time.Time
}

// BookSort selects the ordering of ListBooks.
type BookSort string

const (
	SortByDemand BookSort = "waiting"
	SortByReads  BookSort = "reads"
	SortByNewest BookSort = "newest"
	SortByTitle  BookSort = "title"
)

// BookFilter narrows ListBooks.
type BookFilter struct {
	Genre  string
	Sort   BookSort
	Offset int
	Limit  int
}

// GroupFilter narrows ListGroups.
type GroupFilter struct {
	Status   GroupStatus
	ReaderID string
	BookID   string
	Offset   int
	Limit    int
}
