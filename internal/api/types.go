package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Book is a catalog entry with its demand counters.
type Book struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Author         string `json:"author"`
	Genre          string `json:"genre"`
	PageCount      int    `json:"pageCount"`
	WaitingReaders int    `json:"waitingReaders"`
	TotalReads     int    `json:"totalReads"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

// Reader is a registered participant.
type Reader struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	CurrentGroupID string `json:"currentGroupId,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

// QueueEntry is one book in a reader's queue.
type QueueEntry struct {
	Position int64  `json:"position"`
	BookID   string `json:"bookId"`
	QueuedAt string `json:"queuedAt"`
	Book     *Book  `json:"book,omitempty"`
}

// Member is one membership row.
type Member struct {
	ReaderID string `json:"readerId"`
	Status   string `json:"status"`
	JoinedAt string `json:"joinedAt"`
}

// Discussion is one scheduled week.
type Discussion struct {
	Week          int      `json:"week"`
	ScheduledDate string   `json:"scheduledDate"`
	Topic         string   `json:"topic"`
	Completed     bool     `json:"completed"`
	Attendees     []string `json:"attendees"`
}

// Group is a reading group with members and schedule.
type Group struct {
	ID            string       `json:"id"`
	BookID        string       `json:"bookId"`
	Name          string       `json:"name"`
	Status        string       `json:"status"`
	MaxMembers    int          `json:"maxMembers"`
	ActiveMembers int          `json:"activeMembers"`
	Members       []Member     `json:"members"`
	Schedule      []Discussion `json:"schedule"`
	StartDate     string       `json:"startDate"`
	EndDate       string       `json:"endDate"`
	CreatedAt     string       `json:"createdAt,omitempty"`
	UpdatedAt     string       `json:"updatedAt,omitempty"`
}

// Message is one chat entry.
type Message struct {
	ID        int64  `json:"id"`
	GroupID   string `json:"groupId"`
	ReaderID  string `json:"readerId"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
	Edited    bool   `json:"edited"`
}

// Progress is a reader's position within a group.
type Progress struct {
	GroupID     string  `json:"groupId"`
	ReaderID    string  `json:"readerId"`
	CurrentPage int     `json:"currentPage"`
	Percentage  float64 `json:"percentage"`
	UpdatedAt   string  `json:"updatedAt"`
}

// ReaderProfile is a reader with their queue and group history.
type ReaderProfile struct {
	Reader   Reader       `json:"reader"`
	Queue    []QueueEntry `json:"queue"`
	GroupIDs []string     `json:"groupIds"`
}

// ReaderStats summarises a reader's activity.
type ReaderStats struct {
	QueueSize       int  `json:"queueSize"`
	TotalGroups     int  `json:"totalGroups"`
	CompletedBooks  int  `json:"completedBooks"`
	HasCurrentGroup bool `json:"hasCurrentGroup"`
}

// Requests

// AddBookRequest is the body of POST /api/books.
type AddBookRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	Author    string `json:"author" validate:"required,max=100"`
	Genre     string `json:"genre"`
	PageCount int    `json:"pageCount" validate:"gte=0"`
}

// RegisterReaderRequest is the body of POST /api/readers.
type RegisterReaderRequest struct {
	DisplayName string `json:"displayName" validate:"required"`
}

// EnqueueRequest is the body of POST /api/queue.
type EnqueueRequest struct {
	BookID string `json:"bookId" validate:"required"`
}

// CreateGroupRequest is the body of POST /api/groups.
type CreateGroupRequest struct {
	BookID    string   `json:"bookId" validate:"required"`
	ReaderIDs []string `json:"readerIds" validate:"required,min=3,dive,required"`
}

// MemberRequest is the body of POST /api/groups/{groupID}/members.
type MemberRequest struct {
	ReaderID string `json:"readerId" validate:"required"`
}

// PostMessageRequest is the body of POST /api/groups/{groupID}/messages.
type PostMessageRequest struct {
	Text string `json:"text"`
}

// ProgressRequest is the body of PUT /api/groups/{groupID}/progress. Omitted
// fields keep their stored values.
type ProgressRequest struct {
	CurrentPage *int     `json:"currentPage,omitempty" validate:"omitempty,gte=0"`
	Percentage  *float64 `json:"percentage,omitempty"`
}

// Responses

// EnqueueResponse reports a queued book and any group it triggered.
type EnqueueResponse struct {
	Entry          QueueEntry `json:"entry"`
	WaitingReaders int        `json:"waitingReaders"`
	GroupFormed    bool       `json:"groupFormed"`
	Group          *Group     `json:"group,omitempty"`
	FormationError string     `json:"formationError,omitempty"`
}

// DequeueResponse reports a dequeue.
type DequeueResponse struct {
	Removed        bool `json:"removed"`
	WaitingReaders int  `json:"waitingReaders"`
}

// BookListResponse is one page of books.
type BookListResponse struct {
	Books       []Book `json:"books"`
	TotalBooks  int    `json:"totalBooks"`
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
}

// GroupListResponse is one page of groups.
type GroupListResponse struct {
	Groups      []Group `json:"groups"`
	Total       int     `json:"total"`
	CurrentPage int     `json:"currentPage"`
	TotalPages  int     `json:"totalPages"`
}

// AlmostReadyResponse lists books close to forming a group.
type AlmostReadyResponse struct {
	Books []Book `json:"books"`
}

// CurrentGroupResponse is the reader's active group, null when they have none.
type CurrentGroupResponse struct {
	CurrentGroup *Group `json:"currentGroup"`
}

// ProgressListResponse is every member's progress within a group.
type ProgressListResponse struct {
	Progress []Progress `json:"progress"`
}

// NotifyTestResponse reports a test notification attempt.
type NotifyTestResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// MessageListResponse is one slice of a group's chat.
type MessageListResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
	Offset   int       `json:"offset"`
	Limit    int       `json:"limit"`
}

// ErrorBody is the error half of the envelope.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Fields  any    `json:"fields,omitempty"`
}

// ErrorResponse is written for every failed request.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// MigrationStatus is one applied or pending schema migration.
type MigrationStatus struct {
	Version   int64  `json:"version"`
	Source    string `json:"source"`
	Applied   bool   `json:"applied"`
	AppliedAt string `json:"appliedAt,omitempty"`
}

// DaemonStatus aggregates runtime information.
type DaemonStatus struct {
	Running      bool              `json:"running"`
	PID          int               `json:"pid"`
	Bind         string            `json:"bind"`
	DatabasePath string            `json:"databasePath"`
	LockFilePath string            `json:"lockFilePath"`
	StartedAt    string            `json:"startedAt"`
	Groups       map[string]int    `json:"groups"`
	Migrations   []MigrationStatus `json:"migrations,omitempty"`
}
