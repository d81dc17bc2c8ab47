package domain

import "time"

// TicketStatus is the support lifecycle axis of a project ticket.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// ProjectStatus is the production work axis of a project ticket.
type ProjectStatus string

const (
	ProjectStatusPending    ProjectStatus = "PENDING"
	ProjectStatusInProgress ProjectStatus = "IN_PROGRESS"
	ProjectStatusReview     ProjectStatus = "REVIEW"
	ProjectStatusCompleted  ProjectStatus = "COMPLETED"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusPending, ProjectStatusInProgress, ProjectStatusReview, ProjectStatusCompleted:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// ProjectTicket is a client's work request.
type ProjectTicket struct {
	ID            string
	ClientID      string
	EditorID      *string
	TicketStatus  TicketStatus
	ProjectStatus ProjectStatus
	Subject       string
	ProjectTitle  string
	Description   string
	Budget        float64
	Priority      TicketPriority
	Deadline      *time.Time
	TakenAt       *time.Time
	ResolvedAt    *time.Time
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsTerminal reports whether the ticket no longer accepts edits.
func (t *ProjectTicket) IsTerminal() bool {
	return t.ProjectStatus == ProjectStatusCompleted || t.TicketStatus == TicketStatusClosed
}

// IsAssignedTo reports whether userID is the ticket's editor.
func (t *ProjectTicket) IsAssignedTo(userID string) bool {
	return t.EditorID != nil && *t.EditorID == userID
}

// Clone returns a deep copy so callers can mutate without aliasing pointers.
func (t *ProjectTicket) Clone() *ProjectTicket {
	c := *t
	c.EditorID = cloneString(t.EditorID)
	c.Deadline = cloneTime(t.Deadline)
	c.TakenAt = cloneTime(t.TakenAt)
	c.ResolvedAt = cloneTime(t.ResolvedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
