package events

import (
	"time"

	"github.com/spec-kit/studio-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketDeleted       EventType = "ticket_deleted"
	EventFileUploaded        EventType = "file_uploaded"
	EventFileDeleted         EventType = "file_deleted"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string          `json:"user_id"`
	Role   domain.RoleName `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ActorFrom converts a resolved actor.
func ActorFrom(a domain.Actor) Actor {
	return Actor{UserID: a.UserID, Role: a.Role}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ClientID     string                `json:"client_id"`
	ProjectTitle string                `json:"project_title"`
	Priority     domain.TicketPriority `json:"priority"`
	FileCount    int                   `json:"file_count"`
}

// TicketUpdatedPayload lists the changed field names.
type TicketUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldTicketStatus  domain.TicketStatus  `json:"old_ticket_status"`
	NewTicketStatus  domain.TicketStatus  `json:"new_ticket_status"`
	OldProjectStatus domain.ProjectStatus `json:"old_project_status"`
	NewProjectStatus domain.ProjectStatus `json:"new_project_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	OldEditorID *string `json:"old_editor_id,omitempty"`
	NewEditorID *string `json:"new_editor_id,omitempty"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	ClientID     string `json:"client_id"`
	RemovedFiles int    `json:"removed_files"`
}

// FilePayload describes an uploaded or deleted file.
type FilePayload struct {
	FileID       string              `json:"file_id"`
	FileName     string              `json:"file_name"`
	FileCategory domain.FileCategory `json:"file_category"`
}
