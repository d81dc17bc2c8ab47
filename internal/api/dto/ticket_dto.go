package dto

import (
	"time"

	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/permission"
)

// CreateTicketRequest payload. Budget is a pointer so a missing key and an
// explicit zero are both reported as a missing budget.
type CreateTicketRequest struct {
	Subject      string                `json:"subject" validate:"required,max=255"`
	ProjectTitle string                `json:"project_title" validate:"required,max=255"`
	Description  string                `json:"description" validate:"required"`
	Budget       *float64              `json:"budget" validate:"required"`
	Priority     domain.TicketPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Deadline     *time.Time            `json:"deadline"`
}

// Draft converts the request into the permission layer's draft.
func (r CreateTicketRequest) Draft() permission.TicketDraft {
	var budget float64
	if r.Budget != nil {
		budget = *r.Budget
	}
	return permission.TicketDraft{
		Subject:      r.Subject,
		ProjectTitle: r.ProjectTitle,
		Description:  r.Description,
		Budget:       budget,
		Priority:     r.Priority,
		Deadline:     r.Deadline,
	}
}

// UpdateTicketRequest is a PATCH body. Keys the caller's role may not write
// are accepted and dropped by the permission engine; unknown keys are rejected.
type UpdateTicketRequest struct {
	Subject       *string                    `json:"subject" validate:"omitempty,max=255"`
	ProjectTitle  *string                    `json:"project_title" validate:"omitempty,max=255"`
	Description   *string                    `json:"description"`
	Budget        *float64                   `json:"budget"`
	Priority      *domain.TicketPriority     `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Deadline      domain.Nullable[time.Time] `json:"deadline"`
	TicketStatus  *domain.TicketStatus       `json:"ticket_status" validate:"omitempty,oneof=OPEN IN_PROGRESS RESOLVED CLOSED"`
	ProjectStatus *domain.ProjectStatus      `json:"project_status" validate:"omitempty,oneof=PENDING IN_PROGRESS REVIEW COMPLETED"`
	EditorID      domain.Nullable[string]    `json:"editor_id"`
}

// Patch converts the request into a ticket patch.
func (r UpdateTicketRequest) Patch() permission.TicketPatch {
	return permission.TicketPatch{
		Subject:       r.Subject,
		ProjectTitle:  r.ProjectTitle,
		Description:   r.Description,
		Budget:        r.Budget,
		Priority:      r.Priority,
		Deadline:      r.Deadline,
		TicketStatus:  r.TicketStatus,
		ProjectStatus: r.ProjectStatus,
		EditorID:      r.EditorID,
	}
}

// AssigneeRequest sets or clears the editor of a ticket.
type AssigneeRequest struct {
	EditorID domain.Nullable[string] `json:"editor_id"`
}

// TicketResponse is the public shape of a project ticket.
type TicketResponse struct {
	ID            string                `json:"id"`
	ClientID      string                `json:"client_id"`
	EditorID      *string               `json:"editor_id"`
	TicketStatus  domain.TicketStatus   `json:"ticket_status"`
	ProjectStatus domain.ProjectStatus  `json:"project_status"`
	Subject       string                `json:"subject"`
	ProjectTitle  string                `json:"project_title"`
	Description   string                `json:"description"`
	Budget        float64               `json:"budget"`
	Priority      domain.TicketPriority `json:"priority"`
	Deadline      *time.Time            `json:"deadline"`
	TakenAt       *time.Time            `json:"taken_at"`
	ResolvedAt    *time.Time            `json:"resolved_at"`
	Version       int64                 `json:"version"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// CreateTicketResponse returns the ticket with the files bound at creation.
type CreateTicketResponse struct {
	Ticket TicketResponse `json:"ticket"`
	Files  []FileResponse `json:"files"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *string                 `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.ProjectTicket) TicketResponse {
	return TicketResponse{
		ID:            t.ID,
		ClientID:      t.ClientID,
		EditorID:      t.EditorID,
		TicketStatus:  t.TicketStatus,
		ProjectStatus: t.ProjectStatus,
		Subject:       t.Subject,
		ProjectTitle:  t.ProjectTitle,
		Description:   t.Description,
		Budget:        t.Budget,
		Priority:      t.Priority,
		Deadline:      t.Deadline,
		TakenAt:       t.TakenAt,
		ResolvedAt:    t.ResolvedAt,
		Version:       t.Version,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// NewTicketResponses maps a list.
func NewTicketResponses(tickets []domain.ProjectTicket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewHistoryResponses maps audit entries.
func NewHistoryResponses(entries []domain.TicketHistory) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		var changedBy *string
		if e.ChangedByID != "" {
			id := e.ChangedByID
			changedBy = &id
		}
		out = append(out, TicketHistoryResponse{
			ID:          e.ID,
			ChangeType:  e.ChangeType,
			ChangedByID: changedBy,
			OldValue:    e.OldValue,
			NewValue:    e.NewValue,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}
