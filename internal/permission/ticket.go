// Package permission decides what an actor may do to a project ticket and its
// files. Every function is pure: callers load state, ask, then persist.
package permission

import (
	"strings"
	"time"

	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/lifecycle"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

// TicketPatch is a decoded ticket update request. Absent fields are nil or
// unset; which of them survive depends on the actor.
type TicketPatch struct {
	Subject       *string
	ProjectTitle  *string
	Description   *string
	Budget        *float64
	Priority      *domain.TicketPriority
	Deadline      domain.Nullable[time.Time]
	TicketStatus  *domain.TicketStatus
	ProjectStatus *domain.ProjectStatus
	EditorID      domain.Nullable[string]
}

// Update is an authorized, role-specific update shape.
type Update interface {
	// Apply mutates t in place, or leaves it untouched and returns an error.
	Apply(t *domain.ProjectTicket, now time.Time) error
	isUpdate()
}

// ContentUpdate carries the descriptive fields a client may edit while the
// ticket is still open.
type ContentUpdate struct {
	Subject      *string
	ProjectTitle *string
	Description  *string
	Budget       *float64
	Priority     *domain.TicketPriority
	Deadline     domain.Nullable[time.Time]
}

// ResolveUpdate is the single move a client may make during review.
type ResolveUpdate struct{}

// AssignorUpdate is what editors may write: production status and assignee.
type AssignorUpdate struct {
	ProjectStatus *domain.ProjectStatus
	EditorID      domain.Nullable[string]
}

// AdminUpdate has no field restrictions but still goes through the state machine.
type AdminUpdate struct {
	Content      ContentUpdate
	Assign       AssignorUpdate
	TicketStatus *domain.TicketStatus
}

// NoopUpdate is returned when every requested field was dropped.
type NoopUpdate struct{}

func (ContentUpdate) isUpdate()  {}
func (ResolveUpdate) isUpdate()  {}
func (AssignorUpdate) isUpdate() {}
func (AdminUpdate) isUpdate()    {}
func (NoopUpdate) isUpdate()     {}

func (u ContentUpdate) Apply(t *domain.ProjectTicket, _ time.Time) error {
	next := t.Clone()
	if err := u.applyTo(next); err != nil {
		return err
	}
	*t = *next
	return nil
}

func (u ContentUpdate) applyTo(t *domain.ProjectTicket) error {
	if u.Subject != nil {
		v := strings.TrimSpace(*u.Subject)
		if v == "" {
			return apperrors.NewValidationError("subject cannot be empty", nil)
		}
		t.Subject = v
	}
	if u.ProjectTitle != nil {
		v := strings.TrimSpace(*u.ProjectTitle)
		if v == "" {
			return apperrors.NewValidationError("project_title cannot be empty", nil)
		}
		t.ProjectTitle = v
	}
	if u.Description != nil {
		v := strings.TrimSpace(*u.Description)
		if v == "" {
			return apperrors.NewValidationError("description cannot be empty", nil)
		}
		t.Description = v
	}
	if u.Budget != nil {
		if *u.Budget <= 0 {
			return apperrors.NewValidationError("budget must be greater than zero", map[string]any{"budget": *u.Budget})
		}
		t.Budget = *u.Budget
	}
	if u.Priority != nil {
		if !u.Priority.Valid() {
			return apperrors.NewValidationError("unknown priority", map[string]any{"priority": *u.Priority})
		}
		t.Priority = *u.Priority
	}
	if u.Deadline.Set {
		t.Deadline = u.Deadline.Value
	}
	return nil
}

func (ResolveUpdate) Apply(t *domain.ProjectTicket, now time.Time) error {
	resolved := domain.TicketStatusResolved
	return lifecycle.Apply(t, lifecycle.Change{TicketStatus: &resolved}, now)
}

func (u AssignorUpdate) Apply(t *domain.ProjectTicket, now time.Time) error {
	next := t.Clone()
	if err := lifecycle.Apply(next, lifecycle.Change{ProjectStatus: u.ProjectStatus}, now); err != nil {
		return err
	}
	if u.EditorID.Set {
		next.EditorID = u.EditorID.Value
	}
	*t = *next
	return nil
}

func (u AdminUpdate) Apply(t *domain.ProjectTicket, now time.Time) error {
	next := t.Clone()
	if err := u.Content.applyTo(next); err != nil {
		return err
	}
	if u.Assign.EditorID.Set {
		next.EditorID = u.Assign.EditorID.Value
	}
	change := lifecycle.Change{TicketStatus: u.TicketStatus, ProjectStatus: u.Assign.ProjectStatus}
	if err := lifecycle.Apply(next, change, now); err != nil {
		return err
	}
	*t = *next
	return nil
}

func (NoopUpdate) Apply(*domain.ProjectTicket, time.Time) error { return nil }

// AuthorizeUpdate narrows patch to the shape the actor may apply to ticket.
// Fields outside that shape are dropped; status rule violations are errors.
func AuthorizeUpdate(actor domain.Actor, ticket *domain.ProjectTicket, patch TicketPatch) (Update, error) {
	switch actor.Role {
	case domain.RoleAdmin:
		if ticket.IsTerminal() {
			return nil, terminalError()
		}
		return AdminUpdate{
			Content:      contentFrom(patch),
			Assign:       AssignorUpdate{ProjectStatus: patch.ProjectStatus, EditorID: patch.EditorID},
			TicketStatus: patch.TicketStatus,
		}, nil
	case domain.RoleEditor:
		if ticket.IsTerminal() {
			return nil, terminalError()
		}
		if patch.ProjectStatus == nil && !patch.EditorID.Set {
			return NoopUpdate{}, nil
		}
		if patch.ProjectStatus != nil {
			if err := lifecycle.ValidateProjectTransition(ticket.ProjectStatus, *patch.ProjectStatus); err != nil {
				return nil, err
			}
		}
		return AssignorUpdate{ProjectStatus: patch.ProjectStatus, EditorID: patch.EditorID}, nil
	case domain.RoleClient:
		return authorizeClientUpdate(actor, ticket, patch)
	default:
		return nil, apperrors.NewForbidden("role has no ticket edit rights")
	}
}

func authorizeClientUpdate(actor domain.Actor, ticket *domain.ProjectTicket, patch TicketPatch) (Update, error) {
	if ticket.ClientID != actor.UserID {
		return nil, apperrors.NewForbidden("ticket belongs to another client")
	}
	if ticket.IsTerminal() {
		return nil, terminalError()
	}
	switch {
	case ticket.TicketStatus == domain.TicketStatusOpen:
		return contentFrom(patch), nil
	case ticket.ProjectStatus == domain.ProjectStatusReview && ticket.TicketStatus == domain.TicketStatusInProgress:
		if patch.TicketStatus == nil {
			return NoopUpdate{}, nil
		}
		if *patch.TicketStatus != domain.TicketStatusResolved {
			return nil, apperrors.NewInvalidTransition("ticket_status", ticket.TicketStatus, *patch.TicketStatus)
		}
		return ResolveUpdate{}, nil
	default:
		return nil, apperrors.NewInvalidState("ticket cannot be edited by the client in its current state")
	}
}

func contentFrom(p TicketPatch) ContentUpdate {
	return ContentUpdate{
		Subject:      p.Subject,
		ProjectTitle: p.ProjectTitle,
		Description:  p.Description,
		Budget:       p.Budget,
		Priority:     p.Priority,
		Deadline:     p.Deadline,
	}
}

func terminalError() error {
	return apperrors.NewInvalidState("ticket is closed and can no longer change")
}

// TicketDraft is the client-supplied content of a new ticket.
type TicketDraft struct {
	Subject      string
	ProjectTitle string
	Description  string
	Budget       float64
	Priority     domain.TicketPriority
	Deadline     *time.Time
}

// AuthorizeCreate allows only clients to open tickets.
func AuthorizeCreate(actor domain.Actor) error {
	if actor.Role != domain.RoleClient {
		return apperrors.NewForbidden("only clients can create tickets")
	}
	return nil
}

// NewTicket validates draft and seeds a ticket owned by actor.
func NewTicket(actor domain.Actor, draft TicketDraft) (*domain.ProjectTicket, error) {
	if err := AuthorizeCreate(actor); err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(draft.Subject)
	if subject == "" {
		return nil, apperrors.NewMissingField("subject")
	}
	if draft.Budget <= 0 {
		return nil, apperrors.NewMissingField("budget")
	}
	description := strings.TrimSpace(draft.Description)
	if description == "" {
		return nil, apperrors.NewMissingField("description")
	}
	title := strings.TrimSpace(draft.ProjectTitle)
	if title == "" {
		return nil, apperrors.NewMissingField("project_title")
	}
	priority := draft.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	return &domain.ProjectTicket{
		ClientID:      actor.UserID,
		TicketStatus:  domain.TicketStatusOpen,
		ProjectStatus: domain.ProjectStatusPending,
		Subject:       subject,
		ProjectTitle:  title,
		Description:   description,
		Budget:        draft.Budget,
		Priority:      priority,
		Deadline:      draft.Deadline,
	}, nil
}

// AuthorizeRead lets admins and editors see every ticket and clients their own.
func AuthorizeRead(actor domain.Actor, ticket *domain.ProjectTicket) error {
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleEditor:
		return nil
	case domain.RoleClient:
		if ticket.ClientID == actor.UserID {
			return nil
		}
		return apperrors.NewForbidden("ticket belongs to another client")
	default:
		return apperrors.NewForbidden("role has no ticket read rights")
	}
}

// ReadScope returns the client id listings must be restricted to, if any.
func ReadScope(actor domain.Actor) (*string, error) {
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleEditor:
		return nil, nil
	case domain.RoleClient:
		id := actor.UserID
		return &id, nil
	default:
		return nil, apperrors.NewForbidden("role has no ticket read rights")
	}
}

// AuthorizeDelete applies the deletion policy.
func AuthorizeDelete(actor domain.Actor, ticket *domain.ProjectTicket) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleClient:
		if ticket.ClientID != actor.UserID {
			return apperrors.NewForbidden("ticket belongs to another client")
		}
		if ticket.TicketStatus != domain.TicketStatusOpen {
			return apperrors.NewInvalidState("only open tickets can be deleted")
		}
		return nil
	default:
		return apperrors.NewForbidden("role cannot delete tickets")
	}
}
