package service

import (
	"context"

	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/permission"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

// AssignmentService offers the claim and assign shortcuts. Both are ticket
// updates and go through the same authorization and state machine.
type AssignmentService struct {
	tickets *TicketService
}

// NewAssignmentService creates the service.
func NewAssignmentService(tickets *TicketService) *AssignmentService {
	return &AssignmentService{tickets: tickets}
}

// Claim assigns the calling editor and starts production. Only an
// unassigned PENDING ticket can be claimed.
func (s *AssignmentService) Claim(ctx context.Context, actor domain.Actor, ticketID string) (*domain.ProjectTicket, error) {
	if !actor.IsEditor() {
		return nil, apperrors.NewForbidden("only editors can claim tickets")
	}
	inProgress := domain.ProjectStatusInProgress
	patch := permission.TicketPatch{
		ProjectStatus: &inProgress,
		EditorID:      domain.Some(actor.UserID),
	}
	return s.tickets.updateIf(ctx, actor, ticketID, patch, claimable)
}

func claimable(ticket *domain.ProjectTicket) error {
	if ticket.EditorID != nil {
		return apperrors.NewInvalidState("ticket is already claimed")
	}
	if ticket.ProjectStatus != domain.ProjectStatusPending {
		return apperrors.NewInvalidState("only pending tickets can be claimed")
	}
	return nil
}

// Assign sets or clears the editor without touching statuses.
func (s *AssignmentService) Assign(ctx context.Context, actor domain.Actor, ticketID string, editorID *string) (*domain.ProjectTicket, error) {
	patch := permission.TicketPatch{EditorID: domain.Null[string]()}
	if editorID != nil {
		patch.EditorID = domain.Some(*editorID)
	}
	return s.tickets.Update(ctx, actor, ticketID, patch)
}
