// Package lifecycle owns the coupled ticketStatus/projectStatus state of a
// project ticket. It decides whether a requested status change is legal and
// which derived fields follow from it; it does not know who asked.
package lifecycle

import (
	"time"

	"github.com/spec-kit/studio-desk/internal/domain"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

// Change holds requested status writes. A nil field is left untouched.
type Change struct {
	TicketStatus  *domain.TicketStatus
	ProjectStatus *domain.ProjectStatus
}

// Empty reports whether the change requests nothing.
func (c Change) Empty() bool {
	return c.TicketStatus == nil && c.ProjectStatus == nil
}

var projectTransitions = map[domain.ProjectStatus][]domain.ProjectStatus{
	domain.ProjectStatusPending:    {domain.ProjectStatusInProgress},
	domain.ProjectStatusInProgress: {domain.ProjectStatusReview},
	domain.ProjectStatusReview:     {domain.ProjectStatusInProgress, domain.ProjectStatusCompleted},
	domain.ProjectStatusCompleted:  {},
}

type statusPair struct {
	ticket  domain.TicketStatus
	project domain.ProjectStatus
}

// reachable lists every status pair the machine can produce.
var reachable = map[statusPair]struct{}{
	{domain.TicketStatusOpen, domain.ProjectStatusPending}:          {},
	{domain.TicketStatusInProgress, domain.ProjectStatusInProgress}: {},
	{domain.TicketStatusInProgress, domain.ProjectStatusReview}:     {},
	{domain.TicketStatusResolved, domain.ProjectStatusReview}:       {},
	{domain.TicketStatusClosed, domain.ProjectStatusCompleted}:      {},
}

// Coherent reports whether the pair is one the machine can reach.
func Coherent(ticket domain.TicketStatus, project domain.ProjectStatus) bool {
	_, ok := reachable[statusPair{ticket, project}]
	return ok
}

// ValidateProjectTransition checks a projectStatus move against the table.
// Self transitions are accepted as no-ops.
func ValidateProjectTransition(from, to domain.ProjectStatus) error {
	if !to.Valid() {
		return apperrors.NewValidationError("unknown project status", map[string]any{"project_status": to})
	}
	if from == to {
		return nil
	}
	if to == domain.ProjectStatusPending {
		return apperrors.NewInvalidTransition("project_status", from, to)
	}
	for _, candidate := range projectTransitions[from] {
		if candidate == to {
			return nil
		}
	}
	return apperrors.NewInvalidTransition("project_status", from, to)
}

// Apply validates ch against t, runs the coherence rules and stamps derived
// timestamps. t is only modified when the whole change is accepted.
func Apply(t *domain.ProjectTicket, ch Change, now time.Time) error {
	if t.IsTerminal() {
		return apperrors.NewInvalidState("ticket is closed and can no longer change")
	}
	if ch.Empty() {
		return nil
	}

	next := t.Clone()
	beforeTicket, beforeProject := t.TicketStatus, t.ProjectStatus

	if ch.ProjectStatus != nil {
		if err := ValidateProjectTransition(beforeProject, *ch.ProjectStatus); err != nil {
			return err
		}
		next.ProjectStatus = *ch.ProjectStatus
	}
	if ch.TicketStatus != nil {
		if !ch.TicketStatus.Valid() {
			return apperrors.NewValidationError("unknown ticket status", map[string]any{"ticket_status": *ch.TicketStatus})
		}
		next.TicketStatus = *ch.TicketStatus
	}

	enforceCoherence(next, beforeTicket, beforeProject)
	stampTimestamps(next, beforeTicket, beforeProject, now)

	if !Coherent(next.TicketStatus, next.ProjectStatus) {
		return apperrors.NewInvalidTransition("status",
			string(beforeTicket)+"/"+string(beforeProject),
			string(next.TicketStatus)+"/"+string(next.ProjectStatus))
	}

	*t = *next
	return nil
}

func enforceCoherence(t *domain.ProjectTicket, beforeTicket domain.TicketStatus, beforeProject domain.ProjectStatus) {
	if t.ProjectStatus != beforeProject {
		switch t.ProjectStatus {
		case domain.ProjectStatusPending:
			t.TicketStatus = domain.TicketStatusOpen
		case domain.ProjectStatusInProgress:
			t.TicketStatus = domain.TicketStatusInProgress
		case domain.ProjectStatusCompleted:
			t.TicketStatus = domain.TicketStatusClosed
		}
	}
	if t.TicketStatus == domain.TicketStatusOpen && t.TicketStatus != beforeTicket {
		t.ProjectStatus = domain.ProjectStatusPending
	}
}

func stampTimestamps(t *domain.ProjectTicket, beforeTicket domain.TicketStatus, beforeProject domain.ProjectStatus, now time.Time) {
	if t.ProjectStatus == domain.ProjectStatusInProgress && beforeProject != domain.ProjectStatusInProgress && t.TakenAt == nil {
		ts := now
		t.TakenAt = &ts
	}
	if t.TicketStatus == domain.TicketStatusResolved && beforeTicket != domain.TicketStatusResolved && t.ResolvedAt == nil {
		ts := now
		t.ResolvedAt = &ts
	}
}
