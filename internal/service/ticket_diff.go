package service

import (
	"time"

	"github.com/spec-kit/studio-desk/internal/domain"
)

type ticketDiff struct {
	statusChanged   bool
	assigneeChanged bool
	fields          []string
	oldValues       map[string]any
	newValues       map[string]any
}

func (d ticketDiff) empty() bool {
	return !d.statusChanged && !d.assigneeChanged && len(d.fields) == 0
}

// diffTickets compares the writable columns. Timestamps derived by the state
// machine only change together with a status, so they are not listed.
func diffTickets(before, after *domain.ProjectTicket) ticketDiff {
	d := ticketDiff{
		statusChanged:   before.TicketStatus != after.TicketStatus || before.ProjectStatus != after.ProjectStatus,
		assigneeChanged: !equalString(before.EditorID, after.EditorID),
		oldValues:       map[string]any{},
		newValues:       map[string]any{},
	}
	field := func(name string, changed bool, oldV, newV any) {
		if !changed {
			return
		}
		d.fields = append(d.fields, name)
		d.oldValues[name] = oldV
		d.newValues[name] = newV
	}
	field("subject", before.Subject != after.Subject, before.Subject, after.Subject)
	field("project_title", before.ProjectTitle != after.ProjectTitle, before.ProjectTitle, after.ProjectTitle)
	field("description", before.Description != after.Description, before.Description, after.Description)
	field("budget", before.Budget != after.Budget, before.Budget, after.Budget)
	field("priority", before.Priority != after.Priority, before.Priority, after.Priority)
	field("deadline", !equalTime(before.Deadline, after.Deadline), before.Deadline, after.Deadline)
	return d
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
