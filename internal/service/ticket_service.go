package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/events"
	"github.com/spec-kit/studio-desk/internal/permission"
	"github.com/spec-kit/studio-desk/internal/repository"
	"github.com/spec-kit/studio-desk/internal/storage"
	"github.com/spec-kit/studio-desk/internal/upload"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

// TicketService coordinates project ticket workflows: load, authorize,
// transition, persist, publish.
type TicketService struct {
	tickets    repository.TicketRepository
	files      repository.FileRepository
	users      repository.UserRepository
	history    repository.TicketHistoryRepository
	blobs      storage.BlobStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	FileRepo    repository.FileRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Blobs       storage.BlobStore
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Now         func() time.Time
}

// TicketListFilter describes listing filters supplied by the caller.
type TicketListFilter struct {
	TicketStatuses  []domain.TicketStatus
	ProjectStatuses []domain.ProjectStatus
	Priorities      []domain.TicketPriority
	EditorID        *string
	SearchTerm      *string
	Limit           int
	Offset          int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		files:      deps.FileRepo,
		users:      deps.UserRepo,
		history:    deps.HistoryRepo,
		blobs:      deps.Blobs,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        now,
	}
}

// Create opens a ticket for a client. Staged files become INPUT files of the
// new ticket in the same transaction; on any failure they are discarded.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, draft permission.TicketDraft, staged []domain.StagedFile) (*domain.ProjectTicket, []domain.ProjectFile, error) {
	ticket, err := permission.NewTicket(actor, draft)
	if err != nil {
		s.discard(ctx, staged)
		return nil, nil, err
	}

	files := make([]*domain.ProjectFile, 0, len(staged))
	for _, sf := range staged {
		files = append(files, &domain.ProjectFile{
			FileName:     sf.OriginalName,
			FilePath:     sf.StoredPath,
			FileType:     sf.MimeType,
			FileSize:     sf.Size,
			FileCategory: domain.FileCategoryInput,
			UploadedBy:   actor.UserID,
		})
	}

	if len(files) == 0 {
		err = s.tickets.Create(ctx, ticket)
	} else {
		err = s.tickets.CreateWithFiles(ctx, ticket, files)
	}
	if err != nil {
		s.discard(ctx, staged)
		return nil, nil, apperrors.MapError(err)
	}

	created := make([]domain.ProjectFile, 0, len(files))
	for _, f := range files {
		created = append(created, *f)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketCreatedPayload{
			ClientID:     ticket.ClientID,
			ProjectTitle: ticket.ProjectTitle,
			Priority:     ticket.Priority,
			FileCount:    len(created),
		},
	})
	return ticket, created, nil
}

// List returns the tickets visible to actor.
func (s *TicketService) List(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.ProjectTicket, error) {
	clientScope, err := permission.ReadScope(actor)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		ClientID:        clientScope,
		EditorID:        filter.EditorID,
		TicketStatuses:  filter.TicketStatuses,
		ProjectStatuses: filter.ProjectStatuses,
		Priorities:      filter.Priorities,
		SearchTerm:      filter.SearchTerm,
		Limit:           filter.Limit,
		Offset:          filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Get fetches a ticket the actor may read.
func (s *TicketService) Get(ctx context.Context, actor domain.Actor, ticketID string) (*domain.ProjectTicket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := permission.AuthorizeRead(actor, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Update narrows patch to what actor may write, runs the state machine and
// persists with a version check. A patch with no effect returns the stored
// ticket without a write.
func (s *TicketService) Update(ctx context.Context, actor domain.Actor, ticketID string, patch permission.TicketPatch) (*domain.ProjectTicket, error) {
	return s.updateIf(ctx, actor, ticketID, patch, nil)
}

// updateIf is Update with a precondition on the loaded ticket. The version
// written against is the one the precondition saw.
func (s *TicketService) updateIf(ctx context.Context, actor domain.Actor, ticketID string, patch permission.TicketPatch, precondition func(*domain.ProjectTicket) error) (*domain.ProjectTicket, error) {
	current, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if precondition != nil {
		if err := precondition(current); err != nil {
			return nil, err
		}
	}

	update, err := permission.AuthorizeUpdate(actor, current, patch)
	if err != nil {
		return nil, err
	}
	if _, noop := update.(permission.NoopUpdate); noop {
		return current, nil
	}

	next := current.Clone()
	if err := update.Apply(next, s.now()); err != nil {
		return nil, err
	}

	diff := diffTickets(current, next)
	if diff.empty() {
		return current, nil
	}
	if diff.assigneeChanged && next.EditorID != nil {
		if err := s.ensureAssignableEditor(ctx, *next.EditorID); err != nil {
			return nil, err
		}
	}

	if err := s.tickets.Update(ctx, next, current.Version); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleTicket):
			return nil, apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticketID})
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	s.recordHistory(ctx, actor, current, next, diff)
	s.publishChanges(ctx, actor, current, next, diff)
	return next, nil
}

// Delete removes a ticket with its files. Bytes go first; a storage failure
// aborts before any row is deleted so the call can be retried.
func (s *TicketService) Delete(ctx context.Context, actor domain.Actor, ticketID string) error {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := permission.AuthorizeDelete(actor, ticket); err != nil {
		return err
	}

	files, err := s.files.ListByTicket(ctx, ticket.ID, nil)
	if err != nil {
		return apperrors.MapError(err)
	}
	for _, f := range files {
		if err := s.blobs.Remove(ctx, f.FilePath); err != nil {
			return apperrors.NewIOFailure("unable to remove stored file", err)
		}
	}

	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		return notFoundOr(err, "ticket")
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload:  events.TicketDeletedPayload{ClientID: ticket.ClientID, RemovedFiles: len(files)},
	})
	return nil
}

// History lists audit entries of a readable ticket.
func (s *TicketService) History(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.Get(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// Dashboard counts tickets per status: clients see their own, editors the
// ones assigned to them, admins everything.
func (s *TicketService) Dashboard(ctx context.Context, actor domain.Actor) (domain.StatusCounts, error) {
	var scope repository.CountScope
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleEditor:
		id := actor.UserID
		scope.EditorID = &id
	case domain.RoleClient:
		id := actor.UserID
		scope.ClientID = &id
	default:
		return domain.StatusCounts{}, apperrors.NewForbidden("role has no dashboard")
	}
	counts, err := s.tickets.CountByStatus(ctx, scope)
	if err != nil {
		return domain.StatusCounts{}, apperrors.MapError(err)
	}
	return counts, nil
}

func (s *TicketService) load(ctx context.Context, ticketID string) (*domain.ProjectTicket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) ensureAssignableEditor(ctx context.Context, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return apperrors.NewNotFound("editor", map[string]any{"editor_id": userID})
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("editor", map[string]any{"editor_id": userID})
		}
		return apperrors.MapError(err)
	}
	if !user.IsActive || user.RoleName != domain.RoleEditor {
		return apperrors.NewInvalidState("assigned user is not an active editor")
	}
	return nil
}

func (s *TicketService) discard(ctx context.Context, staged []domain.StagedFile) {
	if len(staged) == 0 || s.blobs == nil {
		return
	}
	upload.DiscardAll(ctx, s.blobs, s.logger, staged)
}

func (s *TicketService) recordHistory(ctx context.Context, actor domain.Actor, before, after *domain.ProjectTicket, diff ticketDiff) {
	if s.history == nil {
		return
	}
	var entries []*domain.TicketHistory
	if diff.statusChanged {
		entries = append(entries, &domain.TicketHistory{
			ChangeType: domain.ChangeTypeStatus,
			OldValue:   map[string]any{"ticket_status": before.TicketStatus, "project_status": before.ProjectStatus},
			NewValue:   map[string]any{"ticket_status": after.TicketStatus, "project_status": after.ProjectStatus},
		})
	}
	if diff.assigneeChanged {
		entries = append(entries, &domain.TicketHistory{
			ChangeType: domain.ChangeTypeAssignee,
			OldValue:   map[string]any{"editor_id": before.EditorID},
			NewValue:   map[string]any{"editor_id": after.EditorID},
		})
	}
	if len(diff.fields) > 0 {
		entries = append(entries, &domain.TicketHistory{
			ChangeType: domain.ChangeTypeFields,
			OldValue:   diff.oldValues,
			NewValue:   diff.newValues,
		})
	}
	for _, entry := range entries {
		entry.TicketID = after.ID
		entry.ChangedByID = actor.UserID
		if err := s.history.Create(ctx, entry); err != nil {
			s.logger.Warn("failed to record ticket history",
				zap.String("ticket_id", after.ID),
				zap.String("change_type", string(entry.ChangeType)),
				zap.Error(err))
		}
	}
}

func (s *TicketService) publishChanges(ctx context.Context, actor domain.Actor, before, after *domain.ProjectTicket, diff ticketDiff) {
	evActor := events.ActorFrom(actor)
	if diff.statusChanged {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: after.ID,
			Actor:    evActor,
			Payload: events.TicketStatusChangedPayload{
				OldTicketStatus:  before.TicketStatus,
				NewTicketStatus:  after.TicketStatus,
				OldProjectStatus: before.ProjectStatus,
				NewProjectStatus: after.ProjectStatus,
			},
		})
	}
	if diff.assigneeChanged {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: after.ID,
			Actor:    evActor,
			Payload:  events.TicketAssignedPayload{OldEditorID: before.EditorID, NewEditorID: after.EditorID},
		})
	}
	if len(diff.fields) > 0 {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketUpdated,
			TicketID: after.ID,
			Actor:    evActor,
			Payload:  events.TicketUpdatedPayload{Fields: diff.fields},
		})
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
