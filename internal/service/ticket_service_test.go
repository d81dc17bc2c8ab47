package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/events"
	"github.com/spec-kit/studio-desk/internal/permission"
	"github.com/spec-kit/studio-desk/internal/repository"
	repomock "github.com/spec-kit/studio-desk/internal/repository/mock"
	storemock "github.com/spec-kit/studio-desk/internal/storage/mock"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

const (
	ticketID  = "5b0e6f0c-1d7e-4a61-9d1c-2f3f7d0a9c01"
	clientID  = "0a7f1c2e-8b9d-4e3f-a1b2-c3d4e5f60001"
	client2ID = "0a7f1c2e-8b9d-4e3f-a1b2-c3d4e5f60002"
	editorID  = "1b8e2d3f-9c0a-4f4e-b2c3-d4e5f6a70001"
	editor2ID = "1b8e2d3f-9c0a-4f4e-b2c3-d4e5f6a70002"
	adminID   = "2c9f3e4a-0d1b-4a5f-c3d4-e5f6a7b80001"
)

var (
	fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

	clientActor = domain.Actor{UserID: clientID, Role: domain.RoleClient, IsActive: true}
	editorActor = domain.Actor{UserID: editorID, Role: domain.RoleEditor, IsActive: true}
	adminActor  = domain.Actor{UserID: adminID, Role: domain.RoleAdmin, IsActive: true}
)

func ptr[T any](v T) *T { return &v }

type ticketMocks struct {
	tickets *repomock.MockTicketRepository
	files   *repomock.MockFileRepository
	users   *repomock.MockUserRepository
	history *repomock.MockTicketHistoryRepository
	blobs   *storemock.MockBlobStore
	events  *[]events.Event
}

func recordingDispatcher() (events.Dispatcher, *[]events.Event) {
	d := events.NewInMemoryDispatcher(zap.NewNop())
	var seen []events.Event
	for _, et := range []events.EventType{
		events.EventTicketCreated, events.EventTicketUpdated, events.EventTicketStatusChanged,
		events.EventTicketAssigned, events.EventTicketDeleted, events.EventFileUploaded, events.EventFileDeleted,
	} {
		d.Subscribe(et, func(_ context.Context, e events.Event) error {
			seen = append(seen, e)
			return nil
		})
	}
	return d, &seen
}

func setupTicketService(t *testing.T) (*TicketService, ticketMocks) {
	ctrl := gomock.NewController(t)
	t.Cleanup(func() { ctrl.Finish() })

	dispatcher, seen := recordingDispatcher()
	m := ticketMocks{
		tickets: repomock.NewMockTicketRepository(ctrl),
		files:   repomock.NewMockFileRepository(ctrl),
		users:   repomock.NewMockUserRepository(ctrl),
		history: repomock.NewMockTicketHistoryRepository(ctrl),
		blobs:   storemock.NewMockBlobStore(ctrl),
		events:  seen,
	}
	svc := NewTicketService(TicketDependencies{
		TicketRepo:  m.tickets,
		FileRepo:    m.files,
		UserRepo:    m.users,
		HistoryRepo: m.history,
		Blobs:       m.blobs,
		Dispatcher:  dispatcher,
		Logger:      zap.NewNop(),
		Now:         func() time.Time { return fixedNow },
	})
	return svc, m
}

func pendingTicket() *domain.ProjectTicket {
	return &domain.ProjectTicket{
		ID:            ticketID,
		ClientID:      clientID,
		TicketStatus:  domain.TicketStatusOpen,
		ProjectStatus: domain.ProjectStatusPending,
		Subject:       "Logo edit",
		ProjectTitle:  "Logo",
		Description:   "Recut the intro",
		Budget:        100,
		Priority:      domain.TicketPriorityMedium,
		Version:       1,
	}
}

func activeEditor(id string) *domain.User {
	return &domain.User{ID: id, RoleName: domain.RoleEditor, IsActive: true}
}

func eventTypes(seen *[]events.Event) []events.EventType {
	out := make([]events.EventType, 0, len(*seen))
	for _, e := range *seen {
		out = append(out, e.Type)
	}
	return out
}

func TestTicketCreate_Success(t *testing.T) {
	svc, m := setupTicketService(t)

	m.tickets.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ticket *domain.ProjectTicket) error {
			ticket.ID = ticketID
			ticket.Version = 1
			return nil
		})

	ticket, files, err := svc.Create(context.Background(), clientActor, permission.TicketDraft{
		Subject: "Logo edit", Budget: 100, Description: "...", ProjectTitle: "Logo",
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, domain.TicketStatusOpen, ticket.TicketStatus)
	assert.Equal(t, domain.ProjectStatusPending, ticket.ProjectStatus)
	assert.Nil(t, ticket.EditorID)
	assert.Equal(t, clientID, ticket.ClientID)
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, eventTypes(m.events))
}

func TestTicketCreate_WithFilesBindsInputs(t *testing.T) {
	svc, m := setupTicketService(t)
	staged := []domain.StagedFile{
		{OriginalName: "brief.pdf", MimeType: "application/pdf", Size: 10, StoredPath: "project_files/2026/05/a.pdf"},
		{OriginalName: "clip.mp4", MimeType: "video/mp4", Size: 20, StoredPath: "project_files/2026/05/b.mp4"},
	}

	m.tickets.EXPECT().CreateWithFiles(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ticket *domain.ProjectTicket, files []*domain.ProjectFile) error {
			require.Len(t, files, 2)
			ticket.ID = ticketID
			for _, f := range files {
				f.ProjectTicketID = ticket.ID
			}
			return nil
		})

	_, files, err := svc.Create(context.Background(), clientActor, permission.TicketDraft{
		Subject: "s", Budget: 1, Description: "d", ProjectTitle: "p",
	}, staged)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.Equal(t, domain.FileCategoryInput, f.FileCategory)
		assert.Equal(t, clientID, f.UploadedBy)
		assert.Equal(t, ticketID, f.ProjectTicketID)
	}
}

func TestTicketCreate_FailureDiscardsStagedFiles(t *testing.T) {
	svc, m := setupTicketService(t)
	staged := []domain.StagedFile{{OriginalName: "a.png", StoredPath: "k1"}, {OriginalName: "b.png", StoredPath: "k2"}}

	m.tickets.EXPECT().CreateWithFiles(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("db down"))
	m.blobs.EXPECT().Remove(gomock.Any(), "k1").Return(nil)
	m.blobs.EXPECT().Remove(gomock.Any(), "k2").Return(nil)

	_, _, err := svc.Create(context.Background(), clientActor, permission.TicketDraft{
		Subject: "s", Budget: 1, Description: "d", ProjectTitle: "p",
	}, staged)
	require.Error(t, err)
	assert.Empty(t, *m.events)
}

func TestTicketCreate_RejectsNonClient(t *testing.T) {
	svc, m := setupTicketService(t)
	m.blobs.EXPECT().Remove(gomock.Any(), "k1").Return(nil)

	_, _, err := svc.Create(context.Background(), editorActor, permission.TicketDraft{
		Subject: "s", Budget: 1, Description: "d", ProjectTitle: "p",
	}, []domain.StagedFile{{StoredPath: "k1"}})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestTicketUpdate_EditorClaim(t *testing.T) {
	svc, m := setupTicketService(t)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(pendingTicket(), nil)
	m.users.EXPECT().GetByID(gomock.Any(), editorID).Return(activeEditor(editorID), nil)
	m.tickets.EXPECT().Update(gomock.Any(), gomock.Any(), int64(1)).DoAndReturn(
		func(_ context.Context, ticket *domain.ProjectTicket, _ int64) error {
			ticket.Version = 2
			return nil
		})
	m.history.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	got, err := NewAssignmentService(svc).Claim(context.Background(), editorActor, ticketID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, got.TicketStatus)
	assert.Equal(t, domain.ProjectStatusInProgress, got.ProjectStatus)
	require.NotNil(t, got.EditorID)
	assert.Equal(t, editorID, *got.EditorID)
	require.NotNil(t, got.TakenAt)
	assert.Equal(t, fixedNow, *got.TakenAt)
	assert.ElementsMatch(t, []events.EventType{events.EventTicketStatusChanged, events.EventTicketAssigned}, eventTypes(m.events))
}

func TestTicketUpdate_ReviewResolveComplete(t *testing.T) {
	svc, m := setupTicketService(t)

	stored := pendingTicket()
	stored.TicketStatus = domain.TicketStatusInProgress
	stored.ProjectStatus = domain.ProjectStatusInProgress
	stored.EditorID = ptr(editorID)

	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).DoAndReturn(
		func(context.Context, string) (*domain.ProjectTicket, error) { return stored.Clone(), nil }).AnyTimes()
	m.tickets.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ticket *domain.ProjectTicket, expected int64) error {
			require.Equal(t, stored.Version, expected)
			ticket.Version = expected + 1
			stored = ticket.Clone()
			return nil
		}).Times(3)
	m.history.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	review := domain.ProjectStatusReview
	got, err := svc.Update(context.Background(), editorActor, ticketID, permission.TicketPatch{ProjectStatus: &review})
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusReview, got.ProjectStatus)

	resolved := domain.TicketStatusResolved
	got, err = svc.Update(context.Background(), clientActor, ticketID, permission.TicketPatch{TicketStatus: &resolved})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, got.TicketStatus)
	assert.Equal(t, domain.ProjectStatusReview, got.ProjectStatus)
	require.NotNil(t, got.ResolvedAt)

	completed := domain.ProjectStatusCompleted
	got, err = svc.Update(context.Background(), editorActor, ticketID, permission.TicketPatch{ProjectStatus: &completed})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, got.TicketStatus)
	assert.Equal(t, domain.ProjectStatusCompleted, got.ProjectStatus)

	for _, actor := range []domain.Actor{adminActor, editorActor, clientActor} {
		_, err := svc.Update(context.Background(), actor, ticketID, permission.TicketPatch{Subject: ptr("late edit")})
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState), "role %s", actor.Role)
	}
}

func TestTicketUpdate_StaleVersionIsConflict(t *testing.T) {
	svc, m := setupTicketService(t)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(pendingTicket(), nil)
	m.users.EXPECT().GetByID(gomock.Any(), editorID).Return(activeEditor(editorID), nil)
	m.tickets.EXPECT().Update(gomock.Any(), gomock.Any(), int64(1)).Return(repository.ErrStaleTicket)

	_, err := NewAssignmentService(svc).Claim(context.Background(), editorActor, ticketID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
	assert.Empty(t, *m.events)
}

func TestTicketClaim_AlreadyAssigned(t *testing.T) {
	svc, m := setupTicketService(t)

	for _, status := range []domain.ProjectStatus{domain.ProjectStatusPending, domain.ProjectStatusInProgress} {
		stored := pendingTicket()
		stored.ProjectStatus = status
		stored.EditorID = ptr(editorID)
		m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(stored, nil)

		rival := domain.Actor{UserID: editor2ID, Role: domain.RoleEditor, IsActive: true}
		_, err := NewAssignmentService(svc).Claim(context.Background(), rival, ticketID)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState), "status %s", status)
	}
	assert.Empty(t, *m.events)
}

func TestTicketClaim_ReviewTicket(t *testing.T) {
	svc, m := setupTicketService(t)

	stored := pendingTicket()
	stored.TicketStatus = domain.TicketStatusResolved
	stored.ProjectStatus = domain.ProjectStatusReview
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(stored, nil)

	_, err := NewAssignmentService(svc).Claim(context.Background(), editorActor, ticketID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
	assert.Empty(t, *m.events)
}

func TestTicketClaim_RequiresEditor(t *testing.T) {
	svc, _ := setupTicketService(t)

	_, err := NewAssignmentService(svc).Claim(context.Background(), clientActor, ticketID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestTicketUpdate_AssigneeMustBeActiveEditor(t *testing.T) {
	svc, m := setupTicketService(t)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(pendingTicket(), nil).Times(2)
	m.users.EXPECT().GetByID(gomock.Any(), clientID).Return(&domain.User{ID: clientID, RoleName: domain.RoleClient, IsActive: true}, nil)
	m.users.EXPECT().GetByID(gomock.Any(), editor2ID).Return(nil, pgx.ErrNoRows)

	assign := NewAssignmentService(svc)
	_, err := assign.Assign(context.Background(), adminActor, ticketID, ptr(clientID))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))

	_, err = assign.Assign(context.Background(), adminActor, ticketID, ptr(editor2ID))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestTicketUpdate_NoEffectSkipsWrite(t *testing.T) {
	svc, m := setupTicketService(t)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(pendingTicket(), nil).Times(2)

	got, err := svc.Update(context.Background(), editorActor, ticketID, permission.TicketPatch{Subject: ptr("ignored")})
	require.NoError(t, err)
	assert.Equal(t, "Logo edit", got.Subject)

	got, err = svc.Update(context.Background(), clientActor, ticketID, permission.TicketPatch{Subject: ptr("Logo edit")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Empty(t, *m.events)
}

func TestTicketUpdate_ClientContentEditRecordsFields(t *testing.T) {
	svc, m := setupTicketService(t)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(pendingTicket(), nil)
	m.tickets.EXPECT().Update(gomock.Any(), gomock.Any(), int64(1)).Return(nil)
	m.history.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.TicketHistory) error {
			assert.Equal(t, domain.ChangeTypeFields, entry.ChangeType)
			assert.Equal(t, clientID, entry.ChangedByID)
			return errors.New("history down")
		})

	got, err := svc.Update(context.Background(), clientActor, ticketID, permission.TicketPatch{
		Budget:        ptr(250.0),
		ProjectStatus: ptr(domain.ProjectStatusInProgress),
	})
	require.NoError(t, err, "history failures are not fatal")
	assert.Equal(t, 250.0, got.Budget)
	assert.Equal(t, domain.ProjectStatusPending, got.ProjectStatus)
	assert.Equal(t, []events.EventType{events.EventTicketUpdated}, eventTypes(m.events))
}

func TestTicketGet_MalformedAndMissing(t *testing.T) {
	svc, m := setupTicketService(t)

	_, err := svc.Get(context.Background(), adminActor, "not-a-uuid")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(nil, pgx.ErrNoRows)
	_, err = svc.Get(context.Background(), adminActor, ticketID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestTicketGet_OtherClientForbidden(t *testing.T) {
	svc, m := setupTicketService(t)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(pendingTicket(), nil)

	other := domain.Actor{UserID: client2ID, Role: domain.RoleClient, IsActive: true}
	_, err := svc.Get(context.Background(), other, ticketID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestTicketList_ClientScoped(t *testing.T) {
	svc, m := setupTicketService(t)
	m.tickets.EXPECT().ListWithFilter(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, f repository.TicketFilter) ([]domain.ProjectTicket, error) {
			require.NotNil(t, f.ClientID)
			assert.Equal(t, clientID, *f.ClientID)
			assert.Equal(t, 20, f.Limit)
			return []domain.ProjectTicket{*pendingTicket()}, nil
		})

	got, err := svc.List(context.Background(), clientActor, TicketListFilter{Limit: 20})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTicketDelete_AdminRemovesFilesThenTicket(t *testing.T) {
	svc, m := setupTicketService(t)
	ticket := pendingTicket()
	ticket.TicketStatus = domain.TicketStatusInProgress
	ticket.ProjectStatus = domain.ProjectStatusReview

	files := []domain.ProjectFile{{ID: "f1", FilePath: "p1"}, {ID: "f2", FilePath: "p2"}, {ID: "f3", FilePath: "p3"}}
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(ticket, nil)
	m.files.EXPECT().ListByTicket(gomock.Any(), ticketID, nil).Return(files, nil)
	gomock.InOrder(
		m.blobs.EXPECT().Remove(gomock.Any(), "p1").Return(nil),
		m.blobs.EXPECT().Remove(gomock.Any(), "p2").Return(nil),
		m.blobs.EXPECT().Remove(gomock.Any(), "p3").Return(nil),
		m.tickets.EXPECT().Delete(gomock.Any(), ticketID).Return(nil),
	)

	require.NoError(t, svc.Delete(context.Background(), adminActor, ticketID))
	require.Len(t, *m.events, 1)
	payload := (*m.events)[0].Payload.(events.TicketDeletedPayload)
	assert.Equal(t, 3, payload.RemovedFiles)
}

func TestTicketDelete_StorageFailureKeepsRows(t *testing.T) {
	svc, m := setupTicketService(t)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(pendingTicket(), nil)
	m.files.EXPECT().ListByTicket(gomock.Any(), ticketID, nil).Return([]domain.ProjectFile{{ID: "f1", FilePath: "p1"}}, nil)
	m.blobs.EXPECT().Remove(gomock.Any(), "p1").Return(errors.New("minio unreachable"))

	err := svc.Delete(context.Background(), clientActor, ticketID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeIOFailure))
}

func TestTicketDelete_ClientOnlyWhileOpen(t *testing.T) {
	svc, m := setupTicketService(t)
	ticket := pendingTicket()
	ticket.TicketStatus = domain.TicketStatusInProgress
	ticket.ProjectStatus = domain.ProjectStatusInProgress
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(ticket, nil)

	err := svc.Delete(context.Background(), clientActor, ticketID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
}

func TestDashboard_Scopes(t *testing.T) {
	svc, m := setupTicketService(t)
	counts := domain.StatusCounts{Total: 2}

	m.tickets.EXPECT().CountByStatus(gomock.Any(), repository.CountScope{}).Return(counts, nil)
	m.tickets.EXPECT().CountByStatus(gomock.Any(), repository.CountScope{EditorID: ptr(editorID)}).Return(counts, nil)
	m.tickets.EXPECT().CountByStatus(gomock.Any(), repository.CountScope{ClientID: ptr(clientID)}).Return(counts, nil)

	for _, actor := range []domain.Actor{adminActor, editorActor, clientActor} {
		got, err := svc.Dashboard(context.Background(), actor)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Total)
	}

	_, err := svc.Dashboard(context.Background(), domain.Actor{UserID: "x", Role: "auditor"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}
