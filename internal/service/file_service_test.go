package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/events"
	repomock "github.com/spec-kit/studio-desk/internal/repository/mock"
	"github.com/spec-kit/studio-desk/internal/storage"
	storemock "github.com/spec-kit/studio-desk/internal/storage/mock"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

const (
	fileID      = "7d1a5b6c-2e3f-4a8b-9c0d-1e2f3a4b5c01"
	otherFileID = "7d1a5b6c-2e3f-4a8b-9c0d-1e2f3a4b5c02"
)

type fileMocks struct {
	tickets *repomock.MockTicketRepository
	files   *repomock.MockFileRepository
	blobs   *storemock.MockBlobStore
	events  *[]events.Event
}

func setupFileService(t *testing.T) (*FileService, fileMocks) {
	ctrl := gomock.NewController(t)
	t.Cleanup(func() { ctrl.Finish() })

	dispatcher, seen := recordingDispatcher()
	m := fileMocks{
		tickets: repomock.NewMockTicketRepository(ctrl),
		files:   repomock.NewMockFileRepository(ctrl),
		blobs:   storemock.NewMockBlobStore(ctrl),
		events:  seen,
	}
	svc := NewFileService(FileDependencies{
		TicketRepo: m.tickets,
		FileRepo:   m.files,
		Blobs:      m.blobs,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Now:        func() time.Time { return fixedNow },
	})
	return svc, m
}

func assignedTicket() *domain.ProjectTicket {
	t := pendingTicket()
	t.TicketStatus = domain.TicketStatusInProgress
	t.ProjectStatus = domain.ProjectStatusInProgress
	t.EditorID = ptr(editorID)
	return t
}

func storedFile(category domain.FileCategory, uploader string) *domain.ProjectFile {
	return &domain.ProjectFile{
		ID:              fileID,
		ProjectTicketID: ticketID,
		FileName:        "cut.mp4",
		FilePath:        "project_files/2026/05/cut.mp4",
		FileType:        "video/mp4",
		FileSize:        42,
		FileCategory:    category,
		UploadedBy:      uploader,
	}
}

func TestFileUpload_EditorOutput(t *testing.T) {
	svc, m := setupFileService(t)
	staged := []domain.StagedFile{{OriginalName: "cut.mp4", MimeType: "video/mp4", Size: 42, StoredPath: "k1"}}

	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(assignedTicket(), nil)
	m.files.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, f *domain.ProjectFile) error {
			f.ID = fileID
			return nil
		})

	views, err := svc.Upload(context.Background(), editorActor, ticketID, domain.FileCategoryOutput, staged)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.FileCategoryOutput, views[0].File.FileCategory)
	assert.Equal(t, editorID, views[0].File.UploadedBy)
	assert.True(t, views[0].Capabilities.CanDelete)
	assert.Equal(t, []events.EventType{events.EventFileUploaded}, eventTypes(m.events))
}

func TestFileUpload_ClientOutputForbidden(t *testing.T) {
	svc, m := setupFileService(t)
	staged := []domain.StagedFile{{OriginalName: "fake.mp4", StoredPath: "k1"}}

	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(assignedTicket(), nil)
	m.blobs.EXPECT().Remove(gomock.Any(), "k1").Return(nil)

	_, err := svc.Upload(context.Background(), clientActor, ticketID, domain.FileCategoryOutput, staged)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestFileUpload_UnassignedEditorForbidden(t *testing.T) {
	svc, m := setupFileService(t)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(pendingTicket(), nil)
	m.blobs.EXPECT().Remove(gomock.Any(), "k1").Return(nil)

	_, err := svc.Upload(context.Background(), editorActor, ticketID, domain.FileCategoryOutput,
		[]domain.StagedFile{{StoredPath: "k1"}})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestFileAuthorizeUpload(t *testing.T) {
	svc, m := setupFileService(t)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(assignedTicket(), nil).Times(3)

	ctx := context.Background()
	assert.NoError(t, svc.AuthorizeUpload(ctx, editorActor, ticketID, domain.FileCategoryOutput))
	assert.True(t, apperrors.IsCode(svc.AuthorizeUpload(ctx, clientActor, ticketID, domain.FileCategoryOutput), apperrors.CodeForbidden))
	assert.True(t, apperrors.IsCode(svc.AuthorizeUpload(ctx, editorActor, ticketID, domain.FileCategoryInput), apperrors.CodeForbidden))

	err := svc.AuthorizeUpload(ctx, clientActor, "not-a-uuid", domain.FileCategoryInput)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestFileUpload_NoFiles(t *testing.T) {
	svc, m := setupFileService(t)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(pendingTicket(), nil)

	_, err := svc.Upload(context.Background(), clientActor, ticketID, domain.FileCategoryInput, nil)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeMissingField, de.Code)
}

func TestFileUpload_RecordFailureRollsBack(t *testing.T) {
	svc, m := setupFileService(t)
	staged := []domain.StagedFile{{OriginalName: "a.png", StoredPath: "k1"}, {OriginalName: "b.png", StoredPath: "k2"}}

	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(pendingTicket(), nil)
	gomock.InOrder(
		m.files.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, f *domain.ProjectFile) error {
				f.ID = fileID
				return nil
			}),
		m.files.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("insert failed")),
		m.files.EXPECT().Delete(gomock.Any(), fileID).Return(nil),
	)
	m.blobs.EXPECT().Remove(gomock.Any(), "k1").Return(nil)
	m.blobs.EXPECT().Remove(gomock.Any(), "k2").Return(nil)

	_, err := svc.Upload(context.Background(), clientActor, ticketID, domain.FileCategoryInput, staged)
	require.Error(t, err)
	assert.Empty(t, *m.events)
}

func TestFileList_FiltersAndAnnotates(t *testing.T) {
	svc, m := setupFileService(t)
	input := storedFile(domain.FileCategoryInput, clientID)
	output := storedFile(domain.FileCategoryOutput, editorID)
	output.ID = otherFileID

	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(assignedTicket(), nil)
	m.files.EXPECT().ListByTicket(gomock.Any(), ticketID, nil).Return([]domain.ProjectFile{*input, *output}, nil)

	views, err := svc.List(context.Background(), clientActor, ticketID, nil)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.True(t, views[0].Capabilities.CanDelete)
	assert.False(t, views[1].Capabilities.CanDelete)
	assert.False(t, views[1].Capabilities.CanUpload)
}

func TestFileList_RejectsUnknownCategory(t *testing.T) {
	svc, m := setupFileService(t)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(pendingTicket(), nil)

	misc := domain.FileCategory("MISC")
	_, err := svc.List(context.Background(), clientActor, ticketID, &misc)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestFileDownload(t *testing.T) {
	svc, m := setupFileService(t)
	m.files.EXPECT().GetByID(gomock.Any(), fileID).Return(storedFile(domain.FileCategoryOutput, editorID), nil).Times(2)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(assignedTicket(), nil).Times(2)
	m.blobs.EXPECT().Open(gomock.Any(), "project_files/2026/05/cut.mp4").Return(io.NopCloser(strings.NewReader("bytes")), nil)
	m.blobs.EXPECT().Open(gomock.Any(), "project_files/2026/05/cut.mp4").Return(nil, storage.ErrObjectNotFound)

	dl, err := svc.Download(context.Background(), clientActor, fileID)
	require.NoError(t, err)
	defer dl.Reader.Close()
	body, err := io.ReadAll(dl.Reader)
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(body))

	_, err = svc.Download(context.Background(), clientActor, fileID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestFileDownload_OtherClientForbidden(t *testing.T) {
	svc, m := setupFileService(t)
	m.files.EXPECT().GetByID(gomock.Any(), fileID).Return(storedFile(domain.FileCategoryInput, clientID), nil)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(assignedTicket(), nil)

	other := domain.Actor{UserID: client2ID, Role: domain.RoleClient, IsActive: true}
	_, err := svc.Download(context.Background(), other, fileID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestFileDelete_UploaderOnly(t *testing.T) {
	svc, m := setupFileService(t)
	file := storedFile(domain.FileCategoryOutput, editorID)
	m.files.EXPECT().GetByID(gomock.Any(), fileID).Return(file, nil).Times(2)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(assignedTicket(), nil).Times(2)

	err := svc.Delete(context.Background(), clientActor, fileID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	gomock.InOrder(
		m.blobs.EXPECT().Remove(gomock.Any(), file.FilePath).Return(nil),
		m.files.EXPECT().Delete(gomock.Any(), fileID).Return(nil),
	)
	require.NoError(t, svc.Delete(context.Background(), editorActor, fileID))
	assert.Equal(t, []events.EventType{events.EventFileDeleted}, eventTypes(m.events))
}

func TestFileDelete_StorageFailureKeepsRecord(t *testing.T) {
	svc, m := setupFileService(t)
	m.files.EXPECT().GetByID(gomock.Any(), fileID).Return(storedFile(domain.FileCategoryInput, clientID), nil)
	m.tickets.EXPECT().GetByID(gomock.Any(), ticketID).Return(assignedTicket(), nil)
	m.blobs.EXPECT().Remove(gomock.Any(), gomock.Any()).Return(errors.New("timeout"))

	err := svc.Delete(context.Background(), adminActor, fileID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeIOFailure))
}
