package service

import (
	"context"
	"errors"
	"io"
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

// FileService manages the files attached to project tickets.
type FileService struct {
	tickets    repository.TicketRepository
	files      repository.FileRepository
	blobs      storage.BlobStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// FileDependencies bundles collaborators for the file service.
type FileDependencies struct {
	TicketRepo repository.TicketRepository
	FileRepo   repository.FileRepository
	Blobs      storage.BlobStore
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// FileView pairs a file with what the requesting actor may do with it.
type FileView struct {
	File         domain.ProjectFile
	Capabilities permission.FileCapabilities
}

// Download is an open byte stream for a file.
type Download struct {
	File   domain.ProjectFile
	Reader io.ReadCloser
}

// NewFileService constructs the service.
func NewFileService(deps FileDependencies) *FileService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{
		tickets:    deps.TicketRepo,
		files:      deps.FileRepo,
		blobs:      deps.Blobs,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        now,
	}
}

// AuthorizeUpload reports whether actor may add category files to the
// ticket. Callers check it before any bytes reach the blob store.
func (s *FileService) AuthorizeUpload(ctx context.Context, actor domain.Actor, ticketID string, category domain.FileCategory) error {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	return permission.AuthorizeUpload(actor, ticket, category)
}

// Upload binds staged blobs to a ticket under category. Every failure
// discards the staged blobs and any records already written.
func (s *FileService) Upload(ctx context.Context, actor domain.Actor, ticketID string, category domain.FileCategory, staged []domain.StagedFile) ([]FileView, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		upload.DiscardAll(ctx, s.blobs, s.logger, staged)
		return nil, err
	}
	if err := permission.AuthorizeUpload(actor, ticket, category); err != nil {
		upload.DiscardAll(ctx, s.blobs, s.logger, staged)
		return nil, err
	}
	if len(staged) == 0 {
		return nil, apperrors.NewMissingField("files")
	}

	created := make([]domain.ProjectFile, 0, len(staged))
	for _, sf := range staged {
		file := &domain.ProjectFile{
			ProjectTicketID: ticket.ID,
			FileName:        sf.OriginalName,
			FilePath:        sf.StoredPath,
			FileType:        sf.MimeType,
			FileSize:        sf.Size,
			FileCategory:    category,
			UploadedBy:      actor.UserID,
		}
		if err := s.files.Create(ctx, file); err != nil {
			s.rollbackUpload(ctx, created)
			upload.DiscardAll(ctx, s.blobs, s.logger, staged)
			return nil, apperrors.MapError(err)
		}
		created = append(created, *file)
	}

	views := make([]FileView, 0, len(created))
	for _, f := range created {
		views = append(views, FileView{File: f, Capabilities: permission.CapabilitiesFor(actor, &f)})
		s.publishFileEvent(ctx, events.EventFileUploaded, actor, f)
	}
	return views, nil
}

// List returns the ticket's files annotated with the actor's capabilities.
func (s *FileService) List(ctx context.Context, actor domain.Actor, ticketID string, category *domain.FileCategory) ([]FileView, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := permission.CheckTicketAssociation(actor, ticket); err != nil {
		return nil, err
	}
	if category != nil && !category.Valid() {
		return nil, apperrors.NewValidationError("unknown file category", map[string]any{"file_category": *category})
	}

	files, err := s.files.ListByTicket(ctx, ticket.ID, category)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	views := make([]FileView, 0, len(files))
	for i := range files {
		caps := permission.CapabilitiesFor(actor, &files[i])
		if !caps.CanView {
			continue
		}
		views = append(views, FileView{File: files[i], Capabilities: caps})
	}
	return views, nil
}

// Download opens the file's bytes. The caller closes the reader.
func (s *FileService) Download(ctx context.Context, actor domain.Actor, fileID string) (*Download, error) {
	file, ticket, err := s.loadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := permission.AuthorizeDownload(actor, ticket, file); err != nil {
		return nil, err
	}
	reader, err := s.blobs.Open(ctx, file.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, apperrors.NewNotFound("file content", map[string]any{"file_id": fileID})
		}
		return nil, apperrors.NewIOFailure("unable to read stored file", err)
	}
	return &Download{File: *file, Reader: reader}, nil
}

// Delete removes the stored bytes, then the record. A missing object counts
// as removed; any other storage error leaves the record for a retry.
func (s *FileService) Delete(ctx context.Context, actor domain.Actor, fileID string) error {
	file, ticket, err := s.loadFile(ctx, fileID)
	if err != nil {
		return err
	}
	if err := permission.AuthorizeFileDelete(actor, ticket, file); err != nil {
		return err
	}
	if err := s.blobs.Remove(ctx, file.FilePath); err != nil {
		return apperrors.NewIOFailure("unable to remove stored file", err)
	}
	if err := s.files.Delete(ctx, file.ID); err != nil {
		return notFoundOr(err, "file")
	}
	s.publishFileEvent(ctx, events.EventFileDeleted, actor, *file)
	return nil
}

func (s *FileService) rollbackUpload(ctx context.Context, created []domain.ProjectFile) {
	for _, f := range created {
		if err := s.files.Delete(ctx, f.ID); err != nil {
			s.logger.Warn("failed to roll back file record", zap.String("file_id", f.ID), zap.Error(err))
		}
	}
}

func (s *FileService) loadTicket(ctx context.Context, ticketID string) (*domain.ProjectTicket, error) {
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

func (s *FileService) loadFile(ctx context.Context, fileID string) (*domain.ProjectFile, *domain.ProjectTicket, error) {
	if _, err := uuid.Parse(fileID); err != nil {
		return nil, nil, apperrors.NewNotFound("file", map[string]any{"file_id": fileID})
	}
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("file", map[string]any{"file_id": fileID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	ticket, err := s.loadTicket(ctx, file.ProjectTicketID)
	if err != nil {
		return nil, nil, err
	}
	return file, ticket, nil
}

func (s *FileService) publishFileEvent(ctx context.Context, eventType events.EventType, actor domain.Actor, f domain.ProjectFile) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  f.ProjectTicketID,
		Actor:     events.ActorFrom(actor),
		Timestamp: s.now(),
		Payload:   events.FilePayload{FileID: f.ID, FileName: f.FileName, FileCategory: f.FileCategory},
	})
}
