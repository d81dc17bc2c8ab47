// Package upload turns multipart file parts into staged blobs. Filtering by
// type and size happens here, before any ticket or file record is touched.
package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/storage"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

const genericType = "application/octet-stream"

var allowedTypes = map[string]struct{}{
	"video/mp4":                   {},
	"video/avi":                   {},
	"video/mov":                   {},
	"video/mkv":                   {},
	"video/wmv":                   {},
	"audio/mp3":                   {},
	"audio/wav":                   {},
	"audio/aac":                   {},
	"audio/flac":                  {},
	"image/jpeg":                  {},
	"image/png":                   {},
	"image/gif":                   {},
	"image/bmp":                   {},
	"application/pdf":             {},
	"text/plain":                  {},
	"application/zip":             {},
	"application/x-7z-compressed": {},
}

// registered names that browsers and the sniffer emit for the allowed set
var typeAliases = map[string]string{
	"video/quicktime":              "video/mov",
	"video/x-msvideo":              "video/avi",
	"video/x-matroska":             "video/mkv",
	"video/x-ms-wmv":               "video/wmv",
	"video/x-ms-asf":               "video/wmv",
	"audio/mpeg":                   "audio/mp3",
	"audio/x-wav":                  "audio/wav",
	"audio/wave":                   "audio/wav",
	"audio/x-flac":                 "audio/flac",
	"audio/x-aac":                  "audio/aac",
	"image/x-ms-bmp":               "image/bmp",
	"application/x-zip-compressed": "application/zip",
}

// Stager writes accepted parts to the blob store under fresh opaque keys.
type Stager struct {
	store    storage.BlobStore
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
}

// NewStager builds a stager bounded to maxBytes per file.
func NewStager(store storage.BlobStore, maxBytes int64, logger *zap.Logger) *Stager {
	return &Stager{store: store, maxBytes: maxBytes, logger: logger, now: time.Now}
}

// Stage filters and stores every part. On any failure the parts staged so far
// are removed and nothing is returned.
func (s *Stager) Stage(ctx context.Context, parts []*multipart.FileHeader) ([]domain.StagedFile, error) {
	staged := make([]domain.StagedFile, 0, len(parts))
	for _, part := range parts {
		file, err := s.stageOne(ctx, part)
		if err != nil {
			s.Discard(ctx, staged)
			return nil, err
		}
		staged = append(staged, file)
	}
	return staged, nil
}

func (s *Stager) stageOne(ctx context.Context, part *multipart.FileHeader) (domain.StagedFile, error) {
	name := path.Base(strings.ReplaceAll(part.Filename, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return domain.StagedFile{}, apperrors.NewValidationError("file name is required", nil)
	}
	if part.Size <= 0 {
		return domain.StagedFile{}, apperrors.NewValidationError("file is empty", map[string]any{"file_name": name})
	}
	if part.Size > s.maxBytes {
		return domain.StagedFile{}, apperrors.NewValidationError("file exceeds the maximum size",
			map[string]any{"file_name": name, "max_bytes": s.maxBytes})
	}

	src, err := part.Open()
	if err != nil {
		return domain.StagedFile{}, apperrors.NewIOFailure("unable to read upload", err)
	}
	defer src.Close()

	mimeType := NormalizeType(part.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == genericType {
		detected, err := mimetype.DetectReader(src)
		if err != nil {
			return domain.StagedFile{}, apperrors.NewIOFailure("unable to inspect upload", err)
		}
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return domain.StagedFile{}, apperrors.NewIOFailure("unable to rewind upload", err)
		}
		mimeType = NormalizeType(detected.String())
	}
	if !Allowed(mimeType) {
		return domain.StagedFile{}, apperrors.NewValidationError("file type is not allowed",
			map[string]any{"file_name": name, "file_type": mimeType})
	}

	key := s.objectKey(name)
	if err := s.store.Put(ctx, key, src, part.Size, mimeType); err != nil {
		return domain.StagedFile{}, apperrors.NewIOFailure("unable to store upload", err)
	}
	return domain.StagedFile{OriginalName: name, MimeType: mimeType, Size: part.Size, StoredPath: key}, nil
}

func (s *Stager) objectKey(name string) string {
	now := s.now().UTC()
	return fmt.Sprintf("project_files/%04d/%02d/%s%s", now.Year(), int(now.Month()), uuid.NewString(), strings.ToLower(path.Ext(name)))
}

// Discard removes staged bytes. Failures are logged; the objects are orphans.
func (s *Stager) Discard(ctx context.Context, staged []domain.StagedFile) {
	DiscardAll(ctx, s.store, s.logger, staged)
}

// DiscardAll removes every staged object from store, logging failures.
func DiscardAll(ctx context.Context, store storage.BlobStore, logger *zap.Logger, staged []domain.StagedFile) {
	for _, f := range staged {
		if err := store.Remove(ctx, f.StoredPath); err != nil {
			logger.Warn("failed to discard staged file", zap.String("path", f.StoredPath), zap.Error(err))
		}
	}
}

// NormalizeType lowercases, strips parameters and folds aliases.
func NormalizeType(contentType string) string {
	t, _, _ := strings.Cut(contentType, ";")
	t = strings.ToLower(strings.TrimSpace(t))
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return t
}

// Allowed reports whether a normalized type may be uploaded.
func Allowed(mimeType string) bool {
	_, ok := allowedTypes[mimeType]
	return ok
}
