package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/studio-desk/internal/api/dto"
	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/service"
	"github.com/spec-kit/studio-desk/internal/upload"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

// FilesHandler exposes ticket file endpoints.
type FilesHandler struct {
	files  *service.FileService
	stager *upload.Stager
}

// NewFilesHandler constructs handler.
func NewFilesHandler(files *service.FileService, stager *upload.Stager) *FilesHandler {
	return &FilesHandler{files: files, stager: stager}
}

// List GET /tickets/:id/files?file_category=INPUT|OUTPUT.
func (h *FilesHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var category *domain.FileCategory
	if raw := strings.TrimSpace(c.Query("file_category")); raw != "" {
		fc := domain.FileCategory(strings.ToUpper(raw))
		category = &fc
	}
	views, err := h.files.List(c.UserContext(), actor, c.Params("id"), category)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewFileViewResponses(views)})
}

// Upload POST /tickets/:id/files (multipart: file_category, files...).
func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if !isMultipart(c) {
		return apperrors.NewValidationError("multipart/form-data body required", nil)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.NewValidationError("invalid multipart body", nil)
	}

	var category domain.FileCategory
	if v := form.Value["file_category"]; len(v) > 0 {
		category = domain.FileCategory(strings.ToUpper(strings.TrimSpace(v[0])))
	}
	if category == "" {
		return apperrors.NewMissingField("file_category")
	}
	if !category.Valid() {
		return apperrors.NewValidationError("unknown file category", map[string]any{"file_category": category})
	}
	parts := form.File["files"]
	if len(parts) == 0 {
		return apperrors.NewMissingField("files")
	}
	if err := h.files.AuthorizeUpload(c.UserContext(), actor, c.Params("id"), category); err != nil {
		return err
	}

	staged, err := h.stager.Stage(c.UserContext(), parts)
	if err != nil {
		return err
	}
	views, err := h.files.Upload(c.UserContext(), actor, c.Params("id"), category, staged)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewFileViewResponses(views)})
}

// Download GET /files/:id/download streams the stored bytes.
func (h *FilesHandler) Download(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	dl, err := h.files.Download(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	contentType := dl.File.FileType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, contentDisposition(dl.File.FileName))
	return c.SendStream(dl.Reader, int(dl.File.FileSize))
}

// Delete DELETE /files/:id.
func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.files.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func contentDisposition(name string) string {
	ascii := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, ascii, url.PathEscape(name))
}
