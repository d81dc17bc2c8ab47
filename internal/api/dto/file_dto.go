package dto

import (
	"time"

	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/permission"
	"github.com/spec-kit/studio-desk/internal/service"
)

// FileResponse is file metadata plus what the caller may do with it.
type FileResponse struct {
	ID              string                       `json:"id"`
	ProjectTicketID string                       `json:"project_ticket_id"`
	FileName        string                       `json:"file_name"`
	FileType        string                       `json:"file_type"`
	FileSize        int64                        `json:"file_size"`
	FileCategory    domain.FileCategory          `json:"file_category"`
	UploadedBy      string                       `json:"uploaded_by"`
	UploadedAt      time.Time                    `json:"uploaded_at"`
	Capabilities    *permission.FileCapabilities `json:"capabilities,omitempty"`
}

// NewFileResponse maps stored metadata without capabilities.
func NewFileResponse(f domain.ProjectFile) FileResponse {
	return FileResponse{
		ID:              f.ID,
		ProjectTicketID: f.ProjectTicketID,
		FileName:        f.FileName,
		FileType:        f.FileType,
		FileSize:        f.FileSize,
		FileCategory:    f.FileCategory,
		UploadedBy:      f.UploadedBy,
		UploadedAt:      f.UploadedAt,
	}
}

// NewFileViewResponses maps annotated files.
func NewFileViewResponses(views []service.FileView) []FileResponse {
	out := make([]FileResponse, 0, len(views))
	for _, v := range views {
		resp := NewFileResponse(v.File)
		caps := v.Capabilities
		resp.Capabilities = &caps
		out = append(out, resp)
	}
	return out
}
