package permission

import (
	"github.com/spec-kit/studio-desk/internal/domain"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

// FileCapabilities lists what an actor may do with one file.
type FileCapabilities struct {
	CanView     bool `json:"can_view"`
	CanDownload bool `json:"can_download"`
	CanUpload   bool `json:"can_upload"`
	CanDelete   bool `json:"can_delete"`
}

// CheckTicketAssociation gates every file operation: admins always pass,
// clients must own the ticket, editors must be assigned to it.
func CheckTicketAssociation(actor domain.Actor, ticket *domain.ProjectTicket) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleClient:
		if ticket.ClientID == actor.UserID {
			return nil
		}
	case domain.RoleEditor:
		if ticket.IsAssignedTo(actor.UserID) {
			return nil
		}
	}
	return apperrors.NewForbidden("no access to this ticket's files")
}

// FileAccess is the capability table keyed by role, category and whether the
// actor uploaded the file.
func FileAccess(role domain.RoleName, category domain.FileCategory, isUploader bool) FileCapabilities {
	switch role {
	case domain.RoleAdmin:
		return FileCapabilities{CanView: true, CanDownload: true, CanUpload: true, CanDelete: true}
	case domain.RoleClient:
		switch category {
		case domain.FileCategoryInput:
			return FileCapabilities{CanView: true, CanDownload: true, CanUpload: true, CanDelete: isUploader}
		case domain.FileCategoryOutput:
			return FileCapabilities{CanView: true, CanDownload: true}
		}
	case domain.RoleEditor:
		switch category {
		case domain.FileCategoryInput:
			return FileCapabilities{CanView: true, CanDownload: true}
		case domain.FileCategoryOutput:
			return FileCapabilities{CanView: true, CanDownload: true, CanUpload: true, CanDelete: isUploader}
		}
	}
	return FileCapabilities{}
}

// CapabilitiesFor evaluates the table for an existing file.
func CapabilitiesFor(actor domain.Actor, file *domain.ProjectFile) FileCapabilities {
	return FileAccess(actor.Role, file.FileCategory, file.UploadedBy == actor.UserID)
}

// AuthorizeUpload checks association and the upload column for category.
func AuthorizeUpload(actor domain.Actor, ticket *domain.ProjectTicket, category domain.FileCategory) error {
	if !category.Valid() {
		return apperrors.NewValidationError("unknown file category", map[string]any{"file_category": category})
	}
	if err := CheckTicketAssociation(actor, ticket); err != nil {
		return err
	}
	if !FileAccess(actor.Role, category, true).CanUpload {
		return apperrors.NewForbidden("role cannot upload " + string(category) + " files")
	}
	return nil
}

// AuthorizeDownload checks association and the download column.
func AuthorizeDownload(actor domain.Actor, ticket *domain.ProjectTicket, file *domain.ProjectFile) error {
	if err := CheckTicketAssociation(actor, ticket); err != nil {
		return err
	}
	if !CapabilitiesFor(actor, file).CanDownload {
		return apperrors.NewForbidden("file cannot be downloaded")
	}
	return nil
}

// AuthorizeFileDelete checks association and the delete column.
func AuthorizeFileDelete(actor domain.Actor, ticket *domain.ProjectTicket, file *domain.ProjectFile) error {
	if err := CheckTicketAssociation(actor, ticket); err != nil {
		return err
	}
	if !CapabilitiesFor(actor, file).CanDelete {
		return apperrors.NewForbidden("file cannot be deleted")
	}
	return nil
}
