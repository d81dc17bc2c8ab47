package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/studio-desk/internal/domain"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

func TestFileAccessMatrix(t *testing.T) {
	type row struct {
		role     domain.RoleName
		category domain.FileCategory
		uploader bool
		want     FileCapabilities
	}
	all := FileCapabilities{CanView: true, CanDownload: true, CanUpload: true, CanDelete: true}
	readOnly := FileCapabilities{CanView: true, CanDownload: true}
	uploadNoDelete := FileCapabilities{CanView: true, CanDownload: true, CanUpload: true}

	rows := []row{
		{domain.RoleAdmin, domain.FileCategoryInput, false, all},
		{domain.RoleAdmin, domain.FileCategoryInput, true, all},
		{domain.RoleAdmin, domain.FileCategoryOutput, false, all},
		{domain.RoleAdmin, domain.FileCategoryOutput, true, all},
		{domain.RoleClient, domain.FileCategoryInput, true, all},
		{domain.RoleClient, domain.FileCategoryInput, false, uploadNoDelete},
		{domain.RoleClient, domain.FileCategoryOutput, true, readOnly},
		{domain.RoleClient, domain.FileCategoryOutput, false, readOnly},
		{domain.RoleEditor, domain.FileCategoryInput, true, readOnly},
		{domain.RoleEditor, domain.FileCategoryInput, false, readOnly},
		{domain.RoleEditor, domain.FileCategoryOutput, true, all},
		{domain.RoleEditor, domain.FileCategoryOutput, false, uploadNoDelete},
		{domain.RoleName("auditor"), domain.FileCategoryInput, true, FileCapabilities{}},
	}
	for _, r := range rows {
		got := FileAccess(r.role, r.category, r.uploader)
		assert.Equal(t, r.want, got, "%s/%s uploader=%v", r.role, r.category, r.uploader)
	}
}

func TestCheckTicketAssociation(t *testing.T) {
	editor := "editor-1"
	ticket := &domain.ProjectTicket{ClientID: "client-1", EditorID: &editor}
	unassigned := &domain.ProjectTicket{ClientID: "client-1"}

	assert.NoError(t, CheckTicketAssociation(domain.Actor{UserID: "a", Role: domain.RoleAdmin}, unassigned))
	assert.NoError(t, CheckTicketAssociation(domain.Actor{UserID: "client-1", Role: domain.RoleClient}, ticket))
	assert.NoError(t, CheckTicketAssociation(domain.Actor{UserID: "editor-1", Role: domain.RoleEditor}, ticket))

	denied := []struct {
		actor  domain.Actor
		ticket *domain.ProjectTicket
	}{
		{domain.Actor{UserID: "client-2", Role: domain.RoleClient}, ticket},
		{domain.Actor{UserID: "editor-2", Role: domain.RoleEditor}, ticket},
		{domain.Actor{UserID: "editor-1", Role: domain.RoleEditor}, unassigned},
	}
	for _, d := range denied {
		err := CheckTicketAssociation(d.actor, d.ticket)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden), "%+v", d.actor)
	}
}

func TestAuthorizeUpload(t *testing.T) {
	editor := "editor-1"
	ticket := &domain.ProjectTicket{ClientID: "client-1", EditorID: &editor}
	client := domain.Actor{UserID: "client-1", Role: domain.RoleClient}
	ed := domain.Actor{UserID: "editor-1", Role: domain.RoleEditor}

	assert.NoError(t, AuthorizeUpload(client, ticket, domain.FileCategoryInput))
	assert.True(t, apperrors.IsCode(AuthorizeUpload(client, ticket, domain.FileCategoryOutput), apperrors.CodeForbidden))
	assert.NoError(t, AuthorizeUpload(ed, ticket, domain.FileCategoryOutput))
	assert.True(t, apperrors.IsCode(AuthorizeUpload(ed, ticket, domain.FileCategoryInput), apperrors.CodeForbidden))
	assert.True(t, apperrors.IsCode(AuthorizeUpload(client, ticket, "MISC"), apperrors.CodeValidation))
}

func TestAuthorizeFileDelete(t *testing.T) {
	editor := "editor-1"
	ticket := &domain.ProjectTicket{ClientID: "client-1", EditorID: &editor}
	own := &domain.ProjectFile{FileCategory: domain.FileCategoryOutput, UploadedBy: "editor-1"}
	byAdmin := &domain.ProjectFile{FileCategory: domain.FileCategoryOutput, UploadedBy: "admin-1"}

	ed := domain.Actor{UserID: "editor-1", Role: domain.RoleEditor}
	assert.NoError(t, AuthorizeFileDelete(ed, ticket, own))
	assert.True(t, apperrors.IsCode(AuthorizeFileDelete(ed, ticket, byAdmin), apperrors.CodeForbidden))

	client := domain.Actor{UserID: "client-1", Role: domain.RoleClient}
	assert.True(t, apperrors.IsCode(AuthorizeFileDelete(client, ticket, own), apperrors.CodeForbidden))
	assert.NoError(t, AuthorizeDownload(client, ticket, own))
}
