package domain

import "time"

// FileCategory separates client source material from editor deliverables.
type FileCategory string

const (
	FileCategoryInput  FileCategory = "INPUT"
	FileCategoryOutput FileCategory = "OUTPUT"
)

func (c FileCategory) Valid() bool {
	return c == FileCategoryInput || c == FileCategoryOutput
}

// ProjectFile is stored metadata for bytes held in the blob store.
type ProjectFile struct {
	ID              string
	ProjectTicketID string
	FileName        string
	FilePath        string
	FileType        string
	FileSize        int64
	FileCategory    FileCategory
	UploadedBy      string
	UploadedAt      time.Time
}

// StagedFile describes bytes already written to the blob store for the
// current request but not yet bound to a ticket.
type StagedFile struct {
	OriginalName string
	MimeType     string
	Size         int64
	StoredPath   string
}
