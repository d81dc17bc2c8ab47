package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/studio-desk/internal/domain"
)

// FileRepository persists project file metadata.
type FileRepository interface {
	Create(ctx context.Context, file *domain.ProjectFile) error
	GetByID(ctx context.Context, id string) (*domain.ProjectFile, error)
	// ListByTicket returns the ticket's files, optionally of one category.
	ListByTicket(ctx context.Context, ticketID string, category *domain.FileCategory) ([]domain.ProjectFile, error)
	Delete(ctx context.Context, id string) error
}

type fileRepository struct {
	pool *pgxpool.Pool
}

// NewFileRepository constructs repository.
func NewFileRepository(pool *pgxpool.Pool) FileRepository {
	return &fileRepository{pool: pool}
}

const fileColumns = `id, project_ticket_id, file_name, file_path, file_type, file_size, file_category, uploaded_by, uploaded_at`

func (r *fileRepository) Create(ctx context.Context, file *domain.ProjectFile) error {
	return insertFile(ctx, r.pool, file)
}

func insertFile(ctx context.Context, q querier, file *domain.ProjectFile) error {
	const query = `
        INSERT INTO project_files (project_ticket_id, file_name, file_path, file_type, file_size, file_category, uploaded_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, uploaded_at`
	return q.QueryRow(ctx, query,
		file.ProjectTicketID,
		file.FileName,
		file.FilePath,
		file.FileType,
		file.FileSize,
		file.FileCategory,
		file.UploadedBy,
	).Scan(&file.ID, &file.UploadedAt)
}

func (r *fileRepository) GetByID(ctx context.Context, id string) (*domain.ProjectFile, error) {
	query := `SELECT ` + fileColumns + ` FROM project_files WHERE id=$1`
	var file domain.ProjectFile
	if err := scanFile(r.pool.QueryRow(ctx, query, id), &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *fileRepository) ListByTicket(ctx context.Context, ticketID string, category *domain.FileCategory) ([]domain.ProjectFile, error) {
	query := `SELECT ` + fileColumns + ` FROM project_files WHERE project_ticket_id=$1`
	args := []any{ticketID}
	if category != nil {
		query += ` AND file_category=$2`
		args = append(args, *category)
	}
	query += ` ORDER BY uploaded_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ProjectFile
	for rows.Next() {
		var file domain.ProjectFile
		if err := scanFile(rows, &file); err != nil {
			return nil, err
		}
		result = append(result, file)
	}
	return result, rows.Err()
}

func (r *fileRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM project_files WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanFile(row pgx.Row, file *domain.ProjectFile) error {
	return row.Scan(
		&file.ID,
		&file.ProjectTicketID,
		&file.FileName,
		&file.FilePath,
		&file.FileType,
		&file.FileSize,
		&file.FileCategory,
		&file.UploadedBy,
		&file.UploadedAt,
	)
}
