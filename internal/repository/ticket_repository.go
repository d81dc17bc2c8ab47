package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/studio-desk/internal/domain"
)

// ErrStaleTicket is returned by Update when the stored version moved on.
var ErrStaleTicket = errors.New("ticket was modified concurrently")

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TicketFilter captures list parameters. ClientID and EditorID narrow the
// scope; the remaining fields are user supplied filters.
type TicketFilter struct {
	ClientID        *string
	EditorID        *string
	TicketStatuses  []domain.TicketStatus
	ProjectStatuses []domain.ProjectStatus
	Priorities      []domain.TicketPriority
	SearchTerm      *string
	Limit           int
	Offset          int
}

// CountScope restricts dashboard counts. Both nil counts every ticket.
type CountScope struct {
	ClientID *string
	EditorID *string
}

// TicketRepository encapsulates project ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.ProjectTicket) error
	// CreateWithFiles inserts the ticket and binds files to it in one transaction.
	CreateWithFiles(ctx context.Context, ticket *domain.ProjectTicket, files []*domain.ProjectFile) error
	// Update writes ticket only if the stored version equals expectedVersion.
	Update(ctx context.Context, ticket *domain.ProjectTicket, expectedVersion int64) error
	GetByID(ctx context.Context, id string) (*domain.ProjectTicket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.ProjectTicket, error)
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, scope CountScope) (domain.StatusCounts, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, client_id, editor_id, ticket_status, project_status, subject, project_title,
               description, budget, priority, deadline, taken_at, resolved_at, version, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.ProjectTicket) error {
	return insertTicket(ctx, r.pool, ticket)
}

func insertTicket(ctx context.Context, q querier, ticket *domain.ProjectTicket) error {
	const query = `
        INSERT INTO project_tickets (client_id, editor_id, ticket_status, project_status, subject, project_title,
            description, budget, priority, deadline, taken_at, resolved_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, version, created_at, updated_at`
	return q.QueryRow(ctx, query,
		ticket.ClientID,
		ticket.EditorID,
		ticket.TicketStatus,
		ticket.ProjectStatus,
		ticket.Subject,
		ticket.ProjectTitle,
		ticket.Description,
		ticket.Budget,
		ticket.Priority,
		ticket.Deadline,
		ticket.TakenAt,
		ticket.ResolvedAt,
	).Scan(&ticket.ID, &ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) CreateWithFiles(ctx context.Context, ticket *domain.ProjectTicket, files []*domain.ProjectFile) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertTicket(ctx, tx, ticket); err != nil {
		return err
	}
	for _, file := range files {
		file.ProjectTicketID = ticket.ID
		if err := insertFile(ctx, tx, file); err != nil {
			return fmt.Errorf("insert file %s: %w", file.FileName, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.ProjectTicket, expectedVersion int64) error {
	const query = `
        UPDATE project_tickets SET editor_id=$1, ticket_status=$2, project_status=$3, subject=$4, project_title=$5,
            description=$6, budget=$7, priority=$8, deadline=$9, taken_at=$10, resolved_at=$11,
            version=version+1, updated_at=NOW()
        WHERE id=$12 AND version=$13
        RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.EditorID,
		ticket.TicketStatus,
		ticket.ProjectStatus,
		ticket.Subject,
		ticket.ProjectTitle,
		ticket.Description,
		ticket.Budget,
		ticket.Priority,
		ticket.Deadline,
		ticket.TakenAt,
		ticket.ResolvedAt,
		ticket.ID,
		expectedVersion,
	).Scan(&ticket.Version, &ticket.UpdatedAt)
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM project_tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}
	return ErrStaleTicket
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.ProjectTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM project_tickets WHERE id=$1`
	var ticket domain.ProjectTicket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.ProjectTicket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("client_id=$%d", len(args)))
	}
	if filter.EditorID != nil {
		args = append(args, *filter.EditorID)
		clauses = append(clauses, fmt.Sprintf("editor_id=$%d", len(args)))
	}
	if len(filter.TicketStatuses) > 0 {
		placeholders := make([]string, len(filter.TicketStatuses))
		for i, status := range filter.TicketStatuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("ticket_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.ProjectStatuses) > 0 {
		placeholders := make([]string, len(filter.ProjectStatuses))
		for i, status := range filter.ProjectStatuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("project_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(subject) LIKE %s OR LOWER(project_title) LIKE %s OR LOWER(description) LIKE %s)",
			placeholder, placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM project_tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ProjectTicket
	for rows.Next() {
		var ticket domain.ProjectTicket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

// Delete removes the ticket; file rows and history cascade.
func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM project_tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) CountByStatus(ctx context.Context, scope CountScope) (domain.StatusCounts, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if scope.ClientID != nil {
		args = append(args, *scope.ClientID)
		clauses = append(clauses, fmt.Sprintf("client_id=$%d", len(args)))
	}
	if scope.EditorID != nil {
		args = append(args, *scope.EditorID)
		clauses = append(clauses, fmt.Sprintf("editor_id=$%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT ticket_status, project_status, COUNT(*) FROM project_tickets WHERE %s
        GROUP BY ticket_status, project_status`, strings.Join(clauses, " AND "))

	counts := domain.StatusCounts{
		ByTicketStatus: map[domain.TicketStatus]int64{},
		ByProjectState: map[domain.ProjectStatus]int64{},
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return counts, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ts domain.TicketStatus
			ps domain.ProjectStatus
			n  int64
		)
		if err := rows.Scan(&ts, &ps, &n); err != nil {
			return counts, err
		}
		counts.ByTicketStatus[ts] += n
		counts.ByProjectState[ps] += n
		counts.Total += n
	}
	return counts, rows.Err()
}

func scanTicket(row pgx.Row, ticket *domain.ProjectTicket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.ClientID,
		&ticket.EditorID,
		&ticket.TicketStatus,
		&ticket.ProjectStatus,
		&ticket.Subject,
		&ticket.ProjectTitle,
		&ticket.Description,
		&ticket.Budget,
		&ticket.Priority,
		&ticket.Deadline,
		&ticket.TakenAt,
		&ticket.ResolvedAt,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}
