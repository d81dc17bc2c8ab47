package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/studio-desk/internal/domain"
)

// UserFilter narrows admin user listings.
type UserFilter struct {
	RoleName *domain.RoleName
	Active   *bool
	Limit    int
	Offset   int
}

// UserRepository defines persistence access for accounts of every role.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByLogin matches either email or username.
	GetByLogin(ctx context.Context, identifier string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	CountByRole(ctx context.Context, roleID string) (int64, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userSelect = `
        SELECT u.id, u.role_id, r.name, u.email, u.username, u.password_hash, u.is_active, u.created_at, u.updated_at
        FROM users u JOIN roles r ON r.id = u.role_id`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        WITH inserted AS (
            INSERT INTO users (role_id, email, username, password_hash, is_active)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id, role_id, created_at, updated_at
        )
        SELECT inserted.id, roles.name, inserted.created_at, inserted.updated_at
        FROM inserted JOIN roles ON roles.id = inserted.role_id`

	return r.pool.QueryRow(ctx, query,
		user.RoleID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.IsActive,
	).Scan(&user.ID, &user.RoleName, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET role_id=$1, email=$2, username=$3, password_hash=$4, is_active=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`

	return r.pool.QueryRow(ctx, query,
		user.RoleID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.IsActive,
		user.ID,
	).Scan(&user.UpdatedAt)
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchSingle(ctx, userSelect+` WHERE u.id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, userSelect+` WHERE LOWER(u.email)=LOWER($1)`, email)
}

func (r *userRepository) GetByLogin(ctx context.Context, identifier string) (*domain.User, error) {
	return r.fetchSingle(ctx, userSelect+` WHERE LOWER(u.email)=LOWER($1) OR u.username=$1`, identifier)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := scanUser(r.pool.QueryRow(ctx, query, arg), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.RoleName != nil {
		args = append(args, *filter.RoleName)
		clauses = append(clauses, fmt.Sprintf("r.name=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("u.is_active=$%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`%s WHERE %s ORDER BY u.created_at ASC LIMIT %d OFFSET %d`,
		userSelect, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := scanUser(rows, &user); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

func (r *userRepository) CountByRole(ctx context.Context, roleID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id=$1`, roleID).Scan(&n)
	return n, err
}

func scanUser(row pgx.Row, user *domain.User) error {
	return row.Scan(
		&user.ID,
		&user.RoleID,
		&user.RoleName,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
}
