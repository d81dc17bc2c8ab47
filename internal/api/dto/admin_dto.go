package dto

import (
	"time"

	"github.com/spec-kit/studio-desk/internal/domain"
)

// CreateUserRequest is an admin-created account of any role.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Username string          `json:"username" validate:"required,max=100"`
	Password string          `json:"password" validate:"required"`
	Role     domain.RoleName `json:"role" validate:"required"`
	IsActive *bool           `json:"is_active"`
}

// UpdateUserRequest holds optional account changes.
type UpdateUserRequest struct {
	Email    *string          `json:"email" validate:"omitempty,email"`
	Username *string          `json:"username" validate:"omitempty,max=100"`
	Password *string          `json:"password"`
	Role     *domain.RoleName `json:"role"`
	IsActive *bool            `json:"is_active"`
}

// RoleRequest creates or edits a role.
type RoleRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=50"`
	Description *string `json:"description"`
}

// RoleResponse is a catalogue entry.
type RoleResponse struct {
	ID          string          `json:"id"`
	Name        domain.RoleName `json:"name"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewRoleResponse maps a role.
func NewRoleResponse(r *domain.Role) RoleResponse {
	return RoleResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
