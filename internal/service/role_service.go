package service

import (
	"context"
	"strings"

	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/repository"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

// RoleService manages the role catalogue. The seeded roles carry every
// ticket and file right, so they cannot be renamed or removed.
type RoleService struct {
	roles repository.RoleRepository
	users repository.UserRepository
}

// NewRoleService constructs the service.
func NewRoleService(roles repository.RoleRepository, users repository.UserRepository) *RoleService {
	return &RoleService{roles: roles, users: users}
}

func isSeededRole(name domain.RoleName) bool {
	switch name {
	case domain.RoleAdmin, domain.RoleEditor, domain.RoleClient:
		return true
	}
	return false
}

// List returns every role.
func (s *RoleService) List(ctx context.Context, actor domain.Actor) ([]domain.Role, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return roles, nil
}

// Create adds a role. Duplicate names surface as Conflict.
func (s *RoleService) Create(ctx context.Context, actor domain.Actor, name, description string) (*domain.Role, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, apperrors.NewMissingField("name")
	}
	role := &domain.Role{Name: domain.RoleName(name), Description: strings.TrimSpace(description)}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, apperrors.MapError(err)
	}
	return role, nil
}

// Update renames or redescribes a custom role.
func (s *RoleService) Update(ctx context.Context, actor domain.Actor, id string, name, description *string) (*domain.Role, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := requireID(id, "role"); err != nil {
		return nil, err
	}
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "role")
	}
	if name != nil {
		next := domain.RoleName(strings.ToLower(strings.TrimSpace(*name)))
		if next == "" {
			return nil, apperrors.NewValidationError("name cannot be empty", nil)
		}
		if next != role.Name && isSeededRole(role.Name) {
			return nil, apperrors.NewInvalidState("built-in roles cannot be renamed")
		}
		role.Name = next
	}
	if description != nil {
		role.Description = strings.TrimSpace(*description)
	}
	if err := s.roles.Update(ctx, role); err != nil {
		return nil, notFoundOr(err, "role")
	}
	return role, nil
}

// Delete removes an unused custom role.
func (s *RoleService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := requireID(id, "role"); err != nil {
		return err
	}
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "role")
	}
	if isSeededRole(role.Name) {
		return apperrors.NewInvalidState("built-in roles cannot be deleted")
	}
	inUse, err := s.users.CountByRole(ctx, role.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if inUse > 0 {
		return apperrors.NewConflict("role is assigned to users", map[string]any{"users": inUse})
	}
	if err := s.roles.Delete(ctx, role.ID); err != nil {
		return notFoundOr(err, "role")
	}
	return nil
}
