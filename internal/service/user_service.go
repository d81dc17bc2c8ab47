package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/studio-desk/internal/auth"
	"github.com/spec-kit/studio-desk/internal/config"
	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/repository"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

// PrincipalInvalidator drops cached actors after their user changed.
type PrincipalInvalidator interface {
	Forget(ctx context.Context, userID string)
}

// UserService lets admins manage accounts of every role.
type UserService struct {
	users      repository.UserRepository
	roles      repository.RoleRepository
	principals PrincipalInvalidator
	bcryptCost int
}

// UserDependencies bundles collaborators for admin user management.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	RoleRepo   repository.RoleRepository
	Principals PrincipalInvalidator
}

// UserListFilters define listing parameters.
type UserListFilters struct {
	Role   *domain.RoleName
	Active *bool
	Limit  int
	Offset int
}

// UserCreateInput is an admin-created account.
type UserCreateInput struct {
	Email    string
	Username string
	Password string
	Role     domain.RoleName
	IsActive *bool
}

// UserUpdateInput holds optional changes to an account.
type UserUpdateInput struct {
	Email    *string
	Username *string
	Password *string
	Role     *domain.RoleName
	IsActive *bool
}

// NewUserService constructs the service.
func NewUserService(cfg config.AuthConfig, deps UserDependencies) *UserService {
	return &UserService{
		users:      deps.UserRepo,
		roles:      deps.RoleRepo,
		principals: deps.Principals,
		bcryptCost: cfg.BcryptCost,
	}
}

func requireAdmin(actor domain.Actor) error {
	if !actor.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// List returns accounts matching filters.
func (s *UserService) List(ctx context.Context, actor domain.Actor, filters UserListFilters) ([]domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, repository.UserFilter{
		RoleName: filters.Role,
		Active:   filters.Active,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// Get fetches one account.
func (s *UserService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := requireID(id, "user"); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user")
	}
	return user, nil
}

// Create adds an account with any role.
func (s *UserService) Create(ctx context.Context, actor domain.Actor, input UserCreateInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	email, username, err := normalizeIdentity(input.Email, input.Username)
	if err != nil {
		return nil, err
	}
	if input.Role == "" {
		return nil, apperrors.NewMissingField("role")
	}
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, err
	}
	role, err := s.lookupRole(ctx, input.Role)
	if err != nil {
		return nil, err
	}
	if err := ensureIdentityFree(ctx, s.users, email, username, ""); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	user := &domain.User{
		RoleID:       role.ID,
		RoleName:     role.Name,
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		IsActive:     active,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Update applies input and invalidates the cached principal.
func (s *UserService) Update(ctx context.Context, actor domain.Actor, id string, input UserUpdateInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := requireID(id, "user"); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user")
	}

	email, username := "", ""
	if input.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return nil, apperrors.NewValidationError("email cannot be empty", nil)
		}
		if email != user.Email {
			user.Email = email
		} else {
			email = ""
		}
	}
	if input.Username != nil {
		username = strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, apperrors.NewValidationError("username cannot be empty", nil)
		}
		if username != user.Username {
			user.Username = username
		} else {
			username = ""
		}
	}
	if email != "" {
		if _, _, err := normalizeIdentity(email, user.Username); err != nil {
			return nil, err
		}
	}
	if err := ensureIdentityFree(ctx, s.users, email, username, user.ID); err != nil {
		return nil, err
	}

	if input.Role != nil && *input.Role != user.RoleName {
		if user.ID == actor.UserID {
			return nil, apperrors.NewInvalidState("admins cannot change their own role")
		}
		role, err := s.lookupRole(ctx, *input.Role)
		if err != nil {
			return nil, err
		}
		user.RoleID = role.ID
		user.RoleName = role.Name
	}
	if input.IsActive != nil {
		if !*input.IsActive && user.ID == actor.UserID {
			return nil, apperrors.NewInvalidState("admins cannot deactivate themselves")
		}
		user.IsActive = *input.IsActive
	}
	if input.Password != nil {
		if err := auth.ValidatePassword(*input.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*input.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, notFoundOr(err, "user")
	}
	s.forget(ctx, user.ID)
	return user, nil
}

// Delete removes an account. Users still referenced by tickets or files
// are rejected with Conflict; deactivate them instead.
func (s *UserService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if id == actor.UserID {
		return apperrors.NewInvalidState("admins cannot delete themselves")
	}
	if err := requireID(id, "user"); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return notFoundOr(err, "user")
	}
	s.forget(ctx, id)
	return nil
}

func (s *UserService) lookupRole(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	role, err := s.roles.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("role", map[string]any{"role": name})
		}
		return nil, apperrors.MapError(err)
	}
	return role, nil
}

func (s *UserService) forget(ctx context.Context, userID string) {
	if s.principals != nil {
		s.principals.Forget(ctx, userID)
	}
}
