package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/studio-desk/internal/api/dto"
	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/service"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

// UsersHandler exposes admin account and role management.
type UsersHandler struct {
	users *service.UserService
	roles *service.RoleService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService, roles *service.RoleService) *UsersHandler {
	return &UsersHandler{users: users, roles: roles}
}

// ListUsers GET /admin/users?role=&active=.
func (h *UsersHandler) ListUsers(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	filters := service.UserListFilters{Limit: limit, Offset: offset}
	if raw := optionalQuery(c, "role"); raw != nil {
		role := domain.RoleName(strings.ToLower(*raw))
		filters.Role = &role
	}
	if raw := optionalQuery(c, "active"); raw != nil {
		active, err := strconv.ParseBool(*raw)
		if err != nil {
			return apperrors.NewValidationError("active must be a boolean", map[string]any{"field": "active"})
		}
		filters.Active = &active
	}
	users, err := h.users.List(c.UserContext(), actor, filters)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetUser GET /admin/users/:id.
func (h *UsersHandler) GetUser(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// CreateUser POST /admin/users.
func (h *UsersHandler) CreateUser(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateUserRequest
	if err := dto.DecodeStrict(c.Body(), &req); err != nil {
		return err
	}
	user, err := h.users.Create(c.UserContext(), actor, service.UserCreateInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Role:     domain.RoleName(strings.ToLower(string(req.Role))),
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// UpdateUser PATCH /admin/users/:id.
func (h *UsersHandler) UpdateUser(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateUserRequest
	if err := dto.DecodeStrict(c.Body(), &req); err != nil {
		return err
	}
	if req.Role != nil {
		role := domain.RoleName(strings.ToLower(string(*req.Role)))
		req.Role = &role
	}
	user, err := h.users.Update(c.UserContext(), actor, c.Params("id"), service.UserUpdateInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// DeleteUser DELETE /admin/users/:id.
func (h *UsersHandler) DeleteUser(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListRoles GET /admin/roles.
func (h *UsersHandler) ListRoles(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	roles, err := h.roles.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.RoleResponse, 0, len(roles))
	for i := range roles {
		items = append(items, dto.NewRoleResponse(&roles[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateRole POST /admin/roles.
func (h *UsersHandler) CreateRole(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RoleRequest
	if err := dto.DecodeStrict(c.Body(), &req); err != nil {
		return err
	}
	var name, description string
	if req.Name != nil {
		name = *req.Name
	}
	if req.Description != nil {
		description = *req.Description
	}
	role, err := h.roles.Create(c.UserContext(), actor, name, description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewRoleResponse(role)})
}

// UpdateRole PATCH /admin/roles/:id.
func (h *UsersHandler) UpdateRole(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RoleRequest
	if err := dto.DecodeStrict(c.Body(), &req); err != nil {
		return err
	}
	role, err := h.roles.Update(c.UserContext(), actor, c.Params("id"), req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRoleResponse(role)})
}

// DeleteRole DELETE /admin/roles/:id.
func (h *UsersHandler) DeleteRole(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.roles.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
