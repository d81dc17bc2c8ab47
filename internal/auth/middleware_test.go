package auth

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/mock/gomock"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/repository/mock"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

type memoryCache struct {
	actors map[string]domain.Actor
	err    error
}

func (m *memoryCache) Get(_ context.Context, id string) (*domain.Actor, error) {
	if m.err != nil {
		return nil, m.err
	}
	if a, ok := m.actors[id]; ok {
		return &a, nil
	}
	return nil, nil
}

func (m *memoryCache) Set(_ context.Context, a domain.Actor) error {
	if m.err != nil {
		return m.err
	}
	m.actors[a.UserID] = a
	return nil
}

func (m *memoryCache) Invalidate(_ context.Context, id string) error {
	delete(m.actors, id)
	return nil
}

func newTestApp(tm *TokenManager, resolver *Resolver, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).SendString(de.Code)
	}})
	handlers := append([]fiber.Handler{NewAuthMiddleware(tm, resolver).Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		actor, _ := ActorFromContext(c)
		return c.SendString(actor.UserID + "/" + string(actor.Role))
	})
	app.Get("/me", handlers...)
	return app
}

func call(t *testing.T, app *fiber.App, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestMiddlewareResolvesAndCachesActor(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mock.NewMockUserRepository(ctrl)
	cache := &memoryCache{actors: map[string]domain.Actor{}}
	tm := NewTokenManager("secret", 5)
	app := newTestApp(tm, NewResolver(users, cache, zap.NewNop()))

	users.EXPECT().GetByID(gomock.Any(), "u-1").
		Return(&domain.User{ID: "u-1", RoleName: domain.RoleEditor, IsActive: true}, nil).Times(1)

	token, _, err := tm.GenerateToken("u-1", domain.RoleEditor)
	require.NoError(t, err)

	status, body := call(t, app, token)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "u-1/editor", body)

	status, _ = call(t, app, token)
	assert.Equal(t, fiber.StatusOK, status, "second call served from cache")
}

func TestMiddlewareRejectsMissingInactiveAndUnknown(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mock.NewMockUserRepository(ctrl)
	tm := NewTokenManager("secret", 5)
	app := newTestApp(tm, NewResolver(users, nil, zap.NewNop()))

	status, body := call(t, app, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthenticated, body)

	users.EXPECT().GetByID(gomock.Any(), "gone").Return(nil, pgx.ErrNoRows)
	token, _, _ := tm.GenerateToken("gone", domain.RoleClient)
	status, _ = call(t, app, token)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	users.EXPECT().GetByID(gomock.Any(), "off").Return(&domain.User{ID: "off", RoleName: domain.RoleClient}, nil)
	token, _, _ = tm.GenerateToken("off", domain.RoleClient)
	status, _ = call(t, app, token)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestResolverFallsBackWhenCacheDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mock.NewMockUserRepository(ctrl)
	cache := &memoryCache{actors: map[string]domain.Actor{}, err: errors.New("redis down")}
	users.EXPECT().GetByID(gomock.Any(), "u-1").Return(&domain.User{ID: "u-1", RoleName: domain.RoleAdmin, IsActive: true}, nil)

	actor, err := NewResolver(users, cache, zap.NewNop()).Resolve(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, actor.IsAdmin())
}

func TestRequireRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mock.NewMockUserRepository(ctrl)
	cache := &memoryCache{actors: map[string]domain.Actor{
		"c-1": {UserID: "c-1", Role: domain.RoleClient, IsActive: true},
		"a-1": {UserID: "a-1", Role: domain.RoleAdmin, IsActive: true},
	}}
	tm := NewTokenManager("secret", 5)
	app := newTestApp(tm, NewResolver(users, cache, zap.NewNop()), RequireRole(domain.RoleAdmin))

	clientToken, _, _ := tm.GenerateToken("c-1", domain.RoleClient)
	status, body := call(t, app, clientToken)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, apperrors.CodeForbidden, body)

	adminToken, _, _ := tm.GenerateToken("a-1", domain.RoleAdmin)
	status, _ = call(t, app, adminToken)
	assert.Equal(t, fiber.StatusOK, status)
}
