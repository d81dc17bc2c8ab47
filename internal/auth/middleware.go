package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/repository"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

const actorKey = "auth_actor"

// Resolver turns a user id into an actor, consulting the cache first.
type Resolver struct {
	users  repository.UserRepository
	cache  PrincipalCache
	logger *zap.Logger
}

// NewResolver builds a resolver. cache may be nil.
func NewResolver(users repository.UserRepository, cache PrincipalCache, logger *zap.Logger) *Resolver {
	if cache == nil {
		cache = noopPrincipalCache{}
	}
	return &Resolver{users: users, cache: cache, logger: logger}
}

// Resolve returns the active actor for userID or an Unauthenticated error.
func (r *Resolver) Resolve(ctx context.Context, userID string) (domain.Actor, error) {
	cached, err := r.cache.Get(ctx, userID)
	if err != nil {
		r.logger.Warn("principal cache unavailable", zap.Error(err))
	}
	if cached != nil {
		if !cached.IsActive {
			return domain.Actor{}, apperrors.NewUnauthenticated("account is deactivated")
		}
		return *cached, nil
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Actor{}, apperrors.NewUnauthenticated("user not found")
		}
		return domain.Actor{}, apperrors.MapError(err)
	}
	actor := user.Actor()
	if err := r.cache.Set(ctx, actor); err != nil {
		r.logger.Warn("principal cache write failed", zap.Error(err))
	}
	if !actor.IsActive {
		return domain.Actor{}, apperrors.NewUnauthenticated("account is deactivated")
	}
	return actor, nil
}

// Forget drops a cached principal after its user changed.
func (r *Resolver) Forget(ctx context.Context, userID string) {
	if err := r.cache.Invalidate(ctx, userID); err != nil {
		r.logger.Warn("principal cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// AuthMiddleware validates bearer tokens and loads actors.
type AuthMiddleware struct {
	tokens   *TokenManager
	resolver *Resolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, resolver *Resolver) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, resolver: resolver}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthenticated("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthenticated("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthenticated("invalid token")
	}

	actor, err := m.resolver.Resolve(c.UserContext(), claims.Subject)
	if err != nil {
		return err
	}

	c.Locals(actorKey, actor)
	return c.Next()
}

// ActorFromContext retrieves the authenticated actor.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}
