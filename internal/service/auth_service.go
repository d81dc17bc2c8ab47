package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/studio-desk/internal/auth"
	"github.com/spec-kit/studio-desk/internal/config"
	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/repository"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	roles      repository.RoleRepository
	resets     repository.PasswordResetRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	resetTTL   time.Duration
	now        func() time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	RoleRepo          repository.RoleRepository
	PasswordResetRepo repository.PasswordResetRepository
	Now               func() time.Time
}

// RegisterInput is the self-service signup payload.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// Session is an issued access token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:      deps.UserRepo,
		roles:      deps.RoleRepo,
		resets:     deps.PasswordResetRepo,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
		resetTTL:   time.Duration(cfg.PasswordResetTTLMinutes) * time.Minute,
		now:        now,
	}
}

// Register creates a client account. Self-service signup never grants
// another role.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	email, username, err := normalizeIdentity(input.Email, input.Username)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, err
	}
	if err := ensureIdentityFree(ctx, s.users, email, username, ""); err != nil {
		return nil, err
	}

	role, err := s.roles.GetByName(ctx, domain.RoleClient)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		RoleID:       role.ID,
		RoleName:     role.Name,
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.issue(user)
}

// Login authenticates by email or username.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*Session, error) {
	user, err := s.users.GetByLogin(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthenticated("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthenticated("invalid credentials")
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthenticated("account is deactivated")
	}
	return s.issue(user)
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, notFoundOr(err, "user")
	}
	return user, nil
}

// ChangePassword verifies current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, actor domain.Actor, currentPassword, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return notFoundOr(err, "user")
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthenticated("invalid credentials")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	return apperrors.MapError(s.users.Update(ctx, user))
}

// RequestPasswordReset stores a reset token for email. Unknown addresses
// return nil without error so callers cannot probe accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*repository.PasswordResetToken, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	if !user.IsActive {
		return nil, nil
	}

	token := &repository.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return nil, apperrors.MapError(err)
	}
	return token, nil
}

// ConfirmPasswordReset validates the reset token and updates password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}
	token, err := s.resets.GetByToken(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("reset token is invalid", nil)
		}
		return apperrors.MapError(err)
	}
	if token.UsedAt != nil || s.now().After(token.ExpiresAt) {
		return apperrors.NewValidationError("reset token expired or used", nil)
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return notFoundOr(err, "user")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.resets.MarkUsed(ctx, token.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("reset token expired or used", nil)
		}
		return apperrors.MapError(err)
	}
	user.PasswordHash = hash
	return apperrors.MapError(s.users.Update(ctx, user))
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.RoleName)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

func normalizeIdentity(email, username string) (string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if email == "" {
		return "", "", apperrors.NewMissingField("email")
	}
	if username == "" {
		return "", "", apperrors.NewMissingField("username")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", "", apperrors.NewValidationError("email is malformed", map[string]any{"email": email})
	}
	return email, username, nil
}

// ensureIdentityFree reports Conflict when email or username belongs to a
// user other than selfID.
func ensureIdentityFree(ctx context.Context, users repository.UserRepository, email, username, selfID string) error {
	checks := []struct{ field, value string }{{"email", email}, {"username", username}}
	for _, check := range checks {
		if check.value == "" {
			continue
		}
		existing, err := users.GetByLogin(ctx, check.value)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return apperrors.MapError(err)
		}
		if existing.ID != selfID {
			return apperrors.NewConflict(check.field+" already taken", map[string]any{"field": check.field})
		}
	}
	return nil
}

// requireID turns a malformed id into NotFound before it reaches Postgres.
func requireID(id, resource string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return nil
}

func notFoundOr(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	return apperrors.MapError(err)
}
