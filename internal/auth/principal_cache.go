package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/studio-desk/internal/domain"
)

// PrincipalCache stores resolved actors between requests.
type PrincipalCache interface {
	// Get returns nil without error on a miss.
	Get(ctx context.Context, userID string) (*domain.Actor, error)
	Set(ctx context.Context, actor domain.Actor) error
	Invalidate(ctx context.Context, userID string) error
}

type cachedActor struct {
	UserID   string          `json:"user_id"`
	Role     domain.RoleName `json:"role"`
	IsActive bool            `json:"is_active"`
}

type redisPrincipalCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPrincipalCache returns a cache keyed principal:<userId>. A nil
// client or zero ttl disables caching.
func NewRedisPrincipalCache(client *redis.Client, ttl time.Duration) PrincipalCache {
	if client == nil || ttl <= 0 {
		return noopPrincipalCache{}
	}
	return &redisPrincipalCache{client: client, ttl: ttl}
}

func principalKey(userID string) string {
	return "principal:" + userID
}

func (c *redisPrincipalCache) Get(ctx context.Context, userID string) (*domain.Actor, error) {
	raw, err := c.client.Get(ctx, principalKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cached cachedActor
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, err
	}
	return &domain.Actor{UserID: cached.UserID, Role: cached.Role, IsActive: cached.IsActive}, nil
}

func (c *redisPrincipalCache) Set(ctx context.Context, actor domain.Actor) error {
	raw, err := json.Marshal(cachedActor{UserID: actor.UserID, Role: actor.Role, IsActive: actor.IsActive})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, principalKey(actor.UserID), raw, c.ttl).Err()
}

func (c *redisPrincipalCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, principalKey(userID)).Err()
}

type noopPrincipalCache struct{}

func (noopPrincipalCache) Get(context.Context, string) (*domain.Actor, error) { return nil, nil }
func (noopPrincipalCache) Set(context.Context, domain.Actor) error           { return nil }
func (noopPrincipalCache) Invalidate(context.Context, string) error          { return nil }
