package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTLProvider bounds how long a provider display name is cached; profiles rarely change
const TTLProvider = 10 * time.Minute

// Key prefixes
const (
	PrefixProvider = "chat:provider:"
)

// Service Redis cache interface
type Service interface {
	// Provider display names
	GetProviderName(ctx context.Context, providerID string) (string, error)
	SetProviderName(ctx context.Context, providerID, name string) error

	IsAvailable() bool
	Ping(ctx context.Context) error
}

type redisCache struct {
	client *redis.Client
}

// NewService creates a Redis-backed cache. A nil client yields a no-op cache.
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

func providerKey(providerID string) string {
	return PrefixProvider + providerID
}

func (c *redisCache) GetProviderName(ctx context.Context, providerID string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("redis not available")
	}
	return c.client.Get(ctx, providerKey(providerID)).Result()
}

func (c *redisCache) SetProviderName(ctx context.Context, providerID, name string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Set(ctx, providerKey(providerID), name, TTLProvider).Err()
}
