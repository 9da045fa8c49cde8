package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/condohub/condohub/internal/shared"
)

const bumpChannel = "dashboard.bump"

// Cache is a Redis JSON cache versioned per condominium, so a single INCR
// invalidates every cached dashboard of that condominium.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version of a condominium, initialising when missing.
func (c *Cache) Version(ctx context.Context, condominiumID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := shared.DashboardVersionKey(condominiumID)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the condominium's current version.
func (c *Cache) BuildKey(ctx context.Context, condominiumID int64, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"dashboard", strconv.FormatInt(condominiumID, 10)}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx, condominiumID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Invalidate bumps the condominium version and publishes the bump.
func (c *Cache) Invalidate(ctx context.Context, condominiumID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Incr(ctx, shared.DashboardVersionKey(condominiumID)).Err(); err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(condominiumID, 10)).Err()
}
