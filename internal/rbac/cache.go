package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// PermissionCache stores resolved role permission sets.
type PermissionCache interface {
	Get(ctx context.Context, roleID int64) (PermissionSet, bool, error)
	Set(ctx context.Context, roleID int64, perms PermissionSet) error
	Delete(ctx context.Context, roleIDs ...int64) error
}

const cacheKeyPrefix = "rbac:role:"

func cacheKey(roleID int64) string {
	return cacheKeyPrefix + strconv.FormatInt(roleID, 10) + ":permissions"
}

// RedisCache keeps permission sets in Redis as JSON.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache constructs a RedisCache with the given entry TTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get loads a cached set. A miss returns ok=false with no error.
func (c *RedisCache) Get(ctx context.Context, roleID int64) (PermissionSet, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(roleID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("rbac cache: get: %w", err)
	}
	var perms PermissionSet
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil, false, fmt.Errorf("rbac cache: decode: %w", err)
	}
	return perms, true, nil
}

// Set stores perms for the role.
func (c *RedisCache) Set(ctx context.Context, roleID int64, perms PermissionSet) error {
	raw, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("rbac cache: encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(roleID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("rbac cache: set: %w", err)
	}
	return nil
}

// Delete evicts the given roles.
func (c *RedisCache) Delete(ctx context.Context, roleIDs ...int64) error {
	if len(roleIDs) == 0 {
		return nil
	}
	keys := make([]string, len(roleIDs))
	for i, id := range roleIDs {
		keys[i] = cacheKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("rbac cache: delete: %w", err)
	}
	return nil
}

// MemoryCache keeps permission sets in process.
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache constructs a MemoryCache with the given entry TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(ttl, time.Minute)}
}

func (m *MemoryCache) Get(_ context.Context, roleID int64) (PermissionSet, bool, error) {
	v, ok := m.c.Get(cacheKey(roleID))
	if !ok {
		return nil, false, nil
	}
	perms, _ := v.(PermissionSet)
	return clonePermissions(perms), true, nil
}

func (m *MemoryCache) Set(_ context.Context, roleID int64, perms PermissionSet) error {
	m.c.SetDefault(cacheKey(roleID), clonePermissions(perms))
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, roleIDs ...int64) error {
	for _, id := range roleIDs {
		m.c.Delete(cacheKey(id))
	}
	return nil
}

// NopCache disables caching.
type NopCache struct{}

func (NopCache) Get(context.Context, int64) (PermissionSet, bool, error) { return nil, false, nil }
func (NopCache) Set(context.Context, int64, PermissionSet) error        { return nil }
func (NopCache) Delete(context.Context, ...int64) error                 { return nil }

func clonePermissions(perms PermissionSet) PermissionSet {
	out := make(PermissionSet, len(perms))
	for id, p := range perms {
		out[id] = p
	}
	return out
}
