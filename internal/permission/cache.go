package permission

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache memoizes membership-check results in Redis. Best effort: a cache
// failure falls through to the database. Route records and user status are
// never cached so disabling a route or an account takes effect immediately.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCache constructs a membership cache with the given TTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, prefix: "permission:"}
}

func (c *Cache) key(userID, permissionID int64) string {
	return fmt.Sprintf("%s%d:%d", c.prefix, userID, permissionID)
}

// GetMembership returns the cached decision and whether there was a hit.
func (c *Cache) GetMembership(ctx context.Context, userID, permissionID int64) (allowed, hit bool) {
	val, err := c.client.Get(ctx, c.key(userID, permissionID)).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

// SetMembership stores the decision.
func (c *Cache) SetMembership(ctx context.Context, userID, permissionID int64, allowed bool) {
	val := "0"
	if allowed {
		val = "1"
	}
	_ = c.client.Set(ctx, c.key(userID, permissionID), val, c.ttl).Err()
}

// Invalidate drops every cached decision for the user, used after role
// assignments change.
func (c *Cache) Invalidate(ctx context.Context, userID int64) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("%s%d:*", c.prefix, userID), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
