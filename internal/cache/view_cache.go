// Package cache holds Redis-backed fast paths in front of the database.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ViewCache remembers which devices were already counted for a project so
// repeat visits skip the database.
type ViewCache struct {
	redis *redis.Client
}

func NewViewCache(client *redis.Client) *ViewCache {
	return &ViewCache{redis: client}
}

func viewKey(projectID uuid.UUID, deviceID string) string {
	return fmt.Sprintf("views:%s:%s", projectID, deviceID)
}

// MarkSeen returns true when this is the first sighting within ttl.
func (c *ViewCache) MarkSeen(ctx context.Context, projectID uuid.UUID, deviceID string, ttl time.Duration) (bool, error) {
	return c.redis.SetNX(ctx, viewKey(projectID, deviceID), 1, ttl).Result()
}

// Forget drops a sighting whose database write failed, so a retry counts.
func (c *ViewCache) Forget(ctx context.Context, projectID uuid.UUID, deviceID string) error {
	return c.redis.Del(ctx, viewKey(projectID, deviceID)).Err()
}
