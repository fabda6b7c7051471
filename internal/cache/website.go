package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dheerajmandava/proovd-sub004/internal/model"
)

// Cache key prefixes and TTLs.
const (
	websiteKeyPrefix  = "website:key:"
	negCacheKeySuffix = ":neg"

	// DefaultWebsiteTTL bounds how stale the API-key lookup cache can get.
	// A settings or verification change is visible within this window at worst.
	DefaultWebsiteTTL = 5 * time.Minute

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 1 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GetWebsite retrieves a website from the lookup cache by widget API key.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetWebsite(ctx context.Context, apiKey string) (*model.Website, error) {
	key := websiteKeyPrefix + apiKey

	result, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	cached := &model.CachedWebsite{
		ID:                result["id"],
		Domain:            result["domain"],
		Status:            result["status"],
		Enabled:           result["enabled"],
		Position:          result["position"],
		Theme:             result["theme"],
		DisplayDurationMs: result["display_duration_ms"],
		DelayMs:           result["delay_ms"],
		MaxNotifications:  result["max_notifications"],
		UpdatedAt:         result["updated_at"],
	}

	return cached.ToWebsite(apiKey), nil
}

// SetWebsite stores a website in the lookup cache with the given TTL.
// A zero ttl falls back to DefaultWebsiteTTL.
func (c *Cache) SetWebsite(ctx context.Context, site *model.Website, ttl time.Duration) error {
	key := websiteKeyPrefix + site.APIKey
	cached := site.ToCachedWebsite()

	if ttl <= 0 {
		ttl = DefaultWebsiteTTL
	}

	fields := map[string]any{
		"id":                  cached.ID,
		"domain":              cached.Domain,
		"status":              cached.Status,
		"enabled":             cached.Enabled,
		"position":            cached.Position,
		"theme":               cached.Theme,
		"display_duration_ms": cached.DisplayDurationMs,
		"delay_ms":            cached.DelayMs,
		"max_notifications":   cached.MaxNotifications,
		"updated_at":          cached.UpdatedAt,
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache website: %w", err)
	}

	// Remove negative cache if it exists
	c.client.Del(ctx, key+negCacheKeySuffix)

	return nil
}

// DeleteWebsite removes a website from the lookup cache.
// Used when settings or verification status change.
func (c *Cache) DeleteWebsite(ctx context.Context, apiKey string) error {
	key := websiteKeyPrefix + apiKey

	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete website from cache: %w", err)
	}

	return nil
}

// IsNegativelyCached checks if an API key is in the negative cache.
func (c *Cache) IsNegativelyCached(ctx context.Context, apiKey string) (bool, error) {
	key := websiteKeyPrefix + apiKey + negCacheKeySuffix

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetNegativeCache marks an API key as unknown so repeated probes with a bad
// key skip the database.
func (c *Cache) SetNegativeCache(ctx context.Context, apiKey string) error {
	key := websiteKeyPrefix + apiKey + negCacheKeySuffix

	if err := c.client.SetEx(ctx, key, "", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}
