package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKey = "passgate:settings"
	cacheTTL = 30 * time.Second
)

// CachedStore is a Redis read-through cache in front of another Store.
// Settings are read on every pass-request and attendance evaluation, so a
// short TTL keeps load off postgres without making admin updates invisible
// for long. Cache failures degrade to the inner store, never to an error.
type CachedStore struct {
	inner  Store
	client *redis.Client
	logger *slog.Logger
}

// NewCachedStore wraps a store with a Redis cache. A nil client returns the
// inner store untouched so callers need no conditional wiring.
func NewCachedStore(inner Store, client *redis.Client, logger *slog.Logger) Store {
	if client == nil {
		return inner
	}
	return &CachedStore{inner: inner, client: client, logger: logger}
}

func (c *CachedStore) Load(ctx context.Context) (Settings, error) {
	cached, err := c.client.Get(ctx, cacheKey).Bytes()
	if err == nil {
		var loaded Settings
		if err := json.Unmarshal(cached, &loaded); err == nil {
			return loaded, nil
		}
		// Corrupt cache entry: fall through to the inner store.
		c.client.Del(ctx, cacheKey)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "settings cache read failed", "error", err)
	}

	loaded, err := c.inner.Load(ctx)
	if err != nil {
		return Settings{}, err
	}
	c.fill(ctx, loaded)
	return loaded, nil
}

func (c *CachedStore) Save(ctx context.Context, settings Settings) error {
	if err := c.inner.Save(ctx, settings); err != nil {
		return err
	}
	// Invalidate rather than fill: the next reader repopulates from the
	// source of truth.
	if err := c.client.Del(ctx, cacheKey).Err(); err != nil {
		c.logger.WarnContext(ctx, "settings cache invalidation failed", "error", err)
	}
	return nil
}

func (c *CachedStore) fill(ctx context.Context, settings Settings) {
	encoded, err := json.Marshal(settings)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey, encoded, cacheTTL).Err(); err != nil {
		c.logger.WarnContext(ctx, "settings cache write failed", "error", err)
	}
}
