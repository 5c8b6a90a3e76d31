package clinic

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opdline/clinic-queue/internal/schedule"
	"github.com/opdline/clinic-queue/pkg/logging"
)

const settingsCacheKey = "clinic:settings"

// CachedStore layers a redis cache over the settings store. Every write
// invalidates the cached snapshot so booking checks always see fresh flags.
// Redis failures fall through to the underlying store.
type CachedStore struct {
	store  SettingsStore
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedStore wraps a store with a redis cache.
func NewCachedStore(store SettingsStore, redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedStore {
	if store == nil {
		panic("clinic: settings store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{store: store, redis: redisClient, ttl: ttl, logger: logger}
}

// Get returns the cached settings snapshot, filling the cache on a miss.
func (c *CachedStore) Get(ctx context.Context) (*Settings, error) {
	data, err := c.redis.Get(ctx, settingsCacheKey).Bytes()
	if err == nil {
		var cached Settings
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		c.logger.Warn("dropping corrupt settings cache entry")
		c.invalidate(ctx)
	} else if err != redis.Nil {
		c.logger.Warn("settings cache read failed", "error", err)
	}

	settings, err := c.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(settings); err == nil {
		if err := c.redis.Set(ctx, settingsCacheKey, data, c.ttl).Err(); err != nil {
			c.logger.Warn("settings cache write failed", "error", err)
		}
	}
	return settings, nil
}

// Save persists the settings and invalidates the cache.
func (c *CachedStore) Save(ctx context.Context, s *Settings) error {
	if err := c.store.Save(ctx, s); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// SetDoctorAvailable flips availability and invalidates the cache.
func (c *CachedStore) SetDoctorAvailable(ctx context.Context, available bool) error {
	if err := c.store.SetDoctorAvailable(ctx, available); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// SetSessionClosed flips a session's intake flag and invalidates the cache.
func (c *CachedStore) SetSessionClosed(ctx context.Context, sess schedule.Session, closed bool) error {
	if err := c.store.SetSessionClosed(ctx, sess, closed); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *CachedStore) invalidate(ctx context.Context) {
	if err := c.redis.Del(ctx, settingsCacheKey).Err(); err != nil {
		c.logger.Warn("settings cache invalidation failed", "error", err)
	}
}
