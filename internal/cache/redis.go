package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shelfmate/config"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.RedisConfig) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Addr,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForRegion embeds the cycle so an entry can never answer for another week.
func KeyForRegion(cycle, broad, fine string) string {
	return fmt.Sprintf("region:open:%s:%s:%s", cycle, broad, fine)
}

// SetRegionOpen caches a region verdict until expiresAt.
func (c *RedisCache) SetRegionOpen(ctx context.Context, key string, open bool, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	v := "0"
	if open {
		v = "1"
	}
	return c.Client.Set(ctx, key, v, ttl).Err()
}

// GetRegionOpen returns (open, found, err). A miss is found=false, err=nil.
func (c *RedisCache) GetRegionOpen(ctx context.Context, key string) (bool, bool, error) {
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil // cache miss
	} else if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}
