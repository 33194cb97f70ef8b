package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/helixir/research-crawler/internal/domain"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisCache stores entries with GET / SET EX in Redis.
type RedisCache struct {
	client *redis.Client
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates a Redis-backed cache. No connection is made until
// the first command, so an unavailable server only shows up as read and
// write errors.
func NewRedisCache(cfg RedisConfig) *RedisCache {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = time.Second
	}

	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}),
	}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, source domain.SourceType, query string) ([]domain.Paper, bool, error) {
	data, err := c.client.Get(ctx, Fingerprint(source, query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	papers, err := decode(data)
	if err != nil {
		return nil, false, err
	}
	return papers, true, nil
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, source domain.SourceType, query string, papers []domain.Paper, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := encode(papers)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, Fingerprint(source, query), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks connectivity. It is only used for startup diagnostics.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close implements Cache.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
