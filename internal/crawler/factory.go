package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/helixir/research-crawler/internal/cache"
	"github.com/helixir/research-crawler/internal/config"
	"github.com/helixir/research-crawler/internal/observability"
	"github.com/helixir/research-crawler/internal/papersources"
	"github.com/helixir/research-crawler/internal/papersources/acm"
	"github.com/helixir/research-crawler/internal/papersources/arxiv"
	"github.com/helixir/research-crawler/internal/papersources/ieee"
	"github.com/helixir/research-crawler/internal/papersources/scholar"
	"github.com/helixir/research-crawler/internal/pdf"
)

// cachePingTimeout bounds the startup connectivity check of the Redis cache.
const cachePingTimeout = 2 * time.Second

// Components holds everything Build wires together.
type Components struct {
	Coordinator *Coordinator
	Registry    *papersources.Registry
	Cache       cache.Cache
}

// Close releases the cache connection.
func (c *Components) Close() error {
	if c.Cache == nil {
		return nil
	}
	return c.Cache.Close()
}

// Build creates the cache, the four source adapters and the coordinator
// from cfg. An unreachable Redis is logged and tolerated: reads then miss
// and writes are dropped.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*Components, error) {
	resultCache, err := NewCache(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry(cfg, resultCache, logger, metrics)

	fullText := pdf.NewDownloader(pdf.Config{
		Timeout: cfg.Crawler.FullText.Timeout,
		MaxSize: cfg.Crawler.FullText.MaxSize,
		Metrics: metrics,
	})

	coordinator := New(registry, fullText, Config{
		MaxResultsLimit:     cfg.Crawler.MaxResultsLimit,
		FullTextConcurrency: cfg.Crawler.FullText.Concurrency,
	}, logger, metrics)

	return &Components{
		Coordinator: coordinator,
		Registry:    registry,
		Cache:       resultCache,
	}, nil
}

// NewCache creates the configured cache backend. It returns a nil Cache for
// the "none" backend.
func NewCache(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) (cache.Cache, error) {
	switch cfg.Backend {
	case config.CacheBackendNone:
		return nil, nil
	case config.CacheBackendMemory:
		return cache.NewMemoryCache(), nil
	case config.CacheBackendRedis:
		redis.SetLogger(observability.NewRedisLogger(logger))

		rc := cache.NewRedisCache(cache.RedisConfig{
			Addr:         cfg.Redis.Address(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.OperationTimeout,
			WriteTimeout: cfg.Redis.OperationTimeout,
		})

		pingCtx, cancel := context.WithTimeout(ctx, cachePingTimeout)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Address()).Msg("redis cache unreachable, crawls will run uncached until it recovers")
		} else {
			logger.Info().Str("addr", cfg.Redis.Address()).Msg("redis cache connected")
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// NewRegistry registers a cached adapter for every source.
func NewRegistry(cfg *config.Config, resultCache cache.Cache, logger zerolog.Logger, metrics *observability.Metrics) *papersources.Registry {
	sources := []papersources.Source{
		arxiv.New(arxiv.Config{
			BaseURL:   cfg.Sources.ArXiv.BaseURL,
			Timeout:   cfg.Sources.ArXiv.Timeout,
			RateLimit: cfg.Sources.ArXiv.RateLimit,
			PageSize:  cfg.Sources.ArXiv.PageSize,
		}, metrics),
		scholar.New(scholar.Config{
			APIKey:   cfg.Sources.Scholar.APIKey,
			Timeout:  cfg.Sources.Scholar.Timeout,
			PageSize: cfg.Sources.Scholar.PageSize,
			Workers:  cfg.Sources.Scholar.Workers,
		}, logger, metrics),
		ieee.New(ieee.Config{
			BaseURL:   cfg.Sources.IEEE.BaseURL,
			APIKey:    cfg.Sources.IEEE.APIKey,
			Timeout:   cfg.Sources.IEEE.Timeout,
			RateLimit: cfg.Sources.IEEE.RateLimit,
			PageSize:  cfg.Sources.IEEE.PageSize,
		}, logger, metrics),
		acm.New(acm.Config{
			BaseURL:   cfg.Sources.ACM.BaseURL,
			Timeout:   cfg.Sources.ACM.Timeout,
			RateLimit: cfg.Sources.ACM.RateLimit,
			PageSize:  cfg.Sources.ACM.PageSize,
		}, logger, metrics),
	}

	registry := papersources.NewRegistry()
	for _, src := range sources {
		registry.Register(papersources.NewCachedSource(src, resultCache, papersources.CachedSourceConfig{
			TTL:     cfg.Cache.TTL,
			Logger:  logger,
			Metrics: metrics,
		}))
	}

	if unconfigured := registry.Unconfigured(); len(unconfigured) > 0 {
		names := make([]string, len(unconfigured))
		for i, st := range unconfigured {
			names[i] = st.String()
		}
		logger.Warn().Strs("sources", names).Msg("sources without credentials will return no results")
	}

	return registry
}
