// Package config provides configuration management for the research crawler.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/research-crawler/internal/observability"
)

// Cache backends.
const (
	// CacheBackendRedis stores crawl results in Redis.
	CacheBackendRedis = "redis"
	// CacheBackendMemory stores crawl results in process memory.
	CacheBackendMemory = "memory"
	// CacheBackendNone disables result caching.
	CacheBackendNone = "none"
)

// Config holds all configuration for the research crawler.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Crawler contains crawl limits and full-text settings.
	Crawler CrawlerConfig `mapstructure:"crawler"`
	// Cache contains result cache settings.
	Cache CacheConfig `mapstructure:"cache"`
	// Sources contains per-source settings.
	Sources SourcesConfig `mapstructure:"sources"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 5000, or $PORT).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing the response. Crawls
	// of all sources can take minutes, so this is generous.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// CrawlerConfig holds crawl limits.
type CrawlerConfig struct {
	// MaxResultsLimit is the largest maxResults a request may ask for.
	MaxResultsLimit int `mapstructure:"max_results_limit"`
	// FullText contains full-text download settings.
	FullText FullTextConfig `mapstructure:"full_text"`
}

// FullTextConfig holds full-text download settings.
type FullTextConfig struct {
	// Concurrency bounds parallel downloads within one crawl.
	Concurrency int `mapstructure:"concurrency"`
	// Timeout bounds a single download.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxSize is the largest document accepted, in bytes.
	MaxSize int64 `mapstructure:"max_size"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	// Backend is one of redis, memory, none.
	Backend string `mapstructure:"backend"`
	// TTL is how long a cached (source, query) result stays valid.
	TTL time.Duration `mapstructure:"ttl"`
	// Redis contains Redis connection settings.
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	// Host is the Redis hostname (default: localhost, or $REDIS_HOST).
	Host string `mapstructure:"host"`
	// Port is the Redis port (default: 6379, or $REDIS_PORT).
	Port int `mapstructure:"port"`
	// Password is loaded from CRAWLER_CACHE_REDIS_PASSWORD only.
	Password string `mapstructure:"-"`
	// DB is the Redis database number.
	DB int `mapstructure:"db"`
	// DialTimeout bounds connection setup.
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// OperationTimeout bounds each read and write.
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// SourcesConfig holds configuration for every source.
type SourcesConfig struct {
	// ArXiv contains arXiv API settings.
	ArXiv SourceConfig `mapstructure:"arxiv"`
	// Scholar contains Google Scholar (SerpAPI) settings.
	Scholar ScholarConfig `mapstructure:"scholar"`
	// IEEE contains IEEE Xplore API settings.
	IEEE SourceConfig `mapstructure:"ieee"`
	// ACM contains ACM Digital Library settings.
	ACM SourceConfig `mapstructure:"acm"`
}

// SourceConfig holds configuration for a single source.
type SourceConfig struct {
	// APIKey is loaded from environment variables only.
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL. Empty uses the source default.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for a single source call.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second. Zero uses the source default.
	RateLimit float64 `mapstructure:"rate_limit"`
	// PageSize is the number of records requested per page. Zero uses the source default.
	PageSize int `mapstructure:"page_size"`
}

// ScholarConfig holds Google Scholar settings.
type ScholarConfig struct {
	SourceConfig `mapstructure:",squash"`
	// Workers bounds concurrent SerpAPI calls.
	Workers int `mapstructure:"workers"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Address returns the Redis host:port.
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/research-crawler")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// bindLegacyEnv maps the unprefixed variables of older deployments onto
// their keys. The prefixed name wins when both are set.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("server.http_port", "CRAWLER_SERVER_HTTP_PORT", "PORT")
	_ = v.BindEnv("cache.redis.host", "CRAWLER_CACHE_REDIS_HOST", "REDIS_HOST")
	_ = v.BindEnv("cache.redis.port", "CRAWLER_CACHE_REDIS_PORT", "REDIS_PORT")
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Sources.IEEE.APIKey = firstEnv("CRAWLER_SOURCES_IEEE_API_KEY", "IEEE_API_KEY")
	cfg.Sources.Scholar.APIKey = firstEnv("CRAWLER_SOURCES_SCHOLAR_API_KEY", "SERPAPI_API_KEY")
	cfg.Cache.Redis.Password = os.Getenv("CRAWLER_CACHE_REDIS_PASSWORD")
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 5000)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "crawler")

	// Crawler defaults
	v.SetDefault("crawler.max_results_limit", 100)
	v.SetDefault("crawler.full_text.concurrency", 4)
	v.SetDefault("crawler.full_text.timeout", "60s")
	v.SetDefault("crawler.full_text.max_size", 50*1024*1024)

	// Cache defaults
	v.SetDefault("cache.backend", CacheBackendRedis)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.dial_timeout", "2s")
	v.SetDefault("cache.redis.operation_timeout", "1s")

	// Source defaults. API keys are loaded from the environment (see loadSecrets).
	v.SetDefault("sources.arxiv.base_url", "")
	v.SetDefault("sources.arxiv.timeout", "30s")
	v.SetDefault("sources.arxiv.rate_limit", 0)
	v.SetDefault("sources.arxiv.page_size", 100)

	v.SetDefault("sources.scholar.timeout", "30s")
	v.SetDefault("sources.scholar.page_size", 20)
	v.SetDefault("sources.scholar.workers", 2)

	v.SetDefault("sources.ieee.base_url", "")
	v.SetDefault("sources.ieee.timeout", "30s")
	v.SetDefault("sources.ieee.rate_limit", 0)
	v.SetDefault("sources.ieee.page_size", 200)

	v.SetDefault("sources.acm.base_url", "")
	v.SetDefault("sources.acm.timeout", "30s")
	v.SetDefault("sources.acm.rate_limit", 0)
	v.SetDefault("sources.acm.page_size", 50)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}
	if c.Metrics.Enabled && c.Server.MetricsPort == c.Server.HTTPPort {
		return fmt.Errorf("metrics port must differ from HTTP port (%d)", c.Server.HTTPPort)
	}

	if !observability.IsValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Crawler.MaxResultsLimit <= 0 {
		return fmt.Errorf("crawler max_results_limit must be positive")
	}
	if c.Crawler.FullText.Concurrency <= 0 {
		return fmt.Errorf("crawler full_text.concurrency must be positive")
	}

	switch c.Cache.Backend {
	case CacheBackendRedis:
		if c.Cache.Redis.Host == "" {
			return fmt.Errorf("cache redis host is required for the redis backend")
		}
		if c.Cache.Redis.Port <= 0 || c.Cache.Redis.Port > 65535 {
			return fmt.Errorf("invalid redis port: %d", c.Cache.Redis.Port)
		}
	case CacheBackendMemory, CacheBackendNone:
	default:
		return fmt.Errorf("invalid cache backend: %q (want redis, memory or none)", c.Cache.Backend)
	}
	if c.Cache.Backend != CacheBackendNone && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}

	if c.Sources.Scholar.Workers < 0 {
		return fmt.Errorf("scholar workers must not be negative")
	}

	return nil
}
