// Package scholar implements the Google Scholar source through SerpAPI's
// google_scholar engine.
package scholar

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-crawler/internal/domain"
	"github.com/helixir/research-crawler/internal/observability"
	"github.com/helixir/research-crawler/internal/papersources"
)

const (
	// DefaultTimeout bounds a single SerpAPI call.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the largest page Google Scholar serves.
	DefaultPageSize = 20

	// DefaultWorkers bounds concurrent SerpAPI calls across all queries.
	DefaultWorkers = 2

	sourceName = "Google Scholar"
)

// notConfiguredOnce limits the missing-key warning to once per process.
var notConfiguredOnce sync.Once

// Config holds configuration for the Scholar client.
type Config struct {
	// APIKey is the SerpAPI key. Without it the source returns no results.
	APIKey string

	// Timeout bounds a single SerpAPI call.
	Timeout time.Duration

	// PageSize is the number of results requested per page (max 20).
	PageSize int

	// Workers is the number of concurrent SerpAPI calls allowed.
	Workers int
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PageSize <= 0 || c.PageSize > DefaultPageSize {
		c.PageSize = DefaultPageSize
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
}

// Client implements papersources.Source for Google Scholar.
type Client struct {
	config   Config
	searcher Searcher
	slots    chan struct{}
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

var _ papersources.Source = (*Client)(nil)

// New creates a Scholar client backed by SerpAPI.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()
	return NewWithSearcher(cfg, NewSerpSearcher(cfg.APIKey, cfg.Timeout), logger, metrics)
}

// NewWithSearcher creates a Scholar client with a custom Searcher.
// This is useful for testing.
func NewWithSearcher(cfg Config, searcher Searcher, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()
	return &Client{
		config:   cfg,
		searcher: searcher,
		slots:    make(chan struct{}, cfg.Workers),
		logger:   observability.WithComponent(logger, "scholar"),
		metrics:  metrics,
	}
}

// Search pages through organic results until maxResults papers are
// collected. Results without a title are skipped.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.Paper, error) {
	if !c.IsConfigured() {
		notConfiguredOnce.Do(func() {
			c.logger.Warn().Msg("SerpAPI key not configured, Google Scholar returns no results")
		})
		return nil, fmt.Errorf("%s: %w", sourceName, domain.ErrNotConfigured)
	}
	if maxResults <= 0 {
		return []domain.Paper{}, nil
	}

	papers := make([]domain.Paper, 0, maxResults)
	for start := 0; len(papers) < maxResults; {
		num := min(c.config.PageSize, maxResults-len(papers))

		data, err := c.fetchPage(ctx, query, start, num)
		if err != nil {
			return nil, err
		}

		results, _ := data["organic_results"].([]interface{})
		for i, item := range results {
			p, err := resultToPaper(item)
			if err != nil {
				c.metrics.RecordMalformedRecord(domain.SourceTypeScholar.String())
				c.logger.Warn().Err(err).Str("query", query).Int("position", start+i).Msg("skipping malformed scholar result")
				continue
			}
			papers = append(papers, p)
			if len(papers) == maxResults {
				break
			}
		}

		start += len(results)
		if len(results) < num || !hasNextPage(data) {
			break
		}
	}

	return papers, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsConfigured reports whether a SerpAPI key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// fetchPage runs one SerpAPI request on a worker slot.
func (c *Client) fetchPage(ctx context.Context, query string, start, num int) (map[string]interface{}, error) {
	select {
	case c.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.slots }()

	params := map[string]string{
		"engine": engine,
		"q":      query,
		"start":  strconv.Itoa(start),
		"num":    strconv.Itoa(num),
		"hl":     "en",
	}

	begin := time.Now()
	data, err := c.searcher.Search(ctx, params)
	c.metrics.RecordSourceRequest(sourceName, "search", time.Since(begin).Seconds())
	if err != nil {
		c.metrics.RecordSourceRequestFailed(sourceName, "search", "request")
		return nil, err
	}
	if msg, ok := data["error"].(string); ok && msg != "" {
		c.metrics.RecordSourceRequestFailed(sourceName, "search", "api")
		return nil, domain.NewExternalAPIError(sourceName, 0, msg, nil)
	}
	return data, nil
}

func hasNextPage(data map[string]interface{}) bool {
	pagination, ok := data["serpapi_pagination"].(map[string]interface{})
	if !ok {
		return true
	}
	next, _ := pagination["next"].(string)
	return next != ""
}
