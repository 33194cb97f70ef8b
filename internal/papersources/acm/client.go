// Package acm implements the ACM Digital Library source by scraping the
// public search results page.
package acm

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-crawler/internal/domain"
	"github.com/helixir/research-crawler/internal/observability"
	"github.com/helixir/research-crawler/internal/papersources"
)

const (
	// DefaultBaseURL is the ACM Digital Library origin.
	DefaultBaseURL = "https://dl.acm.org"

	// DefaultRateLimit is the default rate limit for page fetches.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the largest page the search UI serves.
	DefaultPageSize = 50

	sourceName = "ACM Digital Library"
)

// Config holds configuration for the ACM client.
type Config struct {
	// BaseURL is the Digital Library origin.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// PageSize is the number of results requested per page.
	PageSize int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.PageSize <= 0 || c.PageSize > DefaultPageSize {
		c.PageSize = DefaultPageSize
	}
}

// Client implements papersources.Source for the ACM Digital Library.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

var _ papersources.Source = (*Client)(nil)

// New creates a new ACM client.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    sourceName,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		Metrics:   metrics,
	})

	return NewWithHTTPClient(cfg, httpClient, logger, metrics)
}

// NewWithHTTPClient creates a new ACM client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     observability.WithComponent(logger, "acm"),
		metrics:    metrics,
	}
}

// Search scrapes result pages until maxResults items are collected or a
// page comes back short.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.Paper, error) {
	if maxResults <= 0 {
		return []domain.Paper{}, nil
	}

	pageSize := min(c.config.PageSize, maxResults)
	papers := make([]domain.Paper, 0, maxResults)
	for page := 0; len(papers) < maxResults; page++ {
		items, found, err := c.fetchPage(ctx, query, page, pageSize)
		if err != nil {
			return nil, err
		}

		for _, p := range items {
			papers = append(papers, p)
			if len(papers) == maxResults {
				break
			}
		}

		if found < pageSize {
			break
		}
	}

	return papers, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeACM
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsConfigured always returns true; the search page is public.
func (c *Client) IsConfigured() bool {
	return true
}

// fetchPage returns the parsed items and the number of result items found
// on the page, including skipped ones.
func (c *Client) fetchPage(ctx context.Context, query string, page, pageSize int) ([]domain.Paper, int, error) {
	searchURL, err := c.buildSearchURL(query, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("building search URL: %w", err)
	}

	body, err := c.httpClient.GetBytes(ctx, "doSearch", searchURL, http.Header{"Accept": []string{"text/html"}})
	if err != nil {
		return nil, 0, fmt.Errorf("executing request: %w", err)
	}

	papers, skipped, err := parseSearchHTML(bytes.NewReader(body), c.config.BaseURL)
	if err != nil {
		return nil, 0, err
	}
	if skipped > 0 {
		for i := 0; i < skipped; i++ {
			c.metrics.RecordMalformedRecord(domain.SourceTypeACM.String())
		}
		c.logger.Warn().Str("query", query).Int("page", page).Int("skipped", skipped).Msg("skipping result items without title")
	}

	return papers, len(papers) + skipped, nil
}

// buildSearchURL constructs the doSearch URL.
func (c *Client) buildSearchURL(query string, page, pageSize int) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.config.BaseURL, "/") + "/action/doSearch")
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	params := url.Values{}
	params.Set("AllField", query)
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("startPage", strconv.Itoa(page))

	u.RawQuery = params.Encode()
	return u.String(), nil
}
