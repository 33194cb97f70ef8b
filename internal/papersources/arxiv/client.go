// Package arxiv implements the arXiv source using the export API's Atom
// feed.
package arxiv

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/helixir/research-crawler/internal/domain"
	"github.com/helixir/research-crawler/internal/observability"
	"github.com/helixir/research-crawler/internal/papersources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "http://export.arxiv.org/api"

	// DefaultRateLimit is one request every three seconds, as arXiv asks.
	DefaultRateLimit = 0.34

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the number of entries requested per page.
	DefaultPageSize = 100

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

// shortIDRegex extracts the versioned short ID from an entry ID such as
// "http://arxiv.org/abs/2301.12345v1" or "http://arxiv.org/abs/hep-th/9901001v2".
var shortIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+)$`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// PageSize is the number of entries requested per page.
	PageSize int
}

// applyDefaults sets default values for unset configuration fields.
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
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
}

// Client implements papersources.Source for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.Source = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
func New(cfg Config, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    sourceName,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		Metrics:   metrics,
	})

	return NewWithHTTPClient(cfg, httpClient)
}

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search pages through relevance-sorted results until maxResults entries
// are collected or the feed is exhausted.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.Paper, error) {
	if maxResults <= 0 {
		return []domain.Paper{}, nil
	}

	papers := make([]domain.Paper, 0, maxResults)
	for start := 0; len(papers) < maxResults; {
		pageSize := min(c.config.PageSize, maxResults-len(papers))

		feed, err := c.fetchPage(ctx, query, start, pageSize)
		if err != nil {
			return nil, err
		}

		for _, item := range feed.Items {
			papers = append(papers, itemToPaper(item))
			if len(papers) == maxResults {
				break
			}
		}

		start += len(feed.Items)
		if len(feed.Items) < pageSize {
			break
		}
		if total := totalResults(feed); total > 0 && start >= total {
			break
		}
	}

	return papers, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsConfigured always returns true; arXiv needs no credentials.
func (c *Client) IsConfigured() bool {
	return true
}

func (c *Client) fetchPage(ctx context.Context, query string, start, pageSize int) (*gofeed.Feed, error) {
	searchURL, err := c.buildSearchURL(query, start, pageSize)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	body, err := c.httpClient.GetBytes(ctx, "query", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing atom feed: %w", err)
	}
	return feed, nil
}

// buildSearchURL constructs the arXiv search API URL.
func (c *Client) buildSearchURL(query string, start, pageSize int) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(pageSize))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	baseURL.RawQuery = params.Encode()
	return baseURL.String(), nil
}

// itemToPaper converts a parsed Atom entry to a Paper.
func itemToPaper(item *gofeed.Item) domain.Paper {
	p := domain.Paper{
		Title:      item.Title,
		Abstract:   item.Description,
		URL:        item.Link,
		ArXivID:    shortID(item.GUID),
		Categories: item.Categories,
		DOI:        extensionValue(item.Extensions, "arxiv", "doi"),
	}
	if p.URL == "" {
		p.URL = item.GUID
	}

	for _, a := range item.Authors {
		if a != nil {
			p.Authors = append(p.Authors, a.Name)
		}
	}

	if item.PublishedParsed != nil {
		p.Year = item.PublishedParsed.Year()
	}

	for _, link := range item.Links {
		if strings.Contains(link, "/pdf/") {
			p.PDFURL = link
			break
		}
	}
	if p.PDFURL == "" && p.ArXivID != "" {
		p.PDFURL = "http://arxiv.org/pdf/" + p.ArXivID
	}

	return p
}

// shortID extracts the versioned arXiv ID from the full entry ID.
// Input: "http://arxiv.org/abs/2301.12345v1" → "2301.12345v1"
func shortID(entryID string) string {
	matches := shortIDRegex.FindStringSubmatch(strings.TrimSpace(entryID))
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

func totalResults(feed *gofeed.Feed) int {
	n, err := strconv.Atoi(extensionValue(feed.Extensions, "opensearch", "totalResults"))
	if err != nil {
		return 0
	}
	return n
}

func extensionValue(extensions ext.Extensions, ns, name string) string {
	values := extensions[ns][name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}
