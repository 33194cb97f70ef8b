// Package ieee implements the IEEE Xplore source using the metadata search
// REST API. The API requires a key; without one the source is inert.
package ieee

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/helixir/research-crawler/internal/domain"
	"github.com/helixir/research-crawler/internal/observability"
	"github.com/helixir/research-crawler/internal/papersources"
)

const (
	// DefaultBaseURL is the IEEE Xplore article search endpoint.
	DefaultBaseURL = "https://ieeexploreapi.ieee.org/api/v1/search/articles"

	// DefaultRateLimit keeps well under the 10 calls/second key limit.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the largest max_records the API accepts.
	DefaultPageSize = 200

	sourceName = "IEEE Xplore"
)

// notConfiguredOnce limits the missing-key warning to once per process.
var notConfiguredOnce sync.Once

// Config holds configuration for the IEEE Xplore client.
type Config struct {
	// BaseURL is the article search endpoint.
	BaseURL string

	// APIKey is the IEEE Xplore API key.
	APIKey string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// PageSize is the number of records requested per page.
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

// Client implements papersources.Source for IEEE Xplore.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	logger     zerolog.Logger
}

var _ papersources.Source = (*Client)(nil)

// New creates a new IEEE Xplore client.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    sourceName,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		Metrics:   metrics,
	})

	return NewWithHTTPClient(cfg, httpClient, logger)
}

// NewWithHTTPClient creates a new IEEE Xplore client with a custom HTTP
// client. This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, logger zerolog.Logger) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     observability.WithComponent(logger, "ieee"),
	}
}

// Search queries IEEE Xplore for articles matching query.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.Paper, error) {
	if !c.IsConfigured() {
		notConfiguredOnce.Do(func() {
			c.logger.Warn().Msg("IEEE API key not found, IEEE Xplore returns no results")
		})
		return nil, fmt.Errorf("%s: %w", sourceName, domain.ErrNotConfigured)
	}
	if maxResults <= 0 {
		return []domain.Paper{}, nil
	}

	papers := make([]domain.Paper, 0, maxResults)
	for start := 1; len(papers) < maxResults; {
		pageSize := min(c.config.PageSize, maxResults-len(papers))

		page, total, err := c.fetchPage(ctx, query, start, pageSize)
		if err != nil {
			return nil, err
		}

		for _, p := range page {
			papers = append(papers, p)
			if len(papers) == maxResults {
				break
			}
		}

		start += len(page)
		if len(page) < pageSize || start > total {
			break
		}
	}

	return papers, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeIEEE
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

func (c *Client) fetchPage(ctx context.Context, query string, start, pageSize int) ([]domain.Paper, int, error) {
	searchURL, err := c.buildSearchURL(query, start, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("building search URL: %w", err)
	}

	body, err := c.httpClient.GetBytes(ctx, "search", searchURL, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return nil, 0, papersources.RedactSecret(fmt.Errorf("executing request: %w", err), c.config.APIKey)
	}

	if !gjson.ValidBytes(body) {
		return nil, 0, fmt.Errorf("decoding response: invalid JSON")
	}
	doc := gjson.ParseBytes(body)

	articles := doc.Get("articles").Array()
	papers := make([]domain.Paper, 0, len(articles))
	for _, a := range articles {
		papers = append(papers, articleToPaper(a))
	}

	return papers, int(doc.Get("total_records").Int()), nil
}

// buildSearchURL constructs the article search URL.
func (c *Client) buildSearchURL(query string, start, pageSize int) (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	params := url.Values{}
	params.Set("apikey", c.config.APIKey)
	params.Set("querytext", query)
	params.Set("max_records", strconv.Itoa(pageSize))
	params.Set("start_record", strconv.Itoa(start))
	params.Set("sort_order", "desc")
	params.Set("sort_field", "article_number")
	params.Set("format", "json")

	u.RawQuery = params.Encode()
	return u.String(), nil
}

// articleToPaper converts one element of the "articles" array.
func articleToPaper(a gjson.Result) domain.Paper {
	p := domain.Paper{
		Title:    a.Get("title").String(),
		Abstract: a.Get("abstract").String(),
		PDFURL:   a.Get("pdf_url").String(),
		Year:     int(a.Get("publication_year").Int()),
		Venue:    a.Get("publication_title").String(),
		DOI:      a.Get("doi").String(),
	}

	for _, name := range a.Get("authors.authors.#.full_name").Array() {
		p.Authors = append(p.Authors, name.String())
	}
	for _, term := range a.Get("index_terms.author_terms.terms").Array() {
		p.Keywords = append(p.Keywords, term.String())
	}

	if citations := a.Get("citing_paper_count"); citations.Exists() {
		p.Citations = int(citations.Int())
	}

	switch {
	case p.PDFURL != "":
		p.URL = p.PDFURL
	case a.Get("html_url").String() != "":
		p.URL = a.Get("html_url").String()
	case p.DOI != "":
		p.URL = "https://doi.org/" + p.DOI
	case a.Get("article_number").String() != "":
		p.URL = "https://ieeexplore.ieee.org/document/" + a.Get("article_number").String()
	}

	return p
}
