// Package crawler coordinates crawls across the registered source adapters.
//
// A crawl of one source runs its queries sequentially and keeps query order.
// A crawl of all sources runs one task per source concurrently and
// concatenates the results in source-group order. A failing source never
// aborts its siblings.
package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/research-crawler/internal/domain"
	"github.com/helixir/research-crawler/internal/observability"
	"github.com/helixir/research-crawler/internal/papersources"
	"github.com/helixir/research-crawler/internal/pdf"
)

// Metric endpoint labels.
const (
	EndpointSource = "source"
	EndpointAll    = "all"
)

// DefaultFullTextConcurrency bounds parallel full-text downloads per crawl.
const DefaultFullTextConcurrency = 4

// FullTextFetcher downloads the document behind a paper's pdf_url.
type FullTextFetcher interface {
	Download(ctx context.Context, url string) (*pdf.DownloadResult, error)
}

// Config configures the Coordinator.
type Config struct {
	// MaxResultsLimit caps CrawlRequest.MaxResults. Zero disables the cap.
	MaxResultsLimit int

	// FullTextConcurrency bounds parallel full-text downloads.
	FullTextConcurrency int
}

// Result is the outcome of a crawl.
type Result struct {
	// Papers in source-group order, then query order, then adapter order.
	Papers []domain.Paper

	// Count is len(Papers).
	Count int

	// Sources lists the sources that were crawled.
	Sources []domain.SourceType

	// Warnings flags crawled sources that are not configured and therefore
	// contributed no papers.
	Warnings []string
}

// sourceResult is the outcome of one source task in CrawlAll.
type sourceResult struct {
	source domain.SourceType
	papers []domain.Paper
	err    error
}

// Coordinator runs crawls against a registry of adapters.
// It is safe for concurrent use.
type Coordinator struct {
	registry *papersources.Registry
	fullText FullTextFetcher
	config   Config
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// New creates a Coordinator. fullText may be nil, in which case full-text
// requests are ignored.
func New(registry *papersources.Registry, fullText FullTextFetcher, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Coordinator {
	if cfg.FullTextConcurrency <= 0 {
		cfg.FullTextConcurrency = DefaultFullTextConcurrency
	}
	return &Coordinator{
		registry: registry,
		fullText: fullText,
		config:   cfg,
		logger:   observability.WithComponent(logger, "coordinator"),
		metrics:  metrics,
	}
}

// Sources returns the registered source types in source-group order.
func (c *Coordinator) Sources() []domain.SourceType {
	adapters := c.registry.Adapters()
	out := make([]domain.SourceType, len(adapters))
	for i, a := range adapters {
		out[i] = a.SourceType()
	}
	return out
}

// CrawlOne crawls a single source. An unknown source or an invalid request
// is reported before any adapter is called. Queries run sequentially.
func (c *Coordinator) CrawlOne(ctx context.Context, source string, req domain.CrawlRequest) (*Result, error) {
	start := time.Now()

	sourceType, err := domain.ParseSourceType(source)
	if err != nil {
		c.metrics.RecordCrawl(EndpointSource, "rejected", 0, time.Since(start).Seconds())
		return nil, err
	}
	adapter, ok := c.registry.Get(sourceType)
	if !ok {
		c.metrics.RecordCrawl(EndpointSource, "rejected", 0, time.Since(start).Seconds())
		return nil, domain.NewUnknownSourceError(source)
	}
	if err := req.Validate(c.config.MaxResultsLimit); err != nil {
		c.metrics.RecordCrawl(EndpointSource, "rejected", 0, time.Since(start).Seconds())
		return nil, err
	}

	ctx, log := c.startCrawl(ctx, EndpointSource)
	log = log.With().Str("source", source).Logger()
	log.Info().Int("queries", len(req.Queries)).Int("max_results", req.MaxResults).Bool("full_text", req.IncludeFullText).Msg("crawl started")

	papers, err := c.crawlSource(ctx, adapter, req)
	if err != nil {
		c.metrics.RecordCrawl(EndpointSource, "error", 0, time.Since(start).Seconds())
		log.Warn().Err(err).Msg("crawl aborted")
		return nil, err
	}

	if req.IncludeFullText && sourceType == domain.SourceTypeArXiv {
		c.attachFullText(ctx, papers, log)
	}

	result := &Result{
		Papers:   papers,
		Count:    len(papers),
		Sources:  []domain.SourceType{sourceType},
		Warnings: warningsFor([]papersources.Adapter{adapter}),
	}

	elapsed := time.Since(start)
	c.metrics.RecordCrawl(EndpointSource, "ok", result.Count, elapsed.Seconds())
	log.Info().Int("count", result.Count).Dur("elapsed", elapsed).Msg("crawl completed")

	return result, nil
}

// CrawlAll crawls every registered source concurrently. A source task that
// fails or panics is logged and contributes nothing. Full text is never
// fetched for aggregated crawls.
func (c *Coordinator) CrawlAll(ctx context.Context, req domain.CrawlRequest) (*Result, error) {
	start := time.Now()

	if err := req.Validate(c.config.MaxResultsLimit); err != nil {
		c.metrics.RecordCrawl(EndpointAll, "rejected", 0, time.Since(start).Seconds())
		return nil, err
	}

	ctx, log := c.startCrawl(ctx, EndpointAll)
	adapters := c.registry.Adapters()
	log.Info().Int("queries", len(req.Queries)).Int("sources", len(adapters)).Int("max_results", req.MaxResults).Msg("crawl started")

	results := c.runSources(ctx, adapters, req)

	if err := ctx.Err(); err != nil {
		c.metrics.RecordCrawl(EndpointAll, "error", 0, time.Since(start).Seconds())
		log.Warn().Err(err).Msg("crawl aborted")
		return nil, err
	}

	result := &Result{
		Papers:   []domain.Paper{},
		Sources:  make([]domain.SourceType, 0, len(results)),
		Warnings: warningsFor(adapters),
	}
	for _, sr := range results {
		result.Sources = append(result.Sources, sr.source)
		if sr.err != nil {
			log.Error().Err(sr.err).Str("source", sr.source.String()).Msg("source task failed, excluding its results")
			continue
		}
		result.Papers = append(result.Papers, sr.papers...)
	}
	result.Count = len(result.Papers)

	elapsed := time.Since(start)
	c.metrics.RecordCrawl(EndpointAll, "ok", result.Count, elapsed.Seconds())
	log.Info().Int("count", result.Count).Dur("elapsed", elapsed).Msg("crawl completed")

	return result, nil
}

func (c *Coordinator) startCrawl(ctx context.Context, endpoint string) (context.Context, zerolog.Logger) {
	crawlID := uuid.New().String()
	ctx = observability.WithCrawlID(ctx, crawlID)
	log := observability.LoggerFromContext(ctx, c.logger).With().Str("endpoint", endpoint).Logger()
	return ctx, log
}

// runSources starts one goroutine per adapter and waits for all of them.
// Results are indexed by adapter position so order is independent of
// completion order.
func (c *Coordinator) runSources(ctx context.Context, adapters []papersources.Adapter, req domain.CrawlRequest) []sourceResult {
	results := make([]sourceResult, len(adapters))

	var wg sync.WaitGroup
	for i, adapter := range adapters {
		wg.Add(1)
		go func(i int, a papersources.Adapter) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = sourceResult{
						source: a.SourceType(),
						err:    fmt.Errorf("source task panicked: %v", r),
					}
				}
			}()

			papers, err := c.crawlSource(ctx, a, req)
			results[i] = sourceResult{source: a.SourceType(), papers: papers, err: err}
		}(i, adapter)
	}
	wg.Wait()

	return results
}

// crawlSource runs every query against adapter in order. A query that fails
// contributes nothing; only context cancellation stops the loop.
func (c *Coordinator) crawlSource(ctx context.Context, adapter papersources.Adapter, req domain.CrawlRequest) ([]domain.Paper, error) {
	papers := []domain.Paper{}
	for _, query := range req.Queries {
		found, err := adapter.Fetch(ctx, query, req.MaxResults)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.logger.Warn().Err(err).Str("source", adapter.SourceType().String()).Str("query", query).Msg("query failed, skipping")
			continue
		}
		papers = append(papers, found...)
	}
	return papers, nil
}

// attachFullText downloads the pdf_url of every paper that has one. A
// failed download leaves the paper without full text.
func (c *Coordinator) attachFullText(ctx context.Context, papers []domain.Paper, log zerolog.Logger) {
	if c.fullText == nil {
		log.Debug().Msg("full text requested but no fetcher is configured")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.FullTextConcurrency)

	requested := 0
	for i := range papers {
		pdfURL := papers[i].PDFURL
		if pdfURL == "" {
			continue
		}
		requested++
		i := i
		g.Go(func() error {
			if _, err := c.fullText.Download(gctx, pdfURL); err != nil {
				log.Warn().Err(err).Str("pdf_url", pdfURL).Msg("full text download failed")
				return nil
			}
			papers[i].FullText = pdf.FullTextMarker(pdfURL)
			return nil
		})
	}

	_ = g.Wait()

	attached := 0
	for i := range papers {
		if papers[i].HasFullText() {
			attached++
		}
	}
	log.Info().Int("requested", requested).Int("attached", attached).Msg("full text fetched")
}

// warningsFor flags the adapters that cannot make live calls.
func warningsFor(adapters []papersources.Adapter) []string {
	var warnings []string
	for _, a := range adapters {
		if !a.IsConfigured() {
			warnings = append(warnings, fmt.Sprintf("%s: %s", a.SourceType(), domain.ErrNotConfigured))
		}
	}
	return warnings
}
