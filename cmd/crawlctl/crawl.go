package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helixir/research-crawler/internal/config"
	"github.com/helixir/research-crawler/internal/crawler"
	"github.com/helixir/research-crawler/internal/domain"
	"github.com/helixir/research-crawler/internal/observability"
)

const sourceAll = "all"

// crawlOutput is printed to stdout after a crawl.
type crawlOutput struct {
	Source   string         `json:"source"`
	Queries  []string       `json:"queries"`
	Papers   []domain.Paper `json:"papers"`
	Count    int            `json:"count"`
	Sources  []string       `json:"sources,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}

type crawlOptions struct {
	source   string
	max      int
	fullText bool
	cache    string
	compact  bool
}

func newCrawlCmd() *cobra.Command {
	var opts crawlOptions

	cmd := &cobra.Command{
		Use:   "crawl [flags] QUERY...",
		Short: "Crawl one source, or every source, for the given queries",
		Long: `crawl searches the selected source for each QUERY in order and prints the
papers as JSON. With --source all (the default) every source is searched
concurrently and full text is never fetched.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.source, "source", "s", sourceAll, fmt.Sprintf("source to crawl (%s or all)", sourceList()))
	flags.IntVarP(&opts.max, "max", "n", 0, fmt.Sprintf("maximum results per source and query (default %d)", domain.DefaultMaxResults))
	flags.BoolVar(&opts.fullText, "full-text", false, "download full text for arXiv papers")
	flags.StringVar(&opts.cache, "cache", "", "override the cache backend (redis, memory, none)")
	flags.BoolVar(&opts.compact, "compact", false, "print JSON on a single line")
	return cmd
}

func runCrawl(cmd *cobra.Command, opts crawlOptions, queries []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.cache != "" {
		cfg.Cache.Backend = opts.cache
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	level, _ := cmd.Flags().GetString("log-level")
	logger := observability.NewLoggerTo(cmd.ErrOrStderr(), observability.LoggingConfig{
		Level:  level,
		Format: "console",
	})
	logger = observability.WithComponent(logger, "crawlctl")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := crawler.Build(ctx, cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("build crawler: %w", err)
	}
	defer components.Close()

	out, err := crawl(ctx, components.Coordinator, opts, queries)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if !opts.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}

// crawl runs the request against c and shapes the result for printing.
func crawl(ctx context.Context, c *crawler.Coordinator, opts crawlOptions, queries []string) (*crawlOutput, error) {
	req := domain.CrawlRequest{
		Queries:         queries,
		MaxResults:      opts.max,
		IncludeFullText: opts.fullText,
	}

	var (
		result *crawler.Result
		err    error
	)
	if opts.source == sourceAll {
		req.IncludeFullText = false
		result, err = c.CrawlAll(ctx, req)
	} else {
		result, err = c.CrawlOne(ctx, opts.source, req)
	}
	if err != nil {
		return nil, err
	}

	out := &crawlOutput{
		Source:   opts.source,
		Queries:  queries,
		Papers:   result.Papers,
		Count:    result.Count,
		Warnings: result.Warnings,
	}
	if out.Papers == nil {
		out.Papers = []domain.Paper{}
	}
	if opts.source == sourceAll {
		for _, st := range result.Sources {
			out.Sources = append(out.Sources, st.String())
		}
	}
	return out, nil
}

func sourceList() string {
	return strings.Join(domain.SourceNames(), ", ")
}
