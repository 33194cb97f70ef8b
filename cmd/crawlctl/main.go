// Package main is the entry point for crawlctl, a one-shot command line
// front end to the crawler. Results go to stdout as JSON and logs go to
// stderr.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "crawlctl",
		Short: "Search arXiv, Google Scholar, IEEE Xplore and the ACM Digital Library",
		Long: `crawlctl runs a single crawl without starting the HTTP service. It reads
the same configuration as the server (config.yaml and CRAWLER_* variables),
so API keys and the result cache are shared with it.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("log-level", "warn", "log level for stderr output")

	root.AddCommand(newCrawlCmd())
	root.AddCommand(newKeywordsCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
