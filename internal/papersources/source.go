// Package papersources defines the contracts shared by the literature
// source clients and the caching decorator that turns a raw client into a
// best-effort adapter.
//
// Each source (arXiv, Google Scholar, IEEE Xplore, ACM Digital Library)
// implements Source in its own subpackage. The crawler never talks to a
// Source directly; it goes through an Adapter built with NewCachedSource:
//
//	src := arxiv.New(arxiv.Config{}, metrics)
//	adapter := papersources.NewCachedSource(src, resultCache, papersources.CachedSourceConfig{
//		TTL:    time.Hour,
//		Logger: logger,
//	})
//	papers, err := adapter.Fetch(ctx, "graph neural networks", 20)
package papersources

import (
	"context"

	"github.com/helixir/research-crawler/internal/domain"
)

// Source is a raw client for one literature source.
type Source interface {
	// Search queries the source and returns at most maxResults records in
	// source order. Records may be partially populated; they are normalized
	// by the caller. Errors are returned as-is, including
	// domain.ErrNotConfigured when the source lacks a credential.
	Search(ctx context.Context, query string, maxResults int) ([]domain.Paper, error)

	// SourceType returns the type identifier for this source.
	SourceType() domain.SourceType

	// Name returns a human-readable name used in logs.
	Name() string

	// IsConfigured reports whether the source has everything it needs
	// (credentials) to make live calls.
	IsConfigured() bool
}

// Adapter is the best-effort view of a source used by the crawler.
type Adapter interface {
	// Fetch returns normalized papers for query. Source failures yield an
	// empty list, never an error; only context cancellation is returned.
	Fetch(ctx context.Context, query string, maxResults int) ([]domain.Paper, error)

	// SourceType returns the type identifier of the wrapped source.
	SourceType() domain.SourceType

	// IsConfigured reports whether the wrapped source can make live calls.
	IsConfigured() bool
}
