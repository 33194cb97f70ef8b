package domain

import (
	"fmt"
	"strings"
)

// DefaultMaxResults is used when a crawl request does not specify a limit.
const DefaultMaxResults = 20

// CrawlRequest is the request-scoped input of a crawl.
type CrawlRequest struct {
	// Queries are searched in order; results keep this order.
	Queries []string
	// MaxResults caps the number of papers per (source, query).
	MaxResults int
	// IncludeFullText triggers best-effort full-text fetches (arXiv only).
	IncludeFullText bool
}

// Validate checks the request against the limit configured for the service.
// A zero MaxResults is replaced with DefaultMaxResults (capped by limit).
func (r *CrawlRequest) Validate(limit int) error {
	if len(r.Queries) == 0 {
		return NewValidationError("queries", "at least one query is required")
	}
	for i, q := range r.Queries {
		if strings.TrimSpace(q) == "" {
			return NewValidationError("queries", fmt.Sprintf("query %d is empty", i))
		}
	}
	if r.MaxResults < 0 {
		return NewValidationError("maxResults", "must be positive")
	}
	if r.MaxResults == 0 {
		r.MaxResults = DefaultMaxResults
		if limit > 0 && r.MaxResults > limit {
			r.MaxResults = limit
		}
	}
	if limit > 0 && r.MaxResults > limit {
		return NewValidationError("maxResults", fmt.Sprintf("must be at most %d", limit))
	}
	return nil
}
