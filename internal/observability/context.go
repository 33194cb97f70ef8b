package observability

import (
	"context"

	"github.com/rs/zerolog"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	crawlIDKey   contextKey = "crawl_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithCrawlID adds a crawl ID to the context. A crawl ID identifies one
// CrawlOne or CrawlAll invocation across its source tasks.
func WithCrawlID(ctx context.Context, crawlID string) context.Context {
	return context.WithValue(ctx, crawlIDKey, crawlID)
}

// CrawlIDFromContext retrieves the crawl ID from context.
// Returns empty string if not present.
func CrawlIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(crawlIDKey).(string); ok {
		return v
	}
	return ""
}

// LoggerFromContext returns the logger attached to ctx with zerolog's
// WithContext, or fallback when none is attached. Request and crawl IDs found
// in ctx are added as fields.
func LoggerFromContext(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	logger := fallback
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		logger = *l
	}

	lctx := logger.With()
	if id := RequestIDFromContext(ctx); id != "" {
		lctx = lctx.Str("request_id", id)
	}
	if id := CrawlIDFromContext(ctx); id != "" {
		lctx = lctx.Str("crawl_id", id)
	}
	return lctx.Logger()
}
