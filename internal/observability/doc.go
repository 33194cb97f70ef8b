// Package observability provides logging and metrics support for the
// research crawler.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithComponent(logger, "crawler")
//
// Source adapters derive child loggers carrying the source and query:
//
//	log := observability.WithSourceContext(logger, "arxiv", query)
//
// # Metrics
//
// Metrics are registered on an injectable registry so tests can use a fresh
// prometheus.NewRegistry():
//
//	metrics := observability.NewMetrics("research_crawler", prometheus.DefaultRegisterer)
//	metrics.RecordAdapterFetch("arxiv", observability.OutcomeHit)
//
// # Standard Fields
//
//   - request_id: HTTP request identifier
//   - crawl_id: crawl invocation identifier
//   - component: owning component (server, crawler, cache, ...)
//   - source: source name (arxiv, scholar, ieee, acm)
//   - query: query text passed to a source
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
