package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Adapter fetch outcomes used as the "outcome" label of AdapterFetches.
const (
	OutcomeHit           = "hit"
	OutcomeMiss          = "miss"
	OutcomeError         = "error"
	OutcomeNotConfigured = "not_configured"
)

// Metrics contains all Prometheus metrics for the research crawler.
// Metrics are organized by subsystem: crawl requests, adapter fetches, cache,
// full-text retrieval and outbound source requests.
//
// All Record methods are safe to call on a nil *Metrics, which lets components
// run without instrumentation in tests and in the CLI.
type Metrics struct {
	// CrawlRequests counts crawl operations, labeled by endpoint ("source", "all") and status.
	CrawlRequests *prometheus.CounterVec

	// CrawlDuration observes end-to-end crawl duration in seconds, labeled by endpoint.
	CrawlDuration *prometheus.HistogramVec

	// PapersPerCrawl observes the number of papers returned per crawl, labeled by endpoint.
	PapersPerCrawl *prometheus.HistogramVec

	// AdapterFetches counts adapter fetches, labeled by source and outcome.
	AdapterFetches *prometheus.CounterVec

	// AdapterFetchDuration observes live fetch duration in seconds, labeled by source.
	AdapterFetchDuration *prometheus.HistogramVec

	// PapersBySource counts papers returned by live fetches, labeled by source.
	PapersBySource *prometheus.CounterVec

	// MalformedRecords counts source records skipped during parsing, labeled by source.
	MalformedRecords *prometheus.CounterVec

	// CacheErrors counts failed cache operations, labeled by operation ("get", "put").
	CacheErrors *prometheus.CounterVec

	// FullTextFetches counts full-text retrieval attempts, labeled by outcome ("success", "failure").
	FullTextFetches *prometheus.CounterVec

	// SourceRequestsTotal counts HTTP requests to source APIs, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests to source APIs, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes HTTP request duration to source APIs in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from source APIs, labeled by source.
	SourceRateLimited *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// The namespace is used as a prefix for all metric names. A nil reg
// registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Crawls
		CrawlRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_requests_total",
			Help:      "Total number of crawl requests by endpoint and status",
		}, []string{"endpoint", "status"}),
		CrawlDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crawl_duration_seconds",
			Help:      "Duration of crawl requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"endpoint"}),
		PapersPerCrawl: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_crawl",
			Help:      "Number of papers returned per crawl",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		}, []string{"endpoint"}),

		// Adapters
		AdapterFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_fetches_total",
			Help:      "Total number of adapter fetches by source and outcome",
		}, []string{"source", "outcome"}),
		AdapterFetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_fetch_duration_seconds",
			Help:      "Duration of live adapter fetches in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"source"}),
		PapersBySource: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_by_source_total",
			Help:      "Total number of papers fetched by source",
		}, []string{"source"}),
		MalformedRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_total",
			Help:      "Total number of malformed source records skipped",
		}, []string{"source"}),

		// Cache
		CacheErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Total number of failed cache operations",
		}, []string{"operation"}),

		// Full text
		FullTextFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "full_text_fetches_total",
			Help:      "Total number of full-text fetch attempts by outcome",
		}, []string{"outcome"}),

		// Sources
		SourceRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to source APIs",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to source APIs",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to source APIs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source", "endpoint"}),
		SourceRateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from sources",
		}, []string{"source"}),
	}
}

// RecordCrawl records a finished crawl request.
func (m *Metrics) RecordCrawl(endpoint, status string, paperCount int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.CrawlRequests.WithLabelValues(endpoint, status).Inc()
	m.CrawlDuration.WithLabelValues(endpoint).Observe(durationSeconds)
	m.PapersPerCrawl.WithLabelValues(endpoint).Observe(float64(paperCount))
}

// RecordAdapterFetch records an adapter fetch outcome.
func (m *Metrics) RecordAdapterFetch(source, outcome string) {
	if m == nil {
		return
	}
	m.AdapterFetches.WithLabelValues(source, outcome).Inc()
}

// RecordLiveFetch records a completed live fetch against a source.
func (m *Metrics) RecordLiveFetch(source string, paperCount int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.AdapterFetchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.PapersBySource.WithLabelValues(source).Add(float64(paperCount))
}

// RecordMalformedRecord records a source record that could not be parsed.
func (m *Metrics) RecordMalformedRecord(source string) {
	if m == nil {
		return
	}
	m.MalformedRecords.WithLabelValues(source).Inc()
}

// RecordCacheError records a failed cache operation.
func (m *Metrics) RecordCacheError(operation string) {
	if m == nil {
		return
	}
	m.CacheErrors.WithLabelValues(operation).Inc()
}

// RecordFullTextFetch records a full-text retrieval attempt.
func (m *Metrics) RecordFullTextFetch(success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.FullTextFetches.WithLabelValues(outcome).Inc()
}

// RecordSourceRequest records a request to a source API.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to a source API.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	if m == nil {
		return
	}
	m.SourceRateLimited.WithLabelValues(source).Inc()
}
