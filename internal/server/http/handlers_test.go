package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-crawler/internal/crawler"
	"github.com/helixir/research-crawler/internal/domain"
	"github.com/helixir/research-crawler/internal/papersources"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

type mockCrawler struct {
	crawlOneFn func(ctx context.Context, source string, req domain.CrawlRequest) (*crawler.Result, error)
	crawlAllFn func(ctx context.Context, req domain.CrawlRequest) (*crawler.Result, error)
}

func (m *mockCrawler) CrawlOne(ctx context.Context, source string, req domain.CrawlRequest) (*crawler.Result, error) {
	if m.crawlOneFn != nil {
		return m.crawlOneFn(ctx, source, req)
	}
	return &crawler.Result{}, nil
}

func (m *mockCrawler) CrawlAll(ctx context.Context, req domain.CrawlRequest) (*crawler.Result, error) {
	if m.crawlAllFn != nil {
		return m.crawlAllFn(ctx, req)
	}
	return &crawler.Result{}, nil
}

// countingAdapter returns one paper per query.
type countingAdapter struct {
	source domain.SourceType
	calls  atomic.Int32
}

func (a *countingAdapter) Fetch(_ context.Context, query string, _ int) ([]domain.Paper, error) {
	a.calls.Add(1)
	return []domain.Paper{{
		Title:  query,
		URL:    "https://example.org/" + string(a.source),
		Source: a.source,
	}}, nil
}

func (a *countingAdapter) SourceType() domain.SourceType { return a.source }
func (a *countingAdapter) IsConfigured() bool            { return a.source != domain.SourceTypeIEEE }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestServer(c Crawler) *Server {
	return NewServer(Config{Address: ":0"}, c, zerolog.Nop())
}

// newCoordinatorServer wires a real coordinator over counting adapters.
func newCoordinatorServer(t *testing.T) (*Server, map[domain.SourceType]*countingAdapter) {
	t.Helper()
	registry := papersources.NewRegistry()
	adapters := make(map[domain.SourceType]*countingAdapter)
	for _, st := range domain.AllSourceTypes {
		a := &countingAdapter{source: st}
		adapters[st] = a
		registry.Register(a)
	}
	coord := crawler.New(registry, nil, crawler.Config{MaxResultsLimit: 100}, zerolog.Nop(), nil)
	return newTestServer(coord), adapters
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	s := newTestServer(&mockCrawler{})

	rr := doRequest(t, s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}

func TestCrawlSource(t *testing.T) {
	t.Run("returns papers for the source", func(t *testing.T) {
		var gotSource string
		var gotReq domain.CrawlRequest
		s := newTestServer(&mockCrawler{
			crawlOneFn: func(_ context.Context, source string, req domain.CrawlRequest) (*crawler.Result, error) {
				gotSource, gotReq = source, req
				return &crawler.Result{
					Papers: []domain.Paper{{Title: "Paper", URL: "http://arxiv.org/abs/1", Source: domain.SourceTypeArXiv, Keywords: []string{"paper"}}},
					Count:  1,
				}, nil
			},
		})

		rr := doRequest(t, s, http.MethodPost, "/crawl/arxiv", `{"queries":["llm agents"],"maxResults":5,"includeFullText":true}`)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "arxiv", gotSource)
		assert.Equal(t, domain.CrawlRequest{Queries: []string{"llm agents"}, MaxResults: 5, IncludeFullText: true}, gotReq)

		body := decodeBody(t, rr)
		assert.Equal(t, "arxiv", body["source"])
		assert.Equal(t, []interface{}{"llm agents"}, body["queries"])
		assert.Equal(t, float64(1), body["count"])
		assert.NotContains(t, body, "warnings")

		papers := body["papers"].([]interface{})
		require.Len(t, papers, 1)
		paper := papers[0].(map[string]interface{})
		assert.Equal(t, "Paper", paper["title"])
		assert.Equal(t, "arxiv", paper["source"])
		assert.NotContains(t, paper, "fullText")
	})

	t.Run("empty result serializes as empty list", func(t *testing.T) {
		s := newTestServer(&mockCrawler{
			crawlOneFn: func(context.Context, string, domain.CrawlRequest) (*crawler.Result, error) {
				return &crawler.Result{Warnings: []string{"scholar: source not configured"}}, nil
			},
		})

		rr := doRequest(t, s, http.MethodPost, "/crawl/scholar", `{"queries":["q"]}`)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t,
			`{"source":"scholar","queries":["q"],"papers":[],"count":0,"warnings":["scholar: source not configured"]}`,
			rr.Body.String())
	})

	t.Run("unknown source is 400 with no adapter calls", func(t *testing.T) {
		s, adapters := newCoordinatorServer(t)

		rr := doRequest(t, s, http.MethodPost, "/crawl/pubmed", `{"queries":["q"]}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "unknown source: pubmed", decodeBody(t, rr)["error"])
		for _, a := range adapters {
			assert.Equal(t, int32(0), a.calls.Load())
		}
	})

	t.Run("keeps query order end to end", func(t *testing.T) {
		s, adapters := newCoordinatorServer(t)

		rr := doRequest(t, s, http.MethodPost, "/crawl/acm", `{"queries":["first","second","third"]}`)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp crawlSourceResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.Len(t, resp.Papers, 3)
		assert.Equal(t, "first", resp.Papers[0].Title)
		assert.Equal(t, "second", resp.Papers[1].Title)
		assert.Equal(t, "third", resp.Papers[2].Title)
		assert.Equal(t, int32(3), adapters[domain.SourceTypeACM].calls.Load())
	})

	t.Run("crawl is not cancelled with the request", func(t *testing.T) {
		var ctxErr error
		s := newTestServer(&mockCrawler{
			crawlOneFn: func(ctx context.Context, _ string, _ domain.CrawlRequest) (*crawler.Result, error) {
				ctxErr = ctx.Err()
				return &crawler.Result{}, nil
			},
		})

		reqCtx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, "/crawl/arxiv", strings.NewReader(`{"queries":["q"]}`)).WithContext(reqCtx)
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)

		assert.NoError(t, ctxErr)
	})

	t.Run("wrapped client errors are 400s", func(t *testing.T) {
		tests := []struct {
			name    string
			err     error
			wantMsg string
		}{
			{"validation", fmt.Errorf("crawl: %w", domain.NewValidationError("maxResults", "must be at most 5")), "validation error: maxResults: must be at most 5"},
			{"unknown source", fmt.Errorf("crawl: %w", domain.NewUnknownSourceError("scopus")), "crawl: unknown source: scopus"},
			{"bare invalid input", domain.ErrInvalidInput, "invalid input"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s := newTestServer(&mockCrawler{
					crawlOneFn: func(context.Context, string, domain.CrawlRequest) (*crawler.Result, error) {
						return nil, tt.err
					},
				})

				rr := doRequest(t, s, http.MethodPost, "/crawl/arxiv", `{"queries":["q"]}`)

				assert.Equal(t, http.StatusBadRequest, rr.Code)
				assert.Equal(t, tt.wantMsg, decodeBody(t, rr)["error"])
			})
		}
	})

	t.Run("internal errors are not leaked", func(t *testing.T) {
		s := newTestServer(&mockCrawler{
			crawlOneFn: func(context.Context, string, domain.CrawlRequest) (*crawler.Result, error) {
				return nil, errors.New("dial tcp 10.0.0.5:6379: connection refused")
			},
		})

		rr := doRequest(t, s, http.MethodPost, "/crawl/arxiv", `{"queries":["q"]}`)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "internal server error", decodeBody(t, rr)["error"])
	})
}

func TestCrawlSource_InvalidBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty body", ``, "invalid JSON request body"},
		{"malformed json", `{"queries":`, "invalid JSON request body"},
		{"wrong type", `{"queries":"q"}`, "invalid JSON request body"},
		{"missing queries", `{}`, "queries: at least one query is required"},
		{"empty queries", `{"queries":[]}`, "queries: at least one query is required"},
		{"blank query", `{"queries":["ok","  "]}`, "validation error: queries: query 1 is empty"},
		{"negative max results", `{"queries":["q"],"maxResults":-1}`, "maxResults must not be negative"},
		{"max results above limit", `{"queries":["q"],"maxResults":101}`, "validation error: maxResults: must be at most 100"},
		{"too many queries", `{"queries":[` + strings.Repeat(`"q",`, 50) + `"q"]}`, "queries must have at most 50 entries"},
		{"query too long", `{"queries":["` + strings.Repeat("a", 1001) + `"]}`, "queries: each query must be at most 1000 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, adapters := newCoordinatorServer(t)

			rr := doRequest(t, s, http.MethodPost, "/crawl/arxiv", tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.wantErr, decodeBody(t, rr)["error"])
			assert.Equal(t, int32(0), adapters[domain.SourceTypeArXiv].calls.Load())
		})
	}
}

func TestCrawlAll(t *testing.T) {
	t.Run("aggregates every source", func(t *testing.T) {
		s, adapters := newCoordinatorServer(t)

		rr := doRequest(t, s, http.MethodPost, "/crawl/all", `{"queries":["q1","q2"],"maxResults":3}`)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp crawlAllResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))

		assert.Equal(t, 8, resp.Count)
		assert.Len(t, resp.Papers, 8)
		assert.Equal(t, []string{"arxiv", "scholar", "ieee", "acm"}, resp.Sources)
		assert.Equal(t, []string{"ieee: source not configured"}, resp.Warnings)
		assert.Equal(t, domain.SourceTypeArXiv, resp.Papers[0].Source)
		assert.Equal(t, domain.SourceTypeACM, resp.Papers[7].Source)
		for _, a := range adapters {
			assert.Equal(t, int32(2), a.calls.Load())
		}
	})

	t.Run("is not treated as a source name", func(t *testing.T) {
		called := false
		s := newTestServer(&mockCrawler{
			crawlOneFn: func(context.Context, string, domain.CrawlRequest) (*crawler.Result, error) {
				called = true
				return &crawler.Result{}, nil
			},
		})

		rr := doRequest(t, s, http.MethodPost, "/crawl/all", `{"queries":["q"]}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, called)
	})

	t.Run("full text flag is dropped", func(t *testing.T) {
		var got domain.CrawlRequest
		s := newTestServer(&mockCrawler{
			crawlAllFn: func(_ context.Context, req domain.CrawlRequest) (*crawler.Result, error) {
				got = req
				return &crawler.Result{}, nil
			},
		})

		rr := doRequest(t, s, http.MethodPost, "/crawl/all", `{"queries":["q"],"includeFullText":true}`)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, got.IncludeFullText)
		assert.JSONEq(t, `{"papers":[],"count":0,"sources":[]}`, rr.Body.String())
	})

	t.Run("invalid body", func(t *testing.T) {
		s := newTestServer(&mockCrawler{})

		rr := doRequest(t, s, http.MethodPost, "/crawl/all", `{"queries":[]}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRouting(t *testing.T) {
	s := newTestServer(&mockCrawler{})

	t.Run("wrong method", func(t *testing.T) {
		rr := doRequest(t, s, http.MethodGet, "/crawl/arxiv", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("unknown path", func(t *testing.T) {
		rr := doRequest(t, s, http.MethodGet, "/papers", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
