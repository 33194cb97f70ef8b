package scholar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	g "github.com/serpapi/google-search-results-golang"

	"github.com/helixir/research-crawler/internal/papersources"
)

// engine is the SerpAPI engine that serves Google Scholar results.
const engine = "google_scholar"

// Searcher runs one SerpAPI request and returns the decoded JSON document.
type Searcher interface {
	Search(ctx context.Context, params map[string]string) (map[string]interface{}, error)
}

// serpSearcher is the SerpAPI-backed Searcher.
type serpSearcher struct {
	apiKey  string
	timeout time.Duration
}

// NewSerpSearcher returns a Searcher that calls SerpAPI with apiKey.
func NewSerpSearcher(apiKey string, timeout time.Duration) Searcher {
	return &serpSearcher{apiKey: apiKey, timeout: timeout}
}

// Search implements Searcher. The SerpAPI client has no context support, so
// cancellation abandons the in-flight call; its HTTP timeout bounds it.
func (s *serpSearcher) Search(ctx context.Context, params map[string]string) (map[string]interface{}, error) {
	search := g.NewGoogleSearch(params, s.apiKey)
	search.Engine = engine
	search.HttpSearch = &http.Client{Timeout: s.timeout}

	type result struct {
		data g.SearchResult
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := search.GetJSON()
		done <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, papersources.RedactSecret(fmt.Errorf("serpapi search: %w", r.err), s.apiKey)
		}
		return r.data, nil
	}
}
