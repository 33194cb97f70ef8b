package ieee

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-crawler/internal/domain"
	"github.com/helixir/research-crawler/internal/papersources"
)

const sampleResponse = `{
  "total_records": 2,
  "total_searched": 5000000,
  "articles": [
    {
      "article_number": "9000001",
      "title": "Edge Computing for Deep Learning Inference",
      "abstract": "We study edge inference latency.",
      "pdf_url": "https://ieeexplore.ieee.org/stamp/stamp.jsp?arnumber=9000001",
      "html_url": "https://ieeexplore.ieee.org/document/9000001/",
      "publication_year": 2020,
      "publication_title": "IEEE Transactions on Computers",
      "doi": "10.1109/TC.2020.1",
      "citing_paper_count": 42,
      "authors": {"authors": [{"full_name": "Alice Chen"}, {"full_name": "Bob Li"}]},
      "index_terms": {"author_terms": {"terms": ["edge computing", "inference"]}}
    },
    {
      "article_number": "9000002",
      "title": "Untitled Without Links",
      "publication_year": "2019",
      "doi": "10.1109/X.2019.2"
    }
  ]
}`

func newTestClient(baseURL, apiKey string) *Client {
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		RateLimit:  1000,
		BurstSize:  100,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
	return NewWithHTTPClient(Config{BaseURL: baseURL, APIKey: apiKey}, httpClient, zerolog.Nop())
}

func TestNew(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		client := New(Config{}, zerolog.Nop(), nil)

		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
		assert.Equal(t, DefaultTimeout, client.config.Timeout)
		assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
		assert.Equal(t, DefaultPageSize, client.config.PageSize)
	})

	t.Run("implements Source", func(t *testing.T) {
		client := New(Config{APIKey: "k"}, zerolog.Nop(), nil)

		assert.Equal(t, domain.SourceTypeIEEE, client.SourceType())
		assert.Equal(t, "IEEE Xplore", client.Name())
		assert.True(t, client.IsConfigured())
	})
}

func TestClient_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("maps articles and sends expected params", func(t *testing.T) {
		var query map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = map[string]string{}
			for k := range r.URL.Query() {
				query[k] = r.URL.Query().Get(k)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(sampleResponse))
		}))
		defer server.Close()

		client := newTestClient(server.URL, "secret")
		papers, err := client.Search(ctx, "edge inference", 20)

		require.NoError(t, err)
		require.Len(t, papers, 2)

		assert.Equal(t, "secret", query["apikey"])
		assert.Equal(t, "edge inference", query["querytext"])
		assert.Equal(t, "20", query["max_records"])
		assert.Equal(t, "1", query["start_record"])
		assert.Equal(t, "desc", query["sort_order"])
		assert.Equal(t, "article_number", query["sort_field"])

		p := papers[0]
		assert.Equal(t, "Edge Computing for Deep Learning Inference", p.Title)
		assert.Equal(t, []string{"Alice Chen", "Bob Li"}, p.Authors)
		assert.Equal(t, "We study edge inference latency.", p.Abstract)
		assert.Equal(t, "https://ieeexplore.ieee.org/stamp/stamp.jsp?arnumber=9000001", p.URL)
		assert.Equal(t, p.URL, p.PDFURL)
		assert.Equal(t, 2020, p.Year)
		assert.Equal(t, "IEEE Transactions on Computers", p.Venue)
		assert.Equal(t, "10.1109/TC.2020.1", p.DOI)
		assert.Equal(t, 42, p.Citations)
		assert.Equal(t, []string{"edge computing", "inference"}, p.Keywords)
	})

	t.Run("sparse article degrades gracefully", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(sampleResponse))
		}))
		defer server.Close()

		papers, err := newTestClient(server.URL, "k").Search(ctx, "q", 20)
		require.NoError(t, err)

		p := papers[1]
		assert.Equal(t, 2019, p.Year)
		assert.Empty(t, p.Authors)
		assert.Empty(t, p.Abstract)
		assert.Equal(t, "https://doi.org/10.1109/X.2019.2", p.URL)
		assert.Empty(t, p.Keywords)
	})

	t.Run("pages with start_record", func(t *testing.T) {
		var requests int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requests, 1)
			start, _ := strconv.Atoi(r.URL.Query().Get("start_record"))
			size, _ := strconv.Atoi(r.URL.Query().Get("max_records"))

			var articles []string
			for i := start; i < start+size && i <= 7; i++ {
				articles = append(articles, fmt.Sprintf(`{"title":"T%d","article_number":"%d"}`, i, i))
			}
			fmt.Fprintf(w, `{"total_records":7,"articles":[%s]}`, strings.Join(articles, ","))
		}))
		defer server.Close()

		client := newTestClient(server.URL, "k")
		client.config.PageSize = 3

		papers, err := client.Search(ctx, "q", 20)

		require.NoError(t, err)
		assert.Len(t, papers, 7)
		assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
		assert.Equal(t, "https://ieeexplore.ieee.org/document/7", papers[6].URL)
	})

	t.Run("missing key returns not configured without calling", func(t *testing.T) {
		var requests int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requests, 1)
		}))
		defer server.Close()

		client := newTestClient(server.URL, "")

		_, err := client.Search(ctx, "q", 20)
		assert.ErrorIs(t, err, domain.ErrNotConfigured)
		_, err = client.Search(ctx, "q", 20)
		assert.ErrorIs(t, err, domain.ErrNotConfigured)

		assert.False(t, client.IsConfigured())
		assert.Zero(t, atomic.LoadInt32(&requests))
	})

	t.Run("forbidden response is an api error without the key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprintf(w, "<h1>Developer Inactive</h1> key=%s", r.URL.Query().Get("apikey"))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, "supersecret").Search(ctx, "q", 20)

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		assert.NotContains(t, err.Error(), "supersecret")
	})

	t.Run("refused connection does not leak the key", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		closedURL := server.URL
		server.Close()

		_, err := newTestClient(closedURL, "supersecret").Search(ctx, "q", 20)

		require.Error(t, err)
		assert.NotContains(t, err.Error(), "supersecret")
		assert.Contains(t, err.Error(), "apikey=***")
	})

	t.Run("invalid json is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>maintenance</html>"))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, "k").Search(ctx, "q", 20)
		assert.Error(t, err)
	})

	t.Run("no articles yields empty list", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"total_records":0,"total_searched":0}`))
		}))
		defer server.Close()

		papers, err := newTestClient(server.URL, "k").Search(ctx, "q", 20)

		require.NoError(t, err)
		assert.Empty(t, papers)
	})
}

func TestClient_Search_WarnsOnceWithoutKey(t *testing.T) {
	notConfiguredOnce = sync.Once{}
	t.Cleanup(func() { notConfiguredOnce = sync.Once{} })

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	for i := 0; i < 3; i++ {
		client := NewWithHTTPClient(Config{}, papersources.NewHTTPClient(papersources.HTTPClientConfig{}), logger)
		for j := 0; j < 2; j++ {
			_, err := client.Search(context.Background(), "q", 10)
			require.ErrorIs(t, err, domain.ErrNotConfigured)
		}
	}

	assert.Equal(t, 1, strings.Count(buf.String(), "IEEE API key not found"))
	assert.Contains(t, buf.String(), `"level":"warn"`)
}
