package papersources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-crawler/internal/cache"
	"github.com/helixir/research-crawler/internal/domain"
	"github.com/helixir/research-crawler/internal/observability"
)

// faultyCache wraps a MemoryCache and fails reads or writes on demand.
type faultyCache struct {
	*cache.MemoryCache
	getErr error
	putErr error
	puts   int
}

func (f *faultyCache) Get(ctx context.Context, source domain.SourceType, query string) ([]domain.Paper, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	return f.MemoryCache.Get(ctx, source, query)
}

func (f *faultyCache) Put(ctx context.Context, source domain.SourceType, query string, papers []domain.Paper, ttl time.Duration) error {
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryCache.Put(ctx, source, query, papers, ttl)
}

func newTestAdapter(t *testing.T, src Source, c cache.Cache) (*CachedSource, *observability.Metrics, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	metrics := observability.NewMetrics("test_adapter", prometheus.NewRegistry())
	adapter := NewCachedSource(src, c, CachedSourceConfig{
		TTL:     time.Hour,
		Logger:  zerolog.New(&buf),
		Metrics: metrics,
	})
	return adapter, metrics, &buf
}

func TestCachedSource_Fetch(t *testing.T) {
	ctx := context.Background()

	t.Run("second fetch within ttl is served from cache", func(t *testing.T) {
		src := newMockSource(domain.SourceTypeArXiv)
		adapter, metrics, _ := newTestAdapter(t, src, cache.NewMemoryCache())

		first, err := adapter.Fetch(ctx, "transformers", 10)
		require.NoError(t, err)
		second, err := adapter.Fetch(ctx, "transformers", 10)
		require.NoError(t, err)

		assert.Equal(t, int32(1), src.calls.Load())
		assert.Equal(t, first, second)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AdapterFetches.WithLabelValues("arxiv", observability.OutcomeHit)))
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AdapterFetches.WithLabelValues("arxiv", observability.OutcomeMiss)))
	})

	t.Run("cache hit is returned unmodified", func(t *testing.T) {
		src := newMockSource(domain.SourceTypeArXiv)
		src.searchFn = func(ctx context.Context, query string, maxResults int) ([]domain.Paper, error) {
			papers := make([]domain.Paper, maxResults)
			for i := range papers {
				papers[i] = domain.Paper{Title: fmt.Sprintf("Paper %d", i), URL: fmt.Sprintf("https://example.org/%d", i)}
			}
			return papers, nil
		}
		adapter, _, _ := newTestAdapter(t, src, cache.NewMemoryCache())

		first, err := adapter.Fetch(ctx, "transformers", 10)
		require.NoError(t, err)
		require.Len(t, first, 10)

		second, err := adapter.Fetch(ctx, "transformers", 3)
		require.NoError(t, err)

		assert.Equal(t, int32(1), src.calls.Load())
		assert.Len(t, second, 10)
		assert.Equal(t, first, second)
	})

	t.Run("different queries are fetched separately", func(t *testing.T) {
		src := newMockSource(domain.SourceTypeACM)
		adapter, _, _ := newTestAdapter(t, src, cache.NewMemoryCache())

		_, _ = adapter.Fetch(ctx, "a", 10)
		_, _ = adapter.Fetch(ctx, "b", 10)

		assert.Equal(t, int32(2), src.calls.Load())
	})

	t.Run("records are normalized", func(t *testing.T) {
		src := newMockSource(domain.SourceTypeScholar)
		src.searchFn = func(ctx context.Context, query string, maxResults int) ([]domain.Paper, error) {
			return []domain.Paper{
				{Title: "  Caching   at Scale ", URL: "https://a", Abstract: "caching caching systems", PDFURL: "https://a.pdf"},
				{Title: "", URL: "https://b"},
				{Title: "No URL"},
			}, nil
		}
		adapter, metrics, _ := newTestAdapter(t, src, nil)

		papers, err := adapter.Fetch(ctx, "caching", 10)

		require.NoError(t, err)
		require.Len(t, papers, 1)
		assert.Equal(t, "Caching at Scale", papers[0].Title)
		assert.Equal(t, domain.SourceTypeScholar, papers[0].Source)
		assert.Empty(t, papers[0].PDFURL)
		assert.Equal(t, "caching", papers[0].Keywords[0])
		assert.Equal(t, float64(2), testutil.ToFloat64(metrics.MalformedRecords.WithLabelValues("scholar")))
	})

	t.Run("caps results at maxResults", func(t *testing.T) {
		src := newMockSource(domain.SourceTypeIEEE)
		src.searchFn = func(ctx context.Context, query string, maxResults int) ([]domain.Paper, error) {
			return []domain.Paper{
				{Title: "1", URL: "u1"}, {Title: "2", URL: "u2"}, {Title: "3", URL: "u3"},
			}, nil
		}
		adapter, _, _ := newTestAdapter(t, src, nil)

		papers, err := adapter.Fetch(ctx, "q", 2)

		require.NoError(t, err)
		assert.Len(t, papers, 2)
	})

	t.Run("cache read failure is treated as miss", func(t *testing.T) {
		src := newMockSource(domain.SourceTypeArXiv)
		fc := &faultyCache{MemoryCache: cache.NewMemoryCache(), getErr: errors.New("connection refused")}
		adapter, metrics, logs := newTestAdapter(t, src, fc)

		papers, err := adapter.Fetch(ctx, "q", 10)

		require.NoError(t, err)
		assert.Len(t, papers, 1)
		assert.Equal(t, int32(1), src.calls.Load())
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheErrors.WithLabelValues("get")))
		assert.Contains(t, logs.String(), "cache read failed")
	})

	t.Run("cache write failure is swallowed", func(t *testing.T) {
		src := newMockSource(domain.SourceTypeArXiv)
		fc := &faultyCache{MemoryCache: cache.NewMemoryCache(), putErr: errors.New("read only replica")}
		adapter, metrics, _ := newTestAdapter(t, src, fc)

		papers, err := adapter.Fetch(ctx, "q", 10)

		require.NoError(t, err)
		assert.Len(t, papers, 1)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheErrors.WithLabelValues("put")))
	})

	t.Run("source error yields empty result and is not cached", func(t *testing.T) {
		src := newMockSource(domain.SourceTypeIEEE)
		src.searchFn = func(ctx context.Context, query string, maxResults int) ([]domain.Paper, error) {
			return nil, domain.NewExternalAPIError("IEEE Xplore", 500, "boom", nil)
		}
		fc := &faultyCache{MemoryCache: cache.NewMemoryCache()}
		adapter, metrics, logs := newTestAdapter(t, src, fc)

		papers, err := adapter.Fetch(ctx, "q", 10)
		require.NoError(t, err)
		require.NotNil(t, papers)
		assert.Empty(t, papers)

		_, _ = adapter.Fetch(ctx, "q", 10)
		assert.Equal(t, int32(2), src.calls.Load())
		assert.Zero(t, fc.puts)
		assert.Equal(t, float64(2), testutil.ToFloat64(metrics.AdapterFetches.WithLabelValues("ieee", observability.OutcomeError)))
		assert.Contains(t, logs.String(), "source fetch failed")
	})

	t.Run("not configured yields empty result and is not cached", func(t *testing.T) {
		src := newMockSource(domain.SourceTypeIEEE)
		src.configured = false
		src.searchFn = func(ctx context.Context, query string, maxResults int) ([]domain.Paper, error) {
			return nil, domain.ErrNotConfigured
		}
		fc := &faultyCache{MemoryCache: cache.NewMemoryCache()}
		adapter, metrics, _ := newTestAdapter(t, src, fc)

		papers, err := adapter.Fetch(ctx, "q", 10)

		require.NoError(t, err)
		assert.Empty(t, papers)
		assert.Zero(t, fc.puts)
		assert.False(t, adapter.IsConfigured())
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AdapterFetches.WithLabelValues("ieee", observability.OutcomeNotConfigured)))
	})

	t.Run("panicking source yields empty result", func(t *testing.T) {
		src := newMockSource(domain.SourceTypeACM)
		src.searchFn = func(ctx context.Context, query string, maxResults int) ([]domain.Paper, error) {
			panic("selector exploded")
		}
		adapter, _, logs := newTestAdapter(t, src, nil)

		papers, err := adapter.Fetch(ctx, "q", 10)

		require.NoError(t, err)
		assert.Empty(t, papers)
		assert.Contains(t, logs.String(), "selector exploded")
	})

	t.Run("canceled context is returned", func(t *testing.T) {
		src := newMockSource(domain.SourceTypeArXiv)
		adapter, _, _ := newTestAdapter(t, src, nil)

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := adapter.Fetch(cctx, "q", 10)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, src.calls.Load())
	})

	t.Run("cancellation during search is returned", func(t *testing.T) {
		src := newMockSource(domain.SourceTypeArXiv)
		src.searchFn = func(ctx context.Context, query string, maxResults int) ([]domain.Paper, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		adapter, _, _ := newTestAdapter(t, src, nil)

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := adapter.Fetch(cctx, "q", 10)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("concurrent identical misses share one call", func(t *testing.T) {
		src := newMockSource(domain.SourceTypeScholar)
		base := src.searchFn
		src.searchFn = func(ctx context.Context, query string, maxResults int) ([]domain.Paper, error) {
			time.Sleep(100 * time.Millisecond)
			if base != nil {
				return base(ctx, query, maxResults)
			}
			return []domain.Paper{{Title: "Shared", URL: "https://shared"}}, nil
		}
		adapter, _, _ := newTestAdapter(t, src, cache.NewMemoryCache())

		var wg sync.WaitGroup
		results := make([][]domain.Paper, 5)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = adapter.Fetch(ctx, "same", 10)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), src.calls.Load())
		for _, r := range results {
			require.Len(t, r, 1)
			assert.Equal(t, "Shared", r[0].Title)
		}
	})
}
