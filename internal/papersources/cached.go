package papersources

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/helixir/research-crawler/internal/cache"
	"github.com/helixir/research-crawler/internal/domain"
	"github.com/helixir/research-crawler/internal/observability"
)

// CachedSourceConfig configures NewCachedSource.
type CachedSourceConfig struct {
	// TTL is applied to freshly fetched results. Zero uses cache.DefaultTTL.
	TTL time.Duration

	// Logger receives fetch diagnostics.
	Logger zerolog.Logger

	// Metrics is optional.
	Metrics *observability.Metrics
}

// CachedSource decorates a Source with the result cache, record
// normalization and error containment. It is safe for concurrent use.
type CachedSource struct {
	source  Source
	cache   cache.Cache
	ttl     time.Duration
	logger  zerolog.Logger
	metrics *observability.Metrics
	group   singleflight.Group
}

var _ Adapter = (*CachedSource)(nil)

// NewCachedSource wraps source. A nil cache disables caching.
func NewCachedSource(source Source, c cache.Cache, cfg CachedSourceConfig) *CachedSource {
	if cfg.TTL <= 0 {
		cfg.TTL = cache.DefaultTTL
	}
	return &CachedSource{
		source:  source,
		cache:   c,
		ttl:     cfg.TTL,
		logger:  observability.WithComponent(cfg.Logger, "adapter"),
		metrics: cfg.Metrics,
	}
}

// SourceType implements Adapter.
func (s *CachedSource) SourceType() domain.SourceType {
	return s.source.SourceType()
}

// IsConfigured implements Adapter.
func (s *CachedSource) IsConfigured() bool {
	return s.source.IsConfigured()
}

// Fetch implements Adapter. A cache hit is returned unmodified. On a miss,
// concurrent callers with the same query and limit share one live call.
func (s *CachedSource) Fetch(ctx context.Context, query string, maxResults int) ([]domain.Paper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sourceName := s.source.SourceType().String()
	log := observability.WithSourceContext(observability.LoggerFromContext(ctx, s.logger), sourceName, query)

	if papers, ok := s.lookup(ctx, query, log); ok {
		s.metrics.RecordAdapterFetch(sourceName, observability.OutcomeHit)
		log.Debug().Int("count", len(papers)).Msg("cache hit")
		return papers, nil
	}

	key := query + "\x00" + strconv.Itoa(maxResults)
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		return s.fetchLive(ctx, query, maxResults, log)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The leader's context was canceled but ours is still live.
		return s.fetchLive(ctx, query, maxResults, log)
	}

	papers := v.([]domain.Paper)
	if shared {
		papers = append([]domain.Paper(nil), papers...)
	}
	return papers, nil
}

func (s *CachedSource) lookup(ctx context.Context, query string, log zerolog.Logger) ([]domain.Paper, bool) {
	if s.cache == nil {
		return nil, false
	}
	papers, ok, err := s.cache.Get(ctx, s.source.SourceType(), query)
	if err != nil {
		s.metrics.RecordCacheError("get")
		log.Warn().Err(err).Msg("cache read failed, treating as miss")
		return nil, false
	}
	return papers, ok
}

// fetchLive performs the live call. It only returns an error when ctx is done.
func (s *CachedSource) fetchLive(ctx context.Context, query string, maxResults int, log zerolog.Logger) ([]domain.Paper, error) {
	sourceType := s.source.SourceType()
	sourceName := sourceType.String()

	start := time.Now()
	raw, err := s.search(ctx, query, maxResults)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, domain.ErrNotConfigured) {
			s.metrics.RecordAdapterFetch(sourceName, observability.OutcomeNotConfigured)
			log.Debug().Msg("source not configured, returning no results")
			return []domain.Paper{}, nil
		}
		s.metrics.RecordAdapterFetch(sourceName, observability.OutcomeError)
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("source fetch failed")
		return []domain.Paper{}, nil
	}

	papers := make([]domain.Paper, 0, len(raw))
	for _, p := range raw {
		normalized, ok := domain.NormalizePaper(p, sourceType)
		if !ok {
			s.metrics.RecordMalformedRecord(sourceName)
			log.Warn().Str("title", p.Title).Str("url", p.URL).Msg("dropping record without title or url")
			continue
		}
		papers = append(papers, normalized)
		if maxResults > 0 && len(papers) == maxResults {
			break
		}
	}

	elapsed := time.Since(start)
	s.metrics.RecordAdapterFetch(sourceName, observability.OutcomeMiss)
	s.metrics.RecordLiveFetch(sourceName, len(papers), elapsed.Seconds())
	log.Info().Int("count", len(papers)).Dur("elapsed", elapsed).Msg("source fetch completed")

	if s.cache != nil {
		if err := s.cache.Put(ctx, sourceType, query, papers, s.ttl); err != nil {
			s.metrics.RecordCacheError("put")
			log.Warn().Err(err).Msg("cache write failed")
		}
	}

	return papers, nil
}

// search calls the source, converting a panic into an error.
func (s *CachedSource) search(ctx context.Context, query string, maxResults int) (papers []domain.Paper, err error) {
	defer func() {
		if r := recover(); r != nil {
			papers, err = nil, fmt.Errorf("%s search panicked: %v", s.source.Name(), r)
		}
	}()
	return s.source.Search(ctx, query, maxResults)
}
