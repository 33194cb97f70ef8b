// Package cache stores per-(source, query) crawl results with a fixed TTL.
//
// The cache is best-effort: callers treat read failures as misses and ignore
// write failures. Entries are JSON-encoded lists of papers keyed by a
// fingerprint of the exact source and query text.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/helixir/research-crawler/internal/domain"
)

// KeyPrefix namespaces crawler entries in a shared key-value store.
const KeyPrefix = "crawler:cache:"

// DefaultTTL is the time-to-live applied to fresh crawl results.
const DefaultTTL = time.Hour

// Cache is the contract every backend implements. It is safe for concurrent use.
type Cache interface {
	// Get returns the papers stored for (source, query). The boolean is false
	// on a miss or when the entry expired.
	Get(ctx context.Context, source domain.SourceType, query string) ([]domain.Paper, bool, error)

	// Put stores papers for (source, query), replacing any previous entry.
	Put(ctx context.Context, source domain.SourceType, query string, papers []domain.Paper, ttl time.Duration) error

	// Close releases backend resources.
	Close() error
}

// Fingerprint derives the cache key of a (source, query) pair. It is
// case-sensitive and does not normalize the query.
func Fingerprint(source domain.SourceType, query string) string {
	sum := sha256.Sum256([]byte(string(source) + ":" + query))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

func encode(papers []domain.Paper) ([]byte, error) {
	if papers == nil {
		papers = []domain.Paper{}
	}
	data, err := json.Marshal(papers)
	if err != nil {
		return nil, fmt.Errorf("encoding cache entry: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]domain.Paper, error) {
	var papers []domain.Paper
	if err := json.Unmarshal(data, &papers); err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}
	if papers == nil {
		papers = []domain.Paper{}
	}
	return papers, nil
}
