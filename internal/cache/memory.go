package cache

import (
	"context"
	"sync"
	"time"

	"github.com/helixir/research-crawler/internal/domain"
)

// sweepInterval is the minimum time between scans for expired entries.
const sweepInterval = time.Minute

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is an in-process Cache. Entries are stored serialized so that
// callers never share slices with the cache. Expired entries are removed when
// read and by a sweep that Put runs at most once per sweepInterval.
type MemoryCache struct {
	mu        sync.RWMutex
	entries   map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, source domain.SourceType, query string) ([]domain.Paper, bool, error) {
	key := Fingerprint(source, query)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	papers, err := decode(entry.data)
	if err != nil {
		return nil, false, err
	}
	return papers, true, nil
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, source domain.SourceType, query string, papers []domain.Paper, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := encode(papers)
	if err != nil {
		return err
	}

	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastSweep) >= sweepInterval {
		c.sweepLocked(now)
	}
	c.entries[Fingerprint(source, query)] = memoryEntry{
		data:      data,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// sweepLocked deletes every expired entry. c.mu must be held for writing.
func (c *MemoryCache) sweepLocked(now time.Time) {
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.lastSweep = now
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close implements Cache.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}
