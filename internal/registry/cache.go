package registry

import (
	"sync"
	"time"
)

type cacheEntry struct {
	spec      *SeriesSpec
	expiresAt time.Time
}

// seriesCache is a TTL cache of series definitions. Expired entries are
// dropped when read.
type seriesCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time

	hits   int64
	misses int64
}

func newSeriesCache(ttl time.Duration) *seriesCache {
	return &seriesCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *seriesCache) get(key string) (*SeriesSpec, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		return nil, false
	}
	c.hits++
	return cloneSpec(e.spec), true
}

func (c *seriesCache) set(key string, spec *SeriesSpec) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{spec: cloneSpec(spec), expiresAt: c.now().Add(c.ttl)}
}

func (c *seriesCache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// stats returns hit and miss counts
func (c *seriesCache) stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
