// Package cache implements the two-layer cache fronting the persistent
// store: a bounded in-memory LRU keyed by RequestKey, falling back to the
// store's most-recent-done row on miss (spec.md §3.2, §4.4).
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/double-tu/youtube-subtitle-proxy/internal/store"
)

// Cache is the two-layer cache. Its unit of value is the rendered bilingual
// WebVTT text; format conversion for the client happens at the edge.
type Cache struct {
	memory *expirable.LRU[string, string]
	store  *store.Store
}

// New creates a cache with the given in-memory capacity and TTL. A
// non-positive maxItems falls back to 1000 and a non-positive ttl to 168h,
// the default job-row TTL. Each memory entry expires ttl after it is added,
// independently of the expiresAt of the done row it came from, so an entry
// promoted from an older row can stay in memory after that row has expired.
func New(st *store.Store, maxItems int, ttl time.Duration) (*Cache, error) {
	if maxItems <= 0 {
		maxItems = 1000
	}
	if ttl <= 0 {
		ttl = 168 * time.Hour
	}
	l := expirable.NewLRU[string, string](maxItems, nil, ttl)
	return &Cache{memory: l, store: st}, nil
}

func cacheKey(key store.RequestKey) string {
	return key.VideoID + "|" + key.Lang + "|" + key.TargetLang + "|" + key.Track + "|" + key.Fmt
}

// Get returns the cached bilingual text for a RequestKey. On a memory miss it
// consults the store for the most recent done row and promotes it into the
// memory layer. Hit/miss counters are incremented in the store's metadata
// table.
func (c *Cache) Get(key store.RequestKey) (string, bool) {
	k := cacheKey(key)

	if bilingual, ok := c.memory.Get(k); ok {
		_ = c.store.IncrCounter(store.CounterCacheHits)
		return bilingual, true
	}

	job, err := c.store.MostRecentDone(key)
	if err != nil {
		_ = c.store.IncrCounter(store.CounterCacheMisses)
		return "", false
	}

	_ = c.store.IncrCounter(store.CounterCacheHits)
	c.memory.Add(k, job.Bilingual)
	return job.Bilingual, true
}

// Set writes a rendered bilingual result into the memory layer. The store
// layer is written independently by the job worker.
func (c *Cache) Set(key store.RequestKey, bilingual string) {
	c.memory.Add(cacheKey(key), bilingual)
}

// Stats returns the cache hit/miss counters for health introspection.
func (c *Cache) Stats() (hits, misses int64, err error) {
	hits, err = c.store.GetCounter(store.CounterCacheHits)
	if err != nil {
		return 0, 0, err
	}
	misses, err = c.store.GetCounter(store.CounterCacheMisses)
	return hits, misses, err
}

// Len reports the number of entries currently held in the memory layer.
func (c *Cache) Len() int {
	return c.memory.Len()
}
