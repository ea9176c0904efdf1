package nomads

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/gfs-forecast-service/internal/domain"
	"github.com/couchcryptid/gfs-forecast-service/internal/observability"
)

// GridFetcher downloads one variable of one run at one forecast hour.
type GridFetcher interface {
	FetchGrid(ctx context.Context, run domain.ModelRun, variable string, hour int, box domain.BoundingBox) (domain.Grid, error)
}

// CachedFetcher wraps a GridFetcher with an in-memory LRU cache. Published
// runs never change, so entries only leave the cache by eviction.
type CachedFetcher struct {
	inner   GridFetcher
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator around a fetcher.
func NewCachedFetcher(inner GridFetcher, maxEntries int, metrics *observability.Metrics) *CachedFetcher {
	return &CachedFetcher{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedFetcher) FetchGrid(ctx context.Context, run domain.ModelRun, variable string, hour int, box domain.BoundingBox) (domain.Grid, error) {
	key := fmt.Sprintf("%s|%s|%d|%.4f,%.4f,%.4f,%.4f",
		run, variable, hour, box.LatMin, box.LatMax, box.LonMin, box.LonMax)
	if g, ok := c.cache.get(key); ok {
		c.metrics.FetchCache.WithLabelValues("hit").Inc()
		return g, nil
	}
	c.metrics.FetchCache.WithLabelValues("miss").Inc()

	g, err := c.inner.FetchGrid(ctx, run, variable, hour, box)
	if err != nil {
		return g, err
	}
	// Empty grids usually mean the run is still being written; let them be retried.
	if !g.Empty() {
		c.cache.put(key, g)
	}
	return g, nil
}

// Len reports the number of cached grids.
func (c *CachedFetcher) Len() int {
	return c.cache.size()
}

// lruCache is a simple thread-safe LRU cache for grids.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.Grid
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.Grid, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Grid{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.Grid) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
