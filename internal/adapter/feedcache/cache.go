// Package feedcache decorates a feed fetcher with an in-memory TTL cache so
// repeated pipeline runs within the feeds' update cadence reuse one download.
package feedcache

import (
	"context"
	"sync"
	"time"

	"github.com/toastytimes/climate-series-service/internal/config"
	"github.com/toastytimes/climate-series-service/internal/domain"
	"github.com/toastytimes/climate-series-service/internal/observability"
)

// Fetcher is the feed contract this package decorates.
type Fetcher interface {
	Fetch(ctx context.Context, src config.Source) ([]domain.RawPoint, error)
}

// CachedFetcher wraps a Fetcher with an LRU cache whose entries expire after
// a TTL. Each hit returns a fresh deep copy so callers never share mutable
// point slices.
type CachedFetcher struct {
	inner   Fetcher
	cache   *lruCache
	ttl     time.Duration
	metrics *observability.Metrics
}

// New creates a cache decorator around a fetcher.
func New(inner Fetcher, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *CachedFetcher {
	return &CachedFetcher{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		ttl:     ttl,
		metrics: metrics,
	}
}

// Fetch returns cached points when present and fresh, otherwise delegates to
// the inner fetcher. Fetch errors are never cached so transient feed outages
// can be retried.
func (c *CachedFetcher) Fetch(ctx context.Context, src config.Source) ([]domain.RawPoint, error) {
	key := src.ID + "|" + src.URL

	if points, fetchedAt, ok := c.cache.get(key); ok {
		if domain.Now().Sub(fetchedAt) < c.ttl {
			c.metrics.FetchCache.WithLabelValues("hit").Inc()
			return clonePoints(points), nil
		}
		c.metrics.FetchCache.WithLabelValues("expired").Inc()
	} else {
		c.metrics.FetchCache.WithLabelValues("miss").Inc()
	}

	points, err := c.inner.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, clonePoints(points), domain.Now())
	return points, nil
}

func clonePoints(points []domain.RawPoint) []domain.RawPoint {
	out := make([]domain.RawPoint, len(points))
	for i, p := range points {
		out[i] = domain.RawPoint{Date: p.Date}
		if p.Value != nil {
			out[i].Value = domain.Float64(*p.Value)
		}
	}
	return out
}

// lruCache is a small thread-safe LRU for fetched point slices.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	points    []domain.RawPoint
	fetchedAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.RawPoint, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, time.Time{}, false
	}
	c.moveToFront(e)
	return e.points, e.fetchedAt, true
}

func (c *lruCache) put(key string, points []domain.RawPoint, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.points = points
		e.fetchedAt = fetchedAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, points: points, fetchedAt: fetchedAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
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
