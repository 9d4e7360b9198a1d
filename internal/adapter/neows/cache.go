package neows

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/neo-risk-service/internal/domain"
)

// windowFetcher is the subset of Client the cache decorates.
type windowFetcher interface {
	FetchWindow(ctx context.Context, start, end time.Time) ([]domain.RawObject, error)
}

// CachedFeed wraps a feed client with a small LRU of recent windows. Entries
// expire after ttl; failures are never cached so the next call retries.
type CachedFeed struct {
	inner windowFetcher
	ttl   time.Duration
	clock clockwork.Clock
	cache *lruCache
}

// NewCachedFeed creates a cache decorator around a feed client.
func NewCachedFeed(inner windowFetcher, maxEntries int, ttl time.Duration, clock clockwork.Clock) *CachedFeed {
	return &CachedFeed{
		inner: inner,
		ttl:   ttl,
		clock: clock,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedFeed) FetchWindow(ctx context.Context, start, end time.Time) ([]domain.RawObject, error) {
	key := start.Format(DateLayout) + "|" + end.Format(DateLayout)
	now := c.clock.Now()
	if objects, ok := c.cache.get(key, now); ok {
		return append([]domain.RawObject(nil), objects...), nil
	}

	objects, err := c.inner.FetchWindow(ctx, start, end)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, objects, now.Add(c.ttl))
	return append([]domain.RawObject(nil), objects...), nil
}

// lruCache is a thread-safe LRU of feed windows with per-entry expiry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key     string
	objects []domain.RawObject
	expires time.Time
	prev    *entry
	next    *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string, now time.Time) ([]domain.RawObject, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !now.Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return nil, false
	}
	c.moveToFront(e)
	return e.objects, true
}

func (c *lruCache) put(key string, objects []domain.RawObject, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.objects = objects
		e.expires = expires
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, objects: objects, expires: expires}
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
	e.prev, e.next = nil, nil
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
