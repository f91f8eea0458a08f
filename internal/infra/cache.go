package infra

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// Cache size limits to prevent unbounded memory growth
const (
	DefaultMaxCacheEntries = 1000            // Maximum number of cache entries
	DefaultCacheCleanup    = 5 * time.Minute // How often to run cache cleanup
)

type cacheEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is an LRU cache with per-entry TTL. It is safe for concurrent use.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	now        func() time.Time

	onAccess func(hit bool)
	onEvict  func(n int)

	stopCh   chan struct{}
	stopOnce sync.Once
}

// CacheHooks receive cache events, typically to feed metrics.
type CacheHooks struct {
	OnAccess func(hit bool)
	OnEvict  func(n int)
}

// NewCache creates a cache holding at most maxEntries values and starts its
// background cleanup loop. Call Close to stop it.
func NewCache[V any](maxEntries int) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxCacheEntries
	}
	c := &Cache[V]{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// SetHooks installs event callbacks. Not safe to call concurrently with other methods.
func (c *Cache[V]) SetHooks(h CacheHooks) {
	c.onAccess = h.OnAccess
	c.onEvict = h.OnEvict
}

// Get retrieves a cached value if it exists and hasn't expired
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		c.access(false)
		return zero, false
	}
	e := el.Value.(*cacheEntry[V])
	if !c.now().Before(e.expiresAt) {
		c.removeElement(el)
		c.access(false)
		return zero, false
	}
	c.order.MoveToFront(el)
	c.access(true)
	return e.value, true
}

// Set stores a value in the cache with the specified TTL
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*cacheEntry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry[V]{key: key, value: value, expiresAt: expiresAt})

	evicted := 0
	for len(c.entries) > c.maxEntries {
		c.removeElement(c.order.Back())
		evicted++
	}
	if evicted > 0 && c.onEvict != nil {
		c.onEvict(evicted)
	}
}

// Delete removes a key from the cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
}

// DeletePrefix removes all cache entries with keys starting with prefix
func (c *Cache[V]) DeletePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, el := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeElement(el)
		}
	}
}

// Size returns the current number of entries in the cache
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background cleanup goroutine
func (c *Cache[V]) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

func (c *Cache[V]) cleanupLoop() {
	ticker := time.NewTicker(DefaultCacheCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup drops expired entries.
func (c *Cache[V]) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, el := range c.entries {
		if !now.Before(el.Value.(*cacheEntry[V]).expiresAt) {
			c.removeElement(el)
		}
	}
}

// removeElement must be called with mu held.
func (c *Cache[V]) removeElement(el *list.Element) {
	e := c.order.Remove(el).(*cacheEntry[V])
	delete(c.entries, e.key)
}

func (c *Cache[V]) access(hit bool) {
	if c.onAccess != nil {
		c.onAccess(hit)
	}
}
