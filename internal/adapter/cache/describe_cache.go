package cache

import (
	"sync"
	"time"

	"vecbind/internal/domain"
)

// DescribeCache keeps recent describe results per binding. Entries expire
// after the TTL and are dropped when their binding is written to.
type DescribeCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	details   domain.IndexDetails
	timestamp time.Time
}

func NewDescribeCache(maxSize int, ttl time.Duration) *DescribeCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &DescribeCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached details of a binding. The expiry check and the
// recency update happen under one lock so a concurrent Invalidate cannot
// leave a name in order without an entry.
func (c *DescribeCache) Get(name string) (domain.IndexDetails, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[name]
	if !exists {
		return domain.IndexDetails{}, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl {
		delete(c.entries, name)
		c.removeFromOrder(name)
		return domain.IndexDetails{}, false
	}

	c.moveToEnd(name)

	return entry.details, true
}

func (c *DescribeCache) Put(name string, details domain.IndexDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[name]; exists {
		c.entries[name] = &cacheEntry{details: details, timestamp: c.now()}
		c.moveToEnd(name)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[name] = &cacheEntry{details: details, timestamp: c.now()}
	c.order = append(c.order, name)
}

// Invalidate drops the entry of one binding.
func (c *DescribeCache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, name)
	c.removeFromOrder(name)
}

func (c *DescribeCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *DescribeCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *DescribeCache) moveToEnd(name string) {
	c.removeFromOrder(name)
	c.order = append(c.order, name)
}

func (c *DescribeCache) removeFromOrder(name string) {
	for i, k := range c.order {
		if k == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
