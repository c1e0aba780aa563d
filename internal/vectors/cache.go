package vectors

import (
	"container/list"
	"sync"
)

// Cache keeps recently used shards in memory with LRU eviction. Loading
// is delegated so a miss during search hits disk at most once per item.
type Cache struct {
	mu      sync.Mutex
	max     int
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	load    func(mediaID string) (*Shard, error)
}

type cacheEntry struct {
	mediaID string
	shard   *Shard
}

// NewCache creates a cache holding at most max shards. max values below
// one fall back to one.
func NewCache(max int, load func(mediaID string) (*Shard, error)) *Cache {
	if max < 1 {
		max = 1
	}
	return &Cache{
		max:     max,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		load:    load,
	}
}

// Get returns the shard of an item, loading it on a miss.
func (c *Cache) Get(mediaID string) (*Shard, error) {
	c.mu.Lock()
	if el, ok := c.entries[mediaID]; ok {
		c.order.MoveToFront(el)
		shard := el.Value.(*cacheEntry).shard
		c.mu.Unlock()
		return shard, nil
	}
	c.mu.Unlock()

	// Load outside the lock; concurrent misses may both read the file,
	// which is harmless.
	shard, err := c.load(mediaID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[mediaID]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*cacheEntry).shard, nil
	}
	c.entries[mediaID] = c.order.PushFront(&cacheEntry{mediaID: mediaID, shard: shard})
	for c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).mediaID)
	}
	return shard, nil
}

// Put inserts a freshly built shard, replacing any cached version.
func (c *Cache) Put(mediaID string, shard *Shard) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[mediaID]; ok {
		el.Value.(*cacheEntry).shard = shard
		c.order.MoveToFront(el)
		return
	}
	c.entries[mediaID] = c.order.PushFront(&cacheEntry{mediaID: mediaID, shard: shard})
	for c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).mediaID)
	}
}

// Invalidate drops an item's shard from the cache, e.g. after a
// re-index or deletion.
func (c *Cache) Invalidate(mediaID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[mediaID]; ok {
		c.order.Remove(el)
		delete(c.entries, mediaID)
	}
}

// Resize changes the cache capacity, evicting as needed.
func (c *Cache) Resize(max int) {
	if max < 1 {
		max = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.max = max
	for c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).mediaID)
	}
}

// Clear drops every cached shard.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of cached shards.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
