package cache

import "sync"

// Cache is a fixed-capacity LRU cache. Entries leaving the cache, by
// eviction, Delete or Clear, are passed to the eviction callback so the
// caller can release resources they own.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]*lruNode[K, V]
	order    lruList[K, V]
	capacity int
	onEvict  func(K, V)

	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a cache holding at most capacity entries. A capacity below 1
// is treated as 1. onEvict may be nil.
func New[K comparable, V any](capacity int, onEvict func(K, V)) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		entries:  make(map[K]*lruNode[K, V], capacity),
		capacity: capacity,
		onEvict:  onEvict,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.MoveToFront(node)
	return node.value, true
}

// Put stores value under key. Replacing an existing value does not call the
// eviction callback for the old one.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	evicted := c.put(key, value)
	c.mu.Unlock()
	c.release(evicted)
}

// GetOrCreate returns the cached value for key, or stores the result of
// create. A create error is returned and nothing is stored.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	if node, ok := c.entries[key]; ok {
		c.hits++
		c.order.MoveToFront(node)
		c.mu.Unlock()
		return node.value, nil
	}
	c.misses++
	c.mu.Unlock()

	value, err := create()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	evicted := c.put(key, value)
	c.mu.Unlock()
	c.release(evicted)
	return value, nil
}

// Delete removes key and passes its value to the eviction callback.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	node, ok := c.entries[key]
	if ok {
		c.order.Remove(node)
		delete(c.entries, key)
	}
	c.mu.Unlock()
	if ok {
		c.release([]*lruNode[K, V]{node})
	}
	return ok
}

// Clear removes every entry, oldest first.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	var all []*lruNode[K, V]
	for node := c.order.RemoveOldest(); node != nil; node = c.order.RemoveOldest() {
		all = append(all, node)
	}
	c.entries = make(map[K]*lruNode[K, V], c.capacity)
	c.mu.Unlock()
	c.release(all)
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the maximum number of entries.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Len:       len(c.entries),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// put must be called with c.mu held. It returns the nodes evicted to make
// room, for release outside the lock.
func (c *Cache[K, V]) put(key K, value V) []*lruNode[K, V] {
	if node, ok := c.entries[key]; ok {
		node.value = value
		c.order.MoveToFront(node)
		return nil
	}
	c.entries[key] = c.order.PushFront(key, value)

	var evicted []*lruNode[K, V]
	for len(c.entries) > c.capacity {
		node := c.order.RemoveOldest()
		delete(c.entries, node.key)
		c.evictions++
		evicted = append(evicted, node)
	}
	return evicted
}

func (c *Cache[K, V]) release(nodes []*lruNode[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, n := range nodes {
		c.onEvict(n.key, n.value)
	}
}

// Stats reports cache occupancy and effectiveness.
type Stats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	HitRate   float64
	Evictions uint64
}
