package loaders

import (
	"sync"
	"time"
)

// cacheEntry is one cached value with its expiry deadline.
type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *cacheEntry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// ttlCache is the per-loader cache: TTL expiry checked lazily on every get,
// a periodic sweep that removes expired entries, and insertion-order
// eviction (not LRU) once the cache exceeds maxSize. Each loader instance
// owns exactly one cache; caches are never shared.
type ttlCache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]*cacheEntry[V]

	// order records first-insertion order. Removed keys leave stale slots
	// behind; they are skipped during eviction and compacted by the sweep.
	order []string

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newTTLCache[V any](ttl time.Duration, maxSize int, sweepInterval time.Duration) *ttlCache[V] {
	c := &ttlCache[V]{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]*cacheEntry[V]),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.sweepLoop(sweepInterval)
	return c
}

// get returns the cached value for key if present and unexpired. An expired
// entry is removed on the spot, so a read never observes a value past TTL.
func (c *ttlCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if entry.expired(time.Now()) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return entry.value, true
}

// set stores a value with a fresh TTL. Re-setting an existing key keeps its
// original insertion position. Overflow is trimmed immediately so the cache
// never holds more than maxSize entries between sweeps.
func (c *ttlCache[V]) set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = &cacheEntry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.evictOverflowLocked()
}

func (c *ttlCache[V]) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// deleteWhere removes every entry whose key satisfies pred.
func (c *ttlCache[V]) deleteWhere(pred func(key string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if pred(key) {
			delete(c.entries, key)
		}
	}
}

func (c *ttlCache[V]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry[V])
	c.order = c.order[:0]
}

func (c *ttlCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// contains reports whether key is cached and unexpired, without touching
// expiry state.
func (c *ttlCache[V]) contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return ok && !entry.expired(time.Now())
}

// close stops the sweep goroutine. Safe to call more than once.
func (c *ttlCache[V]) close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	<-c.done
}

func (c *ttlCache[V]) sweepLoop(interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

// sweep removes expired entries, compacts the insertion-order index, and
// enforces maxSize on whatever survives.
func (c *ttlCache[V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
		}
	}

	compacted := c.order[:0]
	for _, key := range c.order {
		if _, ok := c.entries[key]; ok {
			compacted = append(compacted, key)
		}
	}
	c.order = compacted

	c.evictOverflowLocked()
}

// evictOverflowLocked drops the oldest-inserted surviving entries until the
// cache fits maxSize. Caller must hold c.mu.
func (c *ttlCache[V]) evictOverflowLocked() {
	if c.maxSize <= 0 {
		return
	}
	i := 0
	for len(c.entries) > c.maxSize && i < len(c.order) {
		key := c.order[i]
		i++
		if _, ok := c.entries[key]; ok {
			delete(c.entries, key)
		}
	}
	if i > 0 {
		c.order = c.order[i:]
	}
}
