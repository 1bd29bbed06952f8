package loaders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(ttl time.Duration, maxSize int) *ttlCache[string] {
	// A long sweep interval keeps the background loop out of the way;
	// tests that need a sweep call it directly.
	return newTTLCache[string](ttl, maxSize, time.Hour)
}

func TestCacheSetGet(t *testing.T) {
	c := newTestCache(time.Minute, 10)
	defer c.close()

	c.set("a", "1")
	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestCacheLazyExpiry(t *testing.T) {
	c := newTestCache(15*time.Millisecond, 10)
	defer c.close()

	c.set("a", "1")
	time.Sleep(25 * time.Millisecond)

	_, ok := c.get("a")
	assert.False(t, ok, "a read past TTL must miss even before any sweep runs")
	assert.Zero(t, c.len())
}

func TestCacheInsertionOrderEviction(t *testing.T) {
	c := newTestCache(time.Minute, 3)
	defer c.close()

	c.set("a", "1")
	c.set("b", "2")
	c.set("c", "3")
	c.set("d", "4")

	assert.Equal(t, 3, c.len())
	_, ok := c.get("a")
	assert.False(t, ok, "the oldest-inserted entry is evicted first")
	for _, key := range []string{"b", "c", "d"} {
		assert.True(t, c.contains(key), key)
	}
}

func TestCacheResetKeepsInsertionPosition(t *testing.T) {
	c := newTestCache(time.Minute, 2)
	defer c.close()

	c.set("a", "1")
	c.set("b", "2")
	c.set("a", "1-again") // refresh, not reinsertion
	c.set("c", "3")

	_, ok := c.get("a")
	assert.False(t, ok, "re-setting must not move a key to the back of the eviction order")
	assert.True(t, c.contains("b"))
	assert.True(t, c.contains("c"))
}

func TestCacheDeleteWhere(t *testing.T) {
	c := newTestCache(time.Minute, 10)
	defer c.close()

	c.set("node-1|A|out", "1")
	c.set("node-1|B|in", "2")
	c.set("node-2|A|out", "3")

	c.deleteWhere(func(key string) bool { return key[:7] == "node-1|" })
	assert.Equal(t, 1, c.len())
	assert.True(t, c.contains("node-2|A|out"))
}

func TestCacheClear(t *testing.T) {
	c := newTestCache(time.Minute, 10)
	defer c.close()

	c.set("a", "1")
	c.set("b", "2")
	c.clear()
	assert.Zero(t, c.len())

	// The cache stays usable after a clear.
	c.set("c", "3")
	assert.True(t, c.contains("c"))
}

func TestCacheSweepRemovesExpiredAndCompacts(t *testing.T) {
	c := newTestCache(15*time.Millisecond, 10)
	defer c.close()

	c.set("a", "1")
	c.set("b", "2")
	time.Sleep(25 * time.Millisecond)
	c.set("c", "3")

	c.sweep()
	assert.Equal(t, 1, c.len())
	assert.True(t, c.contains("c"))

	c.mu.Lock()
	order := len(c.order)
	c.mu.Unlock()
	assert.Equal(t, 1, order, "the sweep must compact stale order slots")
}

func TestCacheCloseStopsSweep(t *testing.T) {
	c := newTTLCache[string](time.Minute, 10, time.Millisecond)
	c.close()
	// close is idempotent and must not panic or deadlock.
	c.close()
}
