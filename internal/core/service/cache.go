package service

import (
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/kubedash/kubedash-go/pkg/cmap"
)

// DefaultCacheTTL is how long a successful GET result is served from cache.
const DefaultCacheTTL = 30 * time.Second

type cacheEntry struct {
	result    *Result
	timestamp time.Time
}

// ResponseCache holds successful GET results for a fixed TTL. Entries
// are evicted lazily when read after they go stale.
//
// Every Clear and InvalidateURLPrefix starts a new generation. SetAt
// drops results fetched under an older generation, so a flush also
// covers requests that were in flight when it happened.
type ResponseCache struct {
	entries *cmap.Map[cacheEntry]
	ttl     time.Duration
	clock   clock.PassiveClock

	mu  sync.RWMutex // write-locked while the generation changes
	gen uint64
}

// NewResponseCache creates an empty cache. A non-positive ttl selects
// DefaultCacheTTL.
func NewResponseCache(ttl time.Duration, clk clock.PassiveClock) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &ResponseCache{
		entries: cmap.New[cacheEntry](),
		ttl:     ttl,
		clock:   clk,
	}
}

// Get returns the cached result for key while it is younger than the TTL.
func (c *ResponseCache) Get(key string) (*Result, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if c.clock.Since(e.timestamp) >= c.ttl {
		c.entries.Delete(key)
		return nil, false
	}
	r := *e.result
	return &r, true
}

// Set stores r under key, stamped with the current time.
func (c *ResponseCache) Set(key string, r *Result) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.store(key, r)
}

// SetAt stores r under key only while the cache is still at generation
// gen, and reports whether it did.
func (c *ResponseCache) SetAt(gen uint64, key string, r *Result) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.gen != gen {
		return false
	}
	c.store(key, r)
	return true
}

func (c *ResponseCache) store(key string, r *Result) {
	stored := *r
	c.entries.Set(key, cacheEntry{result: &stored, timestamp: c.clock.Now()})
}

// Generation returns the current generation.
func (c *ResponseCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// Clear drops every entry and returns how many were dropped.
func (c *ResponseCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	n := c.entries.Count()
	c.entries.Clear()
	return n
}

// InvalidateURLPrefix drops entries whose request URL starts with prefix.
func (c *ResponseCache) InvalidateURLPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.entries.DeleteFunc(func(key string, _ cacheEntry) bool {
		_, rest, ok := strings.Cut(key, "_")
		return ok && strings.HasPrefix(rest, prefix)
	})
}

// Len returns the number of entries, including stale ones not yet evicted.
func (c *ResponseCache) Len() int {
	return c.entries.Count()
}

// TTL returns the cache lifetime.
func (c *ResponseCache) TTL() time.Duration {
	return c.ttl
}
