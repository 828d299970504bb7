package selector

import "sync"

// cacheKey identifies one analysis result. The version tag invalidates
// entries when scoring rules change between releases.
type cacheKey struct {
	path    string
	style   string
	preset  string
	mode    Mode
	version string
}

// resultCache is a per-process whole-value cache. Entries are inserted
// complete; readers never observe partial results. There is no TTL.
type resultCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*Result
}

func newResultCache() *resultCache {
	return &resultCache{entries: make(map[cacheKey]*Result)}
}

func (c *resultCache) get(key cacheKey) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	return r, ok
}

func (c *resultCache) put(key cacheKey, r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = r
}

func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*Result)
}

func (c *resultCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
