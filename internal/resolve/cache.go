package resolve

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedExister memoizes existence probes within a run. Call Purge before
// each run.
type CachedExister struct {
	inner Exister
	cache *lru.Cache[string, bool]
}

// NewCachedExister wraps inner with an LRU of the given size.
func NewCachedExister(inner Exister, size int) (*CachedExister, error) {
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[string, bool](size)
	if err != nil {
		return nil, err
	}
	return &CachedExister{inner: inner, cache: cache}, nil
}

// Exists returns the cached answer or probes inner.
func (c *CachedExister) Exists(path string) bool {
	if ok, hit := c.cache.Get(path); hit {
		return ok
	}
	ok := c.inner.Exists(path)
	c.cache.Add(path, ok)
	return ok
}

// Purge drops every cached answer.
func (c *CachedExister) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached paths.
func (c *CachedExister) Len() int {
	return c.cache.Len()
}
