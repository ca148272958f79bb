package crawl

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultRevisionCacheSize is the default number of item revisions
// remembered between crawls in one process.
const DefaultRevisionCacheSize = 10000

// RevisionCache remembers the last committed revision of each item so
// unchanged items are not rebuilt in watch mode. A nil *RevisionCache is
// valid and remembers nothing.
type RevisionCache struct {
	cache *lru.Cache[string, string]
}

// NewRevisionCache creates a cache holding up to size items. A size of
// zero or less returns nil, which disables caching.
func NewRevisionCache(size int) *RevisionCache {
	if size <= 0 {
		return nil
	}
	cache, _ := lru.New[string, string](size)
	return &RevisionCache{cache: cache}
}

// Unchanged reports whether itemID was committed at revision. Items
// without a revision are never considered unchanged.
func (c *RevisionCache) Unchanged(itemID, revision string) bool {
	if c == nil || revision == "" {
		return false
	}
	rev, ok := c.cache.Get(itemID)
	return ok && rev == revision
}

// Remember records that itemID was committed at revision.
func (c *RevisionCache) Remember(itemID, revision string) {
	if c == nil || revision == "" {
		return
	}
	c.cache.Add(itemID, revision)
}

// Forget drops itemID, forcing the next crawl to rebuild it.
func (c *RevisionCache) Forget(itemID string) {
	if c == nil {
		return
	}
	c.cache.Remove(itemID)
}

// Len returns the number of remembered items.
func (c *RevisionCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
