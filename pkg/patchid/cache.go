package patchid

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
)

// DefaultCacheSize is the number of patch ids a Cache keeps by default.
const DefaultCacheSize = 4096

// Source provides raw commit patches.
type Source interface {
	Patch(ctx context.Context, hash gitlib.Hash) ([]byte, error)
}

// Cache memoizes patch ids per commit. A pivot commit is compared against
// every later commit of its group, so each id is requested many times.
type Cache struct {
	source Source
	ids    *lru.Cache[gitlib.Hash, string]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a cache over source holding up to size ids. A non-positive
// size selects DefaultCacheSize.
func NewCache(source Source, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	ids, err := lru.New[gitlib.Hash, string](size)
	if err != nil {
		return nil, fmt.Errorf("create patch id cache: %w", err)
	}

	return &Cache{source: source, ids: ids}, nil
}

// Sum returns the patch id of a commit, reading its patch from the source on
// a miss.
func (c *Cache) Sum(ctx context.Context, hash gitlib.Hash) (string, error) {
	if id, ok := c.ids.Get(hash); ok {
		c.hits.Add(1)

		return id, nil
	}

	c.misses.Add(1)

	patch, err := c.source.Patch(ctx, hash)
	if err != nil {
		return "", fmt.Errorf("patch of %s: %w", hash.Short(), err)
	}

	id := Sum(patch)
	c.ids.Add(hash, id)

	return id, nil
}

// Hits returns the number of lookups served from the cache.
func (c *Cache) Hits() int64 {
	return c.hits.Load()
}

// Misses returns the number of lookups that read a patch.
func (c *Cache) Misses() int64 {
	return c.misses.Load()
}
