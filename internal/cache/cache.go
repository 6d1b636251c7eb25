// Package cache memoizes query results under content-addressed keys.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bluele/gcache"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is the LRU capacity used when none is configured.
const DefaultSize = 1024

// Key derives a cache key from the dataset identity, the operation name and
// its canonical parameters. Identical inputs always give the same key.
func Key(dataset, op string, params ...string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s", dataset, op)
	for _, p := range params {
		fmt.Fprintf(h, "\x00%s", p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cache is a bounded LRU of computed values. Concurrent misses on one key run
// the computation once.
type Cache struct {
	lru   gcache.Cache
	group singleflight.Group
}

func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache{lru: gcache.New(size).LRU().Build()}
}

// Len returns the number of stored entries.
func (c *Cache) Len() int { return c.lru.Len(false) }

// Purge drops every entry.
func (c *Cache) Purge() { c.lru.Purge() }

func (c *Cache) lookup(key string) (any, bool) {
	v, err := c.lru.Get(key)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Do returns the value stored under key, computing and storing it with fn on
// a miss. hit reports whether the value came from the cache. Errors from fn
// are returned to every waiting caller and never stored. A stored value is
// never overwritten.
//
// fn runs detached from the cancellation of whichever caller started it, so
// one caller giving up does not fail the others sharing the key. A caller
// whose own ctx ends stops waiting and gets ctx.Err().
func Do[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) (val T, hit bool, err error) {
	if v, ok := c.lookup(key); ok {
		return v.(T), true, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		computed, err := fn(detached)
		if err != nil {
			return nil, err
		}
		if err := c.lru.Set(key, computed); err != nil {
			return nil, fmt.Errorf("cache set: %w", err)
		}
		return computed, nil
	})

	select {
	case <-ctx.Done():
		return val, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return val, false, r.Err
		}
		return r.Val.(T), false, nil
	}
}
