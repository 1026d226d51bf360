package service

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// recentCache keeps recently served listing pages per owner. A save by an
// owner drops all of that owner's pages and bumps the owner's generation, so
// a page read from the store before the save is never cached after it.
//
// The cache is local to the process; with several replicas a save on one
// instance does not invalidate the others.
type recentCache struct {
	cache *cache.Cache

	mu   sync.Mutex
	gens map[string]uint64
}

// newRecentCache returns nil when ttl is not positive, which disables caching.
func newRecentCache(ttl time.Duration) *recentCache {
	if ttl <= 0 {
		return nil
	}
	return &recentCache{cache: cache.New(ttl, 2*ttl), gens: map[string]uint64{}}
}

func recentKey(ownerID string, limit, offset int) string {
	return fmt.Sprintf("%s|%d|%d", ownerID, limit, offset)
}

func (c *recentCache) get(ownerID string, limit, offset int) (*RecentResult, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.cache.Get(recentKey(ownerID, limit, offset))
	if !ok {
		return nil, false
	}
	res, ok := v.(*RecentResult)
	return res, ok
}

// generation returns the owner's current generation. Take it before reading
// the store and hand it to set.
func (c *recentCache) generation(ownerID string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[ownerID]
}

// set stores res unless the owner was invalidated since gen was taken.
func (c *recentCache) set(ownerID string, gen uint64, limit, offset int, res *RecentResult) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[ownerID] != gen {
		return
	}
	c.cache.SetDefault(recentKey(ownerID, limit, offset), res)
}

func (c *recentCache) invalidate(ownerID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[ownerID]++
	prefix := ownerID + "|"
	for k := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
		}
	}
}
