package permission

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// GrantCache memoizes role records by normalized name for a bounded time so
// the per-request decision does not hit the role store on every call.
type GrantCache struct {
	lru *expirable.LRU[string, Role]
}

// NewGrantCache returns a cache holding up to size roles for ttl. A
// non-positive size disables caching and returns nil; a nil cache is valid
// and never hits.
func NewGrantCache(size int, ttl time.Duration) *GrantCache {
	if size <= 0 {
		return nil
	}
	return &GrantCache{lru: expirable.NewLRU[string, Role](size, nil, ttl)}
}

// Lookup splits names into cached roles and names that still need loading.
func (c *GrantCache) Lookup(names []string) (hits []Role, misses []string) {
	if c == nil {
		return nil, names
	}
	for _, n := range names {
		if r, ok := c.lru.Get(NormalizeRoleName(n)); ok {
			hits = append(hits, r)
			continue
		}
		misses = append(misses, n)
	}
	return hits, misses
}

// Store records loaded roles.
func (c *GrantCache) Store(roles []Role) {
	if c == nil {
		return
	}
	for _, r := range roles {
		c.lru.Add(NormalizeRoleName(r.Name), r)
	}
}

// Purge drops every cached role. Called after any grant or role change.
func (c *GrantCache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

// Len returns the number of cached roles.
func (c *GrantCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
