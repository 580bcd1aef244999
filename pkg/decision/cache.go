package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/tenantguard/iamcore/pkg/rbac"
)

// Cache stores resolved permission sets keyed by principal.
type Cache interface {
	Get(ctx context.Context, key string) (rbac.PermissionSet, bool)
	Set(ctx context.Context, key string, set rbac.PermissionSet)
	Delete(ctx context.Context, key string)
}

// LRUCache is an in-process TTL-bounded cache.
type LRUCache struct {
	lru *expirable.LRU[string, rbac.PermissionSet]
}

// NewLRUCache creates an LRU permission cache holding up to size entries
// for at most ttl each.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: expirable.NewLRU[string, rbac.PermissionSet](size, nil, ttl)}
}

// Get retrieves a cached permission set.
func (c *LRUCache) Get(_ context.Context, key string) (rbac.PermissionSet, bool) {
	return c.lru.Get(key)
}

// Set stores a permission set.
func (c *LRUCache) Set(_ context.Context, key string, set rbac.PermissionSet) {
	c.lru.Add(key, set)
}

// Delete evicts a key.
func (c *LRUCache) Delete(_ context.Context, key string) {
	c.lru.Remove(key)
}

// CachedSource wraps a PermissionSource with a cache and collapses
// concurrent resolutions of the same principal into one underlying call.
type CachedSource struct {
	inner PermissionSource
	cache Cache
	group singleflight.Group
}

// NewCachedSource wraps inner with the given cache.
func NewCachedSource(inner PermissionSource, cache Cache) *CachedSource {
	return &CachedSource{inner: inner, cache: cache}
}

func cacheKey(principalID int64) string {
	return fmt.Sprintf("perms:%d", principalID)
}

// EffectivePermissionsFor resolves through the cache. Locked or inactive
// principals bypass it entirely so a lock takes effect immediately.
func (c *CachedSource) EffectivePermissionsFor(ctx context.Context, principal *rbac.Principal) (rbac.PermissionSet, error) {
	if principal == nil || !principal.Active || principal.Locked {
		return c.inner.EffectivePermissionsFor(ctx, principal)
	}

	key := cacheKey(principal.ID)
	if set, ok := c.cache.Get(ctx, key); ok {
		observeCache(true)
		return set, nil
	}
	observeCache(false)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		set, err := c.inner.EffectivePermissionsFor(ctx, principal)
		if err != nil {
			return nil, err
		}
		c.cache.Set(ctx, key, set)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(rbac.PermissionSet), nil
}

// Invalidate drops the cached set for a principal. Call after any role or
// group mutation affecting them.
func (c *CachedSource) Invalidate(ctx context.Context, principalID int64) {
	c.cache.Delete(ctx, cacheKey(principalID))
}
