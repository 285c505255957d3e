package dca

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultCacheTTL is how long a CachedStore keeps a read.
const DefaultCacheTTL = 5 * time.Minute

// CachedStore is a Store that caches the reads of another Store.
//
// Every write of an owner invalidates all the cached reads of that owner. A
// read that overlaps a write of its owner is returned but not cached.
type CachedStore struct {
	Store
	cache *cache.Cache

	mu  sync.Mutex
	gen map[string]uint64 // writes per owner
}

// NewCachedStore caches reads of s for ttl. A zero ttl means DefaultCacheTTL.
func NewCachedStore(s Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{Store: s, cache: cache.New(ttl, 2*ttl), gen: make(map[string]uint64)}
}

func ownerPrefix(owner string) string { return fmt.Sprintf("%q/", owner) }

func (c *CachedStore) Find(ctx context.Context, owner string, page Page) (PageResult, error) {
	page = page.Normalize()
	key := fmt.Sprintf("%spage/%d/%d", ownerPrefix(owner), page.Number, page.Size)
	if v, ok := c.cache.Get(key); ok {
		r := v.(PageResult)
		r.Rows = slices.Clone(r.Rows)
		return r, nil
	}
	gen := c.generation(owner)
	r, err := c.Store.Find(ctx, owner, page)
	if err != nil {
		return r, err
	}
	cached := r
	cached.Rows = slices.Clone(r.Rows)
	c.set(owner, gen, key, cached)
	return r, nil
}

func (c *CachedStore) Summary(ctx context.Context, owner string) (Summary, error) {
	key := ownerPrefix(owner) + "summary"
	if v, ok := c.cache.Get(key); ok {
		return v.(Summary), nil
	}
	gen := c.generation(owner)
	s, err := c.Store.Summary(ctx, owner)
	if err != nil {
		return s, err
	}
	c.set(owner, gen, key, s)
	return s, nil
}

func (c *CachedStore) Insert(ctx context.Context, tx Transaction) (Transaction, error) {
	defer c.invalidate(tx.Owner)
	return c.Store.Insert(ctx, tx)
}

func (c *CachedStore) Update(ctx context.Context, tx Transaction) (Transaction, error) {
	defer c.invalidate(tx.Owner)
	return c.Store.Update(ctx, tx)
}

func (c *CachedStore) Delete(ctx context.Context, owner, id string) error {
	defer c.invalidate(owner)
	return c.Store.Delete(ctx, owner, id)
}

func (c *CachedStore) generation(owner string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[owner]
}

// set caches v unless owner was written since generation gen was read.
func (c *CachedStore) set(owner string, gen uint64, key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[owner] == gen {
		c.cache.SetDefault(key, v)
	}
}

// invalidate drops every cached read of owner.
func (c *CachedStore) invalidate(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[owner]++
	prefix := ownerPrefix(owner)
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
}
