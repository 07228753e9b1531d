// ABOUTME: TTL and capacity bounded score cache keyed by user and contact
// ABOUTME: Entries expire after a TTL or when the contact's engagement marker moves
package scoring

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/harperreed/kith/metrics"
)

const (
	DefaultCacheTTL      = 5 * time.Minute
	DefaultCacheCapacity = 500

	evictFraction = 0.2
)

type cacheEntry[V any] struct {
	value    V
	cachedAt time.Time
	marker   string
}

// Cache holds one score type. Entries are immutable and replaced whole on Set.
type Cache[V any] struct {
	name     string
	ttl      time.Duration
	capacity int
	now      func() time.Time

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry[V]
}

// CacheOption configures a Cache.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	name string
	now  func() time.Time
}

// WithCacheName labels the cache in metrics.
func WithCacheName(name string) CacheOption {
	return func(c *cacheConfig) { c.name = name }
}

// WithCacheClock overrides the clock, for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *cacheConfig) { c.now = now }
}

// NewCache creates a cache. Non-positive ttl or capacity fall back to defaults.
func NewCache[V any](ttl time.Duration, capacity int, opts ...CacheOption) *Cache[V] {
	cfg := cacheConfig{name: "score", now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache[V]{
		name:     cfg.name,
		ttl:      ttl,
		capacity: capacity,
		now:      cfg.now,
		entries:  make(map[cacheKey]cacheEntry[V]),
	}
}

// cacheKey keeps user and contact apart so no id can alias another user's entries.
type cacheKey struct {
	user    string
	contact string
}

func (k cacheKey) less(o cacheKey) bool {
	if k.user != o.user {
		return k.user < o.user
	}
	return k.contact < o.contact
}

// Get returns the cached value when it is younger than the TTL and was stored
// under the same engagement marker. Stale entries are evicted.
func (c *Cache[V]) Get(userID, contactID, marker string) (V, bool) {
	key := cacheKey{user: userID, contact: contactID}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()
		var zero V
		return zero, false
	}

	if c.now().Sub(entry.cachedAt) >= c.ttl || entry.marker != marker {
		c.mu.Lock()
		// Only drop the entry we judged stale; a concurrent Set may have replaced it.
		if cur, ok := c.entries[key]; ok && cur.cachedAt.Equal(entry.cachedAt) {
			delete(c.entries, key)
			metrics.CacheEvictions.WithLabelValues(c.name, "stale").Inc()
		}
		c.mu.Unlock()
		metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()
		var zero V
		return zero, false
	}

	metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
	return entry.value, true
}

// Set stores a value, evicting the oldest fifth of entries when over capacity.
func (c *Cache[V]) Set(userID, contactID, marker string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey{user: userID, contact: contactID}] = cacheEntry[V]{
		value:    value,
		cachedAt: c.now(),
		marker:   marker,
	}

	if len(c.entries) > c.capacity {
		c.evictOldestLocked()
	}
}

func (c *Cache[V]) evictOldestLocked() {
	type aged struct {
		key      cacheKey
		cachedAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{key: k, cachedAt: e.cachedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].cachedAt.Equal(all[j].cachedAt) {
			return all[i].key.less(all[j].key)
		}
		return all[i].cachedAt.Before(all[j].cachedAt)
	})

	n := int(math.Ceil(float64(len(all)) * evictFraction))
	for _, a := range all[:n] {
		delete(c.entries, a.key)
	}
	metrics.CacheEvictions.WithLabelValues(c.name, "capacity").Add(float64(n))
}

// Invalidate drops the entry for one contact.
func (c *Cache[V]) Invalidate(userID, contactID string) {
	c.mu.Lock()
	delete(c.entries, cacheKey{user: userID, contact: contactID})
	c.mu.Unlock()
}

// InvalidateAll drops every entry belonging to a user.
func (c *Cache[V]) InvalidateAll(userID string) {
	c.mu.Lock()
	for k := range c.entries {
		if k.user == userID {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Len returns the number of entries, stale or not.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
