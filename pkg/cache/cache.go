package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Options struct {
	TTL                  time.Duration
	StaleWhileRevalidate time.Duration
	// NegativeTTL keeps "not found" answers. Loader errors are never cached.
	NegativeTTL time.Duration
	MaxEntries  int
	// KeyFunc normalizes keys before lookup, e.g. case folding.
	KeyFunc func(string) string
}

type MetricsHooks struct {
	OnHit   func(labels map[string]string)
	OnMiss  func(labels map[string]string)
	OnStale func(labels map[string]string)
	OnStore func(labels map[string]string)
	OnError func(labels map[string]string)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
	staleAt   time.Time
	negative  bool
}

// Cache is a TTL cache with stale-while-revalidate, negative caching and
// singleflight-deduplicated loads.
type Cache[V any] struct {
	mu      sync.RWMutex
	items   map[string]*entry[V]
	order   []string
	opts    Options
	metrics MetricsHooks
	sf      singleflight.Group
}

func New[V any](opts Options, hooks MetricsHooks) *Cache[V] {
	return &Cache[V]{
		items:   make(map[string]*entry[V]),
		order:   make([]string, 0, 128),
		opts:    opts,
		metrics: hooks,
	}
}

// Loader resolves a key. ok=false with a nil error means the key has no
// value and may be cached as a negative entry.
type Loader[V any] func(ctx context.Context, key string) (V, bool, error)

type loadResult[V any] struct {
	val V
	ok  bool
	err error
}

func (c *Cache[V]) key(raw string) string {
	if c.opts.KeyFunc != nil {
		return c.opts.KeyFunc(raw)
	}
	return raw
}

// Get returns the cached value for key or loads it. The loader receives the
// caller's original key, not the normalized one.
func (c *Cache[V]) Get(ctx context.Context, rawKey string, loader Loader[V]) (V, bool, error) {
	var zero V
	key := c.key(rawKey)
	now := time.Now()
	c.mu.RLock()
	if e, ok := c.items[key]; ok {
		if now.Before(e.expiresAt) {
			c.mu.RUnlock()
			c.hook(c.metrics.OnHit, key)
			if e.negative {
				return zero, false, nil
			}
			return e.value, true, nil
		}
		if now.Before(e.staleAt) {
			c.hook(c.metrics.OnStale, key)
			go func() {
				_, _, _ = c.sf.Do("refresh:"+key, func() (interface{}, error) {
					c.refresh(context.WithoutCancel(ctx), key, rawKey, loader)
					return nil, nil
				})
			}()
			val, ok := e.value, !e.negative
			c.mu.RUnlock()
			return val, ok, nil
		}
		c.mu.RUnlock()
		c.Delete(rawKey)
	} else {
		c.mu.RUnlock()
	}

	c.hook(c.metrics.OnMiss, key)
	result, _, _ := c.sf.Do(key, func() (interface{}, error) {
		val, ok, err := loader(ctx, rawKey)
		c.store(key, val, ok, err)
		return loadResult[V]{val: val, ok: ok, err: err}, nil
	})
	res := result.(loadResult[V])
	if res.err != nil || !res.ok {
		return zero, false, res.err
	}
	return res.val, true, nil
}

func (c *Cache[V]) refresh(ctx context.Context, key, rawKey string, loader Loader[V]) {
	val, ok, err := loader(ctx, rawKey)
	c.store(key, val, ok, err)
}

func (c *Cache[V]) store(key string, val V, ok bool, err error) {
	if err != nil {
		c.hook(c.metrics.OnError, key)
		return
	}
	now := time.Now()
	e := &entry[V]{}
	if ok {
		e.value = val
		e.expiresAt = now.Add(c.opts.TTL)
		e.staleAt = e.expiresAt.Add(c.opts.StaleWhileRevalidate)
	} else {
		if c.opts.NegativeTTL <= 0 {
			return
		}
		e.negative = true
		e.expiresAt = now.Add(c.opts.NegativeTTL)
		e.staleAt = e.expiresAt
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = e
	c.evictIfNeeded()
	if c.metrics.OnStore != nil {
		c.metrics.OnStore(map[string]string{"key": key, "ok": boolStr(ok)})
	}
}

func (c *Cache[V]) hook(fn func(map[string]string), key string) {
	if fn != nil {
		fn(map[string]string{"key": key})
	}
}

func (c *Cache[V]) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// evictIfNeeded drops the oldest inserted keys once MaxEntries is exceeded.
func (c *Cache[V]) evictIfNeeded() {
	if c.opts.MaxEntries <= 0 || len(c.items) <= c.opts.MaxEntries {
		return
	}
	excess := len(c.items) - c.opts.MaxEntries
	for excess > 0 && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		delete(c.items, victim)
		excess--
	}
}

func (c *Cache[V]) Set(rawKey string, val V, ttl time.Duration) {
	key := c.key(rawKey)
	now := time.Now()
	e := &entry[V]{value: val, expiresAt: now.Add(ttl), staleAt: now.Add(ttl).Add(c.opts.StaleWhileRevalidate)}
	c.mu.Lock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = e
	c.evictIfNeeded()
	c.mu.Unlock()
}

// Peek returns a cached value without triggering a load. Stale entries are allowed.
func (c *Cache[V]) Peek(rawKey string) (V, bool) {
	var zero V
	key := c.key(rawKey)
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || time.Now().After(e.staleAt) || e.negative {
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) Delete(rawKey string) {
	key := c.key(rawKey)
	c.mu.Lock()
	delete(c.items, key)
	c.removeFromOrder(key)
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	c.items = make(map[string]*entry[V])
	c.order = c.order[:0]
	c.mu.Unlock()
}

// Len reports the number of stored entries, including negatives.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
