// Package cache holds live values keyed by id and expires the ones nobody
// has touched within the TTL.
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrClosed = errors.New("cache closed")

type item[V any] struct {
	value    V
	expireAt int64
}

// Cache is a TTL map. Get refreshes an item's expiry, so an item only
// expires after ttl of inactivity. It is safe for concurrent use.
type Cache[V any] struct {
	mu          sync.RWMutex
	cleanerOnce sync.Once
	cleanerCh   chan struct{}
	items       map[string]item[V]
	ttl         time.Duration
	now         func() time.Time
	onEvict     func(key string, value V)
	inShutdown  atomic.Bool
	closed      atomic.Bool
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithOnEvict registers fn to run for every item that expires or is deleted.
// fn runs without the cache lock held.
func WithOnEvict[V any](fn func(key string, value V)) Option[V] {
	return func(c *Cache[V]) {
		c.onEvict = fn
	}
}

// WithNowFunc overrides the clock.
func WithNowFunc[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		c.now = now
	}
}

// New starts a cache whose background cleaner runs every cleanupInterval.
// A non-positive interval disables the cleaner; expired items are then only
// dropped by Get or CleanExpired.
func New[V any](ttl, cleanupInterval time.Duration, opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		cleanerCh: make(chan struct{}),
		items:     make(map[string]item[V]),
		ttl:       ttl,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if cleanupInterval > 0 {
		go func() {
			ticker := time.NewTicker(cleanupInterval)
			defer ticker.Stop()

			for {
				select {
				case <-c.cleanerCh:
					return
				case <-ticker.C:
					c.CleanExpired()
				}
			}
		}()
	}
	return c
}

// Set stores value under key. After shutdown starts only existing keys can
// be updated.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.items[key]
	if c.inShutdown.Load() && !exists {
		return
	}

	c.items[key] = item[V]{
		value:    value,
		expireAt: c.now().Add(c.ttl).UnixNano(),
	}
}

// Get returns the value under key and extends its expiry.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	it, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		var zero V
		return zero, false
	}

	now := c.now()
	if now.UnixNano() > it.expireAt {
		delete(c.items, key)
		c.mu.Unlock()
		c.evict(key, it.value)
		var zero V
		return zero, false
	}

	it.expireAt = now.Add(c.ttl).UnixNano()
	c.items[key] = it
	c.mu.Unlock()
	return it.value, true
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	it, exists := c.items[key]
	delete(c.items, key)
	c.mu.Unlock()

	if exists {
		c.evict(key, it.value)
	}
	return exists
}

// Range calls fn for every unexpired item until fn returns false. fn runs
// on a snapshot, without the cache lock held, and does not refresh expiry.
func (c *Cache[V]) Range(fn func(key string, value V) bool) {
	now := c.now().UnixNano()

	c.mu.RLock()
	keys := make([]string, 0, len(c.items))
	values := make([]V, 0, len(c.items))
	for k, it := range c.items {
		if now > it.expireAt {
			continue
		}
		keys = append(keys, k)
		values = append(values, it.value)
	}
	c.mu.RUnlock()

	for i, k := range keys {
		if !fn(k, values[i]) {
			return
		}
	}
}

// Len is the number of stored items, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache[V]) IsEmpty() bool {
	return c.Len() == 0
}

// CleanExpired drops every expired item.
func (c *Cache[V]) CleanExpired() {
	now := c.now().UnixNano()

	c.mu.Lock()
	var expired []string
	var values []V
	for k, v := range c.items {
		if now > v.expireAt {
			expired = append(expired, k)
			values = append(values, v.value)
			delete(c.items, k)
		}
	}
	c.mu.Unlock()

	for i, k := range expired {
		c.evict(k, values[i])
	}
}

const shutdownIntervalMax = 500 * time.Millisecond

// Shutdown stops accepting new keys and waits until every item has expired
// or ctx is done.
func (c *Cache[V]) Shutdown(ctx context.Context) error {
	c.inShutdown.Store(true)
	c.closeCleaner()

	interval := time.Millisecond
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		c.CleanExpired()
		if c.IsEmpty() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval *= 2
			if interval > shutdownIntervalMax {
				interval = shutdownIntervalMax
			}
			timer.Reset(interval)
		}
	}
}

// Close stops the cleaner and evicts every item immediately. It may follow
// a Shutdown that ran out of time.
func (c *Cache[V]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	c.inShutdown.Store(true)
	c.closeCleaner()

	c.mu.Lock()
	items := c.items
	c.items = make(map[string]item[V])
	c.mu.Unlock()

	for k, v := range items {
		c.evict(k, v.value)
	}
	return nil
}

func (c *Cache[V]) evict(key string, value V) {
	if c.onEvict != nil {
		c.onEvict(key, value)
	}
}

func (c *Cache[V]) closeCleaner() {
	c.cleanerOnce.Do(func() {
		close(c.cleanerCh)
	})
}
