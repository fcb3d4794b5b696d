package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

var ErrInvalidCapacity = errors.New("cache capacity must be positive")

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.storedAt) >= e.ttl
}

// Cache is a concurrency safe key value store with LRU capacity eviction and
// lazy per entry expiry.
type Cache[K comparable, V any] struct {
	mx  sync.Mutex
	lru *simplelru.LRU[K, entry[V]]
	ttl time.Duration
}

// New creates a cache holding at most capacity entries. Entries stored by Set
// expire after ttl; ttl <= 0 means they never expire.
func New[K comparable, V any](capacity int, ttl time.Duration) (*Cache[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	lru, err := simplelru.NewLRU[K, entry[V]](capacity, nil)
	if err != nil {
		return nil, err
	}
	return &Cache[K, V]{lru: lru, ttl: ttl}, nil
}

// Get returns the value stored under key unless it is missing or expired.
// An expired entry is neither removed nor promoted.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	c.mx.Lock()
	defer c.mx.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok || e.expired(time.Now()) {
		return zero, false
	}
	c.lru.Get(key)
	return e.value, true
}

// Set stores value under key with the cache default ttl.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key, refreshing its expiry and marking it as
// the most recently used entry. It returns true when another entry was
// evicted to make room.
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.lru.Add(key, entry[V]{
		value:    value,
		storedAt: time.Now(),
		ttl:      ttl,
	})
}

// Invalidate removes key regardless of its expiry.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.lru.Remove(key)
}

func (c *Cache[K, V]) Clear() {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.lru.Purge()
}

// Len counts resident entries, expired ones included.
func (c *Cache[K, V]) Len() int {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.lru.Len()
}

// Keys returns resident keys from the least to the most recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.lru.Keys()
}
