// Package cache provides a memoizing, thread-safe key/value cache whose
// values are computed at most once per key by a bound producer function.
package cache

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Producer computes the value for a key on its first access.
type Producer[V any] func(ctx context.Context, key string) (V, error)

// ContractError reports a producer that returned a missing value.
type ContractError struct {
	Key string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("cache: producer returned a missing value for key %q", e.Key)
}

// Cache memoizes the values returned by its Producer. Concurrent callers of
// Get for the same uncached key block on a single producer invocation and
// share its result.
type Cache[V any] struct {
	mu       sync.Mutex
	items    map[string]V
	group    singleflight.Group
	producer Producer[V]
	metrics  *cacheMetrics
}

// New returns a Cache computing values with the provided producer.
func New[V any](producer Producer[V], opts ...Option) (*Cache[V], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[V]{
		items:    make(map[string]V),
		producer: producer,
	}
	if o.registerer != nil {
		m, err := newCacheMetrics(o.registerer, o.name)
		if err != nil {
			return nil, fmt.Errorf("cache %s: metrics registration: %w", o.name, err)
		}
		c.metrics = m
	}
	return c, nil
}

// Get returns the value for key, invoking the producer if the key has not
// been computed or seeded yet. Producer errors are returned and not cached.
// The producer keeps the values of ctx but not its cancellation, since its
// result is shared with every caller waiting on the same key.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, error) {
	if v, ok := c.lookup(key); ok {
		c.metrics.hit()
		return v, nil
	}
	c.metrics.miss()

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another flight may have stored the key since the lookup above
		if v, ok := c.lookup(key); ok {
			return v, nil
		}

		v, err := c.producer(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}
		c.metrics.produced()
		if isNil(v) {
			return nil, &ContractError{Key: key}
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if seeded, ok := c.items[key]; ok {
			return seeded, nil
		}
		c.items[key] = v
		c.metrics.size(len(c.items))
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// PutIfAbsent stores value for key unless the key already has a value. It
// reports whether the value was stored.
func (c *Cache[V]) PutIfAbsent(key string, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; ok {
		return false
	}
	c.items[key] = value
	c.metrics.size(len(c.items))
	return true
}

// Clear discards all entries, forcing the producer to run again on the next
// access of each key.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]V)
	c.metrics.size(0)
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

func (c *Cache[V]) lookup(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.items[key]
	return v, ok
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
