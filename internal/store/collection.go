// SPDX-License-Identifier: MPL-2.0

package store

import "slices"

type (
	// Collection holds at most one value per key.
	Collection[K comparable, V any] struct {
		keys   []K
		values map[K]V
	}

	// MultiCollection holds any number of values per key, in the order they
	// were added. Bindings contributed redundantly by several packages share
	// a UUID and are kept side by side here.
	MultiCollection[K comparable, V any] struct {
		keys   []K
		values map[K][]V
	}
)

// NewCollection creates an empty Collection.
func NewCollection[K comparable, V any]() *Collection[K, V] {
	return &Collection[K, V]{values: make(map[K]V)}
}

// Set stores v under k. A new key is appended to the iteration order; an
// existing key keeps its position.
func (c *Collection[K, V]) Set(k K, v V) {
	if _, ok := c.values[k]; !ok {
		c.keys = append(c.keys, k)
	}
	c.values[k] = v
}

// Get returns the value stored under k.
func (c *Collection[K, V]) Get(k K) (V, bool) {
	v, ok := c.values[k]
	return v, ok
}

// Contains reports whether k is present.
func (c *Collection[K, V]) Contains(k K) bool {
	_, ok := c.values[k]
	return ok
}

// Remove deletes k and reports whether it was present.
func (c *Collection[K, V]) Remove(k K) bool {
	if _, ok := c.values[k]; !ok {
		return false
	}
	delete(c.values, k)
	c.keys = slices.DeleteFunc(c.keys, func(key K) bool { return key == k })
	return true
}

// Len returns the number of keys.
func (c *Collection[K, V]) Len() int {
	return len(c.keys)
}

// Keys returns the keys in insertion order.
func (c *Collection[K, V]) Keys() []K {
	return slices.Clone(c.keys)
}

// Values returns the values in key insertion order.
func (c *Collection[K, V]) Values() []V {
	out := make([]V, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.values[k])
	}
	return out
}

// Clear removes every entry.
func (c *Collection[K, V]) Clear() {
	c.keys = nil
	c.values = make(map[K]V)
}

// NewMultiCollection creates an empty MultiCollection.
func NewMultiCollection[K comparable, V any]() *MultiCollection[K, V] {
	return &MultiCollection[K, V]{values: make(map[K][]V)}
}

// Add appends v to the values stored under k.
func (c *MultiCollection[K, V]) Add(k K, v V) {
	if _, ok := c.values[k]; !ok {
		c.keys = append(c.keys, k)
	}
	c.values[k] = append(c.values[k], v)
}

// List returns the values stored under k in insertion order.
func (c *MultiCollection[K, V]) List(k K) []V {
	return slices.Clone(c.values[k])
}

// First returns the earliest value stored under k.
func (c *MultiCollection[K, V]) First(k K) (V, bool) {
	vs := c.values[k]
	if len(vs) == 0 {
		var zero V
		return zero, false
	}
	return vs[0], true
}

// Count returns how many values are stored under k.
func (c *MultiCollection[K, V]) Count(k K) int {
	return len(c.values[k])
}

// Contains reports whether any value is stored under k.
func (c *MultiCollection[K, V]) Contains(k K) bool {
	return len(c.values[k]) > 0
}

// RemoveFunc deletes the values under k for which drop returns true and
// returns them. The key disappears once its last value is removed.
func (c *MultiCollection[K, V]) RemoveFunc(k K, drop func(V) bool) []V {
	vs, ok := c.values[k]
	if !ok {
		return nil
	}

	var removed, kept []V
	for _, v := range vs {
		if drop(v) {
			removed = append(removed, v)
		} else {
			kept = append(kept, v)
		}
	}

	if len(kept) == 0 {
		delete(c.values, k)
		c.keys = slices.DeleteFunc(c.keys, func(key K) bool { return key == k })
	} else {
		c.values[k] = kept
	}
	return removed
}

// RemoveAll deletes every value under k and returns them.
func (c *MultiCollection[K, V]) RemoveAll(k K) []V {
	return c.RemoveFunc(k, func(V) bool { return true })
}

// Keys returns the keys in insertion order.
func (c *MultiCollection[K, V]) Keys() []K {
	return slices.Clone(c.keys)
}

// All returns every value, grouped by key in key insertion order.
func (c *MultiCollection[K, V]) All() []V {
	var out []V
	for _, k := range c.keys {
		out = append(out, c.values[k]...)
	}
	return out
}

// Len returns the total number of values.
func (c *MultiCollection[K, V]) Len() int {
	n := 0
	for _, vs := range c.values {
		n += len(vs)
	}
	return n
}
