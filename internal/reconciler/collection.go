// Package reconciler keeps local ordered collections in sync with docstore
// change streams.
package reconciler

import "github.com/anonto42/socialicon/internal/docstore"

// Event is a decoded change for one document.
type Event[T any] struct {
	Type docstore.ChangeType
	ID   string
	Item T
}

// Collection is an ordered list keyed by document id. Every operation is
// idempotent: an id appears at most once. It is not safe for concurrent
// use; the owning view serializes access.
type Collection[T any] struct {
	key   func(T) string
	items []T
	index map[string]int
}

// NewCollection creates an empty collection keyed by key
func NewCollection[T any](key func(T) string) *Collection[T] {
	return &Collection[T]{key: key, index: make(map[string]int)}
}

func (c *Collection[T]) Len() int { return len(c.items) }

// Items returns a copy of the ordered items
func (c *Collection[T]) Items() []T {
	return append([]T(nil), c.items...)
}

func (c *Collection[T]) Get(id string) (T, bool) {
	i, ok := c.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

func (c *Collection[T]) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Prepend inserts item at the front unless its id is already present.
func (c *Collection[T]) Prepend(item T) bool {
	if c.Has(c.key(item)) {
		return false
	}
	c.items = append([]T{item}, c.items...)
	c.reindex()
	return true
}

// Append inserts item at the end unless its id is already present.
func (c *Collection[T]) Append(item T) bool {
	id := c.key(item)
	if c.Has(id) {
		return false
	}
	c.index[id] = len(c.items)
	c.items = append(c.items, item)
	return true
}

// Replace swaps the stored item in place. Absent ids are ignored.
func (c *Collection[T]) Replace(item T) bool {
	i, ok := c.index[c.key(item)]
	if !ok {
		return false
	}
	c.items[i] = item
	return true
}

// Upsert replaces item in place or prepends it when absent.
func (c *Collection[T]) Upsert(item T) {
	if !c.Replace(item) {
		c.Prepend(item)
	}
}

// Remove deletes id. Absent ids are ignored.
func (c *Collection[T]) Remove(id string) bool {
	i, ok := c.index[id]
	if !ok {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.reindex()
	return true
}

// AppendPage appends a fetched page after the items already present,
// skipping ids already held. It returns how many items were added.
func (c *Collection[T]) AppendPage(items []T) int {
	n := 0
	for _, it := range items {
		if c.Append(it) {
			n++
		}
	}
	return n
}

// Reset replaces the content with items, dropping duplicate ids.
func (c *Collection[T]) Reset(items []T) {
	c.items = nil
	c.index = make(map[string]int, len(items))
	c.AppendPage(items)
}

// Apply folds a batch of change events into the collection: added prepends
// when absent, modified replaces in place (or prepends when absent) and
// removed deletes when present.
func (c *Collection[T]) Apply(events []Event[T]) {
	for _, ev := range events {
		switch ev.Type {
		case docstore.Added:
			c.Prepend(ev.Item)
		case docstore.Modified:
			c.Upsert(ev.Item)
		case docstore.Removed:
			c.Remove(ev.ID)
		}
	}
}

func (c *Collection[T]) reindex() {
	clear(c.index)
	for i, it := range c.items {
		c.index[c.key(it)] = i
	}
}
