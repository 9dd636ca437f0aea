// Package registry owns the in-memory indices behind the lobby: connections,
// users, rooms, games, and pending user timeouts. Every index carries its own
// lock and values cross the lock boundary as copies, so no caller ever holds
// a reference into shared state.
package registry

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when an id-addressed operation misses.
var ErrNotFound = errors.New("item does not exist in list")

// ErrKeyOccupied is returned by Rekey when the target key is already taken.
var ErrKeyOccupied = errors.New("target key already occupied")

// List is an insertion-ordered index whose primary key is derived from the
// element itself.
type List[ID comparable, T any] struct {
	mu    sync.RWMutex
	items []T
	idOf  func(T) ID
}

// NewList returns an empty List using idOf as the primary-key extractor.
func NewList[ID comparable, T any](idOf func(T) ID) *List[ID, T] {
	return &List[ID, T]{idOf: idOf}
}

// Insert appends item, preserving arrival order.
func (l *List[ID, T]) Insert(item T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, item)
}

// RemoveByID deletes the element with the given id and reports whether an
// element was removed.
func (l *List[ID, T]) RemoveByID(id ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.idOf(l.items[i]) == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

// GetByID returns a detached copy of the element with the given id.
func (l *List[ID, T]) GetByID(id ID) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, item := range l.items {
		if l.idOf(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// EditByID runs edit against the stored element while holding the write
// lock. edit must not touch any other index. Returns ErrNotFound when the id
// is absent.
func (l *List[ID, T]) EditByID(id ID, edit func(*T)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.idOf(l.items[i]) == id {
			edit(&l.items[i])
			return nil
		}
	}
	return ErrNotFound
}

// ContainsID reports whether an element with the given id exists.
func (l *List[ID, T]) ContainsID(id ID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, item := range l.items {
		if l.idOf(item) == id {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the whole list in insertion order.
func (l *List[ID, T]) Snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Filter returns copies of the elements accepted by keep, in insertion order.
func (l *List[ID, T]) Filter(keep func(T) bool) []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []T
	for _, item := range l.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Len returns the number of elements.
func (l *List[ID, T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Table is a keyed index for handle-like values (senders, channels).
type Table[K comparable, V comparable] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewTable returns an empty Table.
func NewTable[K comparable, V comparable]() *Table[K, V] {
	return &Table[K, V]{m: make(map[K]V)}
}

// Insert stores v under k, overwriting any previous value.
func (t *Table[K, V]) Insert(k K, v V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[k] = v
}

// Remove deletes k and reports whether it was present.
func (t *Table[K, V]) Remove(k K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.m[k]
	delete(t.m, k)
	return ok
}

// Pop removes and returns the value stored under k.
func (t *Table[K, V]) Pop(k K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.m[k]
	if ok {
		delete(t.m, k)
	}
	return v, ok
}

// Get returns the value stored under k.
func (t *Table[K, V]) Get(k K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.m[k]
	return v, ok
}

// Contains reports whether k is present.
func (t *Table[K, V]) Contains(k K) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.m[k]
	return ok
}

// Rekey atomically moves the value stored under oldKey to newKey. It fails
// with ErrNotFound when oldKey is absent and ErrKeyOccupied when newKey is
// already taken.
func (t *Table[K, V]) Rekey(oldKey, newKey K) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.m[oldKey]
	if !ok {
		return ErrNotFound
	}
	if _, taken := t.m[newKey]; taken && oldKey != newKey {
		return ErrKeyOccupied
	}
	delete(t.m, oldKey)
	t.m[newKey] = v
	return nil
}

// Replace stores v under k and returns the displaced value, if any.
func (t *Table[K, V]) Replace(k K, v V) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old, had := t.m[k]
	t.m[k] = v
	return old, had
}

// RemoveValue deletes k only while it still holds v, so a stale owner cannot
// evict a successor's entry.
func (t *Table[K, V]) RemoveValue(k K, v V) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.m[k]
	if !ok || cur != v {
		return false
	}
	delete(t.m, k)
	return true
}

// Values returns a copy of every stored value.
func (t *Table[K, V]) Values() []V {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]V, 0, len(t.m))
	for _, v := range t.m {
		out = append(out, v)
	}
	return out
}

// Len returns the number of entries.
func (t *Table[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}
