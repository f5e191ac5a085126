package parallel

import (
	"cmp"
	"errors"
	"iter"
	"slices"
	"sync"
)

var ErrDuplicate = errors.New("duplicate key")

// Map is a map safe for concurrent writers. Every key can be stored exactly once
// and iteration goes in ascending key order, so consumers produce reproducible output.
// The zero value is ready to use.
type Map[K cmp.Ordered, V any] struct {
	mx sync.Mutex
	m  map[K]V
}

func NewMap[K cmp.Ordered, V any]() *Map[K, V] {
	return &Map[K, V]{m: make(map[K]V)}
}

// Store saves value under key. It returns ErrDuplicate if the key
// was already stored, the original value is kept in that case.
func (m *Map[K, V]) Store(key K, value V) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.m == nil {
		m.m = make(map[K]V)
	}
	if _, ok := m.m[key]; ok {
		return ErrDuplicate
	}
	m.m[key] = value
	return nil
}

func (m *Map[K, V]) Load(key K) (V, bool) {
	m.mx.Lock()
	defer m.mx.Unlock()
	v, ok := m.m[key]
	return v, ok
}

func (m *Map[K, V]) Len() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return len(m.m)
}

// All returns an iterator over a snapshot of the map sorted by key.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	m.mx.Lock()
	keys := make([]K, 0, len(m.m))
	snapshot := make(map[K]V, len(m.m))
	for k, v := range m.m {
		keys = append(keys, k)
		snapshot[k] = v
	}
	m.mx.Unlock()
	slices.Sort(keys)

	return func(yield func(K, V) bool) {
		for _, k := range keys {
			if !yield(k, snapshot[k]) {
				return
			}
		}
	}
}

// List is an append-only slice safe for concurrent writers.
// The zero value is ready to use.
type List[T any] struct {
	mx    sync.Mutex
	items []T
}

func (l *List[T]) Append(items ...T) {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.items = append(l.items, items...)
}

// Items returns a copy of the appended items
func (l *List[T]) Items() []T {
	l.mx.Lock()
	defer l.mx.Unlock()
	return slices.Clone(l.items)
}
