package syncx

import "sync"

// Keyed is a mutex-guarded map with lazy per-key construction.
type Keyed[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]V
	make  func(K) V
}

// NewKeyed creates a map whose missing entries are built by mk.
func NewKeyed[K comparable, V any](mk func(K) V) *Keyed[K, V] {
	return &Keyed[K, V]{items: make(map[K]V), make: mk}
}

// GetOrCreate returns the entry for k, creating it on first use.
// created reports whether this call built the entry.
func (m *Keyed[K, V]) GetOrCreate(k K) (v V, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.items[k]; ok {
		return v, false
	}
	v = m.make(k)
	m.items[k] = v
	return v, true
}


// Store replaces the entry for k.
func (m *Keyed[K, V]) Store(k K, v V) {
	m.mu.Lock()
	m.items[k] = v
	m.mu.Unlock()
}


// Len returns the number of entries.
func (m *Keyed[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Range calls fn for each entry under the lock. fn must not call back into m.
func (m *Keyed[K, V]) Range(fn func(K, V) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.items {
		if !fn(k, v) {
			return
		}
	}
}
