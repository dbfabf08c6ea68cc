// Package syncx holds small generic wrappers around sync primitives shared by
// the dispatcher and the coordinator.
package syncx

import "sync"

// RWGuard publishes a value that many goroutines read and few replace,
// such as the current engine handle or the latest pipeline status.
// Readers get the value itself, so T should be a value type, an interface
// or treated as immutable once stored.
type RWGuard[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
}

func NewGuard[T any](initial T) *RWGuard[T] {
	return &RWGuard[T]{value: initial}
}

func (g *RWGuard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Load returns the value with the number of replacements so far.
func (g *RWGuard[T]) Load() (T, uint64) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value, g.version
}

func (g *RWGuard[T]) Set(v T) {
	g.Swap(v)
}

// Swap stores v and returns what it replaced.
func (g *RWGuard[T]) Swap(v T) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.value
	g.value = v
	g.version++
	return old
}
