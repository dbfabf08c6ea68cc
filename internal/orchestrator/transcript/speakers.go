package transcript

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/GriffinCanCode/speakerline/internal/syncx"
)

// Names resolves speaker keys to display names, caching each answer for the
// life of the session.
type Names struct {
	cache *syncx.Keyed[string, string]
}

// NewNames creates a resolver over a static alias table.
func NewNames(aliases map[string]string) *Names {
	table := make(map[string]string, len(aliases))
	for k, v := range aliases {
		table[k] = v
	}
	return &Names{cache: syncx.NewKeyed(func(key string) string {
		if name, ok := table[key]; ok && name != "" {
			return name
		}
		return FallbackName(key)
	})}
}

// FallbackName derives a stable short name from the key's hash.
func FallbackName(key string) string {
	return fmt.Sprintf("Speaker %04X", uint16(xxhash.Sum64String(key)))
}

// Resolve returns key's display name.
func (n *Names) Resolve(key string) string {
	name, _ := n.cache.GetOrCreate(key)
	return name
}

// Snapshot returns every name resolved so far.
func (n *Names) Snapshot() map[string]string {
	out := make(map[string]string, n.cache.Len())
	n.cache.Range(func(k, v string) bool {
		out[k] = v
		return true
	})
	return out
}

// Restore seeds the cache so resumed sessions keep their names.
func (n *Names) Restore(names map[string]string) {
	for k, v := range names {
		n.cache.Store(k, v)
	}
}
