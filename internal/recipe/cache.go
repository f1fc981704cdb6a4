package recipe

import (
	"context"
	"sync"

	"github.com/roach88/infinicraft/internal/element"
)

// Cache maps an unordered element pair to a previously generated result.
//
// Implementations: Memory (in process) and store.RecipeCache (SQLite).
type Cache interface {
	// Lookup returns the cached result for the pair, if any.
	Lookup(ctx context.Context, a, b element.Element) (element.Element, bool, error)

	// Store records result for the pair. If the pair already has a result,
	// the existing value is kept.
	Store(ctx context.Context, a, b, result element.Element) error
}

// Lister is implemented by caches that can enumerate their recipes.
type Lister interface {
	Entries(ctx context.Context) ([]Entry, error)
}

// Entry is one cached recipe.
type Entry struct {
	Key    Key             `json:"key"`
	Result element.Element `json:"result"`
}

// String renders the entry as "A + B = <emoji> <name>".
func (e Entry) String() string {
	return e.Key.String() + " = " + e.Result.String()
}

// Memory is an in-process Cache. Entries are never evicted.
//
// Thread-safety: safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	results map[Key]element.Element
	order   []Key
}

// NewMemory creates an empty cache.
func NewMemory() *Memory {
	return &Memory{results: make(map[Key]element.Element)}
}

// Lookup implements Cache. It never fails.
func (m *Memory) Lookup(_ context.Context, a, b element.Element) (element.Element, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[Of(a, b)]
	return r, ok, nil
}

// Store implements Cache. First writer wins.
func (m *Memory) Store(_ context.Context, a, b, result element.Element) error {
	k := Of(a, b)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[k]; ok {
		return nil
	}
	m.results[k] = result
	m.order = append(m.order, k)
	return nil
}

// Entries implements Lister, in insertion order.
func (m *Memory) Entries(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, Entry{Key: k, Result: m.results[k]})
	}
	return out, nil
}

// Len returns the number of cached recipes.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results)
}
