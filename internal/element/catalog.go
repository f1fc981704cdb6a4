package element

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/infinicraft/internal/opstate"
)

// ErrDuplicate is returned by Add when the id or name is already in the catalog.
var ErrDuplicate = errors.New("element already in catalog")

// Journal receives catalog mutations for durable storage.
// Implemented by store.Store.
type Journal interface {
	WriteElement(ctx context.Context, e Element) error
	DeleteElements(ctx context.Context, ids []string) error
}

// Catalog is the element store: the ordered set of discovered elements.
//
// Names are unique (case-sensitive). Seed elements are always present.
// Bulk removal is an operation in the opstate sense and is refused while
// another operation holds the gate.
//
// Journal failures are logged and do not fail the in-memory mutation; the
// catalog in memory is the source of truth for the running process.
type Catalog struct {
	mu       sync.RWMutex
	gate     *opstate.Gate
	elements []Element
	ids      *Sequence
	journal  Journal
	logger   *slog.Logger
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithJournal mirrors additions and removals into j.
func WithJournal(j Journal) CatalogOption {
	return func(c *Catalog) {
		c.journal = j
	}
}

// WithElements preloads previously discovered elements (e.g. read from the
// store). Seeds and duplicates are skipped.
func WithElements(elements []Element) CatalogOption {
	return func(c *Catalog) {
		for _, e := range elements {
			if c.indexByID(e.ID) >= 0 || c.indexByName(e.Name) >= 0 {
				continue
			}
			c.elements = append(c.elements, e)
			c.ids.Observe(e.ID)
		}
	}
}

// WithSequenceStart ensures new ids are issued above start. Used to resume
// above ids that only survive in the recipe cache.
func WithSequenceStart(start int64) CatalogOption {
	return func(c *Catalog) {
		if start > c.ids.Current() {
			c.ids = NewSequenceAt(start)
		}
	}
}

// WithCatalogLogger sets the logger. Defaults to slog.Default().
func WithCatalogLogger(l *slog.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = l
	}
}

// NewCatalog creates a catalog holding the seed elements.
func NewCatalog(gate *opstate.Gate, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		gate:     gate,
		elements: Seeds(),
		ids:      NewSequenceAt(int64(len(seeds))),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAll returns the catalog in insertion order.
func (c *Catalog) GetAll() []Element {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Element, len(c.elements))
	copy(out, c.elements)
	return out
}

// Len returns the number of elements.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.elements)
}

// Get looks an element up by id.
func (c *Catalog) Get(id string) (Element, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexByID(id); i >= 0 {
		return c.elements[i], true
	}
	return Element{}, false
}

// FindByName looks an element up by exact name.
func (c *Catalog) FindByName(name string) (Element, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexByName(name); i >= 0 {
		return c.elements[i], true
	}
	return Element{}, false
}

// Names returns the set of names currently in the catalog.
func (c *Catalog) Names() map[string]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make(map[string]struct{}, len(c.elements))
	for _, e := range c.elements {
		names[e.Name] = struct{}{}
	}
	return names
}

// NextID reserves a fresh id.
func (c *Catalog) NextID() string {
	return c.ids.Next()
}

// Add appends e. The caller is expected to have checked name uniqueness; Add
// still refuses duplicates rather than break the invariant.
func (c *Catalog) Add(ctx context.Context, e Element) error {
	c.mu.Lock()
	if c.indexByID(e.ID) >= 0 || c.indexByName(e.Name) >= 0 {
		c.mu.Unlock()
		return fmt.Errorf("add %q (id %s): %w", e.Name, e.ID, ErrDuplicate)
	}
	c.elements = append(c.elements, e)
	c.ids.Observe(e.ID)
	c.mu.Unlock()

	if c.journal != nil && !IsSeed(e.ID) {
		if err := c.journal.WriteElement(ctx, e); err != nil {
			c.logger.Error("journal write failed", "element_id", e.ID, "name", e.Name, "error", err)
		}
	}
	return nil
}

// RemoveMany removes every element whose id is in ids, except seeds, and
// restores any missing seed. The result is sorted by id.
//
// Each whileHeld func is called with the result before the gate is
// released, so dependent state (the canvas) is updated inside the same
// operation.
//
// If another operation holds the gate nothing is removed: the current catalog
// is returned together with opstate.ErrBusy.
func (c *Catalog) RemoveMany(ctx context.Context, ids []string, whileHeld ...func([]Element)) ([]Element, error) {
	if err := c.gate.Begin(); err != nil {
		return c.GetAll(), err
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if !IsSeed(id) {
			drop[id] = struct{}{}
		}
	}

	c.mu.Lock()
	kept := make([]Element, 0, len(c.elements))
	var removed []string
	for _, e := range c.elements {
		if _, ok := drop[e.ID]; ok {
			removed = append(removed, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	for _, s := range seeds {
		if !slices.ContainsFunc(kept, func(e Element) bool { return e.ID == s.ID }) {
			kept = append(kept, s)
		}
	}
	slices.SortStableFunc(kept, func(a, b Element) int { return compareIDs(a.ID, b.ID) })
	c.elements = kept
	out := make([]Element, len(kept))
	copy(out, kept)
	c.mu.Unlock()

	if c.journal != nil && len(removed) > 0 {
		if err := c.journal.DeleteElements(ctx, removed); err != nil {
			c.logger.Error("journal delete failed", "count", len(removed), "error", err)
		}
	}
	c.logger.Debug("elements removed", "requested", len(ids), "removed", len(removed))

	for _, fn := range whileHeld {
		fn(slices.Clone(out))
	}
	c.gate.Complete()
	return out, nil
}

// RemoveAll removes every non-seed element.
func (c *Catalog) RemoveAll(ctx context.Context, whileHeld ...func([]Element)) ([]Element, error) {
	c.mu.RLock()
	ids := make([]string, 0, len(c.elements))
	for _, e := range c.elements {
		if !IsSeed(e.ID) {
			ids = append(ids, e.ID)
		}
	}
	c.mu.RUnlock()
	return c.RemoveMany(ctx, ids, whileHeld...)
}

func (c *Catalog) indexByID(id string) int {
	for i, e := range c.elements {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (c *Catalog) indexByName(name string) int {
	for i, e := range c.elements {
		if e.Name == name {
			return i
		}
	}
	return -1
}
