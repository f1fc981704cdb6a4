// Package placement tracks element instances positioned on the canvas.
//
// Every mutation publishes a canvas-updated event carrying the full instance
// list, so a UI can re-render from the event alone.
package placement

import (
	"errors"
	"math/rand/v2"
	"sync"

	"github.com/roach88/infinicraft/internal/element"
	"github.com/roach88/infinicraft/internal/events"
	"github.com/roach88/infinicraft/internal/opstate"
)

// ErrNotFound is returned for an unknown instance id.
var ErrNotFound = errors.New("instance not found")

// placementMargin keeps random placements fully on the canvas.
const placementMargin = 50

// Ledger is the ordered set of placed instances.
//
// Thread-safety: safe for concurrent use. Events are published after the
// lock is released.
type Ledger struct {
	mu        sync.Mutex
	instances []element.Instance
	gate      *opstate.Gate
	publisher events.Publisher
	ids       IDGenerator
	rnd       *rand.Rand
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithIDGenerator sets the instance id source. Default is UUIDv7.
func WithIDGenerator(g IDGenerator) Option {
	return func(l *Ledger) {
		l.ids = g
	}
}

// WithRandom sets the source used by PlaceRandom.
func WithRandom(r *rand.Rand) Option {
	return func(l *Ledger) {
		l.rnd = r
	}
}

// NewLedger creates an empty ledger. gate guards the bulk operations; pub may
// be nil.
func NewLedger(gate *opstate.Gate, pub events.Publisher, opts ...Option) *Ledger {
	if gate == nil {
		gate = opstate.New(0)
	}
	if pub == nil {
		pub = events.Nop{}
	}
	l := &Ledger{
		gate:      gate,
		publisher: pub,
		ids:       UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.rnd == nil {
		l.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return l
}

// Place adds an instance of e at (x, y) and returns its id.
func (l *Ledger) Place(e element.Element, x, y float64) string {
	l.mu.Lock()
	inst := element.Instance{ID: l.ids.Generate(), Element: e, X: x, Y: y}
	l.instances = append(l.instances, inst)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.publish(snap)
	return inst.ID
}

// PlaceRandom places e at a random position inside a width x height canvas.
func (l *Ledger) PlaceRandom(e element.Element, width, height float64) string {
	l.mu.Lock()
	x := l.rnd.Float64() * max(width-placementMargin, 0)
	y := l.rnd.Float64() * max(height-placementMargin, 0)
	l.mu.Unlock()
	return l.Place(e, x, y)
}

// Get returns the instance with the given id.
func (l *Ledger) Get(id string) (element.Instance, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(id)
	if i < 0 {
		return element.Instance{}, false
	}
	return l.instances[i], true
}

// List returns a copy of all instances in placement order.
func (l *Ledger) List() []element.Instance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Len returns the number of placed instances.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.instances)
}

// Move repositions an instance.
func (l *Ledger) Move(id string, x, y float64) error {
	return l.update(id, func(inst *element.Instance) {
		inst.X, inst.Y = x, y
	})
}

// MarkForMerge sets or clears the drop-target highlight on an instance.
func (l *Ledger) MarkForMerge(id string, marked bool) error {
	return l.update(id, func(inst *element.Instance) {
		inst.Flags.IsMarkedForMerge = marked
	})
}

// SetMerging sets IsBeingMerged on the given instances. Unknown ids are ignored.
func (l *Ledger) SetMerging(merging bool, ids ...string) {
	l.updateMany(ids, func(inst *element.Instance) {
		inst.Flags.IsBeingMerged = merging
	})
}

// ClearFlags resets both merge flags on the given instances.
func (l *Ledger) ClearFlags(ids ...string) {
	l.updateMany(ids, func(inst *element.Instance) {
		inst.Flags = element.MergeFlags{}
	})
}

// Remove deletes one instance.
func (l *Ledger) Remove(id string) error {
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return ErrNotFound
	}
	l.instances = append(l.instances[:i], l.instances[i+1:]...)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.publish(snap)
	return nil
}

// RemoveWhere deletes every instance matching pred and returns how many were
// removed. It returns opstate.ErrBusy unless the operation state is idle.
func (l *Ledger) RemoveWhere(pred func(element.Instance) bool) (int, error) {
	if !l.gate.IsIdle() {
		return 0, opstate.ErrBusy
	}
	return l.filter(func(inst element.Instance) bool { return !pred(inst) }), nil
}

// Clear deletes every instance. It returns opstate.ErrBusy unless the
// operation state is idle.
func (l *Ledger) Clear() error {
	_, err := l.RemoveWhere(func(element.Instance) bool { return true })
	return err
}

// Retain keeps only the instances matching keep, without consulting the
// gate. It is for the operation that already holds the gate, such as a
// catalog removal dropping instances of removed elements.
func (l *Ledger) Retain(keep func(element.Instance) bool) int {
	return l.filter(keep)
}

// Fuse replaces source and target with one instance of result at their
// midpoint and returns it. Missing ids are tolerated; the midpoint then uses
// whichever instances are present.
func (l *Ledger) Fuse(sourceID, targetID string, result element.Element) element.Instance {
	l.mu.Lock()
	var found []element.Instance
	kept := l.instances[:0]
	for _, inst := range l.instances {
		if inst.ID == sourceID || inst.ID == targetID {
			found = append(found, inst)
			continue
		}
		kept = append(kept, inst)
	}
	l.instances = kept

	var x, y float64
	switch len(found) {
	case 1:
		x, y = found[0].X, found[0].Y
	case 2:
		x, y = element.Midpoint(found[0], found[1])
	}
	inst := element.Instance{ID: l.ids.Generate(), Element: result, X: x, Y: y}
	l.instances = append(l.instances, inst)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.publish(snap)
	return inst
}

func (l *Ledger) filter(keep func(element.Instance) bool) int {
	l.mu.Lock()
	kept := make([]element.Instance, 0, len(l.instances))
	for _, inst := range l.instances {
		if keep(inst) {
			kept = append(kept, inst)
		}
	}
	removed := len(l.instances) - len(kept)
	l.instances = kept
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.publish(snap)
	return removed
}

func (l *Ledger) update(id string, fn func(*element.Instance)) error {
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return ErrNotFound
	}
	fn(&l.instances[i])
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.publish(snap)
	return nil
}

func (l *Ledger) updateMany(ids []string, fn func(*element.Instance)) {
	l.mu.Lock()
	changed := false
	for _, id := range ids {
		if i := l.indexLocked(id); i >= 0 {
			fn(&l.instances[i])
			changed = true
		}
	}
	snap := l.snapshotLocked()
	l.mu.Unlock()

	if changed {
		l.publish(snap)
	}
}

func (l *Ledger) indexLocked(id string) int {
	for i, inst := range l.instances {
		if inst.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) snapshotLocked() []element.Instance {
	out := make([]element.Instance, len(l.instances))
	copy(out, l.instances)
	return out
}

func (l *Ledger) publish(snap []element.Instance) {
	l.publisher.Publish(events.CanvasUpdated(snap))
}
