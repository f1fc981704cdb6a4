package element

import (
	"strconv"
	"sync/atomic"
)

// Sequence issues catalog ids from a monotonic counter.
//
// Ids are strictly increasing and never reused, so an id handed out before a
// catalog reset cannot collide with one handed out after it.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
type Sequence struct {
	seq atomic.Int64
}

// NewSequenceAt creates a sequence whose next id is start+1.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.seq.Store(start)
	return s
}

// Next returns the next id.
func (s *Sequence) Next() string {
	return strconv.FormatInt(s.seq.Add(1), 10)
}

// Current returns the last issued value without advancing.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}

// Observe advances the sequence past id if id is numeric and ahead of it.
// Non-numeric ids are ignored.
func (s *Sequence) Observe(id string) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return
	}
	for {
		cur := s.seq.Load()
		if n <= cur || s.seq.CompareAndSwap(cur, n) {
			return
		}
	}
}
