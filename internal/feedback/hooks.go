// Package feedback holds the fire-and-forget hooks a merge calls on success
// and failure. Renderers (confetti, sounds) live behind the Hooks interface.
package feedback

import (
	"github.com/roach88/infinicraft/internal/events"
)

// Hooks receive merge outcomes. Implementations must not block.
type Hooks interface {
	// OnMergeSuccess is called with the position of the new instance.
	OnMergeSuccess(x, y float64)
	OnMergeFailure()
}

// Nop ignores every outcome.
type Nop struct{}

func (Nop) OnMergeSuccess(float64, float64) {}
func (Nop) OnMergeFailure()                 {}

// Multi fans outcomes out to several hooks in order.
type Multi []Hooks

// OnMergeSuccess implements Hooks.
func (m Multi) OnMergeSuccess(x, y float64) {
	for _, h := range m {
		h.OnMergeSuccess(x, y)
	}
}

// OnMergeFailure implements Hooks.
func (m Multi) OnMergeFailure() {
	for _, h := range m {
		h.OnMergeFailure()
	}
}

// Visual publishes feedback events for a UI to render.
type Visual struct {
	pub events.Publisher
}

// NewVisual creates a Visual hook publishing on pub.
func NewVisual(pub events.Publisher) *Visual {
	return &Visual{pub: pub}
}

// OnMergeSuccess implements Hooks.
func (v *Visual) OnMergeSuccess(x, y float64) {
	v.pub.Publish(events.FeedbackEvent(events.Feedback{Kind: events.FeedbackSuccess, X: x, Y: y}))
}

// OnMergeFailure implements Hooks.
func (v *Visual) OnMergeFailure() {
	v.pub.Publish(events.FeedbackEvent(events.Feedback{Kind: events.FeedbackFailure}))
}
