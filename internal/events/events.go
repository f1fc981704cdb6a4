// Package events carries observer notifications between the merge engine and
// its collaborators (canvas UIs, feedback renderers, the WebSocket stream).
//
// There is no global emitter. The host builds one Bus and injects it into
// every component that publishes or subscribes.
package events

import (
	"github.com/roach88/infinicraft/internal/element"
)

// Topic names a kind of notification. The string value is the wire name.
type Topic string

const (
	// TopicCanvasUpdated carries the full instance list after any ledger mutation.
	TopicCanvasUpdated Topic = "canvas-updated"

	// TopicElementsRefreshed signals that the catalog changed.
	TopicElementsRefreshed Topic = "element-list-refreshed"

	// TopicElementMerged carries the instance created by a successful merge.
	TopicElementMerged Topic = "element-merged"

	// TopicElementDroppedOn carries a source/target pair; it triggers a merge.
	TopicElementDroppedOn Topic = "element-dropped-on"

	// TopicMergeFailed carries the pair of a failed merge and the reason.
	TopicMergeFailed Topic = "merge-failed"

	// TopicFeedback asks a UI to render success or failure effects.
	TopicFeedback Topic = "feedback"

	// TopicStateChanged carries the operation state after each transition.
	TopicStateChanged Topic = "state-changed"
)

// Feedback kinds.
const (
	FeedbackSuccess = "success"
	FeedbackFailure = "failure"
)

// Feedback describes a visual effect. X and Y are set for success only.
type Feedback struct {
	Kind string  `json:"kind"`
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`
}

// Event is one notification. Which fields are set depends on Topic.
type Event struct {
	Topic     Topic              `json:"type"`
	Instances []element.Instance `json:"instances,omitempty"`
	Instance  *element.Instance  `json:"instance,omitempty"`
	Source    *element.Instance  `json:"source,omitempty"`
	Target    *element.Instance  `json:"target,omitempty"`
	Feedback  *Feedback          `json:"feedback,omitempty"`
	State     string             `json:"state,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// CanvasUpdated builds a canvas-updated event.
func CanvasUpdated(instances []element.Instance) Event {
	return Event{Topic: TopicCanvasUpdated, Instances: instances}
}

// ElementsRefreshed builds an element-list-refreshed event.
func ElementsRefreshed() Event {
	return Event{Topic: TopicElementsRefreshed}
}

// ElementMerged builds an element-merged event.
func ElementMerged(inst element.Instance) Event {
	return Event{Topic: TopicElementMerged, Instance: &inst}
}

// ElementDroppedOn builds an element-dropped-on event.
func ElementDroppedOn(source, target element.Instance) Event {
	return Event{Topic: TopicElementDroppedOn, Source: &source, Target: &target}
}

// MergeFailed builds a merge-failed event.
func MergeFailed(source, target element.Instance, err error) Event {
	e := Event{Topic: TopicMergeFailed, Source: &source, Target: &target}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// FeedbackEvent builds a feedback event.
func FeedbackEvent(fb Feedback) Event {
	return Event{Topic: TopicFeedback, Feedback: &fb}
}

// StateChanged builds a state-changed event.
func StateChanged(state string) Event {
	return Event{Topic: TopicStateChanged, State: state}
}
