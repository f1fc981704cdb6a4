package element

// MergeFlags mark an instance that is part of a merge in flight, or hovered as
// a drop target. Flagged instances are not interactive in a UI.
type MergeFlags struct {
	IsBeingMerged    bool `json:"is_being_merged"`
	IsMarkedForMerge bool `json:"is_marked_for_merge"`
}

// Instance is one placement of an element on the canvas. Many instances may
// reference the same element.
type Instance struct {
	ID      string     `json:"instance_id"`
	Element Element    `json:"element"`
	X       float64    `json:"x"`
	Y       float64    `json:"y"`
	Flags   MergeFlags `json:"merge_flags"`
}

// Midpoint returns the average position of two instances.
func Midpoint(a, b Instance) (x, y float64) {
	return (a.X + b.X) / 2, (a.Y + b.Y) / 2
}
