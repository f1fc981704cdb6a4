// Package element defines catalog elements, their placed instances on the
// canvas, and the Catalog (the element store).
//
// # Identity
//
// Element ids are decimal strings issued by a monotonic Sequence. Ids are never
// reused, even after the element is removed, because the recipe cache may still
// reference them.
//
// # Seeds
//
// Water, Earth, Fire and Air are always present. Bulk removal never removes
// them and restores any that are missing.
package element

import (
	"fmt"
	"strconv"
)

// Element is a named, emoji-tagged concept in the catalog.
type Element struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// String renders the element as "<emoji> <name>".
func (e Element) String() string {
	return fmt.Sprintf("%s %s", e.Emoji, e.Name)
}

var seeds = []Element{
	{ID: "1", Name: "Water", Emoji: "💧"},
	{ID: "2", Name: "Earth", Emoji: "🪨"},
	{ID: "3", Name: "Fire", Emoji: "🔥"},
	{ID: "4", Name: "Air", Emoji: "🍃"},
}

// Seeds returns a copy of the seed elements in catalog order.
func Seeds() []Element {
	out := make([]Element, len(seeds))
	copy(out, seeds)
	return out
}

// IsSeed reports whether id belongs to a seed element.
func IsSeed(id string) bool {
	for _, s := range seeds {
		if s.ID == id {
			return true
		}
	}
	return false
}

// compareIDs orders ids numerically when both are decimal, lexically otherwise.
// Numeric ids sort before non-numeric ones.
func compareIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
