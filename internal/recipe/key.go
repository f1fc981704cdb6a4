// Package recipe caches merge results keyed by the unordered pair of input
// element names.
//
// A recipe is written at most once: the first accepted result for a pair is
// kept forever and later writes for the same pair are ignored. The cache is
// not tied to catalog membership and survives catalog resets.
package recipe

import (
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/infinicraft/internal/element"
)

// Key is the canonical, order-independent identity of a pair of elements.
// First <= Second after NFC normalization, so Of(a, b) == Of(b, a).
type Key struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

// NewKey builds the key for two element names.
func NewKey(x, y string) Key {
	x = norm.NFC.String(x)
	y = norm.NFC.String(y)
	if y < x {
		x, y = y, x
	}
	return Key{First: x, Second: y}
}

// Of builds the key for two elements.
func Of(a, b element.Element) Key {
	return NewKey(a.Name, b.Name)
}

// String renders the key as "First + Second".
func (k Key) String() string {
	return k.First + " + " + k.Second
}
