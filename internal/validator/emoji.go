package validator

import (
	"strings"

	"github.com/forPelevin/gomoji"
	"github.com/rivo/uniseg"
)

const variationSelector16 = "\uFE0F"

// IsEmojiGrapheme reports whether a single grapheme cluster renders as an emoji.
//
// Clusters are looked up in the Unicode emoji list, which holds the
// fully-qualified forms: a text-default pictograph such as U+2601 only counts
// when followed by VS16. An over-qualified cluster (a trailing VS16 on a rune
// that already defaults to emoji presentation) is accepted as its base form.
func IsEmojiGrapheme(cluster string) bool {
	if cluster == "" {
		return false
	}
	if _, err := gomoji.GetInfo(cluster); err == nil {
		return true
	}
	base, ok := strings.CutSuffix(cluster, variationSelector16)
	if !ok || base == "" {
		return false
	}
	_, err := gomoji.GetInfo(base)
	return err == nil
}

// Graphemes splits s into extended grapheme clusters.
func Graphemes(s string) []string {
	var out []string
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		out = append(out, g.Str())
	}
	return out
}

// CountEmoji returns the number of emoji grapheme clusters in s.
func CountEmoji(s string) int {
	n := 0
	for _, cluster := range Graphemes(s) {
		if IsEmojiGrapheme(cluster) {
			n++
		}
	}
	return n
}

// ContainsEmoji reports whether s contains at least one emoji grapheme.
func ContainsEmoji(s string) bool {
	for _, cluster := range Graphemes(s) {
		if IsEmojiGrapheme(cluster) {
			return true
		}
	}
	return false
}

// textGroups counts maximal runs of non-emoji, non-space graphemes in s.
func textGroups(s string) int {
	groups := 0
	inText := false
	for _, cluster := range Graphemes(s) {
		isText := !IsEmojiGrapheme(cluster) && strings.TrimSpace(cluster) != ""
		if isText && !inText {
			groups++
		}
		inText = isText
	}
	return groups
}
