package validator

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Candidate is an untrusted element proposal parsed from generator output.
//
// Fields are typed `any` on purpose: the generator may emit numbers, nulls or
// objects where strings belong, and Validate must see that.
type Candidate struct {
	Name  any `json:"name"`
	Emoji any `json:"emoji"`
}

// Strings returns the name and emoji as strings ("" when not a string).
func (c Candidate) Strings() (name, emoji string) {
	name, _ = c.Name.(string)
	emoji, _ = c.Emoji.(string)
	return name, emoji
}

// Normalize trims surrounding whitespace and NFC-normalizes string fields.
// Non-string fields are left for Validate to reject.
func Normalize(c Candidate) Candidate {
	if s, ok := c.Name.(string); ok {
		c.Name = norm.NFC.String(strings.TrimSpace(s))
	}
	if s, ok := c.Emoji.(string); ok {
		c.Emoji = norm.NFC.String(strings.TrimSpace(s))
	}
	return c
}

// Extract returns every balanced, brace-delimited substring of text, left to
// right. Braces inside JSON string literals do not count. An opening brace
// with no matching close is skipped.
func Extract(text string) []string {
	var out []string
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := matchBrace(text, i)
		if end < 0 {
			continue
		}
		out = append(out, text[i:end+1])
		i = end
	}
	return out
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// First returns the first parseable candidate in text.
func First(text string) (Candidate, bool) {
	for _, frag := range Extract(text) {
		var c Candidate
		if err := json.Unmarshal([]byte(frag), &c); err == nil {
			return c, true
		}
	}
	return Candidate{}, false
}
