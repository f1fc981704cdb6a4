// Package validator is the trust boundary for generator output.
//
// Raw model text is split into brace-delimited fragments (Extract), decoded
// into Candidates (Parse, First) and then gated by Validate. Nothing reaches
// the catalog without passing every rule.
package validator

import (
	"errors"
	"fmt"

	"github.com/roach88/infinicraft/internal/element"
)

// Rule identifies a validation rule.
type Rule string

const (
	// RuleMissingField: name or emoji is not a non-empty string.
	RuleMissingField Rule = "missing-field"

	// RuleEmojiCount: the emoji field does not hold exactly one emoji grapheme.
	RuleEmojiCount Rule = "emoji-count"

	// RuleEchoesInputs: the name just concatenates the two input names.
	RuleEchoesInputs Rule = "echoes-inputs"

	// RuleNameHasEmoji: the name contains an emoji.
	RuleNameHasEmoji Rule = "name-has-emoji"

	// RuleNameExists: the name is already in the catalog.
	RuleNameExists Rule = "name-exists"

	// RuleEmojiHasText: the emoji field carries words next to the emoji.
	RuleEmojiHasText Rule = "emoji-has-text"
)

// RejectionError reports the first rule a candidate failed.
type RejectionError struct {
	Rule    Rule
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

// RuleOf returns the rule behind a rejection, or "" if err is not one.
func RuleOf(err error) Rule {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Rule
	}
	return ""
}

func reject(rule Rule, format string, args ...any) *RejectionError {
	return &RejectionError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// echoSeparators are joined between the input names to build trivial echoes.
var echoSeparators = []string{"", " ", "+"}

// Echoes returns the six trivial concatenations of a's and b's names.
func Echoes(a, b element.Element) []string {
	out := make([]string, 0, 2*len(echoSeparators))
	for _, sep := range echoSeparators {
		out = append(out, a.Name+sep+b.Name, b.Name+sep+a.Name)
	}
	return out
}

// Validate checks a candidate produced by merging a and b. existing is the set
// of names already in the catalog (case-sensitive). It returns nil if the
// candidate is acceptable, or a *RejectionError naming the first failed rule.
func Validate(c Candidate, a, b element.Element, existing map[string]struct{}) error {
	name, nameOK := c.Name.(string)
	emoji, emojiOK := c.Emoji.(string)
	if !nameOK || name == "" {
		return reject(RuleMissingField, "name must be a non-empty string, got %T %v", c.Name, c.Name)
	}
	if !emojiOK || emoji == "" {
		return reject(RuleMissingField, "emoji must be a non-empty string, got %T %v", c.Emoji, c.Emoji)
	}

	if n := CountEmoji(emoji); n != 1 {
		return reject(RuleEmojiCount, "emoji %q holds %d emoji, want exactly 1", emoji, n)
	}

	for _, echo := range Echoes(a, b) {
		if name == echo {
			return reject(RuleEchoesInputs, "name %q repeats the inputs %q and %q", name, a.Name, b.Name)
		}
	}

	if ContainsEmoji(name) {
		return reject(RuleNameHasEmoji, "name %q contains an emoji", name)
	}

	if _, ok := existing[name]; ok {
		return reject(RuleNameExists, "name %q already exists", name)
	}

	if groups := textGroups(emoji); groups > 0 {
		if groups > 1 {
			return reject(RuleEmojiHasText, "emoji %q holds %d word groups", emoji, groups)
		}
		return reject(RuleEmojiHasText, "emoji %q mixes text with the emoji", emoji)
	}

	return nil
}

// Valid is Validate as a predicate.
func Valid(c Candidate, a, b element.Element, existing map[string]struct{}) bool {
	return Validate(c, a, b, existing) == nil
}
