// Package generator defines the contract for the external text generator that
// synthesizes new elements, the prompt the engine sends it, and two concrete
// backends (Gemini and OpenAI-compatible chat completions).
//
// The engine never trusts generator output. Results go through the
// validator package before anything reaches the catalog.
package generator

import (
	"context"
	"fmt"
	"strings"
)

// Options are the sampling parameters sent with every request.
type Options struct {
	MaxNewTokens int
	Temperature  float64
}

// DefaultOptions returns a bounded token budget and moderate temperature.
func DefaultOptions() Options {
	return Options{MaxNewTokens: 128, Temperature: 0.7}
}

// Result is one generator response.
type Result struct {
	// Raw is the text exactly as the backend returned it.
	Raw string

	// Clean is Raw with the prompt echo removed and whitespace trimmed.
	Clean string
}

// NewResult builds a Result, stripping the first occurrence of prompt from raw.
// Completion-style backends echo the prompt before their continuation.
func NewResult(prompt, raw string) Result {
	clean := raw
	if prompt != "" {
		clean = strings.Replace(raw, prompt, "", 1)
	}
	return Result{Raw: raw, Clean: strings.TrimSpace(clean)}
}

// Client generates text for a prompt.
//
// A returned error means the attempt failed (network, backend, quota). The
// caller treats it as one consumed attempt and carries on.
type Client interface {
	Generate(ctx context.Context, prompt string, opts Options) (Result, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, prompt string, opts Options) (Result, error)

// Generate implements Client.
func (f ClientFunc) Generate(ctx context.Context, prompt string, opts Options) (Result, error) {
	return f(ctx, prompt, opts)
}

// warmUpPrompt is sent once to load the backend before the first merge.
const warmUpPrompt = "Warm-up test input."

// WarmUp sends a single-token request so the first real merge does not pay
// the backend's cold-start cost.
func WarmUp(ctx context.Context, c Client) error {
	if _, err := c.Generate(ctx, warmUpPrompt, Options{MaxNewTokens: 1}); err != nil {
		return fmt.Errorf("warm up generator: %w", err)
	}
	return nil
}
