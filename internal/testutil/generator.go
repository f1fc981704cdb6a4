// Package testutil provides deterministic generation clients for tests.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/infinicraft/internal/generator"
)

// ErrScriptExhausted is returned once a ScriptedClient has no replies left
// and no fallback.
var ErrScriptExhausted = errors.New("scripted client: no replies left")

// Reply is one scripted generator response: text, or an error.
type Reply struct {
	Text string
	Err  error
}

// Text is a convenience constructor for a successful reply.
func Text(s string) Reply { return Reply{Text: s} }

// Fail is a convenience constructor for a failed reply.
func Fail(err error) Reply { return Reply{Err: err} }

// ScriptedClient replays canned replies in order and records every prompt.
//
// Thread-safety: safe for concurrent use.
type ScriptedClient struct {
	mu       sync.Mutex
	replies  []Reply
	fallback *Reply
	prompts  []string
	opts     []generator.Options
}

// NewScriptedClient creates a client that returns replies in order.
func NewScriptedClient(replies ...Reply) *ScriptedClient {
	return &ScriptedClient{replies: replies}
}

// Always creates a client that returns the same reply forever.
func Always(r Reply) *ScriptedClient {
	return &ScriptedClient{fallback: &r}
}

// Generate implements generator.Client.
func (c *ScriptedClient) Generate(_ context.Context, prompt string, opts generator.Options) (generator.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	c.opts = append(c.opts, opts)

	var r Reply
	switch {
	case len(c.replies) > 0:
		r = c.replies[0]
		c.replies = c.replies[1:]
	case c.fallback != nil:
		r = *c.fallback
	default:
		return generator.Result{}, ErrScriptExhausted
	}
	if r.Err != nil {
		return generator.Result{}, r.Err
	}
	return generator.NewResult(prompt, r.Text), nil
}

// Calls returns the number of Generate calls so far.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

// Prompts returns every prompt received, in order.
func (c *ScriptedClient) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// Options returns the options sent with each call.
func (c *ScriptedClient) Options() []generator.Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]generator.Options(nil), c.opts...)
}

// BlockingClient parks every Generate call until Release, then delegates.
// Use it to hold an operation in flight.
type BlockingClient struct {
	next    generator.Client
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// NewBlockingClient wraps next.
func NewBlockingClient(next generator.Client) *BlockingClient {
	return &BlockingClient{
		next:    next,
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

// Generate implements generator.Client.
func (c *BlockingClient) Generate(ctx context.Context, prompt string, opts generator.Options) (generator.Result, error) {
	select {
	case c.entered <- struct{}{}:
	default:
	}
	select {
	case <-c.release:
	case <-ctx.Done():
		return generator.Result{}, ctx.Err()
	}
	return c.next.Generate(ctx, prompt, opts)
}

// Entered is signalled each time a call starts waiting.
func (c *BlockingClient) Entered() <-chan struct{} {
	return c.entered
}

// Release lets every pending and future call through.
func (c *BlockingClient) Release() {
	c.once.Do(func() { close(c.release) })
}
