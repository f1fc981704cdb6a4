package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/infinicraft/internal/element"
	"github.com/roach88/infinicraft/internal/events"
	"github.com/roach88/infinicraft/internal/feedback"
	"github.com/roach88/infinicraft/internal/generator"
	"github.com/roach88/infinicraft/internal/opstate"
	"github.com/roach88/infinicraft/internal/placement"
	"github.com/roach88/infinicraft/internal/recipe"
	"github.com/roach88/infinicraft/internal/validator"
)

// Engine is the merge orchestrator.
//
// Thread-safety model:
//   - Merge, RemoveElements, ResetCatalog: safe from any goroutine; the gate
//     admits one at a time and rejects the rest with BUSY
//   - Subscribe: call once per bus
//
// INVARIANTS:
//   - the catalog only grows as a result of a merge, and only after a
//     candidate passed every validator rule
//   - a failed merge leaves the catalog and canvas as they were, apart from
//     clearing the merge flags of the pair
type Engine struct {
	gate        *opstate.Gate
	catalog     *element.Catalog
	ledger      *placement.Ledger
	recipes     recipe.Cache
	client      generator.Client
	maxAttempts int
	genOpts     generator.Options
	hooks       feedback.Hooks
	publisher   events.Publisher
	logger      *slog.Logger

	// inflight tracks merges started from element-dropped-on events.
	inflight sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxAttempts lowers the generator call budget per merge. The budget
// never exceeds DefaultMaxAttempts; values outside 1..5 are clamped.
//
// Default: 5 (DefaultMaxAttempts)
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		e.maxAttempts = n
	}
}

// WithGenerationOptions sets the sampling parameters sent to the generator.
func WithGenerationOptions(opts generator.Options) Option {
	return func(e *Engine) {
		e.genOpts = opts
	}
}

// WithHooks sets the success/failure feedback hooks.
func WithHooks(h feedback.Hooks) Option {
	return func(e *Engine) {
		e.hooks = h
	}
}

// WithPublisher sets where merge notifications are published.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine. All collaborators share gate.
func New(
	gate *opstate.Gate,
	catalog *element.Catalog,
	ledger *placement.Ledger,
	recipes recipe.Cache,
	client generator.Client,
	opts ...Option,
) *Engine {
	e := &Engine{
		gate:        gate,
		catalog:     catalog,
		ledger:      ledger,
		recipes:     recipes,
		client:      client,
		maxAttempts: DefaultMaxAttempts,
		genOpts:     generator.DefaultOptions(),
		hooks:       feedback.Nop{},
		publisher:   events.Nop{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current operation state.
func (e *Engine) State() opstate.State {
	return e.gate.State()
}

// Merge fuses two placed instances into the element their pair resolves to.
//
// The result comes from the recipe cache when the pair was merged before;
// otherwise the generator is asked up to maxAttempts times for a candidate
// that passes validation. On success both instances are replaced by one
// instance of the result at their midpoint.
//
// Errors are *MergeError with code BUSY, INVALID_PAIR, NOT_FOUND or
// GENERATION_EXHAUSTED.
//
// A merge cannot be aborted: cancelling ctx does not stop the retry loop.
// Each attempt is bounded by the backend's own timeout.
func (e *Engine) Merge(ctx context.Context, source, target element.Instance) (element.Element, error) {
	ctx = context.WithoutCancel(ctx)

	if !e.gate.TryBegin() {
		e.logger.Info("merge rejected: operation in progress",
			"source", source.ID,
			"target", target.ID,
			"state", e.gate.State().String(),
		)
		return element.Element{}, newMergeError(ErrCodeBusy, source.ID, target.ID, "another operation is in progress")
	}

	if source.ID == target.ID {
		e.gate.Abort()
		return element.Element{}, newMergeError(ErrCodeInvalidPair, source.ID, target.ID, "cannot merge an instance with itself")
	}

	src, srcOK := e.ledger.Get(source.ID)
	tgt, tgtOK := e.ledger.Get(target.ID)
	if !srcOK || !tgtOK {
		e.gate.Abort()
		return element.Element{}, newMergeError(ErrCodeNotFound, source.ID, target.ID, "instance is not on the canvas")
	}

	a, aOK := e.catalog.Get(src.Element.ID)
	b, bOK := e.catalog.Get(tgt.Element.ID)
	if !aOK || !bOK {
		e.gate.Abort()
		return element.Element{}, newMergeError(ErrCodeNotFound, source.ID, target.ID,
			"element missing from catalog (%s, %s)", src.Element.ID, tgt.Element.ID)
	}

	e.ledger.SetMerging(true, src.ID, tgt.ID)

	result, attempts, err := e.resolve(ctx, a, b)
	if err != nil {
		return element.Element{}, e.fail(src, tgt, attempts, err)
	}
	return e.succeed(src, tgt, result), nil
}

// MergeByID is Merge for callers that only hold instance ids.
func (e *Engine) MergeByID(ctx context.Context, sourceID, targetID string) (element.Element, error) {
	return e.Merge(ctx, element.Instance{ID: sourceID}, element.Instance{ID: targetID})
}

// resolve returns the merge result for a and b, from the cache or the
// generator, and how many generator calls it made.
func (e *Engine) resolve(ctx context.Context, a, b element.Element) (element.Element, int, error) {
	cached, ok, err := e.recipes.Lookup(ctx, a, b)
	if err != nil {
		e.logger.Warn("recipe lookup failed, generating instead", "pair", recipe.Of(a, b).String(), "error", err)
	}
	if ok {
		e.logger.Debug("recipe cache hit", "pair", recipe.Of(a, b).String(), "result", cached.Name)
		return e.rediscover(ctx, cached), 0, nil
	}

	prompt := generator.BuildPrompt(a, b)
	budget := newAttemptBudget(e.maxAttempts)
	var failures []error
	for budget.Next() {
		n := budget.Current()
		e.logger.Debug("generation attempt", "pair", recipe.Of(a, b).String(), "attempt", n, "max_attempts", budget.Max())
		candidate, err := e.attempt(ctx, n, prompt, a, b)
		if err != nil {
			e.logAttempt(err)
			failures = append(failures, err)
			continue
		}

		if err := e.catalog.Add(ctx, candidate); err != nil {
			// Validation checked the name against the catalog; a clash here
			// means the catalog changed underneath us.
			failures = append(failures, &AttemptError{Attempt: n, Code: ErrCodeValidationRejected, Rule: validator.RuleNameExists, Err: err})
			continue
		}
		if err := e.recipes.Store(ctx, a, b, candidate); err != nil {
			e.logger.Warn("recipe store failed", "pair", recipe.Of(a, b).String(), "error", err)
		}
		e.logger.Info("element discovered",
			"pair", recipe.Of(a, b).String(),
			"id", candidate.ID,
			"name", candidate.Name,
			"emoji", candidate.Emoji,
			"attempt", n,
		)
		return candidate, n, nil
	}
	return element.Element{}, budget.Current(), errors.Join(failures...)
}

// attempt makes one generator call and returns the accepted candidate with a
// fresh id, or an *AttemptError.
func (e *Engine) attempt(ctx context.Context, n int, prompt string, a, b element.Element) (element.Element, error) {
	res, err := e.client.Generate(ctx, prompt, e.genOpts)
	if err != nil {
		return element.Element{}, &AttemptError{Attempt: n, Code: ErrCodeGenerationClient, Err: err}
	}

	// Raw may still contain the prompt's examples; only the continuation counts.
	c, ok := validator.First(res.Clean)
	if !ok {
		return element.Element{}, &AttemptError{Attempt: n, Code: ErrCodeNoCandidate,
			Err: fmt.Errorf("no JSON object in %q", truncate(res.Clean, 120))}
	}

	c = validator.Normalize(c)
	if err := validator.Validate(c, a, b, e.catalog.Names()); err != nil {
		return element.Element{}, &AttemptError{Attempt: n, Code: ErrCodeValidationRejected, Rule: validator.RuleOf(err), Err: err}
	}

	name, emoji := c.Strings()
	return element.Element{ID: e.catalog.NextID(), Name: name, Emoji: emoji}, nil
}

// rediscover puts a cached result back into the catalog if a reset removed it.
func (e *Engine) rediscover(ctx context.Context, cached element.Element) element.Element {
	if _, ok := e.catalog.Get(cached.ID); ok {
		return cached
	}
	if existing, ok := e.catalog.FindByName(cached.Name); ok {
		return existing
	}
	if err := e.catalog.Add(ctx, cached); err != nil {
		e.logger.Warn("failed to restore cached element", "id", cached.ID, "name", cached.Name, "error", err)
		return cached
	}
	e.logger.Info("element rediscovered", "id", cached.ID, "name", cached.Name)
	return cached
}

func (e *Engine) succeed(src, tgt element.Instance, result element.Element) element.Element {
	inst := e.ledger.Fuse(src.ID, tgt.ID, result)
	e.hooks.OnMergeSuccess(inst.X, inst.Y)
	e.gate.Complete()

	e.publisher.Publish(events.ElementsRefreshed())
	e.publisher.Publish(events.ElementMerged(inst))
	return result
}

func (e *Engine) fail(src, tgt element.Instance, attempts int, cause error) error {
	err := &MergeError{
		Code:     ErrCodeGenerationExhausted,
		Message:  fmt.Sprintf("no acceptable element after %d attempts", attempts),
		SourceID: src.ID,
		TargetID: tgt.ID,
		Attempts: attempts,
		Err:      cause,
	}
	e.logger.Warn("merge failed",
		"source", src.Element.Name,
		"target", tgt.Element.Name,
		"attempts", attempts,
	)

	e.hooks.OnMergeFailure()
	e.ledger.ClearFlags(src.ID, tgt.ID)
	e.gate.Abort()

	// Report the instances as they now are: unflagged and still in place.
	src.Flags, tgt.Flags = element.MergeFlags{}, element.MergeFlags{}
	e.publisher.Publish(events.MergeFailed(src, tgt, err))
	return err
}

func (e *Engine) logAttempt(err error) {
	var ae *AttemptError
	if !errors.As(err, &ae) {
		e.logger.Warn("generation attempt failed", "error", err)
		return
	}
	e.logger.Warn("generation attempt rejected",
		"attempt", ae.Attempt,
		"code", string(ae.Code),
		"rule", string(ae.Rule),
		"reason", ae.Err.Error(),
	)
}

// RemoveElements removes the given elements (seeds excepted) from the
// catalog and drops their instances from the canvas. It returns the catalog
// after the removal.
//
// If another operation is in progress nothing changes: the current catalog
// is returned with opstate.ErrBusy.
func (e *Engine) RemoveElements(ctx context.Context, ids []string) ([]element.Element, error) {
	remaining, err := e.catalog.RemoveMany(ctx, ids, e.pruneCanvas)
	if err != nil {
		return remaining, err
	}
	e.publisher.Publish(events.ElementsRefreshed())
	return remaining, nil
}

// ResetCatalog removes every non-seed element. Recipes survive: merging a
// known pair again restores its result without calling the generator.
func (e *Engine) ResetCatalog(ctx context.Context) ([]element.Element, error) {
	remaining, err := e.catalog.RemoveAll(ctx, e.pruneCanvas)
	if err != nil {
		return remaining, err
	}
	e.publisher.Publish(events.ElementsRefreshed())
	return remaining, nil
}

// pruneCanvas drops instances of elements no longer in remaining. It runs
// while the removal still holds the gate, so no merge can place an instance
// between the catalog change and the prune.
func (e *Engine) pruneCanvas(remaining []element.Element) {
	keep := make(map[string]struct{}, len(remaining))
	for _, el := range remaining {
		keep[el.ID] = struct{}{}
	}
	dropped := e.ledger.Retain(func(inst element.Instance) bool {
		_, ok := keep[inst.Element.ID]
		return ok
	})
	e.logger.Debug("catalog pruned", "elements", len(remaining), "instances_dropped", dropped)
}

// Subscribe makes the engine merge on every element-dropped-on event. Merges
// run on their own goroutine so the publisher is never blocked; use Wait to
// drain them.
func (e *Engine) Subscribe(bus *events.Bus) (unsubscribe func()) {
	return bus.Subscribe(events.TopicElementDroppedOn, func(ev events.Event) {
		if ev.Source == nil || ev.Target == nil {
			e.logger.Warn("ignoring drop event without source and target")
			return
		}
		source, target := *ev.Source, *ev.Target
		e.inflight.Add(1)
		go func() {
			defer e.inflight.Done()
			if _, err := e.Merge(context.Background(), source, target); err != nil && !IsExhausted(err) {
				e.logger.Info("dropped merge not performed", "error", err)
			}
		}()
	})
}

// Wait blocks until every merge started by Subscribe has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
