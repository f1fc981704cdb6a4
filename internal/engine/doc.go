// Package engine implements the Infinicraft merge engine.
//
// The engine turns "instance A was dropped onto instance B" into a new
// catalog element and a single fused instance on the canvas.
//
// ARCHITECTURE:
//
// Gated Operations:
// Merge, RemoveElements and ResetCatalog all pass through one opstate.Gate.
// A request that arrives while another is in flight is rejected with BUSY,
// never queued. The caller (a UI, the CLI, the HTTP server) decides whether
// to try again.
//
// Merge Flow:
//  1. Gate: TryBegin, or reject with BUSY
//  2. Resolve the instances on the canvas and their elements in the catalog
//  3. Flag both instances as being merged
//  4. Recipe cache lookup for the unordered pair
//  5. On a miss: prompt the generator, extract the first JSON object,
//     normalize and validate it, retry up to the attempt budget
//  6. Success: add to catalog, store the recipe, fuse the instances at their
//     midpoint, Complete the gate
//  7. Failure: clear the flags, Abort the gate, publish merge-failed
//
// CRITICAL PATTERNS:
//
// Idempotent Merges:
// A pair that produced a result once always produces the same result.
// Recipes outlive catalog resets; merging a known pair again restores the
// element under its original id without calling the generator.
//
// Bounded Generation:
// Every merge gets a fresh attempt budget (DefaultMaxAttempts). Attempt
// failures are recovered inside the loop and only surface, joined, in the
// GENERATION_EXHAUSTED error.
//
// No Partial Results:
// Ids are reserved only for candidates that passed validation. A failed merge
// leaves the catalog and canvas as they were.
package engine
