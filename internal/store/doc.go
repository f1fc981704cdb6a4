// Package store provides SQLite-backed durable storage for Infinicraft.
//
// The store holds two tables:
//   - Elements: the catalog journal (every non-seed element ever discovered)
//   - Recipes: the recipe cache (unordered pair -> result element)
//
// # Critical Patterns
//
// Ids Are Never Reissued
//   - Removing an element only marks its row removed
//   - HighWater reports the largest id ever stored, in either table, so a
//     restarted catalog resumes its sequence above it
//
// First Result Wins
//   - UNIQUE(first, second) with ON CONFLICT DO NOTHING
//   - A recipe, once written, is never replaced
//
// Deterministic Query Results
//   - Element reads are ordered by seq ASC, id ASC COLLATE BINARY
//   - Recipe reads are ordered by insertion
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
