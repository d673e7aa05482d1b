// Package pond provides the entity model for a fish pond: fish, food, the
// food tier table, and the live State that owns both collections.
//
// This package contains data definitions and invariant helpers only. The
// simulation lives in internal/sim, persistence in internal/store, and
// synchronization in internal/syncer. pond imports nothing internal.
//
// Key invariants:
//   - Fish and Food share one id space, allocated from State.NextID
//   - NextID is always strictly greater than every id present
//   - SizeScale stays within the configured [min, max] band
//   - All JSON tags use lowerCamelCase to match the save formats
package pond
