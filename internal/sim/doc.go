// Package sim implements the steering and growth engine for a pond.
//
// Step advances every entity by one time delta, in place:
//
//  1. Food physics: falling pellets accelerate to the floor, every pellet
//     ages, and pellets past their TTL expire. Terminal pellets are pruned.
//  2. For each fish, in collection order: acquire the nearest pellet inside
//     the vision radius, steer toward it (or wander), smooth the velocity,
//     integrate, bounce off the walls, and eat every pellet in reach.
//
// Step has no I/O and never fails. Inputs from untrusted timing sources and
// malformed entities are clamped rather than rejected, so one bad fish
// cannot halt the pond.
//
// Tie-break: when two pellets are exactly equidistant the one earlier in the
// Food slice wins. Slice order is insertion order minus removals, so the
// result depends on feeding history. This is kept on purpose and covered by
// tests.
package sim
