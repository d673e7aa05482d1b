// Package store provides SQLite-backed local persistence for ponds.
//
// One database holds every pond the process has touched:
//   - kv: versioned pond snapshots, revision scalars, the last pond id
//   - assets: content-addressed texture blobs
//   - docs: remote pond documents, when this process hosts the relay
//
// # Keys
//
//	pond:<id>:save-v3   current snapshot (JSON, version 3)
//	pond:<id>:save-v2   legacy snapshot, read-only
//	pond:<id>:save-v1   legacy snapshot, read-only
//	pond:<id>:rev       local revision (decimal integer)
//	meta:pond-id        most recently used pond id
//
// Snapshots are read newest format first. An undecodable value is treated
// as absent and the next older key is tried. Legacy formats are upgraded in
// memory by Migrate and written back as version 3 on the next save.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
