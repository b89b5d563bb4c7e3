// Package store provides SQLite-backed durable storage for weave event logs.
//
// The store is an append-only log with two tables:
//   - invocations: one row per started dispatch (operation, canonical args,
//     args hash, depth, versions)
//   - events: every event record the engine emitted, keyed by a content
//     hash of the record
//
// # Ordering
//
// All queries order by seq (the engine's logical clock), never by
// recorded_at, so reads are identical across replays.
//
// # Idempotency
//
// Appending the same record twice is a no-op: events are keyed by
// ir.EventID and invocations by their ID.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Payloads and arguments are stored as RFC 8785 canonical JSON.
package store
