// Package store provides SQLite-backed chunk history for catch-up.
//
// The store is an append-only log of streamed chunks keyed by dialog and
// channel. It implements engine.Retriever, so a CLI session or a test can
// reconcile live traffic against a local history file exactly as it would
// against a remote history API.
//
// # Patterns
//
// Idempotent ingest
//   - UNIQUE(dialog_id, channel, dedup_key), inserts use ON CONFLICT DO NOTHING
//   - dedup_key is chunk.DedupKey, the key the engine merges on
//
// Deterministic reads
//   - All reads use ORDER BY seq ASC, id ASC
//   - Chunks without a sequence id sort first and are only returned for a
//     full-history fetch
//
// Resume semantics
//   - FetchChunks(from) is exclusive: only seq > from is returned
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
