// Package chunk defines the fragments of a streamed dialog message and the
// identity rules used to reconcile them.
//
// This package contains type definitions and pure functions only. Every other
// internal package imports chunk; chunk imports nothing internal.
//
// Key constraints:
//   - Sequence ids are optional and scoped to a channel. Absence is modelled
//     as a nil pointer, never as 0.
//   - Dedup identity is content-based (see DedupKey) so that the same event
//     fetched from history and received live collapses to one key.
//   - JSON tags follow the camelCase wire names used by the chunk producers.
package chunk
