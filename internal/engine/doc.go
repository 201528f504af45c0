// Package engine implements chunk catch-up reconciliation.
//
// When a client opens a dialog or reconnects after a network gap, two
// streams describe the same conversation: the live transport, which may
// duplicate and reorder chunks, and the stored history. The engine merges
// them so that the consumer sees every chunk exactly once, in sequence order,
// without replaying a finished message or losing one still in progress.
//
// Components, leaves first:
//
//   - Tracker: last applied sequence id and the applied (channel, seq) set.
//   - LiveBuffer: holds live chunks while a catch-up is pending.
//   - fetcher: one history fetch per channel, in parallel, failures isolated.
//   - Merge: stable sort by sequence id plus content-keyed dedup.
//   - ResolveBoundary / Boundary.Apply: picks the replay start point.
//   - Engine: owns the session state machine and dispatches to the Handler.
//
// # Failure Policy
//
// Fail-open. A failed channel fetch contributes nothing; a failure during
// reconciliation is recovered and logged. Either way the session reaches
// StateLive with the buffer flushed, so a broken backfill costs a gap in
// replayed history, never a stuck session. No retries happen here.
//
// # Stale Results
//
// Every Reset, SetDialog and ResetAndCatchUp starts a new generation. A fetch
// that returns into a later generation is discarded (OutcomeStale).
package engine
