// Package harness runs catch-up conformance scenarios.
//
// A scenario scripts the history each channel returns, drives an engine
// session through steps, and asserts on what was dispatched.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	channels: [message, admin-message]
//	history:
//	  message:
//	    - {seq: 1, type: MESSAGE_START}
//	failures:
//	  admin-message: "history unavailable"
//	steps:
//	  - action: start_buffering
//	  - action: catch_up
//	    during:
//	      - {seq: 2, type: TEXT, text: "hi"}
//	  - action: live
//	    chunks:
//	      - {seq: 3, type: MESSAGE_END}
//	assertions:
//	  - type: dispatch_order
//	    labels: ["1:MESSAGE_START", "2:TEXT", "3:MESSAGE_END"]
//
// Step actions: start_buffering, live, catch_up, reconnect, reset,
// set_history. Chunks listed under during are delivered while the
// catch-up fetch is held in flight, which is how a scenario exercises
// live traffic racing history.
//
// # Assertion Types
//
//   - dispatch_order: exact "seq:KIND" dispatch sequence
//   - dispatch_count: number of dispatches, optionally per channel
//   - not_dispatched_through: nothing at or below seq was dispatched
//   - no_duplicates: no sequenced chunk was dispatched twice
//   - final_state: engine state after the last step
//   - failed_channels: channels whose fetch failed in any catch-up
//   - processed: distinct sequence ids dispatched in the session
//
// # Golden Snapshots
//
// RunWithGolden compares the dispatch trace, per-step reports and final
// state against testdata/golden/<name>.golden via goldie.
package harness
