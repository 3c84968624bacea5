// Package sched owns the in-memory timer registry that mirrors pending job
// rows in the store.
//
// # Protocol
//
// A pending job is armed with exactly one timer. When the timer matures, the
// core re-reads the row and silently skips anything no longer pending
// (cancellation after arming is a legitimate race, resolved here and by the
// store's conditional status update). Delivery runs inline for that job; on
// success the row is marked sent and a recurring job spawns its next
// occurrence as a brand-new row, scheduled relative to the fired occurrence's
// run_at rather than the actual fire time. Failure is terminal: there is no
// automatic retry.
//
// # Crash recovery
//
// Restore replays every pending row into the registry on boot. A run_at in
// the past fires immediately rather than being dropped.
package sched
