// Package store is the durable source of truth for scheduled jobs.
//
// It persists three tables in a single SQLite file:
//   - jobs: one row per occurrence, with a monotonic status lifecycle
//   - drafts: at most one job-under-construction per owner
//   - channels: registered destinations the bot may post to
//
// Every write is committed before the call returns; crash recovery in the
// scheduler core depends on that.
package store
