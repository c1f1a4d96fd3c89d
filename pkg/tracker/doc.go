// Package tracker provides the Tracker and Session types that drive the job
// state machine.
//
// This package includes:
//   - Tracker: starts jobs idempotently under an (owner, key) pair
//   - Session: the handle for one tracked unit of work, finalized exactly once
//   - The retry resolver that decides whether a failed occupant may be evicted
//   - Option: configuration for starts (data, webhook URL, event mask)
//
// Most users should import the root package github.com/jobtrack/jobtrack
// which re-exports Tracker and all option functions.
package tracker
