// Package webhook provides best-effort delivery of job snapshots to a
// caller-configured HTTP endpoint, with an audit trail of delivery attempts.
//
// Delivery is gated by a per-job core.EventMask and never affects the job's
// own state transitions: transport failures are swallowed, responses are
// recorded as core.Event rows.
//
// Most users should import the root package github.com/jobtrack/jobtrack
// which wires a Notifier into the Tracker.
package webhook
