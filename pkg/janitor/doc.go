// Package janitor provides retention cleanup for the webhook audit trail.
//
// Event rows are append-only; long-running installations use a Janitor to
// purge rows older than a configured retention window on a cron schedule.
// The tracker itself never depends on the janitor.
package janitor
