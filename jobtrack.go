// Package jobtrack tracks the lifecycle of named units of work against a
// durable store, with idempotent starts, bounded retry of failed jobs, and
// optional webhook notification of lifecycle transitions.
//
// This is the main package users should import. It re-exports all public
// types from the internal pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	// Create store and tracker
//	db, _ := gorm.Open(sqlite.Open("jobs.db"), &gorm.Config{})
//	store := jobtrack.NewGormStore(db)
//	store.Migrate(context.Background())
//	tracker := jobtrack.New(store)
//
//	// Run exactly once per key
//	ran, err := tracker.ExecuteUnique(ctx, "alice", "import-2024-06", func(ctx context.Context) error {
//	    return importFiles(ctx)
//	})
//
//	// Or drive the session directly
//	sess, err := tracker.StartUnique(ctx, "alice", "report-42",
//	    jobtrack.WebhookURL("https://example.com/hooks/jobs"))
//	if err != nil { ... }
//	defer sess.Close(ctx)
//	// work...
//	sess.Succeeded(ctx)
package jobtrack

import (
	"gorm.io/gorm"

	"github.com/jobtrack/jobtrack/pkg/core"
	"github.com/jobtrack/jobtrack/pkg/janitor"
	"github.com/jobtrack/jobtrack/pkg/security"
	"github.com/jobtrack/jobtrack/pkg/storage"
	"github.com/jobtrack/jobtrack/pkg/tracker"
	"github.com/jobtrack/jobtrack/pkg/webhook"
)

// Type aliases for the public surface
type (
	// Job represents one tracked unit of work.
	Job = core.Job

	// JobError is one failure reason recorded against a job.
	JobError = core.JobError

	// Retry counts reclaims of a failed (owner, key) slot.
	Retry = core.Retry

	// Event is the audit record of one webhook delivery attempt.
	Event = core.Event

	// JobStatus represents the current state of a job.
	JobStatus = core.JobStatus

	// EventMask selects which transitions post webhooks.
	EventMask = core.EventMask

	// Store defines the persistence layer for tracked jobs.
	Store = core.Store

	// DuplicateJobError reports an occupied (owner, key) slot.
	DuplicateJobError = core.DuplicateJobError

	// Tracker starts jobs idempotently and drives their state machine.
	Tracker = tracker.Tracker

	// TrackerOption configures a Tracker.
	TrackerOption = tracker.TrackerOption

	// Session is the handle for one tracked unit of work.
	Session = tracker.Session

	// Option configures a single start.
	Option = tracker.Option

	// Options holds per-start configuration.
	Options = tracker.Options

	// Notifier posts job snapshots to webhook endpoints.
	Notifier = webhook.Notifier

	// Transform customizes outgoing webhook payloads.
	Transform = webhook.Transform

	// Janitor purges old webhook audit rows on a schedule.
	Janitor = janitor.Janitor

	// GormStore implements Store using GORM.
	GormStore = storage.GormStore
)

// Status constants
const (
	StatusWorking   = core.StatusWorking
	StatusSucceeded = core.StatusSucceeded
	StatusFailed    = core.StatusFailed
)

// Event mask constants
const (
	MaskStarted   = core.MaskStarted
	MaskSucceeded = core.MaskSucceeded
	MaskFailed    = core.MaskFailed
	MaskAll       = core.MaskAll
)

// Limits
const (
	MaxOwnerLength        = security.MaxOwnerLength
	MaxKeyLength          = security.MaxKeyLength
	MaxWebhookURLLength   = security.MaxWebhookURLLength
	MaxErrorMessageLength = security.MaxErrorMessageLength
	MaxDataSize           = security.MaxDataSize
	MaxReclaims           = security.MaxReclaims
	DefaultMaxReclaims    = security.DefaultMaxReclaims
)

// Error variables
var (
	ErrEmptyOwner       = core.ErrEmptyOwner
	ErrOwnerTooLong     = core.ErrOwnerTooLong
	ErrEmptyKey         = core.ErrEmptyKey
	ErrKeyTooLong       = core.ErrKeyTooLong
	ErrKeyConflict      = core.ErrKeyConflict
	ErrAlreadyFinalized = core.ErrAlreadyFinalized
	ErrJobNotFound      = core.ErrJobNotFound
)

// New creates a new Tracker with the given store backend.
func New(s Store, opts ...TrackerOption) *Tracker {
	return tracker.New(s, opts...)
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return storage.NewGormStore(db)
}

// NewNotifier creates a webhook notifier recording audit rows in s.
func NewNotifier(s Store, opts ...webhook.Option) *Notifier {
	return webhook.NewNotifier(s, opts...)
}

// NewJanitor creates a retention janitor for the webhook audit trail.
func NewJanitor(s Store, opts ...janitor.Option) *Janitor {
	return janitor.New(s, opts...)
}

// IsDuplicate reports whether err is (or wraps) a DuplicateJobError.
func IsDuplicate(err error) bool {
	return core.IsDuplicate(err)
}

// Tracker option functions

// WithLogger sets the tracker's logger.
var WithLogger = tracker.WithLogger

// WithNotifier sets the tracker's webhook notifier.
var WithNotifier = tracker.WithNotifier

// WithMaxReclaims caps reclaims of a perpetually failing key.
var WithMaxReclaims = tracker.WithMaxReclaims

// Start option functions

// Data attaches a serializable payload to the job.
func Data(v any) Option {
	return tracker.Data(v)
}

// WebhookURL posts job snapshots to the given URL on lifecycle transitions.
func WebhookURL(url string) Option {
	return tracker.WebhookURL(url)
}

// Events restricts webhook posts to the transitions in mask.
func Events(mask EventMask) Option {
	return tracker.Events(mask)
}

// TransformOpt customizes the outgoing webhook payload before it is posted.
func TransformOpt(fn Transform) Option {
	return tracker.Transform(fn)
}

// Validation helpers

// ValidateOwner validates a job owner.
func ValidateOwner(owner string) error {
	return security.ValidateOwner(owner)
}

// ValidateKey validates an idempotency key.
func ValidateKey(key string) error {
	return security.ValidateKey(key)
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage.
func SanitizeErrorMessage(msg string) string {
	return security.SanitizeErrorMessage(msg)
}
