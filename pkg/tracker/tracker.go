package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/core"
	"github.com/jobtrack/jobtrack/pkg/security"
	"github.com/jobtrack/jobtrack/pkg/webhook"
)

// maxInsertAttempts bounds the start loop. The resolver's own attempt cap
// already prevents unbounded looping; this is a second fence.
const maxInsertAttempts = 2

// Tracker starts jobs idempotently and drives their state machine. All
// durable state lives in the injected Store; the Tracker itself holds no
// ambient globals and is safe for concurrent use.
type Tracker struct {
	store       core.Store
	notifier    *webhook.Notifier
	log         *zap.Logger
	maxAttempts int
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) TrackerOption {
	return func(t *Tracker) { t.log = log }
}

// WithNotifier sets the webhook notifier. Defaults to a notifier with a
// bounded-timeout HTTP client writing audit rows to the tracker's store.
func WithNotifier(n *webhook.Notifier) TrackerOption {
	return func(t *Tracker) { t.notifier = n }
}

// WithMaxReclaims caps how many times a perpetually failing key may be
// reclaimed. Values are clamped to [0, security.MaxReclaims].
func WithMaxReclaims(n int) TrackerOption {
	return func(t *Tracker) { t.maxAttempts = security.ClampReclaims(n) }
}

// New creates a Tracker backed by the given store.
func New(store core.Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:       store,
		log:         zap.NewNop(),
		maxAttempts: security.DefaultMaxReclaims,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.notifier == nil {
		t.notifier = webhook.NewNotifier(store, webhook.WithLogger(t.log))
	}
	return t
}

// StartUnique begins tracking a unit of work under (owner, key), enforcing
// at most one live or succeeded job per pair.
//
// On a key collision the retry resolver inspects the occupant: a failed
// occupant under the reclaim cap is evicted and the insert retried once; any
// other occupant yields a *core.DuplicateJobError carrying its snapshot.
//
// On success a Started notification is attempted (best-effort) and a Session
// is returned. The caller must finalize the session exactly once, either
// explicitly via Succeeded/Failed or implicitly via Close.
func (t *Tracker) StartUnique(ctx context.Context, owner, key string, opts ...Option) (*Session, error) {
	if err := security.ValidateOwner(owner); err != nil {
		return nil, err
	}
	if err := security.ValidateKey(key); err != nil {
		return nil, err
	}

	options := NewOptions()
	for _, opt := range opts {
		opt.Apply(options)
	}
	if err := security.ValidateWebhookURL(options.WebhookURL); err != nil {
		return nil, err
	}

	job := &core.Job{
		Owner:      owner,
		Key:        key,
		Status:     core.StatusWorking,
		StartTime:  time.Now().UTC(),
		WebhookURL: options.WebhookURL,
	}
	if options.Data != nil {
		data, err := json.Marshal(options.Data)
		if err != nil {
			return nil, fmt.Errorf("jobtrack: failed to marshal job data: %w", err)
		}
		if len(data) > security.MaxDataSize {
			return nil, fmt.Errorf("jobtrack: job data exceeds %d bytes", security.MaxDataSize)
		}
		job.Data = data
	}

	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		err := t.store.InsertJob(ctx, job)
		if err == nil {
			t.log.Debug("job started",
				zap.Int64("job_id", job.ID),
				zap.String("owner", owner), zap.String("key", key),
				zap.Bool("is_retry", job.IsRetry))
			t.notifier.Notify(ctx, job, options.Events, options.Transform)
			return newSession(t, job, options), nil
		}
		if !errors.Is(err, core.ErrKeyConflict) {
			return nil, err
		}

		if t.resolve(ctx, owner, key) {
			// Slot is free again; the fresh row supersedes a failure.
			job.IsRetry = true
			continue
		}

		existing, lookupErr := t.store.GetJobByKey(ctx, owner, key)
		if lookupErr != nil || existing == nil {
			// Lookup failed; surface the original conflict.
			return nil, err
		}
		return nil, &core.DuplicateJobError{Job: existing}
	}

	// Both insert attempts conflicted: a racing starter took the reclaimed
	// slot. Report its snapshot like any other duplicate.
	existing, lookupErr := t.store.GetJobByKey(ctx, owner, key)
	if lookupErr != nil || existing == nil {
		return nil, core.ErrKeyConflict
	}
	return nil, &core.DuplicateJobError{Job: existing}
}

// Start begins tracking with a generated unique key. Use it when the caller
// has no natural idempotency key and wants simple fire-and-forget tracking.
func (t *Tracker) Start(ctx context.Context, owner string, opts ...Option) (*Session, error) {
	return t.StartUnique(ctx, owner, uuid.New().String(), opts...)
}

// ExecuteUnique runs action exactly once per (owner, key): it starts a job,
// runs the action, and finalizes with Succeeded on nil error or Failed
// otherwise. A key already occupied by a live or succeeded job is
// business-as-usual, reported as (false, nil) rather than an error.
// Infrastructure failures propagate.
func (t *Tracker) ExecuteUnique(ctx context.Context, owner, key string, action func(ctx context.Context) error, opts ...Option) (bool, error) {
	sess, err := t.StartUnique(ctx, owner, key, opts...)
	if err != nil {
		if core.IsDuplicate(err) {
			return false, nil
		}
		return false, err
	}
	defer sess.Close(ctx)

	if actionErr := action(ctx); actionErr != nil {
		if err := sess.Failed(ctx, actionErr); err != nil {
			return false, err
		}
		return true, nil
	}
	if err := sess.Succeeded(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Execute is ExecuteUnique with a generated key.
func (t *Tracker) Execute(ctx context.Context, owner string, action func(ctx context.Context) error, opts ...Option) (bool, error) {
	return t.ExecuteUnique(ctx, owner, uuid.New().String(), action, opts...)
}

// Store returns the underlying store.
func (t *Tracker) Store() core.Store {
	return t.store
}

// ListEvents returns the webhook audit trail for a job.
func (t *Tracker) ListEvents(ctx context.Context, jobID int64) ([]core.Event, error) {
	return t.store.ListEvents(ctx, jobID)
}

// ListErrors returns the recorded failure reasons for a job.
func (t *Tracker) ListErrors(ctx context.Context, jobID int64) ([]core.JobError, error) {
	return t.store.ListErrors(ctx, jobID)
}

// ListRetries returns the reclaim counter rows for an (owner, key) slot.
func (t *Tracker) ListRetries(ctx context.Context, owner, key string) ([]core.Retry, error) {
	return t.store.ListRetries(ctx, owner, key)
}
