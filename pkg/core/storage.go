package core

import (
	"context"
	"time"
)

// Store defines the persistence layer for tracked jobs.
type Store interface {
	// Migrate creates the necessary database tables. Provisioning is an
	// explicit setup step; the tracker never migrates implicitly.
	Migrate(ctx context.Context) error

	// Job lifecycle
	//
	// InsertJob returns ErrKeyConflict when the (owner, key) unique
	// constraint is violated; any other failure is an infrastructure error.
	InsertJob(ctx context.Context, job *Job) error
	// FinalizeJob persists status, end time, and duration.
	FinalizeJob(ctx context.Context, job *Job) error
	// FailJob appends the error row and flips the job to failed inside one
	// transaction: a reader never observes one without the other.
	FailJob(ctx context.Context, job *Job, jobErr *JobError) error

	// Reclaim
	//
	// ReclaimJob deletes the job's error rows and the job row, then upserts
	// the Retry counter (attempts+1, timestamp=now), all in one transaction.
	ReclaimJob(ctx context.Context, job *Job, now time.Time) error
	GetRetry(ctx context.Context, owner, key string) (*Retry, error)

	// Point lookups; (nil, nil) when absent.
	GetJob(ctx context.Context, id int64) (*Job, error)
	GetJobByKey(ctx context.Context, owner, key string) (*Job, error)

	// Webhook audit
	SaveEvent(ctx context.Context, event *Event) error

	// Read queries
	ListEvents(ctx context.Context, jobID int64) ([]Event, error)
	ListErrors(ctx context.Context, jobID int64) ([]JobError, error)
	ListRetries(ctx context.Context, owner, key string) ([]Retry, error)

	// Retention
	PurgeEvents(ctx context.Context, olderThan time.Time) (int64, error)
}
