// Package core provides the domain models and interfaces for the jobtrack package.
package core

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	StatusWorking   JobStatus = "working"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job represents one tracked unit of work.
//
// Jobs are keyed by (owner, key): the owner is the caller's namespace, the
// key is the caller's idempotency token. The composite unique index is the
// only cross-process coordination mechanism — two concurrent starts for the
// same pair race on the insert and exactly one wins.
type Job struct {
	ID         int64          `gorm:"primaryKey;autoIncrement"`
	Owner      string         `gorm:"size:50;not null;uniqueIndex:idx_jobs_owner_key"`
	Key        string         `gorm:"size:255;not null;uniqueIndex:idx_jobs_owner_key"`
	Status     JobStatus      `gorm:"index;size:20;not null;default:'working'"`
	Data       datatypes.JSON // opaque caller payload, merged into webhook bodies
	StartTime  time.Time      `gorm:"not null"`
	EndTime    *time.Time
	Duration   *time.Duration // end − start, nanoseconds; set only once terminal
	WebhookURL string         `gorm:"size:255"`
	IsRetry    bool           // true when this row reclaimed a failed predecessor
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime"`
}

// JobError is one failure reason recorded against a job. Append-only; rows
// are deleted only when a reclaim removes the superseded job.
type JobError struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	JobID     int64     `gorm:"index;not null"`
	Message   string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"not null"`
}

// Retry counts how many times a (owner, key) slot has been reclaimed after
// failure. Created on first reclaim, incremented on each subsequent one,
// never deleted.
type Retry struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Owner     string    `gorm:"size:50;not null;uniqueIndex:idx_retries_owner_key"`
	Key       string    `gorm:"size:255;not null;uniqueIndex:idx_retries_owner_key"`
	Attempts  int       `gorm:"not null;default:0"`
	Timestamp time.Time `gorm:"not null"` // last reclaim
}

// Event is the audit record of one webhook delivery attempt. One row per
// actual HTTP response; suppressed or unanswered attempts produce no row.
type Event struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	JobID        int64     `gorm:"index;not null"`
	Status       JobStatus `gorm:"size:20;not null"`
	URL          string    `gorm:"size:255;not null"`
	Payload      datatypes.JSON
	ResponseCode int
	ResponseBody string    `gorm:"type:text"`
	Timestamp    time.Time `gorm:"not null"`
}
