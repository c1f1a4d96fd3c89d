package core

import (
	"errors"
	"fmt"
)

// Validation and usage errors
var (
	ErrEmptyOwner        = errors.New("jobtrack: owner must not be empty")
	ErrOwnerTooLong      = errors.New("jobtrack: owner exceeds maximum length")
	ErrEmptyKey          = errors.New("jobtrack: key must not be empty")
	ErrKeyTooLong        = errors.New("jobtrack: key exceeds maximum length")
	ErrWebhookURLTooLong = errors.New("jobtrack: webhook url exceeds maximum length")

	// ErrKeyConflict is returned by Store.InsertJob when the (owner, key)
	// unique constraint is violated. It signals the expected collision case,
	// distinct from genuine infrastructure failures.
	ErrKeyConflict = errors.New("jobtrack: job with this owner and key already exists")

	// ErrAlreadyFinalized is returned when Succeeded or Failed is called on a
	// session that has already been finalized. This is a programming error:
	// a session transitions to a terminal status exactly once.
	ErrAlreadyFinalized = errors.New("jobtrack: session already finalized")

	// ErrJobNotFound is returned when finalizing a session whose job row no
	// longer exists in the store.
	ErrJobNotFound = errors.New("jobtrack: job row not found")
)

// DuplicateJobError is returned by StartUnique when the key is occupied by a
// live or succeeded job and no reclaim was possible. It carries a snapshot of
// the occupant so callers can inspect what already ran.
type DuplicateJobError struct {
	Job *Job
}

func (e *DuplicateJobError) Error() string {
	return fmt.Sprintf("jobtrack: job %s:%s has already run (id=%d, status=%s)",
		e.Job.Owner, e.Job.Key, e.Job.ID, e.Job.Status)
}

// IsDuplicate reports whether err is (or wraps) a DuplicateJobError.
func IsDuplicate(err error) bool {
	var dup *DuplicateJobError
	return errors.As(err, &dup)
}
