package tracker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/core"
	"github.com/jobtrack/jobtrack/pkg/security"
)

// Session is the handle for one tracked unit of work. It owns the in-memory
// job row for the duration of the work and must be finalized exactly once:
// explicitly via Succeeded or Failed, or implicitly via Close.
//
// The intended shape is:
//
//	sess, err := tracker.StartUnique(ctx, owner, key)
//	if err != nil { ... }
//	defer sess.Close(ctx)
//	// do work, then sess.Succeeded(ctx) or sess.Failed(ctx, err)
//
// Close runs on every exit path but never after an explicit finalization.
type Session struct {
	tracker *Tracker
	job     *core.Job
	options *Options

	mu        sync.Mutex
	finalized bool
	// Terminal intent recorded by an explicit Succeeded/Failed call before
	// the store write. Close honors it even when that write failed, so a
	// deferred finalization can never downgrade an explicit outcome.
	closeStatus core.JobStatus
	closeErr    *core.JobError
}

func newSession(t *Tracker, job *core.Job, options *Options) *Session {
	return &Session{
		tracker: t,
		job:     job,
		options: options,
	}
}

// Job returns a snapshot of the tracked job.
func (s *Session) Job() core.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.job
}

// Succeeded finalizes the job with succeeded status, recording the end time
// and duration, and posts a notification if the event mask permits.
//
// Finalizing twice is a usage error: the second call returns
// core.ErrAlreadyFinalized and leaves the stored row untouched.
func (s *Session) Succeeded(ctx context.Context) error {
	return s.finalize(ctx, core.StatusSucceeded, nil)
}

// Failed finalizes the job with failed status. The failure reason is
// recorded as an error row in the same store transaction as the status flip,
// so a reader never observes one without the other.
func (s *Session) Failed(ctx context.Context, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	return s.FailedMessage(ctx, message)
}

// FailedMessage is Failed with a plain message instead of an error value.
func (s *Session) FailedMessage(ctx context.Context, message string) error {
	jobErr := &core.JobError{
		Message:   security.SanitizeErrorMessage(message),
		Timestamp: time.Now().UTC(),
	}
	return s.finalize(ctx, core.StatusFailed, jobErr)
}

// Close finalizes the session with the default status (succeeded) if no
// explicit Succeeded or Failed call has occurred. After a completed explicit
// call it is a no-op; after an explicit call whose store write failed, Close
// retries with that call's recorded intent. Intended for use with defer so
// the job row never leaks in working status.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return nil
	}
	status := s.closeStatus
	jobErr := s.closeErr
	s.mu.Unlock()
	if status == "" {
		status = core.StatusSucceeded
	}
	return s.finalize(ctx, status, jobErr)
}

func (s *Session) finalize(ctx context.Context, status core.JobStatus, jobErr *core.JobError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return core.ErrAlreadyFinalized
	}

	// Record the intent before touching the store: if the write below fails,
	// a later Close finalizes with this status, never a default one.
	s.closeStatus = status
	s.closeErr = jobErr

	end := time.Now().UTC()
	duration := end.Sub(s.job.StartTime)
	s.job.Status = status
	s.job.EndTime = &end
	s.job.Duration = &duration

	var err error
	if jobErr != nil {
		jobErr.JobID = s.job.ID
		err = s.tracker.store.FailJob(ctx, s.job, jobErr)
	} else {
		err = s.tracker.store.FinalizeJob(ctx, s.job)
	}
	if err != nil {
		// The row is gone or the write failed; surface loudly rather than
		// pretend the transition happened.
		return err
	}

	s.finalized = true
	s.tracker.log.Debug("job finalized",
		zap.Int64("job_id", s.job.ID),
		zap.String("status", string(status)),
		zap.Duration("duration", duration))

	s.tracker.notifier.Notify(ctx, s.job, s.options.Events, s.options.Transform)
	return nil
}
