// Package storage provides storage implementations for the jobtrack package.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jobtrack/jobtrack/pkg/core"
)

// GormStore implements core.Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB returns the underlying *gorm.DB.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// IsSQLite reports whether the underlying database is SQLite.
func (s *GormStore) IsSQLite() bool {
	if s.db == nil {
		return false
	}
	return s.db.Dialector.Name() == "sqlite"
}

// Migrate creates the necessary tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&core.Job{},
		&core.JobError{},
		&core.Retry{},
		&core.Event{},
	)
}

// InsertJob inserts a new job row. A violation of the (owner, key) unique
// index is reported as core.ErrKeyConflict; any other failure is wrapped and
// returned as-is.
func (s *GormStore) InsertJob(ctx context.Context, job *core.Job) error {
	if job.Status == "" {
		job.Status = core.StatusWorking
	}
	if job.StartTime.IsZero() {
		job.StartTime = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).Create(job).Error
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrKeyConflict
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// isUniqueViolation detects a unique constraint violation across the dialects
// we support. GORM translates these to ErrDuplicatedKey when the dialector
// supports it; the string checks cover drivers that don't.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value violates unique constraint") // postgres
}

// GetJob retrieves a job by ID.
func (s *GormStore) GetJob(ctx context.Context, id int64) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobByKey retrieves the occupant of an (owner, key) slot.
func (s *GormStore) GetJobByKey(ctx context.Context, owner, key string) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).
		Where("owner = ? AND key = ?", owner, key).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FinalizeJob persists the terminal status, end time, and duration of a job.
func (s *GormStore) FinalizeJob(ctx context.Context, job *core.Job) error {
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":   job.Status,
			"end_time": job.EndTime,
			"duration": job.Duration,
		})
	if result.Error != nil {
		return fmt.Errorf("finalize job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotFound
	}
	return nil
}

// FailJob appends the error row and applies the terminal update in one
// transaction. Both become visible together or not at all.
func (s *GormStore) FailJob(ctx context.Context, job *core.Job, jobErr *core.JobError) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(jobErr).Error; err != nil {
			return fmt.Errorf("record job error: %w", err)
		}
		result := tx.
			Model(&core.Job{}).
			Where("id = ?", job.ID).
			Updates(map[string]any{
				"status":   job.Status,
				"end_time": job.EndTime,
				"duration": job.Duration,
			})
		if result.Error != nil {
			return fmt.Errorf("finalize failed job: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return core.ErrJobNotFound
		}
		return nil
	})
}

// ReclaimJob evicts a failed job so its key can be reused: deletes the job's
// error rows and the job row, then upserts the Retry counter, all in one
// transaction.
func (s *GormStore) ReclaimJob(ctx context.Context, job *core.Job, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM job_errors WHERE job_id = ?", job.ID).Error; err != nil {
			return fmt.Errorf("delete errors: %w", err)
		}
		result := tx.Delete(&core.Job{}, job.ID)
		if result.Error != nil {
			return fmt.Errorf("delete job: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Someone else already reclaimed or finalized differently.
			return core.ErrJobNotFound
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner"}, {Name: "key"}},
			DoUpdates: clause.Assignments(map[string]any{
				"attempts":  gorm.Expr("attempts + 1"),
				"timestamp": now,
			}),
		}).Create(&core.Retry{
			Owner:     job.Owner,
			Key:       job.Key,
			Attempts:  1,
			Timestamp: now,
		}).Error
	})
}

// GetRetry returns the reclaim counter for an (owner, key) slot, or (nil, nil)
// if the key has never been reclaimed.
func (s *GormStore) GetRetry(ctx context.Context, owner, key string) (*core.Retry, error) {
	var retry core.Retry
	err := s.db.WithContext(ctx).
		Where("owner = ? AND key = ?", owner, key).
		First(&retry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &retry, nil
}

// SaveEvent appends a webhook audit row.
func (s *GormStore) SaveEvent(ctx context.Context, event *core.Event) error {
	return s.db.WithContext(ctx).Create(event).Error
}

// ListEvents returns all webhook audit rows for a job, oldest first.
func (s *GormStore) ListEvents(ctx context.Context, jobID int64) ([]core.Event, error) {
	var events []core.Event
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("id ASC").
		Find(&events).Error
	return events, err
}

// ListErrors returns all error rows for a job, oldest first.
func (s *GormStore) ListErrors(ctx context.Context, jobID int64) ([]core.JobError, error) {
	var jobErrors []core.JobError
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("id ASC").
		Find(&jobErrors).Error
	return jobErrors, err
}

// ListRetries returns the reclaim counter rows for an (owner, key) slot.
// At most one row exists per slot.
func (s *GormStore) ListRetries(ctx context.Context, owner, key string) ([]core.Retry, error) {
	var retries []core.Retry
	err := s.db.WithContext(ctx).
		Where("owner = ? AND key = ?", owner, key).
		Find(&retries).Error
	return retries, err
}

// PurgeEvents deletes webhook audit rows older than the cutoff and returns
// the number removed.
func (s *GormStore) PurgeEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("timestamp < ?", olderThan).
		Delete(&core.Event{})
	return result.RowsAffected, result.Error
}
