package janitor

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/core"
)

const (
	// DefaultSchedule runs the purge at the top of every hour.
	DefaultSchedule = "0 * * * *"

	// DefaultRetention keeps webhook audit rows for thirty days.
	DefaultRetention = 30 * 24 * time.Hour
)

// Janitor periodically purges webhook audit rows older than the retention
// window.
type Janitor struct {
	store     core.Store
	log       *zap.Logger
	schedule  string
	retention time.Duration
	cron      *cron.Cron
}

// Option configures a Janitor.
type Option func(*Janitor)

// WithSchedule sets the cron expression for purge runs.
func WithSchedule(expr string) Option {
	return func(j *Janitor) { j.schedule = expr }
}

// WithRetention sets how long Event rows are kept.
func WithRetention(d time.Duration) Option {
	return func(j *Janitor) { j.retention = d }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(j *Janitor) { j.log = log }
}

// New creates a Janitor for the given store.
func New(store core.Store, opts ...Option) *Janitor {
	j := &Janitor{
		store:     store,
		log:       zap.NewNop(),
		schedule:  DefaultSchedule,
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start begins scheduled purge runs. It returns once the schedule is
// registered; purges run on the cron goroutine until Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(j.schedule, func() {
		if err := j.Purge(ctx); err != nil {
			j.log.Warn("event purge failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	j.cron = c
	c.Start()
	return nil
}

// Stop halts scheduled purge runs. A purge already in flight completes.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// Purge removes Event rows older than the retention window. Exposed so
// callers can run a sweep outside the schedule.
func (j *Janitor) Purge(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.retention)
	purged, err := j.store.PurgeEvents(ctx, cutoff)
	if err != nil {
		return err
	}
	if purged > 0 {
		j.log.Info("purged webhook audit rows",
			zap.Int64("count", purged),
			zap.Time("cutoff", cutoff))
	}
	return nil
}
