package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/core"
)

// resolve decides whether the occupant of an (owner, key) slot may be evicted
// so the key can be reused, and performs the eviction when allowed.
//
// A slot is reclaimable iff the occupant failed and the reclaim counter is
// below the configured cap. Working occupants are in flight and must not be
// clobbered; succeeded occupants are permanent records. Any error along the
// way resolves to "not reclaimable" — an indeterminate state never grants a
// retry.
func (t *Tracker) resolve(ctx context.Context, owner, key string) bool {
	existing, err := t.store.GetJobByKey(ctx, owner, key)
	if err != nil || existing == nil {
		t.log.Debug("reclaim denied: occupant lookup failed",
			zap.String("owner", owner), zap.String("key", key), zap.Error(err))
		return false
	}
	if existing.Status != core.StatusFailed {
		return false
	}

	attempts := 0
	retry, err := t.store.GetRetry(ctx, owner, key)
	if err != nil {
		t.log.Debug("reclaim denied: retry lookup failed",
			zap.String("owner", owner), zap.String("key", key), zap.Error(err))
		return false
	}
	if retry != nil {
		attempts = retry.Attempts
	}
	if attempts >= t.maxAttempts {
		t.log.Debug("reclaim denied: attempts exhausted",
			zap.String("owner", owner), zap.String("key", key),
			zap.Int("attempts", attempts))
		return false
	}

	if err := t.store.ReclaimJob(ctx, existing, time.Now().UTC()); err != nil {
		t.log.Debug("reclaim denied: eviction failed",
			zap.String("owner", owner), zap.String("key", key), zap.Error(err))
		return false
	}

	t.log.Info("reclaimed failed job",
		zap.String("owner", owner), zap.String("key", key),
		zap.Int64("evicted_job_id", existing.ID),
		zap.Int("attempt", attempts+1))
	return true
}
