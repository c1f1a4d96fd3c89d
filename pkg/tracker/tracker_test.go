package tracker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jobtrack/jobtrack/pkg/core"
	"github.com/jobtrack/jobtrack/pkg/storage"
)

func newTestTracker(t *testing.T, opts ...TrackerOption) (*Tracker, *storage.GormStore) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open in-memory sqlite")

	s := storage.NewGormStore(db)
	require.NoError(t, s.Migrate(context.Background()), "migrate schema")
	return New(s, opts...), s
}

// okReceiver returns an httptest server that accepts every post with 200.
func okReceiver(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ──────────────────────────────────────────────────────────────────────────────
// StartUnique
// ──────────────────────────────────────────────────────────────────────────────

func TestStartUnique_CreatesWorkingJob(t *testing.T) {
	ctx := context.Background()
	tr, s := newTestTracker(t)

	sess, err := tr.StartUnique(ctx, "alice", "K1")
	require.NoError(t, err)

	job := sess.Job()
	assert.NotZero(t, job.ID)
	assert.Equal(t, core.StatusWorking, job.Status)
	assert.False(t, job.IsRetry)

	stored, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, core.StatusWorking, stored.Status)
	assert.Nil(t, stored.EndTime)
}

func TestStartUnique_ValidatesInputs(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t)

	_, err := tr.StartUnique(ctx, "", "K1")
	assert.ErrorIs(t, err, core.ErrEmptyOwner)

	_, err = tr.StartUnique(ctx, "alice", "")
	assert.ErrorIs(t, err, core.ErrEmptyKey)
}

func TestStartUnique_SerializesData(t *testing.T) {
	ctx := context.Background()
	tr, s := newTestTracker(t)

	sess, err := tr.StartUnique(ctx, "alice", "K1", Data(map[string]any{
		"fileName": "sampleFile.pdf",
		"flag":     true,
		"values":   []string{"this", "that", "other"},
	}))
	require.NoError(t, err)

	stored, err := s.GetJob(ctx, sess.Job().ID)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"fileName":"sampleFile.pdf","flag":true,"values":["this","that","other"]}`,
		string(stored.Data))
}

func TestStartUnique_RejectsUnserializableData(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t)

	_, err := tr.StartUnique(ctx, "alice", "K1", Data(func() {}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal")
}

func TestStartUnique_DuplicateOfWorkingJob(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t)

	first, err := tr.StartUnique(ctx, "alice", "K1")
	require.NoError(t, err)

	// A working occupant is in flight and must not be clobbered.
	_, err = tr.StartUnique(ctx, "alice", "K1")
	var dup *core.DuplicateJobError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.Job().ID, dup.Job.ID)
	assert.Equal(t, core.StatusWorking, dup.Job.Status)
}

func TestStartUnique_DuplicateOfSucceededJob(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t)

	first, err := tr.StartUnique(ctx, "alice", "K1")
	require.NoError(t, err)
	require.NoError(t, first.Succeeded(ctx))

	// A succeeded key is a permanent record: never reused.
	_, err = tr.StartUnique(ctx, "alice", "K1")
	var dup *core.DuplicateJobError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.Job().ID, dup.Job.ID)
	assert.Equal(t, core.StatusSucceeded, dup.Job.Status)
	assert.True(t, core.IsDuplicate(err))
}

func TestStartUnique_SameKeyDifferentOwners(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t)

	sess1, err := tr.StartUnique(ctx, "alice", "K1")
	require.NoError(t, err)
	sess2, err := tr.StartUnique(ctx, "bob", "K1")
	require.NoError(t, err)

	assert.NotEqual(t, sess1.Job().ID, sess2.Job().ID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Retry / reclaim
// ──────────────────────────────────────────────────────────────────────────────

func TestStartUnique_ReclaimsFailedJob(t *testing.T) {
	ctx := context.Background()
	tr, s := newTestTracker(t)

	first, err := tr.StartUnique(ctx, "alice", "K2")
	require.NoError(t, err)
	require.NoError(t, first.Failed(ctx, errors.New("boom")))
	firstID := first.Job().ID

	second, err := tr.StartUnique(ctx, "alice", "K2")
	require.NoError(t, err, "a failed key may be retried")

	job := second.Job()
	assert.NotEqual(t, firstID, job.ID, "reclaim creates a brand-new row")
	assert.True(t, job.IsRetry)
	assert.Equal(t, core.StatusWorking, job.Status)

	retries, err := tr.ListRetries(ctx, "alice", "K2")
	require.NoError(t, err)
	require.Len(t, retries, 1)
	assert.Equal(t, 1, retries[0].Attempts)

	// The superseded job and its errors are gone.
	gone, err := s.GetJob(ctx, firstID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	oldErrors, err := s.ListErrors(ctx, firstID)
	require.NoError(t, err)
	assert.Empty(t, oldErrors)
}

func TestStartUnique_ReclaimCapYieldsDuplicate(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t, WithMaxReclaims(2))

	fail := func() {
		sess, err := tr.StartUnique(ctx, "alice", "K3")
		require.NoError(t, err)
		require.NoError(t, sess.Failed(ctx, errors.New("still broken")))
	}

	fail() // original attempt
	fail() // reclaim 1
	fail() // reclaim 2 — cap reached

	_, err := tr.StartUnique(ctx, "alice", "K3")
	var dup *core.DuplicateJobError
	require.ErrorAs(t, err, &dup, "attempts exhausted: no further reclaim")
	assert.Equal(t, core.StatusFailed, dup.Job.Status)

	retries, err := tr.ListRetries(ctx, "alice", "K3")
	require.NoError(t, err)
	require.Len(t, retries, 1)
	assert.Equal(t, 2, retries[0].Attempts, "counter never exceeds the cap")
}

func TestStartUnique_ZeroReclaimsDisablesRetry(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t, WithMaxReclaims(0))

	sess, err := tr.StartUnique(ctx, "alice", "K4")
	require.NoError(t, err)
	require.NoError(t, sess.Failed(ctx, errors.New("boom")))

	_, err = tr.StartUnique(ctx, "alice", "K4")
	assert.True(t, core.IsDuplicate(err))
}

// stolenSlotStore simulates a racing starter that grabs every slot the
// resolver frees: inserts always collide and reclaims appear to succeed.
type stolenSlotStore struct {
	core.Store
}

func (s *stolenSlotStore) InsertJob(ctx context.Context, job *core.Job) error {
	return core.ErrKeyConflict
}

func (s *stolenSlotStore) ReclaimJob(ctx context.Context, job *core.Job, now time.Time) error {
	return nil
}

func TestStartUnique_LostReclaimRaceReportsDuplicate(t *testing.T) {
	ctx := context.Background()
	base, s := newTestTracker(t)
	failKey(t, base, "alice", "K5")

	racy := New(&stolenSlotStore{Store: s})

	_, err := racy.StartUnique(ctx, "alice", "K5")
	var dup *core.DuplicateJobError
	require.ErrorAs(t, err, &dup, "losing the reclaim race still names the occupant")
	assert.Equal(t, "alice", dup.Job.Owner)
	assert.Equal(t, core.StatusFailed, dup.Job.Status)
}

// ──────────────────────────────────────────────────────────────────────────────
// Start
// ──────────────────────────────────────────────────────────────────────────────

func TestStart_GeneratesDistinctKeys(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t)

	sess1, err := tr.Start(ctx, "alice")
	require.NoError(t, err)
	sess2, err := tr.Start(ctx, "alice")
	require.NoError(t, err)

	assert.NotEqual(t, sess1.Job().Key, sess2.Job().Key)
}

// ──────────────────────────────────────────────────────────────────────────────
// ExecuteUnique / Execute
// ──────────────────────────────────────────────────────────────────────────────

func TestExecuteUnique_RunsAndSucceeds(t *testing.T) {
	ctx := context.Background()
	tr, s := newTestTracker(t)

	ran := false
	ok, err := tr.ExecuteUnique(ctx, "alice", "K5", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, ran)

	job, err := s.GetJobByKey(ctx, "alice", "K5")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, core.StatusSucceeded, job.Status)
}

func TestExecuteUnique_DuplicateIsSkippedSilently(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t)

	ok, err := tr.ExecuteUnique(ctx, "alice", "K5", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	require.True(t, ok)

	ran := false
	ok, err = tr.ExecuteUnique(ctx, "alice", "K5", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err, "already-ran is business-as-usual, not an error")
	assert.False(t, ok)
	assert.False(t, ran, "action must not run for an occupied key")
}

func TestExecuteUnique_ActionErrorFailsJob(t *testing.T) {
	ctx := context.Background()
	tr, s := newTestTracker(t)

	ok, err := tr.ExecuteUnique(ctx, "alice", "K6", func(ctx context.Context) error {
		return errors.New("boom")
	})
	require.NoError(t, err)
	assert.True(t, ok, "the job ran; its outcome is recorded on the job row")

	job, err := s.GetJobByKey(ctx, "alice", "K6")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, core.StatusFailed, job.Status)

	jobErrors, err := tr.ListErrors(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, jobErrors, 1)
	assert.Equal(t, "boom", jobErrors[0].Message)
}

func TestExecute_GeneratedKey(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t)

	ok, err := tr.Execute(ctx, "alice", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.True(t, ok)
}

// ──────────────────────────────────────────────────────────────────────────────
// Webhook integration
// ──────────────────────────────────────────────────────────────────────────────

func TestStartUnique_PostsStartedEvent(t *testing.T) {
	srv := okReceiver(t)
	ctx := context.Background()
	tr, _ := newTestTracker(t)

	sess, err := tr.StartUnique(ctx, "alice", "K7", WebhookURL(srv.URL))
	require.NoError(t, err)

	events, err := tr.ListEvents(ctx, sess.Job().ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.StatusWorking, events[0].Status)
	assert.Equal(t, http.StatusOK, events[0].ResponseCode)
}

func TestFullCycle_DefaultMaskPostsTwoEvents(t *testing.T) {
	srv := okReceiver(t)
	ctx := context.Background()
	tr, _ := newTestTracker(t)

	sess, err := tr.StartUnique(ctx, "alice", "K8", WebhookURL(srv.URL))
	require.NoError(t, err)
	require.NoError(t, sess.Succeeded(ctx))

	events, err := tr.ListEvents(ctx, sess.Job().ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, core.StatusWorking, events[0].Status)
	assert.Equal(t, core.StatusSucceeded, events[1].Status)
	for _, e := range events {
		assert.Equal(t, http.StatusOK, e.ResponseCode)
	}
}

func TestSucceededOnlyMask_SuccessCyclePostsOneEvent(t *testing.T) {
	srv := okReceiver(t)
	ctx := context.Background()
	tr, _ := newTestTracker(t)

	sess, err := tr.StartUnique(ctx, "alice", "K9",
		WebhookURL(srv.URL), Events(core.MaskSucceeded))
	require.NoError(t, err)
	require.NoError(t, sess.Succeeded(ctx))

	events, err := tr.ListEvents(ctx, sess.Job().ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.StatusSucceeded, events[0].Status)
}

func TestSucceededOnlyMask_FailureCyclePostsNoEvents(t *testing.T) {
	srv := okReceiver(t)
	ctx := context.Background()
	tr, _ := newTestTracker(t)

	sess, err := tr.StartUnique(ctx, "alice", "K10",
		WebhookURL(srv.URL), Events(core.MaskSucceeded))
	require.NoError(t, err)
	require.NoError(t, sess.Failed(ctx, errors.New("boom")))

	events, err := tr.ListEvents(ctx, sess.Job().ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestWebhookFailure_DoesNotFailStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // dead endpoint

	ctx := context.Background()
	tr, _ := newTestTracker(t)

	sess, err := tr.StartUnique(ctx, "alice", "K11", WebhookURL(srv.URL))
	require.NoError(t, err, "webhook delivery is best-effort")
	require.NoError(t, sess.Succeeded(ctx))

	events, err := tr.ListEvents(ctx, sess.Job().ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}
