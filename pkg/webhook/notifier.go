package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/core"
)

const (
	// DefaultTimeout bounds a single webhook POST so a slow endpoint cannot
	// stall job finalization.
	DefaultTimeout = 10 * time.Second

	// maxResponseBody caps how much of the endpoint's response is stored in
	// the audit row.
	maxResponseBody = 64 << 10
)

// Transform mutates the outgoing payload before it is posted. Callers use it
// to enrich webhook bodies with their own fields.
type Transform func(payload map[string]any)

// Notifier posts job snapshots to a job's configured webhook URL and records
// each delivery attempt as an Event row.
type Notifier struct {
	client *http.Client
	store  core.Store
	log    *zap.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithClient sets the HTTP client used for webhook posts.
func WithClient(c *http.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(n *Notifier) { n.log = log }
}

// NewNotifier creates a Notifier that records delivery attempts in store.
func NewNotifier(store core.Store, opts ...Option) *Notifier {
	n := &Notifier{
		client: &http.Client{Timeout: DefaultTimeout},
		store:  store,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify posts a snapshot of job at its current status, if the job has a
// webhook URL and the mask permits the transition. Delivery is best-effort:
// the returned state of the job is never affected, and errors never propagate
// to the caller's state transition. One Event row is written per HTTP
// response received; attempts that produce no response produce no row.
func (n *Notifier) Notify(ctx context.Context, job *core.Job, mask core.EventMask, transform Transform) {
	if job.WebhookURL == "" || !mask.Permits(job.Status) {
		return
	}

	payload := snapshot(job)
	if transform != nil {
		transform(payload)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Warn("webhook payload marshal failed",
			zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.WebhookURL, bytes.NewReader(body))
	if err != nil {
		n.log.Warn("webhook request build failed",
			zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// No response received: nothing to audit.
		n.log.Debug("webhook delivery failed",
			zap.Int64("job_id", job.ID),
			zap.String("url", job.WebhookURL),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		n.log.Debug("webhook response read failed",
			zap.Int64("job_id", job.ID), zap.Error(err))
		respBody = nil
	}

	event := &core.Event{
		JobID:        job.ID,
		Status:       job.Status,
		URL:          job.WebhookURL,
		Payload:      body,
		ResponseCode: resp.StatusCode,
		ResponseBody: string(respBody),
		Timestamp:    time.Now().UTC(),
	}
	if err := n.store.SaveEvent(ctx, event); err != nil {
		n.log.Warn("webhook audit write failed",
			zap.Int64("job_id", job.ID), zap.Error(err))
	}
}

// snapshot builds the outgoing payload for a job. The caller's opaque data
// payload is merged back in as a structured field rather than a JSON string.
func snapshot(job *core.Job) map[string]any {
	payload := map[string]any{
		"id":        job.ID,
		"owner":     job.Owner,
		"key":       job.Key,
		"status":    string(job.Status),
		"startTime": job.StartTime,
		"endTime":   job.EndTime,
		"isRetry":   job.IsRetry,
	}
	if job.Duration != nil {
		payload["duration"] = job.Duration.String()
	} else {
		payload["duration"] = nil
	}
	if len(job.Data) > 0 {
		var data any
		if err := json.Unmarshal(job.Data, &data); err == nil {
			payload["data"] = data
		}
	}
	return payload
}
