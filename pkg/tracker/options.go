package tracker

import (
	"github.com/jobtrack/jobtrack/pkg/core"
	"github.com/jobtrack/jobtrack/pkg/webhook"
)

// Options holds per-start configuration.
type Options struct {
	// Data is an arbitrary serializable value stored with the job and merged
	// into webhook payloads.
	Data any

	// WebhookURL receives lifecycle notifications for this job. Empty
	// disables notifications.
	WebhookURL string

	// Events selects which transitions post to the webhook.
	Events core.EventMask

	// Transform customizes the outgoing webhook payload.
	Transform webhook.Transform
}

// NewOptions creates Options with defaults: no data, no webhook, all
// transitions enabled.
func NewOptions() *Options {
	return &Options{
		Events: core.MaskAll,
	}
}

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// Data attaches a serializable payload to the job.
func Data(v any) Option {
	return optionFunc(func(o *Options) {
		o.Data = v
	})
}

// WebhookURL posts job snapshots to the given URL on lifecycle transitions.
func WebhookURL(url string) Option {
	return optionFunc(func(o *Options) {
		o.WebhookURL = url
	})
}

// Events restricts webhook posts to the transitions in mask.
func Events(mask core.EventMask) Option {
	return optionFunc(func(o *Options) {
		o.Events = mask
	})
}

// Transform customizes the outgoing webhook payload before it is posted.
func Transform(fn webhook.Transform) Option {
	return optionFunc(func(o *Options) {
		o.Transform = fn
	})
}
