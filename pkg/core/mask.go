package core

// EventMask selects which lifecycle transitions trigger a webhook post.
// The zero value posts nothing; use MaskAll (the default applied by the
// tracker) to post all three.
type EventMask uint8

const (
	// MaskStarted posts when a job is created in working status.
	MaskStarted EventMask = 1 << iota
	// MaskSucceeded posts on successful finalization.
	MaskSucceeded
	// MaskFailed posts on failed finalization.
	MaskFailed

	// MaskAll posts on every transition.
	MaskAll = MaskStarted | MaskSucceeded | MaskFailed
)

// Permits reports whether a webhook should be posted for a job observed in
// the given status. Working maps to the Started transition.
func (m EventMask) Permits(status JobStatus) bool {
	switch status {
	case StatusWorking:
		return m&MaskStarted != 0
	case StatusSucceeded:
		return m&MaskSucceeded != 0
	case StatusFailed:
		return m&MaskFailed != 0
	}
	return false
}
