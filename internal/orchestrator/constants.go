// Package orchestrator runs the pipeline's single coordinator loop: audio in,
// chunk boundaries, dispatch admission, and segment reconciliation.
package orchestrator

import "time"

// Coordinator defaults.
const (
	DefaultSweepInterval    = 2 * time.Second
	DefaultIdleEviction     = 2 * time.Minute
	DefaultAdmissionRecheck = 250 * time.Millisecond

	// Channel buffer sizes
	EventBuffer   = 1024
	NoticeBuffer  = 64
	StatusBuffer  = 8
	SegmentBuffer = 256
)
