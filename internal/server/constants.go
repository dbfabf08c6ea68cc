package server

import "time"

// Server configuration constants
const (
	// Per-connection inbound message budget. Capture clients send small
	// frames at a steady rate per speaker, so this is generous.
	RateLimitMessages = 200
	RateLimitWindow   = time.Second

	// Deadline for a single outbound WebSocket write.
	WriteTimeout = 5 * time.Second

	// Upper bound on one audio frame: 30s at 48kHz.
	MaxFrameSamples = 30 * 48000

	// /api/transcript window when ?seconds= is absent, and its ceiling.
	DefaultRecentSeconds = 300
	MaxRecentSeconds     = 24 * 3600

	// POST /api/finalize gives up after this long.
	FinalizeTimeout = 2 * time.Minute
)
