// Package engine defines the speech-to-text contract the dispatcher calls and
// the adapters that satisfy it.
package engine

import (
	"context"
	"time"
)

// Request is one encoded audio chunk.
type Request struct {
	Audio        []byte // 16-bit mono WAV
	SampleRate   int
	LanguageHint string
	SpeakerKey   string // informational; engines must not rely on it
}

// Segment is an optional engine-side sub-span of the transcription.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Result is a successful transcription. Confidence is 0 when the engine
// reports none.
type Result struct {
	Text       string
	Confidence float64
	Segments   []Segment
}

// Engine transcribes audio. Implementations classify failures with
// internal/errors codes: RateLimited, Unavailable and Timeout are retried,
// AuthFailed, QuotaExceeded and EngineFatal are terminal.
type Engine interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
	Name() string
}
