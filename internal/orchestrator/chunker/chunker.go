// Package chunker decides when a speaker's buffer becomes a transcription
// task. Three triggers compose first-wins: the adaptive duration, the
// silence timeout and the hard ceiling.
package chunker

import (
	"time"

	"github.com/GriffinCanCode/speakerline/internal/audio"
)

// Reason records which trigger produced a flush.
type Reason string

const (
	ReasonChunkReady Reason = "chunk-ready"
	ReasonSilence    Reason = "silence"
	ReasonTimeout    Reason = "timeout"
	ReasonPeriodic   Reason = "periodic"
	ReasonFinal      Reason = "final"
)

// Phase is the per-speaker boundary state, exposed for status.
type Phase int

const (
	Idle Phase = iota
	Accumulating
	ReadyToFlush
)

func (p Phase) String() string {
	return [...]string{"idle", "accumulating", "ready"}[p]
}

// Config holds boundary thresholds.
type Config struct {
	ActivityWindow time.Duration
	HighChunk      time.Duration // chunk length under high cross-speaker activity
	NoneChunk      time.Duration // chunk length when nobody else is active
	MinFlush       time.Duration // floor for silence/timeout flushes
	SilenceTimeout time.Duration
	MaxChunk       time.Duration // hard ceiling
	SilencePeak    float32
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		ActivityWindow: 5 * time.Second,
		HighChunk:      1500 * time.Millisecond,
		NoneChunk:      5 * time.Second,
		MinFlush:       500 * time.Millisecond,
		SilenceTimeout: 1500 * time.Millisecond,
		MaxChunk:       20 * time.Second,
		SilencePeak:    0.001,
	}
}

type speakerState struct {
	phase    Phase
	lastEval time.Time
}

// Policy evaluates triggers. Like the buffers it guards, it is owned by the
// coordinator loop and is not safe for concurrent use.
type Policy struct {
	cfg      Config
	activity *Activity
	speakers map[string]*speakerState
}

// New creates a policy.
func New(cfg Config) *Policy {
	return &Policy{
		cfg:      cfg,
		activity: NewActivity(cfg.ActivityWindow),
		speakers: make(map[string]*speakerState),
	}
}

// Config returns the thresholds in use.
func (p *Policy) Config() Config { return p.cfg }

// Activity exposes the cross-speaker activity tracker.
func (p *Policy) Activity() *Activity { return p.activity }

func (p *Policy) speaker(key string) *speakerState {
	s, ok := p.speakers[key]
	if !ok {
		s = &speakerState{}
		p.speakers[key] = s
	}
	return s
}

// ChunkDuration is the adaptive flush length for key at now.
func (p *Policy) ChunkDuration(key string, now time.Time) time.Duration {
	switch p.activity.LevelFor(key, now) {
	case High:
		return p.cfg.HighChunk
	case None:
		return p.cfg.NoneChunk
	default:
		return (p.cfg.HighChunk + p.cfg.NoneChunk) / 2
	}
}

// OnAudio records an event for key and evaluates the duration and ceiling
// triggers against the post-append buffered duration.
func (p *Policy) OnAudio(key string, isVoice bool, buffered time.Duration, now time.Time) (Reason, bool) {
	p.activity.Observe(key, isVoice, now)
	s := p.speaker(key)
	s.lastEval = now

	if buffered >= p.cfg.MaxChunk || buffered >= p.ChunkDuration(key, now) {
		s.phase = ReadyToFlush
		return ReasonChunkReady, true
	}
	if buffered > 0 && s.phase == Idle {
		s.phase = Accumulating
	}
	return "", false
}

// OnSilence evaluates key when its debounced silence timer fires.
func (p *Policy) OnSilence(key string, buffered time.Duration) (Reason, bool) {
	if buffered < p.cfg.MinFlush {
		return "", false
	}
	p.speaker(key).phase = ReadyToFlush
	return ReasonSilence, true
}

// OnSweep is the periodic evaluation for speakers that received no event.
func (p *Policy) OnSweep(key string, buffered time.Duration, now time.Time) (Reason, bool) {
	s := p.speaker(key)
	switch {
	case buffered >= p.cfg.MaxChunk:
		s.phase = ReadyToFlush
		return ReasonChunkReady, true
	case buffered >= p.ChunkDuration(key, now):
		s.phase = ReadyToFlush
		return ReasonPeriodic, true
	case buffered >= p.cfg.MinFlush && now.Sub(s.lastEval) >= p.cfg.SilenceTimeout:
		s.phase = ReadyToFlush
		return ReasonTimeout, true
	}
	return "", false
}

// Flushed resets key after its buffer was extracted.
func (p *Policy) Flushed(key string, now time.Time) {
	s := p.speaker(key)
	s.phase = Idle
	s.lastEval = now
}

// Phase returns key's boundary state.
func (p *Policy) Phase(key string) Phase {
	if s, ok := p.speakers[key]; ok {
		return s.phase
	}
	return Idle
}

// Forget drops key's state after eviction.
func (p *Policy) Forget(key string) {
	delete(p.speakers, key)
}

// IsSilent reports a chunk whose peak stays under the silence threshold.
func (p *Policy) IsSilent(samples []float32) bool {
	return audio.Peak(samples) < p.cfg.SilencePeak
}
