// Package buffer accumulates raw samples per speaker until the chunk policy
// asks for a flush.
package buffer

import (
	"log/slog"
	"sort"
	"time"

	"github.com/GriffinCanCode/speakerline/internal/audio"
)

// DefaultMaxBuffered caps retained audio per speaker.
const DefaultMaxBuffered = 60 * time.Second

// State is one speaker's pending audio.
type State struct {
	Samples      []float32
	SampleRate   int
	StartTime    time.Time // audio time of Samples[0]
	LastActivity time.Time
}

// Duration is always len(Samples)/SampleRate.
func (s State) Duration() time.Duration {
	return audio.SamplesDuration(len(s.Samples), s.SampleRate)
}

// Chunk is a flushed, contiguous span of one speaker's audio.
type Chunk struct {
	SpeakerKey string
	Samples    []float32
	SampleRate int
	StartTime  time.Time
}

func (c Chunk) Duration() time.Duration {
	return audio.SamplesDuration(len(c.Samples), c.SampleRate)
}

// EndTime is the audio time just past the last sample.
func (c Chunk) EndTime() time.Time {
	return c.StartTime.Add(c.Duration())
}

// Buffers holds per-speaker state. It is owned by the coordinator loop and
// is not safe for concurrent use.
type Buffers struct {
	states      map[string]*State
	maxBuffered time.Duration
}

// New creates an empty set of buffers. maxBuffered <= 0 uses DefaultMaxBuffered.
func New(maxBuffered time.Duration) *Buffers {
	if maxBuffered <= 0 {
		maxBuffered = DefaultMaxBuffered
	}
	return &Buffers{states: make(map[string]*State), maxBuffered: maxBuffered}
}

// Append adds samples for key. at is the audio time of the first sample and
// only seeds StartTime; LastActivity is stamped with the local clock's now so
// eviction never compares against a remote clock. Samples at a different rate
// than already-buffered audio are resampled to the buffer's rate. It returns
// the buffered duration after the append.
func (b *Buffers) Append(key string, samples []float32, rate int, at, now time.Time) time.Duration {
	st, ok := b.states[key]
	if !ok {
		st = &State{SampleRate: rate}
		b.states[key] = st
	}
	st.LastActivity = now
	if len(samples) == 0 || rate <= 0 {
		return st.Duration()
	}

	if len(st.Samples) == 0 {
		st.SampleRate = rate
		st.StartTime = at
	} else if rate != st.SampleRate {
		converted, err := audio.Resample(samples, rate, st.SampleRate)
		if err != nil {
			slog.Warn("dropping event with unconvertible sample rate", "speaker", key, "from", rate, "to", st.SampleRate, "error", err)
			return st.Duration()
		}
		samples = converted
	}

	st.Samples = append(st.Samples, samples...)
	b.trim(key, st)
	return st.Duration()
}

// trim drops the oldest samples beyond maxBuffered.
func (b *Buffers) trim(key string, st *State) {
	limit := int(b.maxBuffered.Seconds() * float64(st.SampleRate))
	excess := len(st.Samples) - limit
	if excess <= 0 {
		return
	}
	dropped := audio.SamplesDuration(excess, st.SampleRate)
	st.Samples = append(st.Samples[:0:0], st.Samples[excess:]...)
	st.StartTime = st.StartTime.Add(dropped)
	slog.Warn("speaker buffer over cap, trimmed oldest audio", "speaker", key, "dropped", dropped, "cap", b.maxBuffered)
}

// Flush extracts and clears key's samples. ok is false when nothing is buffered.
func (b *Buffers) Flush(key string) (Chunk, bool) {
	st, exists := b.states[key]
	if !exists || len(st.Samples) == 0 {
		return Chunk{}, false
	}
	c := Chunk{
		SpeakerKey: key,
		Samples:    st.Samples,
		SampleRate: st.SampleRate,
		StartTime:  st.StartTime,
	}
	st.Samples = nil
	st.StartTime = time.Time{}
	return c, true
}

// Requeue puts a chunk's audio back in front of anything buffered since it
// was flushed, so an undelivered chunk is not lost.
func (b *Buffers) Requeue(c Chunk) {
	if len(c.Samples) == 0 || c.SampleRate <= 0 {
		return
	}
	st, ok := b.states[c.SpeakerKey]
	if !ok {
		st = &State{LastActivity: c.EndTime()}
		b.states[c.SpeakerKey] = st
	}
	if len(st.Samples) == 0 {
		st.Samples = append([]float32(nil), c.Samples...)
		st.SampleRate = c.SampleRate
		st.StartTime = c.StartTime
		b.trim(c.SpeakerKey, st)
		return
	}

	samples := c.Samples
	if c.SampleRate != st.SampleRate {
		converted, err := audio.Resample(samples, c.SampleRate, st.SampleRate)
		if err != nil {
			slog.Warn("dropping requeued chunk with unconvertible sample rate", "speaker", c.SpeakerKey, "error", err)
			return
		}
		samples = converted
	}
	merged := make([]float32, 0, len(samples)+len(st.Samples))
	st.Samples = append(append(merged, samples...), st.Samples...)
	st.StartTime = c.StartTime
	b.trim(c.SpeakerKey, st)
}

// Duration returns the buffered duration for key.
func (b *Buffers) Duration(key string) time.Duration {
	if st, ok := b.states[key]; ok {
		return st.Duration()
	}
	return 0
}

// Keys returns tracked speakers in sorted order.
func (b *Buffers) Keys() []string {
	keys := make([]string, 0, len(b.states))
	for k := range b.states {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Durations returns the buffered duration of every tracked speaker.
func (b *Buffers) Durations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(b.states))
	for k, st := range b.states {
		out[k] = st.Duration()
	}
	return out
}

// Evict removes speakers whose last activity is older than idle. Any
// audio still buffered for them is discarded.
func (b *Buffers) Evict(idle time.Duration, now time.Time) []string {
	var evicted []string
	for key, st := range b.states {
		if now.Sub(st.LastActivity) < idle {
			continue
		}
		if n := len(st.Samples); n > 0 {
			slog.Warn("evicting idle speaker with buffered audio", "speaker", key, "buffered", st.Duration())
		}
		delete(b.states, key)
		evicted = append(evicted, key)
	}
	sort.Strings(evicted)
	return evicted
}

// States returns a deep copy of every speaker's state.
func (b *Buffers) States() map[string]State {
	out := make(map[string]State, len(b.states))
	for k, st := range b.states {
		cp := *st
		cp.Samples = append([]float32(nil), st.Samples...)
		out[k] = cp
	}
	return out
}

// Restore replaces all state with a copy of states.
func (b *Buffers) Restore(states map[string]State) {
	b.states = make(map[string]*State, len(states))
	for k, st := range states {
		cp := st
		cp.Samples = append([]float32(nil), st.Samples...)
		b.states[k] = &cp
	}
}
