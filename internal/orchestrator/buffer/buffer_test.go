package buffer

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func samples(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestAppendAndFlush(t *testing.T) {
	b := New(0)

	b.Append("S1", samples(8000, 0.1), 16000, t0, t0)
	d := b.Append("S1", samples(8000, 0.2), 16000, t0.Add(500*time.Millisecond), t0.Add(500*time.Millisecond))

	if d != time.Second {
		t.Errorf("Append returned %v, want 1s", d)
	}

	c, ok := b.Flush("S1")
	if !ok {
		t.Fatal("Flush should return buffered audio")
	}
	if len(c.Samples) != 16000 || c.SampleRate != 16000 {
		t.Errorf("chunk = %d samples @ %d", len(c.Samples), c.SampleRate)
	}
	if !c.StartTime.Equal(t0) || !c.EndTime().Equal(t0.Add(time.Second)) {
		t.Errorf("chunk span = %v..%v", c.StartTime, c.EndTime())
	}
	if c.Samples[8000] != 0.2 {
		t.Error("samples should be in append order")
	}

	if _, ok := b.Flush("S1"); ok {
		t.Error("second Flush should report empty")
	}
	if b.Duration("S1") != 0 {
		t.Error("flush should clear the buffer")
	}
}

func TestFlushUnknownSpeaker(t *testing.T) {
	b := New(0)
	if _, ok := b.Flush("nobody"); ok {
		t.Error("Flush of unknown speaker should report empty")
	}
}

func TestAppendIsolatesSpeakers(t *testing.T) {
	b := New(0)
	b.Append("S1", samples(1600, 0.1), 16000, t0, t0)
	b.Append("S2", samples(3200, 0.1), 16000, t0, t0)

	if b.Duration("S1") != 100*time.Millisecond || b.Duration("S2") != 200*time.Millisecond {
		t.Errorf("durations = %v", b.Durations())
	}
	if keys := b.Keys(); len(keys) != 2 || keys[0] != "S1" {
		t.Errorf("Keys() = %v", keys)
	}
}

func TestAppendTrimsOldest(t *testing.T) {
	b := New(2 * time.Second)
	b.Append("S1", samples(16000, 0.1), 16000, t0, t0)
	b.Append("S1", samples(16000, 0.2), 16000, t0.Add(time.Second), t0.Add(time.Second))
	d := b.Append("S1", samples(16000, 0.3), 16000, t0.Add(2*time.Second), t0.Add(2*time.Second))

	if d != 2*time.Second {
		t.Fatalf("duration = %v, want capped at 2s", d)
	}
	c, _ := b.Flush("S1")
	if c.Samples[0] != 0.2 {
		t.Errorf("oldest sample = %v, want 0.2 (first second trimmed)", c.Samples[0])
	}
	if !c.StartTime.Equal(t0.Add(time.Second)) {
		t.Errorf("StartTime = %v, want advanced by trimmed audio", c.StartTime)
	}
}

func TestAppendResamplesMismatchedRate(t *testing.T) {
	b := New(0)
	b.Append("S1", samples(16000, 0.1), 16000, t0, t0)
	d := b.Append("S1", samples(48000, 0.1), 48000, t0.Add(time.Second), t0.Add(time.Second))

	if d != 2*time.Second {
		t.Errorf("duration = %v, want 2s after resampling 48k into 16k buffer", d)
	}
	st := b.States()["S1"]
	if len(st.Samples) != 32000 || st.SampleRate != 16000 {
		t.Errorf("state = %d samples @ %d", len(st.Samples), st.SampleRate)
	}
}

func TestEmptyBufferAdoptsNewRate(t *testing.T) {
	b := New(0)
	b.Append("S1", samples(1600, 0.1), 16000, t0, t0)
	b.Flush("S1")
	b.Append("S1", samples(4800, 0.1), 48000, t0.Add(time.Second), t0.Add(time.Second))

	c, _ := b.Flush("S1")
	if c.SampleRate != 48000 || len(c.Samples) != 4800 {
		t.Errorf("chunk = %d @ %d, want 4800 @ 48000", len(c.Samples), c.SampleRate)
	}
}

func TestEvict(t *testing.T) {
	b := New(0)
	b.Append("old", samples(160, 0.1), 16000, t0, t0)
	b.Append("new", samples(160, 0.1), 16000, t0.Add(2*time.Minute), t0.Add(2*time.Minute))

	evicted := b.Evict(2*time.Minute, t0.Add(2*time.Minute+time.Second))
	if len(evicted) != 1 || evicted[0] != "old" {
		t.Errorf("evicted = %v, want [old]", evicted)
	}
	if keys := b.Keys(); len(keys) != 1 || keys[0] != "new" {
		t.Errorf("Keys() = %v, want [new]", keys)
	}
}

func TestActivityUsesLocalClock(t *testing.T) {
	b := New(0)
	skewed := t0.Add(-time.Hour) // sender clock an hour behind
	b.Append("S1", samples(160, 0.1), 16000, skewed, t0)

	st := b.States()["S1"]
	if !st.StartTime.Equal(skewed) || !st.LastActivity.Equal(t0) {
		t.Errorf("start = %v, last activity = %v; want %v, %v", st.StartTime, st.LastActivity, skewed, t0)
	}
	if evicted := b.Evict(2*time.Minute, t0.Add(time.Minute)); len(evicted) != 0 {
		t.Errorf("evicted = %v, a recently active speaker must stay", evicted)
	}
}

func TestStatesRestoreAreCopies(t *testing.T) {
	b := New(0)
	b.Append("S1", samples(160, 0.5), 16000, t0, t0)

	snap := b.States()
	snap["S1"].Samples[0] = 0

	restored := New(0)
	restored.Restore(snap)
	snap["S1"].Samples[1] = 0

	c, ok := restored.Flush("S1")
	if !ok || len(c.Samples) != 160 {
		t.Fatal("restored buffer should hold the snapshot audio")
	}
	if c.Samples[1] != 0.5 {
		t.Error("Restore should copy samples")
	}
	if orig, _ := b.Flush("S1"); orig.Samples[0] != 0.5 {
		t.Error("States should copy samples")
	}
}

func TestRequeuePrependsChunk(t *testing.T) {
	b := New(0)
	b.Append("S1", samples(16000, 0.1), 16000, t0, t0)
	chunk, _ := b.Flush("S1")
	b.Append("S1", samples(8000, 0.2), 16000, t0.Add(time.Second), t0.Add(time.Second))

	b.Requeue(chunk)

	if got := b.Duration("S1"); got != 1500*time.Millisecond {
		t.Errorf("Duration() = %v, want 1.5s", got)
	}
	c, _ := b.Flush("S1")
	if !c.StartTime.Equal(t0) {
		t.Errorf("StartTime = %v, want requeued chunk start", c.StartTime)
	}
	if c.Samples[0] != 0.1 || c.Samples[len(c.Samples)-1] != 0.2 {
		t.Error("requeued audio should come first")
	}
}

func TestRequeueIntoEmptyBuffer(t *testing.T) {
	b := New(0)
	b.Requeue(Chunk{SpeakerKey: "S2", Samples: samples(800, 0.3), SampleRate: 16000, StartTime: t0})

	if got := b.Duration("S2"); got != 50*time.Millisecond {
		t.Errorf("Duration() = %v, want 50ms", got)
	}
}
