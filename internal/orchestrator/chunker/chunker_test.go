package chunker

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestLevelIgnoresOwnEvents(t *testing.T) {
	a := NewActivity(5 * time.Second)
	for i := 0; i < 6; i++ {
		a.Observe("S1", true, t0.Add(ms(500*i)))
	}

	if got := a.LevelFor("S1", t0.Add(3*time.Second)); got != None {
		t.Errorf("LevelFor(S1) = %v, want none", got)
	}
	if got := a.LevelFor("S2", t0.Add(3*time.Second)); got != High {
		t.Errorf("LevelFor(S2) = %v, want high", got)
	}
}

func TestLevelClassification(t *testing.T) {
	tests := []struct {
		name   string
		events []activityEvent
		want   Level
	}{
		{"nobody", nil, None},
		{"one other non-voice", []activityEvent{{"S2", false, t0}}, Low},
		{"one other voice", []activityEvent{{"S2", true, t0}}, Low},
		{"two other voice events", []activityEvent{{"S2", true, t0}, {"S2", true, t0.Add(ms(100))}}, High},
		{"two other speakers", []activityEvent{{"S2", false, t0}, {"S3", false, t0}}, High},
		{"self and one other", []activityEvent{{"S2", true, t0}, {"S1", true, t0.Add(ms(500))}}, High},
		{"self and one silent other", []activityEvent{{"S2", false, t0}, {"S1", true, t0.Add(ms(500))}}, High},
		{"own voice only", []activityEvent{{"S1", true, t0}, {"S1", true, t0.Add(ms(500))}}, None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewActivity(5 * time.Second)
			for _, ev := range tt.events {
				a.Observe(ev.speaker, ev.voice, ev.at)
			}
			if got := a.LevelFor("S1", t0.Add(time.Second)); got != tt.want {
				t.Errorf("LevelFor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTwoSpeakersShortenChunks(t *testing.T) {
	p := New(DefaultConfig())
	p.OnAudio("S2", true, ms(200), t0)
	p.OnAudio("S1", true, ms(200), t0.Add(time.Second))

	if d := p.ChunkDuration("S1", t0.Add(time.Second)); d != 1500*time.Millisecond {
		t.Errorf("duration with two speakers = %v, want 1.5s", d)
	}
}

func TestReportedLevelMatchesChunking(t *testing.T) {
	a := NewActivity(5 * time.Second)
	for i := 0; i < 4; i++ {
		a.Observe("S1", true, t0.Add(ms(500*i)))
	}
	now := t0.Add(2 * time.Second)
	if got := a.Level(now); got != None {
		t.Errorf("Level for a lone talker = %v, want none", got)
	}

	a.Observe("S2", false, now)
	if got := a.Level(now); got != High {
		t.Errorf("Level with two speakers = %v, want high", got)
	}
	if got := a.Level(now.Add(6 * time.Second)); got != None {
		t.Errorf("Level after window = %v, want none", got)
	}
}

func TestActivityWindowExpires(t *testing.T) {
	a := NewActivity(5 * time.Second)
	a.Observe("S2", true, t0)
	a.Observe("S2", true, t0)

	if got := a.LevelFor("S1", t0.Add(5*time.Second+ms(1))); got != None {
		t.Errorf("LevelFor after window = %v, want none", got)
	}
}

func TestChunkDuration(t *testing.T) {
	p := New(DefaultConfig())

	if d := p.ChunkDuration("S1", t0); d != 5*time.Second {
		t.Errorf("idle duration = %v, want 5s", d)
	}
	p.Activity().Observe("S2", true, t0)
	if d := p.ChunkDuration("S1", t0); d != 3250*time.Millisecond {
		t.Errorf("low duration = %v, want 3.25s", d)
	}
	p.Activity().Observe("S3", true, t0)
	if d := p.ChunkDuration("S1", t0); d != 1500*time.Millisecond {
		t.Errorf("high duration = %v, want 1.5s", d)
	}
}

func TestNoFlushBelowAdaptiveDuration(t *testing.T) {
	p := New(DefaultConfig())

	for i := 1; i <= 9; i++ {
		at := t0.Add(ms(500 * i))
		if r, ok := p.OnAudio("S1", true, ms(500*i), at); ok {
			t.Fatalf("event %d flushed with %s at %v buffered", i, r, ms(500*i))
		}
	}
	if p.Phase("S1") != Accumulating {
		t.Errorf("phase = %v, want accumulating", p.Phase("S1"))
	}

	r, ok := p.OnAudio("S1", true, 5*time.Second, t0.Add(5*time.Second))
	if !ok || r != ReasonChunkReady {
		t.Errorf("at 5s: (%q, %v), want chunk-ready", r, ok)
	}
	if p.Phase("S1") != ReadyToFlush {
		t.Errorf("phase = %v, want ready", p.Phase("S1"))
	}
}

func TestHardCeiling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NoneChunk = time.Minute // adaptive trigger never fires
	p := New(cfg)

	if _, ok := p.OnAudio("S1", true, 19*time.Second, t0); ok {
		t.Fatal("should not flush under the ceiling")
	}
	if r, ok := p.OnAudio("S1", true, 20*time.Second, t0); !ok || r != ReasonChunkReady {
		t.Errorf("(%q, %v), want forced chunk-ready at ceiling", r, ok)
	}
	if r, ok := p.OnSweep("S1", 20*time.Second, t0); !ok || r != ReasonChunkReady {
		t.Errorf("sweep (%q, %v), want forced chunk-ready at ceiling", r, ok)
	}
}

func TestOnSilenceFloor(t *testing.T) {
	p := New(DefaultConfig())

	if _, ok := p.OnSilence("S1", ms(499)); ok {
		t.Error("silence flush below floor")
	}
	if r, ok := p.OnSilence("S1", ms(500)); !ok || r != ReasonSilence {
		t.Errorf("(%q, %v), want silence", r, ok)
	}
}

func TestOnSweep(t *testing.T) {
	p := New(DefaultConfig())
	p.OnAudio("S1", true, time.Second, t0)

	if _, ok := p.OnSweep("S1", time.Second, t0.Add(ms(1499))); ok {
		t.Error("sweep flushed before the silence timeout")
	}
	if r, ok := p.OnSweep("S1", time.Second, t0.Add(ms(1500))); !ok || r != ReasonTimeout {
		t.Errorf("(%q, %v), want timeout", r, ok)
	}

	p.Flushed("S1", t0.Add(ms(1500)))
	if p.Phase("S1") != Idle {
		t.Error("Flushed should reset phase")
	}
	if r, ok := p.OnSweep("S1", 5*time.Second, t0.Add(ms(1600))); !ok || r != ReasonPeriodic {
		t.Errorf("(%q, %v), want periodic", r, ok)
	}
	if _, ok := p.OnSweep("S1", ms(100), t0.Add(time.Hour)); ok {
		t.Error("sweep should respect the floor")
	}
}

func TestIsSilent(t *testing.T) {
	p := New(DefaultConfig())

	if !p.IsSilent([]float32{0.0005, -0.0009, 0}) {
		t.Error("sub-threshold chunk should be silent")
	}
	if p.IsSilent([]float32{0, -0.002}) {
		t.Error("chunk with a sample at 0.002 is not silent")
	}
}

func TestForget(t *testing.T) {
	p := New(DefaultConfig())
	p.OnAudio("S1", true, time.Second, t0)
	p.Forget("S1")

	if p.Phase("S1") != Idle {
		t.Error("forgotten speaker should be idle")
	}
}
