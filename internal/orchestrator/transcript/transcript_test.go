package transcript

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func frag(key, text string, at, dur time.Duration) Fragment {
	return Fragment{SpeakerKey: key, Text: text, Confidence: 0.9, Timestamp: t0.Add(at), Duration: dur}
}

func newMerger() (*Merger, *Store) {
	store := NewStore(64)
	return NewMerger(MergerConfig{StreamID: "sess"}, store, NewNames(nil)), store
}

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"um so I I think we're gonna ship it", "So I think we're going to ship it"},
		{"i dunno.   maybe tomorrow", "I don't know. Maybe tomorrow"},
		{"uh, the the the plan is fine , right", "The plan is fine, right"},
		{"you know we kinda wanna wait", "We kind of want to wait"},
		{"i'm here", "I'm here"},
		{"um uh", ""},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text, want string
	}{
		{"We need to deploy the server before the release", "Technical Discussion"},
		{"The budget and the cost look high", "Budget & Finance"},
		{"Let's review the timeline and the next milestone", "Project Planning"},
		{"Option 2 looks better to me", OptionsTopic},
		{"Nice weather today", DefaultTopic},
		{"Just one bug", DefaultTopic},
	}
	for _, tt := range tests {
		if got := Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestNames(t *testing.T) {
	n := NewNames(map[string]string{"local:mic": "Alice"})

	if got := n.Resolve("local:mic"); got != "Alice" {
		t.Errorf("alias = %q, want Alice", got)
	}
	fallback := n.Resolve("remote:abc")
	if !strings.HasPrefix(fallback, "Speaker ") || len(fallback) != len("Speaker 0000") {
		t.Errorf("fallback = %q", fallback)
	}
	if n.Resolve("remote:abc") != fallback {
		t.Error("names must be stable within a session")
	}

	restored := NewNames(nil)
	restored.Restore(n.Snapshot())
	if restored.Resolve("local:mic") != "Alice" {
		t.Error("restored names should survive")
	}
}

func TestReconcileCreatesThenMerges(t *testing.T) {
	m, store := newMerger()

	seg, out := m.Reconcile(frag("S1", "hello there", 0, time.Second))
	if out != Created {
		t.Fatalf("first fragment outcome = %v, want created", out)
	}
	if seg.StreamID != "sess" || seg.Fragments != 1 {
		t.Errorf("unexpected segment %+v", seg)
	}

	merged, out := m.Reconcile(frag("S1", "how are you", 1500*time.Millisecond, time.Second))
	if out != Merged {
		t.Fatalf("second fragment outcome = %v, want merged", out)
	}
	if merged.ID != seg.ID {
		t.Error("merge must keep the segment identity")
	}
	if merged.Text != "Hello there How are you" {
		t.Errorf("text = %q", merged.Text)
	}
	if want := t0.Add(2500 * time.Millisecond); !merged.EndTime.Equal(want) {
		t.Errorf("end = %v, want %v", merged.EndTime, want)
	}
	if merged.Duration != 2*time.Second {
		t.Errorf("duration = %v, want 2s", merged.Duration)
	}
	if store.Len() != 1 {
		t.Errorf("log length = %d, want 1", store.Len())
	}
}

func TestReconcileWindowBoundary(t *testing.T) {
	m, store := newMerger()
	m.Reconcile(frag("S1", "first", 0, time.Second))
	_, out := m.Reconcile(frag("S1", "second", 3*time.Second, time.Second))
	if out != Created {
		t.Errorf("gap of exactly the window should not merge, got %v", out)
	}
	if store.Len() != 2 {
		t.Errorf("log length = %d, want 2", store.Len())
	}
}

func TestReconcileInterveningSpeaker(t *testing.T) {
	m, store := newMerger()
	m.Reconcile(frag("S1", "I think", 0, time.Second))
	m.Reconcile(frag("S2", "wait", 1200*time.Millisecond, 300*time.Millisecond))

	_, out := m.Reconcile(frag("S1", "we should go", 2999*time.Millisecond, time.Second))
	if out != Created {
		t.Errorf("intervening speaker must block merge, got %v", out)
	}

	segs := store.All()
	if len(segs) != 3 {
		t.Fatalf("log length = %d, want 3", len(segs))
	}
	if segs[0].SpeakerKey != "S1" || segs[1].SpeakerKey != "S2" || segs[2].SpeakerKey != "S1" {
		t.Error("log must keep finalization order")
	}
}

func TestReconcileLookbackBound(t *testing.T) {
	m, _ := newMerger()
	m.Reconcile(frag("S1", "start", 9*time.Second, time.Second))
	m.Reconcile(frag("S2", "interjection", 10500*time.Millisecond, 200*time.Millisecond))
	// Ten older segments from other speakers push S2 out of the lookback.
	for i := 0; i < DefaultLookback; i++ {
		m.Reconcile(frag(fmt.Sprintf("S%d", i+3), "noise", time.Duration(i)*100*time.Millisecond, 50*time.Millisecond))
	}

	_, out := m.Reconcile(frag("S1", "continued", 11500*time.Millisecond, time.Second))
	if out != Merged {
		t.Errorf("segments beyond lookback should not block, got %v", out)
	}
}

func TestReconcileConfidenceWeighted(t *testing.T) {
	m, _ := newMerger()
	a := frag("S1", "one", 0, 3*time.Second)
	a.Confidence = 1.0
	b := frag("S1", "two", 3*time.Second, time.Second)
	b.Confidence = 0.6

	m.Reconcile(a)
	seg, _ := m.Reconcile(b)
	if math.Abs(seg.Confidence-0.9) > 1e-9 {
		t.Errorf("confidence = %v, want 0.9", seg.Confidence)
	}
}

func TestReconcileDropsEmpty(t *testing.T) {
	m, store := newMerger()
	if _, out := m.Reconcile(frag("S1", "um uh", 0, time.Second)); out != Dropped {
		t.Errorf("outcome = %v, want dropped", out)
	}
	if store.Len() != 0 {
		t.Error("dropped fragments must not reach the log")
	}
}

func TestReconcileRetagsTopic(t *testing.T) {
	m, _ := newMerger()
	seg, _ := m.Reconcile(frag("S1", "the server", 0, time.Second))
	if seg.Topic != DefaultTopic {
		t.Fatalf("topic = %q", seg.Topic)
	}
	seg, _ = m.Reconcile(frag("S1", "needs a deploy", time.Second, time.Second))
	if seg.Topic != "Technical Discussion" {
		t.Errorf("merged topic = %q, want Technical Discussion", seg.Topic)
	}
}

func TestStoreEvents(t *testing.T) {
	m, store := newMerger()
	m.Reconcile(frag("S1", "hello", 0, time.Second))
	m.Reconcile(frag("S1", "again", time.Second, time.Second))

	want := []EventKind{SegmentCreated, SegmentUpdated}
	for _, kind := range want {
		select {
		case ev := <-store.Events():
			if ev.Kind != kind {
				t.Errorf("event kind = %v, want %v", ev.Kind, kind)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestStoreEmitNonBlocking(t *testing.T) {
	s := NewStore(1)
	s.Emit(Event{Kind: SegmentCreated})

	done := make(chan struct{})
	go func() {
		s.Emit(Event{Kind: SegmentCreated})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("Emit blocked on a full buffer")
	}
}

func TestStoreRecentAndRestore(t *testing.T) {
	s := NewStore(8)
	s.Restore([]Segment{
		{ID: "a", Speaker: "Alice", SpeakerKey: "S1", Text: "Old", EndTime: t0},
		{ID: "b", Speaker: "Bob", SpeakerKey: "S2", Text: "New", EndTime: t0.Add(2 * time.Minute)},
	})

	recent := s.Recent(time.Minute, t0.Add(150*time.Second))
	if strings.Contains(recent, "Old") {
		t.Error("should not contain old segment")
	}
	if !strings.Contains(recent, "Bob: New") {
		t.Errorf("recent = %q", recent)
	}

	if last, ok := s.LastFor("S1"); !ok || last.ID != "a" {
		t.Error("restore should rebuild the per-speaker index")
	}
	if err := s.Replace(Segment{ID: "missing"}); err == nil {
		t.Error("replacing an unknown segment should fail")
	}
}
