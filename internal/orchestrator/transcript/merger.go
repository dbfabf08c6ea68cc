package transcript

import (
	"time"

	"github.com/google/uuid"
)

// Defaults for the merge rule.
const (
	DefaultMergeWindow = 2 * time.Second
	DefaultLookback    = 10
)

// Outcome reports what Reconcile did with a fragment.
type Outcome int

const (
	Dropped Outcome = iota // nothing left after cleanup
	Created
	Merged
)

func (o Outcome) String() string {
	return [...]string{"dropped", "created", "merged"}[o]
}

// MergerConfig holds the merge rule parameters.
type MergerConfig struct {
	Window   time.Duration
	Lookback int
	StreamID string
}

// Merger stitches fragments into the segment log. Reconcile must be called
// from a single goroutine.
type Merger struct {
	cfg   MergerConfig
	store *Store
	names *Names
}

// NewMerger creates a merger writing to store.
func NewMerger(cfg MergerConfig, store *Store, names *Names) *Merger {
	if cfg.Window <= 0 {
		cfg.Window = DefaultMergeWindow
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	return &Merger{cfg: cfg, store: store, names: names}
}

// Reconcile cleans f and either extends the speaker's latest segment or
// appends a new one.
func (m *Merger) Reconcile(f Fragment) (Segment, Outcome) {
	text := Clean(f.Text)
	if text == "" {
		return Segment{}, Dropped
	}

	if last, ok := m.store.LastFor(f.SpeakerKey); ok && m.canMerge(last, f) {
		seg := extend(last, f, text)
		if err := m.store.Replace(seg); err == nil {
			return seg, Merged
		}
	}

	seg := Segment{
		ID:         uuid.New().String(),
		Speaker:    m.names.Resolve(f.SpeakerKey),
		SpeakerKey: f.SpeakerKey,
		Text:       text,
		Topic:      Classify(text),
		StartTime:  f.Timestamp,
		EndTime:    f.EndTime(),
		Duration:   f.Duration,
		Confidence: f.Confidence,
		StreamID:   m.cfg.StreamID,
		Fragments:  1,
	}
	m.store.Append(seg)
	return seg, Created
}

func (m *Merger) canMerge(last Segment, f Fragment) bool {
	if f.Timestamp.Sub(last.EndTime) >= m.cfg.Window {
		return false
	}
	return !m.intervened(last, f)
}

// intervened reports a different speaker's segment starting or ending
// strictly inside the gap (last.EndTime, f.Timestamp), among recent segments.
func (m *Merger) intervened(last Segment, f Fragment) bool {
	inGap := func(t time.Time) bool {
		return t.After(last.EndTime) && t.Before(f.Timestamp)
	}
	for _, seg := range m.store.Tail(m.cfg.Lookback) {
		if seg.SpeakerKey == f.SpeakerKey {
			continue
		}
		if inGap(seg.StartTime) || inGap(seg.EndTime) {
			return true
		}
	}
	return false
}

func extend(seg Segment, f Fragment, text string) Segment {
	total := seg.Duration + f.Duration
	if total > 0 {
		seg.Confidence = (seg.Confidence*float64(seg.Duration) + f.Confidence*float64(f.Duration)) / float64(total)
	}
	seg.Text = joinText(seg.Text, text)
	seg.Topic = Classify(seg.Text)
	seg.Duration = total
	if end := f.EndTime(); end.After(seg.EndTime) {
		seg.EndTime = end
	}
	seg.Fragments++
	return seg
}
