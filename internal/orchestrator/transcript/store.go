package transcript

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// EventKind distinguishes new segments from extended ones.
type EventKind string

const (
	SegmentCreated EventKind = "created"
	SegmentUpdated EventKind = "updated"
)

// Event is published for every change to the segment log.
type Event struct {
	Kind    EventKind
	Segment Segment
}

// Store is the insertion-ordered segment log. Order is finalization order,
// which may differ from audio order across speakers.
type Store struct {
	mu       sync.RWMutex
	segments []Segment
	index    map[string]int // segment ID -> position
	last     map[string]int // speaker key -> position of newest segment
	eventsCh chan Event
}

// NewStore creates an empty log.
func NewStore(eventBuffer int) *Store {
	return &Store{
		index:    make(map[string]int),
		last:     make(map[string]int),
		eventsCh: make(chan Event, eventBuffer),
	}
}

// Append adds a new segment and publishes it.
func (s *Store) Append(seg Segment) {
	s.mu.Lock()
	s.segments = append(s.segments, seg)
	pos := len(s.segments) - 1
	s.index[seg.ID] = pos
	s.last[seg.SpeakerKey] = pos
	s.mu.Unlock()

	s.Emit(Event{Kind: SegmentCreated, Segment: seg})
}

// Replace updates a segment in place, keeping its position.
func (s *Store) Replace(seg Segment) error {
	s.mu.Lock()
	pos, ok := s.index[seg.ID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("segment %s not in log", seg.ID)
	}
	s.segments[pos] = seg
	s.mu.Unlock()

	s.Emit(Event{Kind: SegmentUpdated, Segment: seg})
	return nil
}

// LastFor returns the most recent segment for a speaker key.
func (s *Store) LastFor(key string) (Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.last[key]
	if !ok {
		return Segment{}, false
	}
	return s.segments[pos], true
}

// Tail returns up to n most recently appended segments, oldest first.
func (s *Store) Tail(n int) []Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.segments) {
		n = len(s.segments)
	}
	out := make([]Segment, n)
	copy(out, s.segments[len(s.segments)-n:])
	return out
}

// All returns a copy of the whole log.
func (s *Store) All() []Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// Len returns the number of segments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments)
}

// Recent renders segments that ended within d of now as "Speaker: text" lines.
func (s *Store) Recent(d time.Duration, now time.Time) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := now.Add(-d)
	var parts []string
	for _, seg := range s.segments {
		if !seg.EndTime.Before(cutoff) {
			parts = append(parts, seg.Speaker+": "+seg.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Restore replaces the log without publishing events.
func (s *Store) Restore(segments []Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = append([]Segment(nil), segments...)
	s.index = make(map[string]int, len(segments))
	s.last = make(map[string]int)
	for i, seg := range s.segments {
		s.index[seg.ID] = i
		s.last[seg.SpeakerKey] = i
	}
}

// Events returns the channel of log changes.
func (s *Store) Events() <-chan Event {
	return s.eventsCh
}

// Emit publishes an event without blocking; slow consumers miss events but
// can always re-read the log.
func (s *Store) Emit(event Event) {
	select {
	case s.eventsCh <- event:
	default:
	}
}
