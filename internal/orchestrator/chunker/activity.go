package chunker

import "time"

// Level is the cross-speaker activity classification.
type Level int

const (
	None Level = iota
	Low
	High
)

func (l Level) String() string {
	return [...]string{"none", "low", "high"}[l]
}

type activityEvent struct {
	speaker string
	voice   bool
	at      time.Time
}

// Activity is a trailing window of audio events across all speakers.
type Activity struct {
	window time.Duration
	events []activityEvent
}

// NewActivity creates a tracker with the given trailing window.
func NewActivity(window time.Duration) *Activity {
	return &Activity{window: window}
}

// Observe records an event.
func (a *Activity) Observe(speaker string, voice bool, at time.Time) {
	a.prune(at)
	a.events = append(a.events, activityEvent{speaker: speaker, voice: voice, at: at})
}

func (a *Activity) prune(now time.Time) {
	cutoff := now.Add(-a.window)
	i := 0
	for i < len(a.events) && !a.events[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		a.events = append(a.events[:0], a.events[i:]...)
	}
}

// LevelFor classifies activity from the point of view of speaker. Two or
// more distinct speakers in the window, speaker included, is High, as are two
// voice events from others. A speaker's own voice events never raise its level,
// so a lone talker stays at None.
func (a *Activity) LevelFor(speaker string, now time.Time) Level {
	a.prune(now)
	speakers := make(map[string]struct{})
	others, otherVoice := 0, 0
	for _, ev := range a.events {
		speakers[ev.speaker] = struct{}{}
		if ev.speaker == speaker {
			continue
		}
		others++
		if ev.voice {
			otherVoice++
		}
	}
	switch {
	case others == 0:
		return None
	case len(speakers) >= 2 || otherVoice >= 2:
		return High
	default:
		return Low
	}
}

// Level is the highest LevelFor among speakers active in the window, so the
// reported level matches how chunks are being sized.
func (a *Activity) Level(now time.Time) Level {
	a.prune(now)
	seen := make(map[string]struct{})
	level := None
	for _, ev := range a.events {
		if _, ok := seen[ev.speaker]; ok {
			continue
		}
		seen[ev.speaker] = struct{}{}
		level = max(level, a.LevelFor(ev.speaker, now))
	}
	return level
}
