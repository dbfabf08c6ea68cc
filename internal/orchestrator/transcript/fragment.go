// Package transcript turns transcription fragments into the ordered log of
// conversation segments: cleanup, merge, topic tagging and naming.
package transcript

import "time"

// Fragment is one successful transcription of one chunk.
type Fragment struct {
	SpeakerKey string
	Text       string
	Confidence float64
	Duration   time.Duration
	Timestamp  time.Time // audio time of the chunk's first sample
}

// EndTime is the audio time at which the fragment's chunk ends.
func (f Fragment) EndTime() time.Time {
	return f.Timestamp.Add(f.Duration)
}

// Segment is the durable output unit. Only the most recent segment of a
// speaker is ever extended, and only by Merger.
type Segment struct {
	ID         string        `json:"id" msgpack:"id"`
	Speaker    string        `json:"speaker" msgpack:"speaker"`
	SpeakerKey string        `json:"speaker_key" msgpack:"speaker_key"`
	Text       string        `json:"text" msgpack:"text"`
	Topic      string        `json:"topic" msgpack:"topic"`
	StartTime  time.Time     `json:"start_time" msgpack:"start_time"`
	EndTime    time.Time     `json:"end_time" msgpack:"end_time"`
	Duration   time.Duration `json:"duration" msgpack:"duration"`
	Confidence float64       `json:"confidence" msgpack:"confidence"`
	StreamID   string        `json:"stream_id" msgpack:"stream_id"` // session that produced it
	Fragments  int           `json:"fragments" msgpack:"fragments"`
}
