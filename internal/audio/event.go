// Package audio defines the audio events consumed by the pipeline and the
// sample-level helpers shared by the buffer, dispatcher and capture layers.
package audio

import (
	"math"
	"time"
)

// Quality grades a VAD decision.
type Quality int

const (
	QualityPoor Quality = iota
	QualityFair
	QualityGood
)

func (q Quality) String() string {
	switch q {
	case QualityFair:
		return "fair"
	case QualityGood:
		return "good"
	default:
		return "poor"
	}
}

// ParseQuality maps "poor"/"fair"/"good"; anything else is poor.
func ParseQuality(s string) Quality {
	switch s {
	case "good":
		return QualityGood
	case "fair":
		return QualityFair
	default:
		return QualityPoor
	}
}

// VADResult is the upstream voice-activity decision for one event.
type VADResult struct {
	IsVoice     bool
	Probability float64
	Quality     Quality
}

// Event is one block of mono samples from a single speaker stream.
type Event struct {
	SpeakerKey string
	Samples    []float32
	SampleRate int
	Timestamp  time.Time
	VAD        VADResult
}

// Duration returns the event's length in audio time.
func (e Event) Duration() time.Duration {
	return SamplesDuration(len(e.Samples), e.SampleRate)
}

// SamplesDuration converts a sample count to audio time.
func SamplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(rate) * float64(time.Second))
}

// Peak returns the largest absolute sample value.
func Peak(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// RMS returns the root-mean-square level of samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
