package server

import (
	"time"

	"github.com/GriffinCanCode/speakerline/internal/orchestrator"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/transcript"
)

// Message is the envelope every WebSocket frame shares.
type Message struct {
	Type string `json:"type"`
}

// AudioMessage carries one block of mono samples from a speaker stream.
// Without a VAD field the server runs its own energy detector.
type AudioMessage struct {
	Type       string      `json:"type"`
	Speaker    string      `json:"speaker"`
	SampleRate int         `json:"sample_rate"`
	Samples    []float32   `json:"samples"`
	Timestamp  *time.Time  `json:"timestamp,omitempty"`
	VAD        *VADMessage `json:"vad,omitempty"`
	TraceID    string      `json:"trace_id,omitempty"`
}

type VADMessage struct {
	IsVoice     bool    `json:"is_voice"`
	Probability float64 `json:"probability"`
	Quality     string  `json:"quality"`
}

type SegmentMessage struct {
	Type    string             `json:"type"`
	Event   string             `json:"event"`
	Segment transcript.Segment `json:"segment"`
}

type StatusMessage struct {
	Type   string              `json:"type"`
	Status orchestrator.Status `json:"status"`
}

type NoticeMessage struct {
	Type   string              `json:"type"`
	Notice orchestrator.Notice `json:"notice"`
}

type FinalizedMessage struct {
	Type     string `json:"type"`
	Segments int    `json:"segments"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// EngineRequest is the body of POST /api/engine.
type EngineRequest struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model,omitempty"`
}
