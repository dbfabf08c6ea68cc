package orchestrator

import "time"

// Status is a point-in-time view of the pipeline.
type Status struct {
	IsProcessing     bool               `json:"is_processing"`
	EngineReady      bool               `json:"engine_ready"`
	BufferSeconds    map[string]float64 `json:"buffer_seconds"`
	Phases           map[string]string  `json:"phases"`
	ActivityLevel    string             `json:"activity_level"`
	QueueDepth       int                `json:"queue_depth"`
	InFlight         int                `json:"in_flight"`
	Segments         int                `json:"segments"`
	TotalSeconds     float64            `json:"total_seconds"`
	EstimatedCostUSD float64            `json:"estimated_cost_usd"`
}

// NoticeLevel separates what users should see from diagnostics.
type NoticeLevel string

const (
	NoticeUser  NoticeLevel = "user"
	NoticeDebug NoticeLevel = "debug"
)

// Notice reports a dispatch or configuration problem.
type Notice struct {
	Level      NoticeLevel `json:"level"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	SpeakerKey string      `json:"speaker_key,omitempty"`
	Time       time.Time   `json:"time"`
}
