package grpcengine

import "time"

// Wire identifiers of the inference sidecar's transcription service.
const (
	ServiceName      = "speakerline.inference.v1.Transcription"
	transcribeMethod = "/" + ServiceName + "/Transcribe"

	// Request metadata keys. The payload itself is a BytesValue of WAV data.
	LanguageKey   = "x-language-hint"
	SampleRateKey = "x-sample-rate"
	SpeakerKeyKey = "x-speaker-key"
)

// Client connection defaults
const (
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second
)
