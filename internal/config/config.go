// Package config loads pipeline settings from an optional YAML file
// overlaid by environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
)

// Engine kinds.
const (
	EngineOpenAI = "openai"
	EngineGemini = "gemini"
	EngineGRPC   = "grpc"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
	StoreS3     = "s3"
)

type Config struct {
	HTTPAddr  string `yaml:"http_addr"`
	SessionID string `yaml:"session_id"`

	Engine   EngineConfig   `yaml:"engine"`
	Chunking ChunkConfig    `yaml:"chunking"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Merge    MergeConfig    `yaml:"merge"`
	Store    StoreConfig    `yaml:"store"`
	Capture  CaptureConfig  `yaml:"capture"`

	RatePerMinute float64 `yaml:"rate_per_minute"` // USD per audio minute
	SweepInterval float64 `yaml:"sweep_interval"`  // seconds
	IdleEviction  float64 `yaml:"idle_eviction"`   // seconds

	// Speakers maps speaker keys to display names.
	Speakers map[string]string `yaml:"speakers"`
}

type EngineConfig struct {
	Kind          string `yaml:"kind"`
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	GeminiModel   string `yaml:"gemini_model"`
	Language      string `yaml:"language"`
	InferenceAddr string `yaml:"inference_addr"`
	SampleRate    int    `yaml:"sample_rate"` // rate audio is encoded at for the engine
}

type ChunkConfig struct {
	ActivityWindow     float64 `yaml:"activity_window"`
	HighActivityChunk  float64 `yaml:"high_activity_chunk"`
	NoActivityChunk    float64 `yaml:"no_activity_chunk"`
	MinFlush           float64 `yaml:"min_flush"`
	SilenceTimeout     float64 `yaml:"silence_timeout"`
	MaxChunk           float64 `yaml:"max_chunk"`
	SilencePeak        float64 `yaml:"silence_peak"`
	MaxBufferedSeconds float64 `yaml:"max_buffered_seconds"`
}

type DispatchConfig struct {
	Concurrency      int     `yaml:"concurrency"`
	MinSpacing       float64 `yaml:"min_spacing"`
	MaxAttempts      int     `yaml:"max_attempts"`
	BaseDelay        float64 `yaml:"base_delay"`
	RequestTimeout   float64 `yaml:"request_timeout"`
	AdmissionRecheck float64 `yaml:"admission_recheck"`
	MinAudioSeconds  float64 `yaml:"min_audio_seconds"`
	MaxPayloadBytes  int     `yaml:"max_payload_bytes"`
}

type MergeConfig struct {
	Window   float64 `yaml:"window"`
	Lookback int     `yaml:"lookback"`
}

type StoreConfig struct {
	Backend         string  `yaml:"backend"`
	Dir             string  `yaml:"dir"`
	Bucket          string  `yaml:"bucket"`
	Prefix          string  `yaml:"prefix"`
	Region          string  `yaml:"region"`
	Endpoint        string  `yaml:"endpoint"`
	AccessKeyID     string  `yaml:"access_key_id"`
	SecretAccessKey string  `yaml:"secret_access_key"`
	CheckpointDelay float64 `yaml:"checkpoint_delay"`
}

type CaptureConfig struct {
	SampleRate      int      `yaml:"sample_rate"`
	VADThreshold    float64  `yaml:"vad_threshold"`
	ExcludedDevices []string `yaml:"excluded_devices"`
}

// Default returns built-in settings.
func Default() *Config {
	return &Config{
		HTTPAddr: ":8000",
		Engine: EngineConfig{
			Kind:          EngineOpenAI,
			Model:         "whisper-1",
			GeminiModel:   "gemini-2.5-flash",
			InferenceAddr: "localhost:50051",
			SampleRate:    16000,
		},
		Chunking: ChunkConfig{
			ActivityWindow:     5,
			HighActivityChunk:  1.5,
			NoActivityChunk:    5,
			MinFlush:           0.5,
			SilenceTimeout:     1.5,
			MaxChunk:           20,
			SilencePeak:        0.001,
			MaxBufferedSeconds: 60,
		},
		Dispatch: DispatchConfig{
			Concurrency:      3,
			MinSpacing:       0.1,
			MaxAttempts:      3,
			BaseDelay:        0.5,
			RequestTimeout:   30,
			AdmissionRecheck: 0.25,
			MinAudioSeconds:  0.1,
			MaxPayloadBytes:  24 << 20,
		},
		Merge:         MergeConfig{Window: 2, Lookback: 10},
		Store:         StoreConfig{Backend: StoreMemory, Dir: "data/sessions", Prefix: "sessions/", CheckpointDelay: 5},
		Capture:       CaptureConfig{SampleRate: 16000, VADThreshold: 0.01, ExcludedDevices: []string{"iphone", "teams"}},
		RatePerMinute: 0.006,
		SweepInterval: 2,
		IdleEviction:  120,
		Speakers:      map[string]string{},
	}
}

// Load reads path (if non-empty) over the defaults, then applies env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperr.Wrapf(err, apperr.ConfigInvalid, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperr.Wrapf(err, apperr.ConfigInvalid, "parse config %s", path)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.SessionID = getEnv("SESSION_ID", c.SessionID)

	c.Engine.Kind = getEnv("ENGINE", c.Engine.Kind)
	c.Engine.APIKey = getEnv("OPENAI_API_KEY", c.Engine.APIKey)
	c.Engine.BaseURL = getEnv("OPENAI_BASE_URL", c.Engine.BaseURL)
	if c.Engine.Kind == EngineGemini {
		c.Engine.APIKey = getEnv("GEMINI_API_KEY", c.Engine.APIKey)
	}
	c.Engine.GeminiModel = getEnv("GEMINI_MODEL", c.Engine.GeminiModel)
	c.Engine.Model = getEnv("TRANSCRIBE_MODEL", c.Engine.Model)
	c.Engine.Language = getEnv("TRANSCRIBE_LANGUAGE", c.Engine.Language)
	c.Engine.InferenceAddr = getEnv("INFERENCE_ADDR", c.Engine.InferenceAddr)
	c.Engine.SampleRate = getEnvInt("ENGINE_SAMPLE_RATE", c.Engine.SampleRate)

	c.Chunking.MaxChunk = getEnvFloat("MAX_CHUNK_SECONDS", c.Chunking.MaxChunk)
	c.Chunking.SilenceTimeout = getEnvFloat("SILENCE_TIMEOUT", c.Chunking.SilenceTimeout)

	c.Dispatch.Concurrency = getEnvInt("DISPATCH_CONCURRENCY", c.Dispatch.Concurrency)
	c.Dispatch.MaxAttempts = getEnvInt("DISPATCH_MAX_ATTEMPTS", c.Dispatch.MaxAttempts)
	c.Dispatch.RequestTimeout = getEnvFloat("REQUEST_TIMEOUT", c.Dispatch.RequestTimeout)

	c.Merge.Window = getEnvFloat("MERGE_WINDOW", c.Merge.Window)
	c.RatePerMinute = getEnvFloat("RATE_PER_MINUTE", c.RatePerMinute)

	c.Store.Backend = getEnv("STORE_BACKEND", c.Store.Backend)
	c.Store.Dir = getEnv("STORE_DIR", c.Store.Dir)
	c.Store.Bucket = getEnv("STORE_BUCKET", c.Store.Bucket)
	c.Store.Region = getEnv("AWS_REGION", c.Store.Region)
	c.Store.Endpoint = getEnv("STORE_ENDPOINT", c.Store.Endpoint)
	c.Store.AccessKeyID = getEnv("AWS_ACCESS_KEY_ID", c.Store.AccessKeyID)
	c.Store.SecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", c.Store.SecretAccessKey)

	c.Capture.VADThreshold = getEnvFloat("VAD_THRESHOLD", c.Capture.VADThreshold)
	c.Capture.ExcludedDevices = getEnvList("EXCLUDED_AUDIO_DEVICES", c.Capture.ExcludedDevices)
}

// Validate rejects settings the pipeline cannot run with. A missing API key
// is not a validation failure: dispatch stays blocked until one is supplied.
func (c *Config) Validate() error {
	switch c.Engine.Kind {
	case EngineOpenAI, EngineGemini, EngineGRPC:
	default:
		return apperr.Newf(apperr.ConfigInvalid, "unknown engine %q", c.Engine.Kind)
	}
	switch c.Store.Backend {
	case StoreMemory, StoreBadger:
	case StoreS3:
		if c.Store.Bucket == "" {
			return apperr.New(apperr.ConfigInvalid, "s3 store requires a bucket")
		}
	default:
		return apperr.Newf(apperr.ConfigInvalid, "unknown store backend %q", c.Store.Backend)
	}

	ch := c.Chunking
	if ch.HighActivityChunk <= 0 || ch.NoActivityChunk < ch.HighActivityChunk || ch.MaxChunk < ch.NoActivityChunk {
		return apperr.New(apperr.ConfigInvalid, "chunk durations must satisfy 0 < high <= none <= max")
	}
	if ch.MaxBufferedSeconds < ch.MaxChunk {
		return apperr.New(apperr.ConfigInvalid, "max_buffered_seconds must be >= max_chunk")
	}
	if c.Dispatch.Concurrency < 1 || c.Dispatch.MaxAttempts < 1 {
		return apperr.New(apperr.ConfigInvalid, "dispatch concurrency and max_attempts must be >= 1")
	}
	if c.Engine.SampleRate <= 0 {
		return apperr.New(apperr.ConfigInvalid, "engine sample_rate must be positive")
	}
	return nil
}

// EngineReady reports whether enough is configured to call the engine.
func (c *Config) EngineReady() error {
	if c.Engine.Kind == EngineOpenAI && c.Engine.APIKey == "" {
		return apperr.New(apperr.ConfigMissing, "OPENAI_API_KEY is not set")
	}
	if c.Engine.Kind == EngineGemini && c.Engine.APIKey == "" {
		return apperr.New(apperr.ConfigMissing, "GEMINI_API_KEY is not set")
	}
	if c.Engine.Kind == EngineGRPC && c.Engine.InferenceAddr == "" {
		return apperr.New(apperr.ConfigMissing, "inference address is not set")
	}
	return nil
}

// Seconds converts a float seconds setting to a time.Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// SpeakerAlias returns the configured display name for key.
func (c *Config) SpeakerAlias(key string) (string, bool) {
	name, ok := c.Speakers[key]
	return name, ok
}

func (c *Config) String() string {
	key := "unset"
	if c.Engine.APIKey != "" {
		key = "set"
	}
	return fmt.Sprintf("engine=%s model=%s key=%s store=%s concurrency=%d",
		c.Engine.Kind, c.Engine.Model, key, c.Store.Backend, c.Dispatch.Concurrency)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
