// Package capture reads local input devices through PortAudio and turns each
// device into a speaker stream of audio.Events.
package capture

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/GriffinCanCode/speakerline/internal/audio"
)

// KeyPrefix marks speaker keys that originate from local devices.
const KeyPrefix = "local:"

const framesPerBuffer = 1600 // 100ms at 16kHz

// Options configures a Capturer.
type Options struct {
	SampleRate      int
	VADThreshold    float64
	ExcludedDevices []string
	BufferSize      int // events buffered before dropping
}

// Capturer captures every usable input device as its own speaker stream.
type Capturer struct {
	opts    Options
	outCh   chan audio.Event
	mu      sync.Mutex
	streams []*deviceStream
	running bool
}

type deviceStream struct {
	stream   *portaudio.Stream
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New initializes PortAudio and returns an idle Capturer.
func New(opts Options) (*Capturer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64
	}
	return &Capturer{opts: opts, outCh: make(chan audio.Event, opts.BufferSize)}, nil
}

// Events returns the channel of captured audio events.
func (c *Capturer) Events() <-chan audio.Event { return c.outCh }

// Start opens one stream per eligible input device.
func (c *Capturer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.mu.Unlock()

	devices, err := portaudio.Devices()
	if err != nil {
		return err
	}

	started := 0
	for _, dev := range devices {
		if !eligible(dev.Name, dev.MaxInputChannels, c.opts.ExcludedDevices) {
			continue
		}
		if err := c.startDevice(ctx, dev); err != nil {
			slog.Warn("failed to start device", "device", dev.Name, "error", err)
			continue
		}
		started++
		slog.Info("started audio capture", "device", dev.Name, "speaker", SpeakerKey(dev.Name))
	}
	if started == 0 {
		slog.Warn("no input devices started")
	}
	return nil
}

// SpeakerKey derives the stream key for a device.
func SpeakerKey(device string) string {
	return KeyPrefix + strings.ToLower(strings.TrimSpace(device))
}

func eligible(name string, inputs int, excluded []string) bool {
	if inputs < 1 {
		return false
	}
	lower := strings.ToLower(name)
	for _, ex := range excluded {
		if ex != "" && strings.Contains(lower, strings.ToLower(ex)) {
			return false
		}
	}
	return true
}

func (c *Capturer) startDevice(ctx context.Context, dev *portaudio.DeviceInfo) error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.opts.SampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	buf := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}

	devCtx, cancel := context.WithCancel(ctx)
	ds := &deviceStream{stream: stream, cancel: cancel}

	c.mu.Lock()
	c.streams = append(c.streams, ds)
	c.mu.Unlock()

	key := SpeakerKey(dev.Name)
	go func() {
		defer ds.stop()
		for devCtx.Err() == nil {
			if err := stream.Read(); err != nil {
				slog.Debug("audio read error", "speaker", key, "error", err)
				return
			}
			c.emit(c.newEvent(key, buf, time.Now()))
		}
	}()
	return nil
}

func (c *Capturer) newEvent(key string, buf []float32, at time.Time) audio.Event {
	samples := append([]float32(nil), buf...)
	return audio.Event{
		SpeakerKey: key,
		Samples:    samples,
		SampleRate: c.opts.SampleRate,
		Timestamp:  at,
		VAD:        audio.DetectVoice(samples, c.opts.VADThreshold),
	}
}

// emit never blocks the device loop; a full channel drops the event.
func (c *Capturer) emit(ev audio.Event) {
	select {
	case c.outCh <- ev:
	default:
		slog.Debug("capture buffer full, dropping event", "speaker", ev.SpeakerKey)
	}
}

func (d *deviceStream) stop() {
	d.stopOnce.Do(func() {
		d.cancel()
		_ = d.stream.Stop()
		_ = d.stream.Close()
	})
}

// Stop closes all device streams and releases PortAudio.
func (c *Capturer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.streams {
		s.stop()
	}
	c.streams = nil
	c.running = false
	_ = portaudio.Terminate()
}
