// Package dispatch sends chunks to the speech engine under a bounded worker
// pool with request spacing, retries and a circuit breaker. At most one task
// per speaker is queued or running at any time.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/speakerline/internal/audio"
	"github.com/GriffinCanCode/speakerline/internal/engine"
	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/transcript"
	"github.com/GriffinCanCode/speakerline/internal/resilience"
	"github.com/GriffinCanCode/speakerline/internal/syncx"
	"github.com/GriffinCanCode/speakerline/internal/trace"
)

// Defaults.
const (
	DefaultConcurrency        = 3
	DefaultMinSpacing         = 100 * time.Millisecond
	DefaultRequestTimeout     = 30 * time.Second
	DefaultMinAudio           = 100 * time.Millisecond
	DefaultMaxPayloadBytes    = 24 << 20
	DefaultEngineSampleRate   = 16000
	DefaultFallbackConfidence = 0.9
)

// Config tunes the dispatcher.
type Config struct {
	Concurrency int
	// MinSpacing is the minimum gap between engine calls; 0 disables spacing.
	MinSpacing       time.Duration
	Retry            resilience.RetryConfig
	Breaker          resilience.Config
	RequestTimeout   time.Duration
	MinAudio         time.Duration
	MaxPayloadBytes  int
	EngineSampleRate int
	Language         string
	// DefaultConfidence is used when the engine reports none.
	DefaultConfidence float64
	// OnRetry observes every scheduled retry.
	OnRetry func(task Task, attempt int, delay time.Duration, err error)
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	breaker := resilience.DefaultConfig()
	breaker.Name = "engine"
	return Config{
		Concurrency:       DefaultConcurrency,
		MinSpacing:        DefaultMinSpacing,
		Retry:             resilience.DefaultRetryConfig(),
		Breaker:           breaker,
		RequestTimeout:    DefaultRequestTimeout,
		MinAudio:          DefaultMinAudio,
		MaxPayloadBytes:   DefaultMaxPayloadBytes,
		EngineSampleRate:  DefaultEngineSampleRate,
		DefaultConfidence: DefaultFallbackConfidence,
	}
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MinAudio <= 0 {
		c.MinAudio = DefaultMinAudio
	}
	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if c.EngineSampleRate <= 0 {
		c.EngineSampleRate = DefaultEngineSampleRate
	}
	if c.DefaultConfidence <= 0 {
		c.DefaultConfidence = DefaultFallbackConfidence
	}
	return c
}

type job struct {
	task   Task
	future *Future
}

// Dispatcher runs transcription tasks.
type Dispatcher struct {
	cfg     Config
	engine  *syncx.RWGuard[engine.Engine]
	limiter *rate.Limiter
	breaker *resilience.Breaker
	onDone  func(Completion)
	now     func() time.Time

	mu      sync.Mutex
	queue   []*job
	busy    map[string]struct{}
	running int
	closed  bool
	settled chan struct{} // closed and replaced whenever work finishes

	wake   chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
	runCtx context.Context
	cancel context.CancelFunc
}

// New creates a dispatcher. eng may be nil; Submit then fails with
// CONFIG_MISSING until SetEngine is called. onDone is invoked from worker
// goroutines once per accepted task.
func New(cfg Config, eng engine.Engine, onDone func(Completion)) *Dispatcher {
	cfg = cfg.withDefaults()

	limit := rate.Inf
	if cfg.MinSpacing > 0 {
		limit = rate.Every(cfg.MinSpacing)
	}

	breaker := resilience.New(cfg.Breaker).WithHook(func(from, to resilience.State) {
		trace.Logger(context.Background()).Warn("engine breaker changed state", "from", from, "to", to)
	})

	return &Dispatcher{
		cfg:     cfg,
		engine:  syncx.NewGuard(eng),
		limiter: rate.NewLimiter(limit, 1),
		breaker: breaker,
		onDone:  onDone,
		now:     time.Now,
		busy:    make(map[string]struct{}),
		settled: make(chan struct{}),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

// Start launches the worker pool. ctx scopes every engine call.
func (d *Dispatcher) Start(ctx context.Context) {
	d.runCtx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.cfg.Concurrency; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	trace.Logger(ctx).Info("dispatcher started", "workers", d.cfg.Concurrency, "min_spacing", d.cfg.MinSpacing)
}

// SetEngine installs or replaces the engine; in-flight calls keep the old one.
func (d *Dispatcher) SetEngine(eng engine.Engine) {
	old := d.engine.Swap(eng)
	_, changes := d.engine.Load()
	switch {
	case eng == nil:
		slog.Warn("transcription engine removed", "changes", changes)
	case old != nil:
		// A replacement engine starts with a closed breaker.
		d.breaker.Reset()
		slog.Info("transcription engine replaced", "old", old.Name(), "new", eng.Name(), "changes", changes)
	default:
		slog.Info("transcription engine configured", "engine", eng.Name())
	}
}

// Ready reports whether an engine is configured.
func (d *Dispatcher) Ready() error {
	if d.engine.Get() == nil {
		return apperr.New(apperr.ConfigMissing, "no transcription engine configured")
	}
	return nil
}

// Busy reports whether key has a task queued or running.
func (d *Dispatcher) Busy(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.busy[key]
	return ok
}

// QueueDepth is the number of accepted tasks not yet running.
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// InFlight is the number of tasks being transcribed.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Submit validates and enqueues a task. Validation, busy and configuration
// failures are returned synchronously and produce no Completion.
func (d *Dispatcher) Submit(task Task) (*Future, error) {
	if err := d.Ready(); err != nil {
		return nil, err
	}
	if err := d.validate(task); err != nil {
		return nil, err
	}

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	task.EnqueueTime = d.now()
	j := &job{task: task, future: newFuture()}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, apperr.New(apperr.Unavailable, "dispatcher closed")
	}
	if _, ok := d.busy[task.SpeakerKey]; ok {
		d.mu.Unlock()
		return nil, apperr.New(apperr.SpeakerBusy, "speaker already has a task in flight").
			WithMetadata("speaker", task.SpeakerKey)
	}
	d.busy[task.SpeakerKey] = struct{}{}
	d.queue = append(d.queue, j)
	d.mu.Unlock()

	d.signal()
	return j.future, nil
}

func (d *Dispatcher) validate(task Task) error {
	if len(task.Samples) == 0 {
		return apperr.New(apperr.AudioEmpty, "chunk has no samples").WithMetadata("speaker", task.SpeakerKey)
	}
	if task.SampleRate <= 0 {
		return apperr.Newf(apperr.InvalidArgument, "invalid sample rate %d", task.SampleRate)
	}
	if dur := task.Duration(); dur < d.cfg.MinAudio {
		return apperr.Newf(apperr.AudioTooShort, "chunk of %s is below %s", dur, d.cfg.MinAudio).
			WithMetadata("speaker", task.SpeakerKey)
	}
	n := int(math.Round(float64(len(task.Samples)) * float64(d.cfg.EngineSampleRate) / float64(task.SampleRate)))
	if size := audio.WAVSize(n); size > d.cfg.MaxPayloadBytes {
		return apperr.Newf(apperr.AudioTooLarge, "encoded chunk of %d bytes exceeds %d", size, d.cfg.MaxPayloadBytes).
			WithMetadata("speaker", task.SpeakerKey)
	}
	return nil
}

// CancelPending resolves every queued task as CANCELLED. Running tasks are
// unaffected.
func (d *Dispatcher) CancelPending() int {
	d.mu.Lock()
	pending := d.queue
	d.queue = nil
	for _, j := range pending {
		delete(d.busy, j.task.SpeakerKey)
	}
	d.settleLocked()
	d.mu.Unlock()

	for _, j := range pending {
		err := apperr.New(apperr.Cancelled, "task cancelled before dispatch").WithMetadata("speaker", j.task.SpeakerKey)
		d.finish(j, transcript.Fragment{}, err)
	}
	return len(pending)
}

// Close stops accepting tasks and waits for queued and running ones. When
// ctx ends first, engine calls are aborted and remaining tasks cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	err := d.drain(ctx)
	if err != nil {
		if d.cancel != nil {
			d.cancel()
		}
		d.CancelPending()
	}
	close(d.stop)
	d.wg.Wait()
	if d.cancel != nil {
		d.cancel()
	}
	return err
}

func (d *Dispatcher) drain(ctx context.Context) error {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 && d.running == 0 {
			d.mu.Unlock()
			return nil
		}
		ch := d.settled
		d.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return apperr.Wrap(ctx.Err(), apperr.Timeout, "dispatcher drain")
		}
	}
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) settleLocked() {
	close(d.settled)
	d.settled = make(chan struct{})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		if j := d.next(); j != nil {
			d.process(j)
			continue
		}
		select {
		case <-d.wake:
		case <-d.stop:
			return
		case <-d.runCtx.Done():
			return
		}
	}
}

func (d *Dispatcher) next() *job {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil
	}
	j := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	d.running++
	if len(d.queue) > 0 {
		d.signal()
	}
	return j
}

func (d *Dispatcher) process(j *job) {
	ctx, span := trace.StartSpan(d.runCtx, "dispatch.task")
	frag, err := d.transcribe(ctx, j)
	span.End()

	d.mu.Lock()
	delete(d.busy, j.task.SpeakerKey)
	d.running--
	d.settleLocked()
	d.mu.Unlock()

	d.finish(j, frag, err)
}

func (d *Dispatcher) finish(j *job, frag transcript.Fragment, err error) {
	j.future.resolve(frag, err)
	if d.onDone != nil {
		d.onDone(Completion{Task: j.task, Fragment: frag, Err: err})
	}
}

func (d *Dispatcher) transcribe(ctx context.Context, j *job) (transcript.Fragment, error) {
	log := trace.Logger(ctx).With("task", j.task.ID, "speaker", j.task.SpeakerKey, "reason", j.task.Reason)

	samples, err := audio.Resample(j.task.Samples, j.task.SampleRate, d.cfg.EngineSampleRate)
	if err != nil {
		return transcript.Fragment{}, apperr.Wrap(err, apperr.InvalidArgument, "resample chunk")
	}
	req := engine.Request{
		Audio:        audio.EncodeWAV(samples, d.cfg.EngineSampleRate),
		SampleRate:   d.cfg.EngineSampleRate,
		LanguageHint: d.cfg.Language,
		SpeakerKey:   j.task.SpeakerKey,
	}

	retry := d.cfg.Retry
	retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Debug("retrying transcription", "attempt", attempt, "delay", delay, "error", err)
		if d.cfg.OnRetry != nil {
			d.cfg.OnRetry(j.task, attempt, delay, err)
		}
	}

	var result engine.Result
	err = resilience.Retry(ctx, retry, func(attempt int) error {
		j.task.Attempt = attempt + 1
		eng := d.engine.Get()
		if eng == nil {
			return apperr.New(apperr.ConfigMissing, "engine removed while task was queued")
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return apperr.Wrap(err, apperr.Cancelled, "request spacing wait aborted")
		}
		res, err := resilience.ExecuteWithResult(d.breaker, func() (engine.Result, error) {
			return d.call(ctx, eng, req)
		})
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		log.Warn("transcription failed", "attempts", j.task.Attempt, "error", err)
		return transcript.Fragment{}, err
	}

	confidence := result.Confidence
	if confidence <= 0 {
		confidence = d.cfg.DefaultConfidence
	}
	log.Debug("transcription complete", "attempts", j.task.Attempt, "chars", len(result.Text))
	return transcript.Fragment{
		SpeakerKey: j.task.SpeakerKey,
		Text:       strings.TrimSpace(result.Text),
		Confidence: confidence,
		Duration:   j.task.Duration(),
		Timestamp:  j.task.StartTime,
	}, nil
}

// call bounds one engine request by RequestTimeout. A response that arrives
// after the deadline is discarded.
func (d *Dispatcher) call(ctx context.Context, eng engine.Engine, req engine.Request) (engine.Result, error) {
	ctx, span := trace.StartSpan(ctx, "engine.transcribe")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	type reply struct {
		res engine.Result
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		res, err := eng.Transcribe(callCtx, req)
		ch <- reply{res, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return engine.Result{}, classify(callCtx, r.err)
		}
		return r.res, nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return engine.Result{}, apperr.Wrap(ctx.Err(), apperr.Cancelled, "engine call aborted")
		}
		return engine.Result{}, apperr.Newf(apperr.Timeout, "engine call exceeded %s", d.cfg.RequestTimeout)
	}
}

// classify gives unclassified engine errors a code.
func classify(ctx context.Context, err error) error {
	if apperr.CodeOf(err) != apperr.Unknown {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperr.Wrap(err, apperr.Timeout, "engine call timed out")
	case errors.Is(err, context.Canceled):
		return apperr.Wrap(err, apperr.Cancelled, "engine call cancelled")
	default:
		return apperr.Wrap(err, apperr.Unavailable, "engine call failed")
	}
}
