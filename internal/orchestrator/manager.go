package orchestrator

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/speakerline/internal/audio"
	"github.com/GriffinCanCode/speakerline/internal/config"
	"github.com/GriffinCanCode/speakerline/internal/engine"
	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/buffer"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/chunker"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/cost"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/dispatch"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/transcript"
	"github.com/GriffinCanCode/speakerline/internal/syncx"
	"github.com/GriffinCanCode/speakerline/internal/trace"
)

// Dispatcher is the transcription backend the coordinator drives.
type Dispatcher interface {
	Start(ctx context.Context)
	Submit(task dispatch.Task) (*dispatch.Future, error)
	Busy(key string) bool
	Ready() error
	SetEngine(eng engine.Engine)
	QueueDepth() int
	InFlight() int
	CancelPending() int
	Close(ctx context.Context) error
}

// Options configures a Manager.
type Options struct {
	SessionID        string
	Chunking         chunker.Config
	MaxBuffered      time.Duration
	Dispatch         dispatch.Config
	Merge            transcript.MergerConfig
	RatePerMinute    float64
	SweepInterval    time.Duration
	IdleEviction     time.Duration
	AdmissionRecheck time.Duration
	Speakers         map[string]string

	Clock Clock
	// Dispatcher replaces the built-in dispatcher. Its completions must be
	// delivered through Manager.Complete.
	Dispatcher Dispatcher
	// OnChange is called from the loop whenever snapshot state changes.
	OnChange func()
}

// OptionsFromConfig maps loaded configuration onto coordinator options.
func OptionsFromConfig(cfg *config.Config) Options {
	s := config.Seconds

	d := dispatch.DefaultConfig()
	d.Concurrency = cfg.Dispatch.Concurrency
	d.MinSpacing = s(cfg.Dispatch.MinSpacing)
	d.Retry.MaxAttempts = cfg.Dispatch.MaxAttempts
	d.Retry.BaseDelay = s(cfg.Dispatch.BaseDelay)
	d.RequestTimeout = s(cfg.Dispatch.RequestTimeout)
	d.MinAudio = s(cfg.Dispatch.MinAudioSeconds)
	d.MaxPayloadBytes = cfg.Dispatch.MaxPayloadBytes
	d.EngineSampleRate = cfg.Engine.SampleRate
	d.Language = cfg.Engine.Language

	return Options{
		SessionID: cfg.SessionID,
		Chunking: chunker.Config{
			ActivityWindow: s(cfg.Chunking.ActivityWindow),
			HighChunk:      s(cfg.Chunking.HighActivityChunk),
			NoneChunk:      s(cfg.Chunking.NoActivityChunk),
			MinFlush:       s(cfg.Chunking.MinFlush),
			SilenceTimeout: s(cfg.Chunking.SilenceTimeout),
			MaxChunk:       s(cfg.Chunking.MaxChunk),
			SilencePeak:    float32(cfg.Chunking.SilencePeak),
		},
		MaxBuffered:      s(cfg.Chunking.MaxBufferedSeconds),
		Dispatch:         d,
		Merge:            transcript.MergerConfig{Window: s(cfg.Merge.Window), Lookback: cfg.Merge.Lookback},
		RatePerMinute:    cfg.RatePerMinute,
		SweepInterval:    s(cfg.SweepInterval),
		IdleEviction:     s(cfg.IdleEviction),
		AdmissionRecheck: s(cfg.Dispatch.AdmissionRecheck),
		Speakers:         cfg.Speakers,
	}
}

// DefaultOptions returns options for the built-in configuration.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

func (o Options) withDefaults() Options {
	if o.SessionID == "" {
		o.SessionID = uuid.New().String()
	}
	if o.Chunking == (chunker.Config{}) {
		o.Chunking = chunker.DefaultConfig()
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.IdleEviction <= 0 {
		o.IdleEviction = DefaultIdleEviction
	}
	if o.AdmissionRecheck <= 0 {
		o.AdmissionRecheck = DefaultAdmissionRecheck
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	return o
}

type speakerTimer struct {
	timer Timer
	gen   uint64
}

// Manager is the pipeline coordinator. All buffer, boundary and merge state
// is owned by a single loop goroutine; the public methods talk to it through
// events.
type Manager struct {
	opts       Options
	clock      Clock
	dispatcher Dispatcher
	buffers    *buffer.Buffers
	policy     *chunker.Policy
	segments   *transcript.Store
	names      *transcript.Names
	merger     *transcript.Merger
	accountant *cost.Accountant

	events   chan event
	notices  chan Notice
	statusCh chan Status
	status   *syncx.RWGuard[Status]

	// Loop-owned.
	timers         map[string]*speakerTimer
	deferred       map[string]chunker.Reason
	recheckArmed   bool
	sweep          Timer
	submitted      int // tasks accepted by the dispatcher and not yet completed
	configNotified bool
	finalWaiters   []chan struct{}

	started   atomic.Bool
	accepting atomic.Bool
	closing   atomic.Bool // no further flushes; audio stays buffered for the snapshot
	quit      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

// New creates a coordinator. eng may be nil: audio is then buffered and
// dispatch waits for SetEngine.
func New(opts Options, eng engine.Engine) *Manager {
	opts = opts.withDefaults()

	names := transcript.NewNames(opts.Speakers)
	segments := transcript.NewStore(SegmentBuffer)
	merge := opts.Merge
	merge.StreamID = opts.SessionID

	m := &Manager{
		opts:       opts,
		clock:      opts.Clock,
		buffers:    buffer.New(opts.MaxBuffered),
		policy:     chunker.New(opts.Chunking),
		segments:   segments,
		names:      names,
		merger:     transcript.NewMerger(merge, segments, names),
		accountant: cost.New(opts.RatePerMinute),
		events:     make(chan event, EventBuffer),
		notices:    make(chan Notice, NoticeBuffer),
		statusCh:   make(chan Status, StatusBuffer),
		status:     syncx.NewGuard(Status{}),
		timers:     make(map[string]*speakerTimer),
		deferred:   make(map[string]chunker.Reason),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	if opts.Dispatcher != nil {
		m.dispatcher = opts.Dispatcher
	} else {
		dcfg := opts.Dispatch
		if dcfg.OnRetry == nil {
			dcfg.OnRetry = m.onRetry
		}
		m.dispatcher = dispatch.New(dcfg, eng, m.Complete)
	}
	return m
}

// SessionID identifies this pipeline run.
func (m *Manager) SessionID() string { return m.opts.SessionID }

// Start launches the dispatcher and the coordinator loop.
func (m *Manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return apperr.New(apperr.Internal, "pipeline already started")
	}
	ctx = trace.WithSession(ctx, m.opts.SessionID)

	m.dispatcher.Start(ctx)
	if err := m.dispatcher.Ready(); err != nil {
		m.notifyConfig(ctx, err)
	}
	m.armSweep()
	m.publishStatus()
	m.accepting.Store(true)

	go m.run(ctx)
	trace.Logger(ctx).Info("pipeline started", "restored_segments", m.segments.Len())
	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	defer m.stopTimers()
	for {
		select {
		case e := <-m.events:
			m.handle(ctx, e)
		case <-m.quit:
			m.drainEvents(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

// drainEvents handles whatever was queued before quit, so completions posted
// while the dispatcher closed are still reconciled.
func (m *Manager) drainEvents(ctx context.Context) {
	for {
		select {
		case e := <-m.events:
			m.handle(ctx, e)
		default:
			return
		}
	}
}

// Stop shuts the pipeline down: queued tasks are cancelled and their audio
// requeued, every buffer is flushed as final, in-flight work is awaited
// until ctx ends, then the dispatcher and loop are closed. Audio whose task
// was aborted stays buffered and is part of the next Snapshot.
func (m *Manager) Stop(ctx context.Context) error {
	var err error
	m.stopOnce.Do(func() {
		log := trace.Logger(trace.WithSession(ctx, m.opts.SessionID))
		m.accepting.Store(false)

		if n := m.dispatcher.CancelPending(); n > 0 {
			log.Info("cancelled queued tasks", "count", n)
		}
		if m.started.Load() {
			if ferr := m.Finalize(ctx); ferr != nil {
				log.Warn("final flush incomplete", "error", ferr)
				err = ferr
			}
		}
		m.closing.Store(true)
		if cerr := m.dispatcher.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
		close(m.quit)
		if m.started.Load() {
			<-m.done
		}
		m.publishStatus()
		log.Info("pipeline stopped", "segments", m.segments.Len(), "total_seconds", m.accountant.TotalSeconds())
	})
	return err
}

// Ingest hands an audio event to the loop. It never waits on transcription.
func (m *Manager) Ingest(ctx context.Context, ev audio.Event) error {
	if !m.accepting.Load() {
		return apperr.New(apperr.Unavailable, "pipeline is not accepting audio")
	}
	return m.postCtx(ctx, audioReceived{ev: ev})
}

// Finalize flushes every non-empty buffer as a final task and waits until
// all resulting work has been reconciled.
func (m *Manager) Finalize(ctx context.Context) error {
	done := make(chan struct{})
	if err := m.postCtx(ctx, finalizeRequest{done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return apperr.Wrap(ctx.Err(), apperr.Timeout, "finalize did not complete")
	case <-m.done:
		return apperr.New(apperr.Unavailable, "pipeline stopped during finalize")
	}
}

// Complete delivers a dispatcher completion to the loop.
func (m *Manager) Complete(c dispatch.Completion) {
	m.post(taskCompleted{c: c})
}

// SetEngine installs engine credentials at runtime and unblocks dispatch.
func (m *Manager) SetEngine(eng engine.Engine) {
	m.dispatcher.SetEngine(eng)
	m.post(engineChanged{})
}

// Snapshot captures durable session state.
func (m *Manager) Snapshot(ctx context.Context) (Snapshot, error) {
	if !m.started.Load() || m.loopDone() {
		return m.snapshot(), nil
	}
	reply := make(chan Snapshot, 1)
	if err := m.postCtx(ctx, snapshotRequest{reply: reply}); err != nil {
		if m.loopDone() {
			return m.snapshot(), nil
		}
		return Snapshot{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-m.done:
		return m.snapshot(), nil
	case <-ctx.Done():
		return Snapshot{}, apperr.Wrap(ctx.Err(), apperr.Cancelled, "snapshot aborted")
	}
}

// Restore rehydrates a session. It must be called before Start.
func (m *Manager) Restore(s Snapshot) error {
	if m.started.Load() {
		return apperr.New(apperr.InvalidArgument, "restore after start")
	}
	m.buffers.Restore(s.Buffers)
	m.segments.Restore(s.Segments)
	m.names.Restore(s.Names)
	m.accountant.Restore(s.Seconds, s.Chunks)
	return nil
}

// Status returns the latest published status.
func (m *Manager) Status() Status { return m.status.Get() }

// StatusUpdates delivers status snapshots; slow readers miss intermediate ones.
func (m *Manager) StatusUpdates() <-chan Status { return m.statusCh }

// Notices delivers user-visible and debug notices.
func (m *Manager) Notices() <-chan Notice { return m.notices }

// Segments delivers created and updated segments.
func (m *Manager) Segments() <-chan transcript.Event { return m.segments.Events() }

// Transcript returns the whole segment log in finalization order.
func (m *Manager) Transcript() []transcript.Segment { return m.segments.All() }

// RecentTranscript renders segments that ended within d.
func (m *Manager) RecentTranscript(d time.Duration) string {
	return m.segments.Recent(d, m.clock.Now())
}

func (m *Manager) loopDone() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// post queues an event from timers and workers. It gives up once the loop
// has exited.
func (m *Manager) post(e event) bool {
	select {
	case m.events <- e:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) postCtx(ctx context.Context, e event) error {
	select {
	case m.events <- e:
		return nil
	case <-ctx.Done():
		return apperr.Wrap(ctx.Err(), apperr.Cancelled, "pipeline busy")
	case <-m.done:
		return apperr.New(apperr.Unavailable, "pipeline stopped")
	}
}

func (m *Manager) handle(ctx context.Context, e event) {
	switch e := e.(type) {
	case audioReceived:
		m.onAudio(ctx, e.ev)
	case silenceElapsed:
		m.onSilence(ctx, e)
	case admissionRecheck:
		m.onRecheck(ctx)
	case sweepTick:
		m.onSweep(ctx)
	case taskCompleted:
		m.onCompleted(ctx, e.c)
	case finalizeRequest:
		m.onFinalize(ctx, e.done)
	case snapshotRequest:
		e.reply <- m.snapshot()
	case engineChanged:
		m.configNotified = false
		m.evaluate(ctx, m.clock.Now())
		m.publishStatus()
	}
}

func (m *Manager) onAudio(ctx context.Context, ev audio.Event) {
	if ev.SpeakerKey == "" || len(ev.Samples) == 0 || ev.SampleRate <= 0 {
		trace.Logger(ctx).Debug("ignoring malformed audio event", "speaker", ev.SpeakerKey, "samples", len(ev.Samples))
		return
	}
	now := m.clock.Now()
	at := ev.Timestamp
	if at.IsZero() {
		at = now
	}

	buffered := m.buffers.Append(ev.SpeakerKey, ev.Samples, ev.SampleRate, at, now)
	m.armSilence(ev.SpeakerKey)
	if reason, ok := m.policy.OnAudio(ev.SpeakerKey, ev.VAD.IsVoice, buffered, now); ok {
		m.flush(ctx, ev.SpeakerKey, reason)
	}
	m.changed()
}

func (m *Manager) onSilence(ctx context.Context, e silenceElapsed) {
	st, ok := m.timers[e.key]
	if !ok || st.gen != e.gen {
		return
	}
	st.timer = nil
	if reason, ok := m.policy.OnSilence(e.key, m.buffers.Duration(e.key)); ok {
		m.flush(ctx, e.key, reason)
	}
}

func (m *Manager) onRecheck(ctx context.Context) {
	m.recheckArmed = false
	keys := make([]string, 0, len(m.deferred))
	for key := range m.deferred {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		reason := m.deferred[key]
		delete(m.deferred, key)
		m.flush(ctx, key, reason)
	}
	m.checkFinalized()
}

func (m *Manager) onSweep(ctx context.Context) {
	now := m.clock.Now()
	m.evaluate(ctx, now)

	// Idle speakers keep their audio while dispatch is blocked on config.
	if m.dispatcher.Ready() == nil {
		for _, key := range m.buffers.Evict(m.opts.IdleEviction, now) {
			m.forget(key)
			trace.Logger(ctx).Info("evicted idle speaker", "speaker", key)
		}
	}
	m.publishStatus()
	m.armSweep()
}

func (m *Manager) evaluate(ctx context.Context, now time.Time) {
	for _, key := range m.buffers.Keys() {
		if reason, ok := m.policy.OnSweep(key, m.buffers.Duration(key), now); ok {
			m.flush(ctx, key, reason)
		}
	}
}

func (m *Manager) onCompleted(ctx context.Context, c dispatch.Completion) {
	key := c.Task.SpeakerKey
	log := trace.Logger(ctx).With("speaker", key, "task", c.Task.ID)
	if m.submitted > 0 {
		m.submitted--
	}

	switch err := c.Err; {
	case err == nil:
		m.accountant.RecordDuration(c.Task.Duration())
		if c.Fragment.Text == "" {
			log.Debug("engine returned no text")
			break
		}
		seg, outcome := m.merger.Reconcile(c.Fragment)
		log.Info("fragment reconciled", "outcome", outcome, "segment", seg.ID, "topic", seg.Topic)
	case apperr.IsCode(err, apperr.Cancelled):
		m.buffers.Requeue(chunkOf(c.Task))
		log.Debug("task cancelled, audio requeued", "error", err)
	case apperr.IsUserVisible(err):
		m.notify(ctx, NoticeUser, err, key)
	default:
		m.notify(ctx, NoticeUser, apperr.Wrapf(err, apperr.CodeOf(err), "chunk dropped after %d attempts", c.Task.Attempt), key)
	}

	if reason, ok := m.deferred[key]; ok {
		delete(m.deferred, key)
		m.flush(ctx, key, reason)
	}
	m.checkFinalized()
	m.changed()
	m.publishStatus()
}

func (m *Manager) onFinalize(ctx context.Context, done chan struct{}) {
	for _, key := range m.buffers.Keys() {
		if m.buffers.Duration(key) > 0 {
			m.flush(ctx, key, chunker.ReasonFinal)
		}
	}
	m.finalWaiters = append(m.finalWaiters, done)
	m.checkFinalized()
	m.publishStatus()
}

// checkFinalized releases Finalize callers once no final flush is waiting
// for admission and every submitted task has been reconciled.
func (m *Manager) checkFinalized() {
	if len(m.finalWaiters) == 0 || m.submitted > 0 {
		return
	}
	for _, reason := range m.deferred {
		if reason == chunker.ReasonFinal {
			return
		}
	}
	for _, ch := range m.finalWaiters {
		close(ch)
	}
	m.finalWaiters = nil
}

// flush turns key's buffer into a task, deferring when the speaker already
// has one in flight.
func (m *Manager) flush(ctx context.Context, key string, reason chunker.Reason) {
	log := trace.Logger(ctx).With("speaker", key, "reason", reason)

	if m.closing.Load() {
		log.Debug("pipeline closing, audio kept buffered")
		return
	}
	if err := m.dispatcher.Ready(); err != nil {
		m.notifyConfig(ctx, err)
		return
	}
	if m.dispatcher.Busy(key) {
		m.deferFlush(key, reason)
		return
	}

	chunk, ok := m.buffers.Flush(key)
	m.policy.Flushed(key, m.clock.Now())
	delete(m.deferred, key)
	if !ok {
		return
	}
	if m.policy.IsSilent(chunk.Samples) {
		log.Debug("skipping silent chunk", "duration", chunk.Duration())
		return
	}

	task := dispatch.Task{
		SpeakerKey: key,
		Samples:    chunk.Samples,
		SampleRate: chunk.SampleRate,
		StartTime:  chunk.StartTime,
		EndTime:    chunk.EndTime(),
		Reason:     reason,
	}
	if _, err := m.dispatcher.Submit(task); err != nil {
		m.rejected(ctx, chunk, err)
		return
	}
	m.submitted++
	m.configNotified = false
	log.Debug("chunk dispatched", "duration", chunk.Duration())
}

func (m *Manager) rejected(ctx context.Context, chunk buffer.Chunk, err error) {
	switch {
	case apperr.IsValidation(err):
		m.notify(ctx, NoticeDebug, err, chunk.SpeakerKey)
	case apperr.IsCode(err, apperr.ConfigMissing):
		m.buffers.Requeue(chunk)
		m.notifyConfig(ctx, err)
	case apperr.IsCode(err, apperr.SpeakerBusy):
		m.buffers.Requeue(chunk)
		m.deferFlush(chunk.SpeakerKey, chunker.ReasonChunkReady)
	case apperr.IsCode(err, apperr.Unavailable):
		m.buffers.Requeue(chunk)
		trace.Logger(ctx).Debug("dispatcher unavailable, chunk requeued", "speaker", chunk.SpeakerKey, "error", err)
	default:
		m.notify(ctx, NoticeDebug, err, chunk.SpeakerKey)
	}
}

func (m *Manager) deferFlush(key string, reason chunker.Reason) {
	if m.deferred[key] != chunker.ReasonFinal {
		m.deferred[key] = reason
	}
	if !m.recheckArmed {
		m.recheckArmed = true
		m.clock.AfterFunc(m.opts.AdmissionRecheck, func() { m.post(admissionRecheck{}) })
	}
}

func (m *Manager) armSilence(key string) {
	st, ok := m.timers[key]
	if !ok {
		st = &speakerTimer{}
		m.timers[key] = st
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	st.gen++
	gen := st.gen
	st.timer = m.clock.AfterFunc(m.policy.Config().SilenceTimeout, func() {
		m.post(silenceElapsed{key: key, gen: gen})
	})
}

func (m *Manager) armSweep() {
	m.sweep = m.clock.AfterFunc(m.opts.SweepInterval, func() { m.post(sweepTick{}) })
}

func (m *Manager) forget(key string) {
	if st, ok := m.timers[key]; ok && st.timer != nil {
		st.timer.Stop()
	}
	delete(m.timers, key)
	delete(m.deferred, key)
	m.policy.Forget(key)
}

func (m *Manager) stopTimers() {
	if m.sweep != nil {
		m.sweep.Stop()
	}
	for _, st := range m.timers {
		if st.timer != nil {
			st.timer.Stop()
		}
	}
}

func (m *Manager) snapshot() Snapshot {
	return Snapshot{
		Version:   SnapshotVersion,
		SessionID: m.opts.SessionID,
		TakenAt:   m.clock.Now(),
		Buffers:   m.buffers.States(),
		Segments:  m.segments.All(),
		Names:     m.names.Snapshot(),
		Seconds:   m.accountant.TotalSeconds(),
		Chunks:    m.accountant.Chunks(),
	}
}

func (m *Manager) changed() {
	if m.opts.OnChange != nil {
		m.opts.OnChange()
	}
}

func (m *Manager) publishStatus() {
	durations := m.buffers.Durations()
	st := Status{
		BufferSeconds:    make(map[string]float64, len(durations)),
		Phases:           make(map[string]string, len(durations)),
		ActivityLevel:    m.policy.Activity().Level(m.clock.Now()).String(),
		QueueDepth:       m.dispatcher.QueueDepth(),
		InFlight:         m.dispatcher.InFlight(),
		EngineReady:      m.dispatcher.Ready() == nil,
		Segments:         m.segments.Len(),
		TotalSeconds:     m.accountant.TotalSeconds(),
		EstimatedCostUSD: m.accountant.EstimatedCostUSD(),
	}
	for key, d := range durations {
		st.BufferSeconds[key] = d.Seconds()
		st.Phases[key] = m.policy.Phase(key).String()
	}
	st.IsProcessing = st.QueueDepth+st.InFlight > 0

	m.status.Set(st)
	select {
	case m.statusCh <- st:
	default:
	}
}

func (m *Manager) notifyConfig(ctx context.Context, err error) {
	if m.configNotified {
		return
	}
	m.configNotified = true
	m.notify(ctx, NoticeUser, err, "")
}

// onRetry runs on dispatcher workers.
func (m *Manager) onRetry(task dispatch.Task, attempt int, delay time.Duration, err error) {
	m.notify(context.Background(), NoticeDebug,
		apperr.Wrapf(err, apperr.CodeOf(err), "retry %d in %s", attempt, delay), task.SpeakerKey)
}

func (m *Manager) notify(ctx context.Context, level NoticeLevel, err error, key string) {
	msg := err.Error()
	var appErr *apperr.AppError
	if stderrors.As(err, &appErr) {
		msg = appErr.Message
	}
	n := Notice{
		Level:      level,
		Code:       apperr.CodeOf(err).String(),
		Message:    msg,
		SpeakerKey: key,
		Time:       m.clock.Now(),
	}

	log := trace.Logger(ctx)
	if level == NoticeUser {
		log.Warn("pipeline notice", "code", n.Code, "message", msg, "speaker", key, "error", err)
	} else {
		log.Debug("pipeline notice", "code", n.Code, "message", msg, "speaker", key)
	}

	select {
	case m.notices <- n:
	default:
	}
}

func chunkOf(t dispatch.Task) buffer.Chunk {
	return buffer.Chunk{
		SpeakerKey: t.SpeakerKey,
		Samples:    t.Samples,
		SampleRate: t.SampleRate,
		StartTime:  t.StartTime,
	}
}
