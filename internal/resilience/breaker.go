// Package resilience provides the retry and circuit-breaking policies wrapped
// around calls to the transcription engine.
package resilience

import (
	"log/slog"
	"sync/atomic"
	"time"

	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
)

// State represents circuit breaker state
type State uint32

const (
	Closed   State = iota // Normal operation
	Open                  // Failing fast
	HalfOpen              // Testing recovery
)

func (s State) String() string {
	return [...]string{"closed", "open", "half-open"}[s]
}

// ErrOpen is returned while the breaker is failing fast. It is Unavailable,
// so a surrounding Retry treats it like any other transient failure.
var ErrOpen = apperr.New(apperr.Unavailable, "circuit breaker open")

// Breaker implements the circuit breaker pattern with atomic state
type Breaker struct {
	cfg           Config
	state         atomic.Uint32
	failures      atomic.Int32
	successes     atomic.Int32
	lastFailure   atomic.Int64 // unix nano
	now           func() time.Time
	onStateChange func(from, to State)
}

// New creates a breaker with config
func New(cfg Config) *Breaker {
	b := &Breaker{cfg: cfg.withDefaults(), now: time.Now}
	b.state.Store(uint32(Closed))
	return b
}

// WithHook sets state change callback
func (b *Breaker) WithHook(fn func(from, to State)) *Breaker {
	b.onStateChange = fn
	return b
}

// WithClock overrides the time source.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// Allow returns nil if a call may proceed.
func (b *Breaker) Allow() error {
	if State(b.state.Load()) != Open {
		return nil
	}
	if b.now().Sub(time.Unix(0, b.lastFailure.Load())) > b.cfg.ResetTimeout {
		b.transition(HalfOpen)
		return nil
	}
	return ErrOpen
}

// Success records successful call
func (b *Breaker) Success() {
	switch State(b.state.Load()) {
	case HalfOpen:
		if b.successes.Add(1) >= int32(b.cfg.HalfOpenSuccesses) {
			b.transition(Closed)
		}
	case Closed:
		b.failures.Store(0)
	}
}

// Failure records failed call
func (b *Breaker) Failure() {
	b.lastFailure.Store(b.now().UnixNano())
	count := b.failures.Add(1)

	switch State(b.state.Load()) {
	case HalfOpen:
		b.transition(Open)
	case Closed:
		if count >= int32(b.cfg.Threshold) {
			b.transition(Open)
		}
	}
}

// State returns current state
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// Reset forces breaker to closed state
func (b *Breaker) Reset() {
	b.transition(Closed)
}

func (b *Breaker) transition(to State) {
	from := State(b.state.Swap(uint32(to)))
	if from == to {
		return
	}

	switch to {
	case Closed:
		b.failures.Store(0)
		b.successes.Store(0)
		slog.Info("circuit breaker closed", "name", b.cfg.Name)
	case Open:
		b.successes.Store(0)
		slog.Warn("circuit breaker opened", "name", b.cfg.Name, "failures", b.failures.Load())
	case HalfOpen:
		b.successes.Store(0)
		slog.Info("circuit breaker half-open", "name", b.cfg.Name)
	}

	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

// ExecuteWithResult runs fn returning value and error with circuit protection.
// Only errors that count against the endpoint (see Counts) trip the breaker.
func ExecuteWithResult[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	result, err := fn()
	if err != nil {
		if Counts(err) {
			b.Failure()
		}
		return zero, err
	}
	b.Success()
	return result, nil
}

// Counts reports whether err reflects endpoint health. Local validation and
// caller cancellation say nothing about the remote side.
func Counts(err error) bool {
	if apperr.IsValidation(err) {
		return false
	}
	switch apperr.CodeOf(err) {
	case apperr.Cancelled, apperr.InvalidArgument:
		return false
	}
	return true
}
