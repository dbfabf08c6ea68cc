// Package checkpoint debounces session persistence: bursts of state changes
// collapse into one save after a quiet period.
package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/speakerline/internal/trace"
)

// Checkpointer defaults
const (
	DefaultDelay   = 5 * time.Second
	DefaultMaxWait = 30 * time.Second
)

// SaveFunc persists the current session state.
type SaveFunc func(ctx context.Context) error

// Checkpointer coalesces Mark calls into delayed saves.
type Checkpointer struct {
	save    SaveFunc
	delay   time.Duration
	maxWait time.Duration

	mu      sync.Mutex
	dirty   bool
	first   time.Time // first unsaved mark
	timer   *time.Timer
	stopped bool

	saveMu sync.Mutex // serializes saves
	wg     sync.WaitGroup

	errMu   sync.Mutex
	lastErr error
	saves   int
}

// New creates a checkpointer. A dirty state is saved delay after the last
// Mark, but never later than maxWait after the first unsaved one.
func New(save SaveFunc, delay, maxWait time.Duration) *Checkpointer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if maxWait < delay {
		maxWait = max(DefaultMaxWait, delay)
	}
	return &Checkpointer{save: save, delay: delay, maxWait: maxWait}
}

// Mark records that state changed.
func (c *Checkpointer) Mark() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	now := time.Now()
	if !c.dirty {
		c.dirty = true
		c.first = now
	}

	wait := c.delay
	if remaining := c.maxWait - now.Sub(c.first); remaining < wait {
		wait = max(remaining, 0)
	}
	if c.timer == nil {
		c.timer = time.AfterFunc(wait, c.timerFlush)
	} else {
		c.timer.Reset(wait)
	}
}

func (c *Checkpointer) timerFlush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

func (c *Checkpointer) flushLocked() {
	if !c.dirty {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.dirty = false

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(context.Background())
	}()
}

func (c *Checkpointer) run(ctx context.Context) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	ctx, span := trace.StartSpan(ctx, "checkpoint_save")
	defer span.End()

	err := c.save(ctx)
	c.errMu.Lock()
	c.lastErr = err
	if err == nil {
		c.saves++
	}
	c.errMu.Unlock()

	log := trace.Logger(ctx)
	if err != nil {
		span.SetAttr("error", err.Error())
		log.Warn("checkpoint save failed", "error", err)
		return
	}
	log.Debug("checkpoint saved")
}

// Flush forces an immediate save of pending changes.
func (c *Checkpointer) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

// Err returns the result of the most recent save.
func (c *Checkpointer) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.lastErr
}

// Saves counts successful saves.
func (c *Checkpointer) Saves() int {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.saves
}

// Stop cancels pending timers, waits for in-flight saves and performs a
// final synchronous save.
func (c *Checkpointer) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.stopped = true
	c.dirty = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.run(ctx)
	return c.Err()
}
