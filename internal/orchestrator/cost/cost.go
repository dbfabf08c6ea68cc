// Package cost accounts transcribed audio and estimates engine spend.
package cost

import (
	"sync"
	"time"
)

// DefaultRatePerMinute is the engine price in USD per audio minute.
const DefaultRatePerMinute = 0.006

// Accountant is safe for concurrent use.
type Accountant struct {
	mu      sync.Mutex
	rate    float64
	seconds float64
	chunks  int
}

// New creates an accountant billing ratePerMinute (default when <= 0).
func New(ratePerMinute float64) *Accountant {
	if ratePerMinute <= 0 {
		ratePerMinute = DefaultRatePerMinute
	}
	return &Accountant{rate: ratePerMinute}
}

// Record adds seconds of transcribed audio. Negative values are ignored.
func (a *Accountant) Record(seconds float64) {
	if seconds < 0 {
		return
	}
	a.mu.Lock()
	a.seconds += seconds
	a.chunks++
	a.mu.Unlock()
}

// RecordDuration is Record for a time.Duration.
func (a *Accountant) RecordDuration(d time.Duration) {
	a.Record(d.Seconds())
}

// TotalSeconds returns the accounted audio seconds.
func (a *Accountant) TotalSeconds() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seconds
}

// Chunks returns how many recordings were accounted.
func (a *Accountant) Chunks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chunks
}

// EstimatedCostUSD is total minutes times the rate.
func (a *Accountant) EstimatedCostUSD() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seconds / 60 * a.rate
}

// Restore resets the total, for resumed sessions.
func (a *Accountant) Restore(seconds float64, chunks int) {
	if seconds < 0 {
		seconds = 0
	}
	a.mu.Lock()
	a.seconds, a.chunks = seconds, chunks
	a.mu.Unlock()
}
