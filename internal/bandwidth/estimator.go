// Package bandwidth implements the Bandwidth Estimator (C1): an
// exponentially-weighted throughput estimate built from observed segment
// fetches, published as "bandwidth" events. Same shape as a sliding-window
// throughput reader (alpha=0.3, minimum 500ms between recalculations), here
// driven by fetch-duration samples instead of raw read throughput.
package bandwidth

import (
	"sync"
	"time"
)

const (
	// alpha weights the instantaneous sample into the running estimate
	// (0.7 prior / 0.3 new).
	alpha             = 0.3
	minUpdateInterval = 500 * time.Millisecond
)

// Estimator tracks bits/sec throughput from a stream of (bytes, duration)
// fetch observations. Safe for concurrent use; Stream instances for every
// content type report into the same Estimator.
type Estimator struct {
	mu          sync.Mutex
	estimate    float64 // bits/sec
	pendingBits float64
	pendingDur  time.Duration
	lastUpdate  time.Time
	onSample    func(bitsPerSec float64)
}

// New returns an Estimator with no prior samples. onSample, if non-nil, is
// invoked (outside the lock) every time the running estimate changes —
// wired by the Coordinator to publish a "bandwidth" event on the EventBus.
func New(onSample func(bitsPerSec float64)) *Estimator {
	return &Estimator{onSample: onSample}
}

// Observe records one completed fetch of n bytes taking d wall-clock time.
// Samples accumulate until at least minUpdateInterval has elapsed since the
// last recalculation, throttling recomputation against many small, fast
// segment fetches.
func (e *Estimator) Observe(n int64, d time.Duration) {
	if d <= 0 || n <= 0 {
		return
	}
	e.mu.Lock()
	e.pendingBits += float64(n) * 8
	e.pendingDur += d
	now := time.Now()
	if e.lastUpdate.IsZero() {
		e.lastUpdate = now
	}
	elapsed := now.Sub(e.lastUpdate)
	if elapsed < minUpdateInterval {
		e.mu.Unlock()
		return
	}

	instant := e.pendingBits / e.pendingDur.Seconds()
	if e.estimate <= 0 {
		e.estimate = instant
	} else {
		e.estimate = (1-alpha)*e.estimate + alpha*instant
	}
	e.pendingBits = 0
	e.pendingDur = 0
	e.lastUpdate = now
	result := e.estimate
	e.mu.Unlock()

	if e.onSample != nil {
		e.onSample(result)
	}
}

// Estimate returns the current smoothed bits/sec estimate, or 0 if no
// samples have been recorded yet.
func (e *Estimator) Estimate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.estimate
}

// Seed primes the estimate without going through the EMA, used by tests and
// by ABR's "estimator starts at N" scenario setup (spec S1).
func (e *Estimator) Seed(bitsPerSec float64) {
	e.mu.Lock()
	e.estimate = bitsPerSec
	e.mu.Unlock()
}
