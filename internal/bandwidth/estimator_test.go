package bandwidth

import (
	"testing"
	"time"
)

func TestEstimatorSeed(t *testing.T) {
	e := New(nil)
	e.Seed(5_000_000)
	if got := e.Estimate(); got != 5_000_000 {
		t.Fatalf("Estimate() = %v, want 5000000", got)
	}
}

func TestEstimatorConvergesTowardSamples(t *testing.T) {
	var samples []float64
	e := New(func(bps float64) { samples = append(samples, bps) })

	// First sample sets the estimate directly (no prior EMA state).
	e.mu.Lock()
	e.lastUpdate = time.Now().Add(-time.Second)
	e.mu.Unlock()
	e.Observe(1_000_000, time.Second) // 8 Mbit/s instantaneous

	if len(samples) != 1 {
		t.Fatalf("expected 1 sample callback, got %d", len(samples))
	}
	first := samples[0]
	if first <= 0 {
		t.Fatalf("first estimate should be positive, got %v", first)
	}

	e.mu.Lock()
	e.lastUpdate = time.Now().Add(-time.Second)
	e.mu.Unlock()
	e.Observe(1_000_000, time.Second)

	if len(samples) != 2 {
		t.Fatalf("expected 2 sample callbacks, got %d", len(samples))
	}
}

func TestEstimatorThrottlesUpdates(t *testing.T) {
	calls := 0
	e := New(func(float64) { calls++ })
	e.Observe(1_000, time.Millisecond)
	e.Observe(1_000, time.Millisecond)
	if calls != 0 {
		t.Fatalf("expected no callback before minUpdateInterval elapses, got %d", calls)
	}
}

func TestEstimatorIgnoresInvalidSamples(t *testing.T) {
	e := New(nil)
	e.Observe(0, time.Second)
	e.Observe(100, 0)
	if got := e.Estimate(); got != 0 {
		t.Fatalf("Estimate() = %v, want 0", got)
	}
}
