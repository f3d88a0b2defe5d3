package abr

import (
	"testing"
	"time"
)

func reps() []Candidate {
	return []Candidate{
		{ID: 1, Bandwidth: 1_000_000, Enabled: true}, // 720p 1Mbps
		{ID: 2, Bandwidth: 3_000_000, Enabled: true}, // 1080p 3Mbps
	}
}

func TestInitialVideoIDPicksHighestWithinBudget(t *testing.T) {
	m := New()
	id, ok := m.InitialVideoID(reps(), 5_000_000) // spec S1: estimator starts at 5 Mbps
	if !ok || id != 2 {
		t.Fatalf("InitialVideoID() = %d, %v; want 2 (1080p), true", id, ok)
	}
}

func TestInitialVideoIDFallsBackToLowest(t *testing.T) {
	m := New()
	id, ok := m.InitialVideoID(reps(), 100_000) // nothing fits 0.8x budget
	if !ok || id != 1 {
		t.Fatalf("InitialVideoID() = %d, %v; want 1 (lowest), true", id, ok)
	}
}

func TestChooseDownswitchesImmediately(t *testing.T) {
	m := New()
	current := Candidate{ID: 2, Bandwidth: 3_000_000, Enabled: true}
	id, switched := m.Choose(reps(), 1_000_000, current) // well below 3M*0.8
	if !switched || id != 1 {
		t.Fatalf("Choose() = %d, %v; want downswitch to 1", id, switched)
	}
}

func TestChooseWithholdsUpswitchUntilSustained(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := New()
	m.nowFunc = func() time.Time { return fixed }
	current := Candidate{ID: 1, Bandwidth: 1_000_000, Enabled: true}

	// Estimate comfortably above target*1.15 but not yet sustained 5s.
	id, switched := m.Choose(reps(), 4_000_000, current)
	if switched {
		t.Fatalf("Choose() switched on first sample, want hysteresis to withhold")
	}
	if id != current.ID {
		t.Fatalf("Choose() id = %d while withholding, want unchanged %d", id, current.ID)
	}
}

func TestChooseDisabledNeverSwitches(t *testing.T) {
	m := New()
	m.Enable(false)
	current := Candidate{ID: 2, Bandwidth: 3_000_000, Enabled: true}
	id, switched := m.Choose(reps(), 100, current)
	if switched || id != current.ID {
		t.Fatalf("Choose() while disabled = %d, %v; want no switch", id, switched)
	}
}
