package alert

import (
	"testing"
	"time"
)

func TestGateSequence(t *testing.T) {
	g := NewGate(5 * time.Minute)
	t0 := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	if !g.TryAcquire(t0, false) {
		t.Fatal("first acquisition should succeed")
	}
	if g.TryAcquire(t0.Add(2*time.Minute), false) {
		t.Fatal("acquisition inside the interval should fail")
	}
	if !g.TryAcquire(t0.Add(5*time.Minute), false) {
		t.Fatal("acquisition after the interval should succeed")
	}
}

func TestGateForce(t *testing.T) {
	g := NewGate(5 * time.Minute)
	t0 := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	if !g.TryAcquire(t0, false) {
		t.Fatal("first acquisition should succeed")
	}
	if !g.TryAcquire(t0.Add(2*time.Minute), true) {
		t.Fatal("forced acquisition should always succeed")
	}

	// A forced acquisition restarts the interval.
	if g.TryAcquire(t0.Add(6*time.Minute), false) {
		t.Fatal("interval restarts from the forced acquisition")
	}
	if !g.TryAcquire(t0.Add(7*time.Minute), false) {
		t.Fatal("acquisition after the restarted interval should succeed")
	}
}

func TestGateZeroInterval(t *testing.T) {
	g := NewGate(0)
	t0 := time.Now()

	for i := 0; i < 3; i++ {
		if !g.TryAcquire(t0, false) {
			t.Fatalf("zero-interval gate should never block, failed at %d", i)
		}
	}
}

func TestGateRemaining(t *testing.T) {
	g := NewGate(5 * time.Minute)
	t0 := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	if got := g.Remaining(t0); got != 0 {
		t.Fatalf("remaining before any acquisition = %v, want 0", got)
	}

	g.TryAcquire(t0, false)

	if got := g.Remaining(t0.Add(2 * time.Minute)); got != 3*time.Minute {
		t.Fatalf("remaining = %v, want 3m", got)
	}
	if got := g.Remaining(t0.Add(10 * time.Minute)); got != 0 {
		t.Fatalf("remaining past the interval = %v, want 0", got)
	}
}
