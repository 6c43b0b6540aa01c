package circuitbreaker

import (
	"testing"
	"time"
)

// advance swaps the breaker clock for one frozen at base plus d.
func advance(cb *CircuitBreaker, base time.Time, d time.Duration) {
	cb.now = func() time.Time { return base.Add(d) }
}

func newTestBreaker(threshold int, cooldown time.Duration) (*CircuitBreaker, time.Time) {
	cb := New(threshold, cooldown)
	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	advance(cb, base, 0)
	return cb, base
}

func TestAllowUnknownKey(t *testing.T) {
	cb, _ := newTestBreaker(3, 5*time.Second)
	if err := cb.Allow("sub-1"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAllowBelowThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 5*time.Second)
	cb.RecordFailure("sub-1")
	cb.RecordFailure("sub-1")
	if err := cb.Allow("sub-1"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAllowAtThresholdOpens(t *testing.T) {
	cb, _ := newTestBreaker(3, 5*time.Second)
	for i := 0; i < 3; i++ {
		cb.RecordFailure("sub-1")
	}
	if err := cb.Allow("sub-1"); err == nil {
		t.Fatal("expected ErrCircuitOpen, got nil")
	}
}

func TestOpenAfterCooldownAdmitsOneProbe(t *testing.T) {
	cb, base := newTestBreaker(3, 10*time.Second)
	for i := 0; i < 3; i++ {
		cb.RecordFailure("sub-1")
	}

	advance(cb, base, 11*time.Second)
	if err := cb.Allow("sub-1"); err != nil {
		t.Fatalf("expected probe allowed, got %v", err)
	}
	if err := cb.Allow("sub-1"); err == nil {
		t.Fatal("expected ErrCircuitOpen while probe in flight")
	}
}

func TestProbeSuccessCloses(t *testing.T) {
	cb, base := newTestBreaker(3, 10*time.Second)
	for i := 0; i < 3; i++ {
		cb.RecordFailure("sub-1")
	}
	advance(cb, base, 11*time.Second)
	cb.Allow("sub-1")
	cb.RecordSuccess("sub-1")

	if err := cb.Allow("sub-1"); err != nil {
		t.Fatalf("expected closed after probe success, got %v", err)
	}
}

func TestProbeFailureReopens(t *testing.T) {
	cb, base := newTestBreaker(3, 10*time.Second)
	for i := 0; i < 3; i++ {
		cb.RecordFailure("sub-1")
	}
	advance(cb, base, 11*time.Second)
	cb.Allow("sub-1")
	cb.RecordFailure("sub-1")

	if err := cb.Allow("sub-1"); err == nil {
		t.Fatal("expected ErrCircuitOpen after probe failure")
	}
	// The cooldown restarts from the probe failure.
	if cd := cb.Cooldown("sub-1"); cd != 10*time.Second {
		t.Errorf("cooldown = %s, want 10s", cd)
	}
}

func TestSuccessResetsStreak(t *testing.T) {
	cb, _ := newTestBreaker(3, 5*time.Second)
	cb.RecordFailure("sub-1")
	cb.RecordFailure("sub-1")
	cb.RecordSuccess("sub-1")
	cb.RecordFailure("sub-1")
	cb.RecordFailure("sub-1")
	if err := cb.Allow("sub-1"); err != nil {
		t.Fatalf("streak should have reset, got %v", err)
	}
}

func TestCooldownRemaining(t *testing.T) {
	cb, base := newTestBreaker(2, 60*time.Second)

	if cd := cb.Cooldown("sub-1"); cd != 0 {
		t.Errorf("unknown key cooldown = %s, want 0", cd)
	}

	cb.RecordFailure("sub-1")
	cb.RecordFailure("sub-1")
	if cd := cb.Cooldown("sub-1"); cd != 60*time.Second {
		t.Errorf("cooldown = %s, want 60s", cd)
	}

	advance(cb, base, 45*time.Second)
	if cd := cb.Cooldown("sub-1"); cd != 15*time.Second {
		t.Errorf("cooldown = %s, want 15s", cd)
	}

	advance(cb, base, 90*time.Second)
	if cd := cb.Cooldown("sub-1"); cd != 0 {
		t.Errorf("cooldown = %s, want 0 after expiry", cd)
	}
}

func TestIndependentKeys(t *testing.T) {
	cb, _ := newTestBreaker(2, 5*time.Second)
	cb.RecordFailure("sub-1")
	cb.RecordFailure("sub-1")

	if err := cb.Allow("sub-1"); err == nil {
		t.Fatal("expected sub-1 open")
	}
	if err := cb.Allow("sub-2"); err != nil {
		t.Fatalf("expected sub-2 allowed, got %v", err)
	}
}
