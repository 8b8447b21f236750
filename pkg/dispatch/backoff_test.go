package dispatch

import (
	"testing"
	"time"
)

func noJitter(time.Duration) time.Duration { return 0 }

func TestBackoffGrowsExponentially(t *testing.T) {
	policy := BackoffPolicy{Base: time.Second, Growth: 2, Max: time.Minute, Jitter: noJitter}

	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, want := range expected {
		if got := policy.Delay(i + 1); got != want {
			t.Fatalf("attempt %d: expected %v, got %v", i+1, want, got)
		}
	}
}

func TestBackoffCapsAtMax(t *testing.T) {
	policy := BackoffPolicy{Base: time.Second, Growth: 2, Max: 10 * time.Second, Jitter: noJitter}

	if got := policy.Delay(20); got != 10*time.Second {
		t.Fatalf("expected cap at 10s, got %v", got)
	}
	// Growth overflow past the float64 range still lands on the cap.
	if got := policy.Delay(5000); got != 10*time.Second {
		t.Fatalf("expected overflow to land on cap, got %v", got)
	}
}

func TestBackoffJitterStaysWithinHalfDelay(t *testing.T) {
	policy := BackoffPolicy{Base: time.Second, Growth: 2, Max: time.Minute}

	for i := 0; i < 100; i++ {
		got := policy.Delay(2)
		if got < 2*time.Second || got >= 3*time.Second {
			t.Fatalf("expected delay in [2s, 3s), got %v", got)
		}
	}
}

func TestBackoffZeroValueUsesDefaults(t *testing.T) {
	var policy BackoffPolicy
	policy.Jitter = noJitter

	if got := policy.Delay(1); got != time.Second {
		t.Fatalf("expected default base 1s, got %v", got)
	}
	if got := policy.Delay(100); got != 60*time.Second {
		t.Fatalf("expected default cap 60s, got %v", got)
	}
}
