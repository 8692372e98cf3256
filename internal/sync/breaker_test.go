package sync

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := newBreaker(3, time.Minute)
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		b.RecordFailure(now)
		if !b.Allow(now) {
			t.Fatalf("breaker opened after %d failures, threshold is 3", i+1)
		}
	}
	b.RecordFailure(now)
	if b.Allow(now) {
		t.Fatal("breaker still closed after reaching the threshold")
	}
}

func TestBreakerAllowsOneProbeAfterCooldown(t *testing.T) {
	b := newBreaker(1, time.Minute)
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	b.RecordFailure(now)

	if b.Allow(now.Add(30 * time.Second)) {
		t.Fatal("breaker allowed delivery before cooldown elapsed")
	}
	after := now.Add(2 * time.Minute)
	if !b.Allow(after) {
		t.Fatal("breaker denied the half-open probe")
	}
	if b.Allow(after) {
		t.Fatal("breaker allowed a second concurrent probe")
	}
}

func TestBreakerClosesOnProbeSuccess(t *testing.T) {
	b := newBreaker(1, time.Minute)
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	b.RecordFailure(now)

	after := now.Add(2 * time.Minute)
	if !b.Allow(after) {
		t.Fatal("breaker denied the half-open probe")
	}
	b.RecordSuccess()
	if !b.Allow(after) || !b.Allow(after) {
		t.Fatal("breaker did not close after a successful probe")
	}
}

func TestBreakerReopensOnProbeFailure(t *testing.T) {
	b := newBreaker(1, time.Minute)
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	b.RecordFailure(now)

	after := now.Add(2 * time.Minute)
	if !b.Allow(after) {
		t.Fatal("breaker denied the half-open probe")
	}
	b.RecordFailure(after)
	if b.Allow(after.Add(30 * time.Second)) {
		t.Fatal("breaker closed after a failed probe")
	}
	if !b.Allow(after.Add(2 * time.Minute)) {
		t.Fatal("breaker denied a probe after the second cooldown")
	}
}
