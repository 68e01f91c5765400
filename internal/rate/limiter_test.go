package rate

import (
	"errors"
	"testing"
	"time"
)

func TestAllowExhaustsBudget(t *testing.T) {
	l := New(Config{MaxAttempts: 3, Cooldown: time.Hour})

	for i := 0; i < 3; i++ {
		if err := l.Allow("alice"); err != nil {
			t.Fatalf("attempt %d should be allowed: %v", i, err)
		}
	}
	if err := l.Allow("alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(Config{MaxAttempts: 1, Cooldown: time.Hour})

	if err := l.Allow("alice"); err != nil {
		t.Fatalf("alice should be allowed: %v", err)
	}
	if err := l.Allow("alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected alice limited, got %v", err)
	}
	if err := l.Allow("bob"); err != nil {
		t.Fatalf("bob must not share alice's budget: %v", err)
	}
}

func TestBudgetRefills(t *testing.T) {
	l := New(Config{MaxAttempts: 2, Cooldown: 100 * time.Millisecond})

	for i := 0; i < 2; i++ {
		if err := l.Allow("alice"); err != nil {
			t.Fatalf("attempt %d should be allowed: %v", i, err)
		}
	}
	if err := l.Allow("alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	time.Sleep(120 * time.Millisecond)
	if err := l.Allow("alice"); err != nil {
		t.Fatalf("budget should have refilled: %v", err)
	}
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var l *Limiter
	if err := l.Allow("anyone"); err != nil {
		t.Fatalf("nil limiter must be a no-op: %v", err)
	}
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	l := New(Config{MaxAttempts: 1, Cooldown: 10 * time.Millisecond})

	if err := l.Allow("alice"); err != nil {
		t.Fatalf("Allow failed: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if err := l.Allow("bob"); err != nil {
		t.Fatalf("Allow failed: %v", err)
	}

	l.mu.Lock()
	_, aliceAlive := l.buckets["alice"]
	l.mu.Unlock()
	if aliceAlive {
		t.Fatal("idle bucket should have been swept")
	}
}
