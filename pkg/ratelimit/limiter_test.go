package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(0, zerolog.Nop())
	if l.MinInterval() != DefaultMinInterval {
		t.Errorf("MinInterval = %v, want %v", l.MinInterval(), DefaultMinInterval)
	}

	l = NewLimiter(-1*time.Second, zerolog.Nop())
	if l.MinInterval() != DefaultMinInterval {
		t.Errorf("MinInterval = %v, want %v", l.MinInterval(), DefaultMinInterval)
	}
}

func TestWait_FirstCallDoesNotBlock(t *testing.T) {
	l := NewLimiter(time.Second, zerolog.Nop())

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("First Wait blocked for %v, expected immediate return", elapsed)
	}
}

func TestWait_EnforcesMinimumInterval(t *testing.T) {
	const interval = 20 * time.Millisecond
	const calls = 5

	l := NewLimiter(interval, zerolog.Nop())
	ctx := context.Background()

	var stamps []time.Time
	for i := 0; i < calls; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
		stamps = append(stamps, time.Now())
	}

	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		if gap < interval {
			t.Errorf("Gap between call %d and %d = %v, want >= %v", i-1, i, gap, interval)
		}
	}
}

func TestWait_MeasuresFromActualRelease(t *testing.T) {
	// If the caller is already slower than the interval, Wait must not add
	// any delay on top (pacing from a fixed schedule would).
	const interval = 15 * time.Millisecond

	l := NewLimiter(interval, zerolog.Nop())
	ctx := context.Background()

	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	time.Sleep(2 * interval)

	start := time.Now()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > interval/2 {
		t.Errorf("Wait blocked for %v after caller already exceeded the interval", elapsed)
	}
}

func TestWait_ContextCancellationAbortsWait(t *testing.T) {
	l := NewLimiter(5*time.Second, zerolog.Nop())

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Wait(ctx)
	if err == nil {
		t.Fatal("Expected error from cancelled wait")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Cancelled Wait took %v, expected prompt abort", elapsed)
	}
}
