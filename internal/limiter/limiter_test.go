package limiter

import (
	"context"
	"testing"
	"time"
)

func TestSessionLimiterCap(t *testing.T) {
	s := NewSessionLimiter()
	if s.Cap() != MaxHistorySessions {
		t.Fatalf("Cap = %d, want %d", s.Cap(), MaxHistorySessions)
	}

	for i := 0; i < s.Cap(); i++ {
		if !s.TryAcquire() {
			t.Fatalf("acquire %d failed below cap", i)
		}
	}
	if s.TryAcquire() {
		t.Fatal("acquire above cap succeeded")
	}
	if s.Active() != s.Cap() {
		t.Errorf("Active = %d, want %d", s.Active(), s.Cap())
	}

	s.Release()
	if !s.TryAcquire() {
		t.Fatal("acquire after release failed")
	}
}

func TestSessionLimiterReleaseFloor(t *testing.T) {
	s := NewSessionLimiterWithCap(1)
	s.Release()
	if s.Active() != 0 {
		t.Errorf("Active = %d, want 0", s.Active())
	}
	if !s.TryAcquire() {
		t.Error("acquire failed on empty limiter")
	}
}

func TestFrameLimiterRespectsContext(t *testing.T) {
	// Zero-burst limiter never admits; Wait must fail instead of hanging.
	f := NewFrameLimiterWithRate(1, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := f.Wait(ctx); err == nil {
		t.Fatal("Wait succeeded with zero burst, want error")
	}
}

func TestFrameLimiterAdmitsBurst(t *testing.T) {
	f := NewFrameLimiterWithRate(1, 5)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := f.Wait(ctx); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
}
