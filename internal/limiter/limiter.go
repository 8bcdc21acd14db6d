// Package limiter enforces the client-side limits the chart server expects:
// a pace on outbound protocol frames and a hard cap on concurrent one-shot
// history sessions.
package limiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Observed server behavior: bursts of subscribe frames well above this rate
// trigger throttling on some clusters.
const (
	FramesPerSecond = 20
	FrameBurst      = 40

	// MaxHistorySessions caps concurrent short-lived history fetches
	// process-wide.
	MaxHistorySessions = 3
)

// FrameLimiter paces outbound protocol frames.
type FrameLimiter struct {
	limiter *rate.Limiter
}

// NewFrameLimiter creates a limiter with the default pacing.
func NewFrameLimiter() *FrameLimiter {
	return &FrameLimiter{limiter: rate.NewLimiter(rate.Limit(FramesPerSecond), FrameBurst)}
}

// NewFrameLimiterWithRate creates a limiter with custom pacing.
func NewFrameLimiterWithRate(perSecond float64, burst int) *FrameLimiter {
	return &FrameLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a frame may be sent or ctx is cancelled.
func (f *FrameLimiter) Wait(ctx context.Context) error {
	return f.limiter.Wait(ctx)
}

// SessionLimiter is a counting semaphore over history sessions. Acquire
// fails fast instead of queuing: callers surface the overload to the user
// rather than stacking up WebSocket connections.
type SessionLimiter struct {
	max int

	mu     sync.Mutex
	active int
}

// NewSessionLimiter creates a limiter with the default session cap.
func NewSessionLimiter() *SessionLimiter {
	return &SessionLimiter{max: MaxHistorySessions}
}

// NewSessionLimiterWithCap creates a limiter with a custom cap.
func NewSessionLimiterWithCap(max int) *SessionLimiter {
	return &SessionLimiter{max: max}
}

// TryAcquire claims a session slot. It reports false when the cap is
// reached.
func (s *SessionLimiter) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active >= s.max {
		return false
	}
	s.active++
	return true
}

// Release returns a session slot.
func (s *SessionLimiter) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active > 0 {
		s.active--
	}
}

// Active returns the number of sessions currently held.
func (s *SessionLimiter) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Cap returns the maximum number of concurrent sessions.
func (s *SessionLimiter) Cap() int {
	return s.max
}
