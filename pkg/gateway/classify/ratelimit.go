package classify

import (
	"sync"
	"time"
)

// rateLimiter is a sliding-window call limiter. Zero maxCalls means
// unlimited.
type rateLimiter struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	calls    []time.Time
	now      func() time.Time
}

func newRateLimiter(maxCalls int, window time.Duration) *rateLimiter {
	return &rateLimiter{maxCalls: maxCalls, window: window, now: time.Now}
}

// allow records a call if the window has capacity and reports whether it
// was admitted.
func (rl *rateLimiter) allow() bool {
	if rl.maxCalls <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	kept := rl.calls[:0]
	for _, t := range rl.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rl.calls = kept

	if len(rl.calls) >= rl.maxCalls {
		return false
	}
	rl.calls = append(rl.calls, now)
	return true
}
