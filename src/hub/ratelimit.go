package hub

import "time"

const (
	// DefaultRateWindow is the sliding window over which sends are counted.
	DefaultRateWindow = 10 * time.Second
	// DefaultRateLimit is the number of sends allowed inside the window.
	DefaultRateLimit = 5
)

// RateLimiter guards per-connection send rates with a sliding window of
// recent send timestamps. It is called only from the hub event loop, so it
// needs no locking.
type RateLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time
	stamps map[string][]time.Time
}

// NewRateLimiter creates a limiter allowing limit sends per window.
func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	if window <= 0 {
		window = DefaultRateWindow
	}
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	return &RateLimiter{
		window: window,
		limit:  limit,
		now:    time.Now,
		stamps: make(map[string][]time.Time),
	}
}

// Allow records a send attempt for connID and reports whether it is within
// the window limit. The attempt is recorded even when rejected, so rapid
// retries cannot refresh the window back to a clean slate.
func (rl *RateLimiter) Allow(connID string) bool {
	now := rl.now()
	cutoff := now.Add(-rl.window)

	prior := rl.stamps[connID]
	kept := prior[:0]
	for _, ts := range prior {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	rl.stamps[connID] = kept

	return len(kept) <= rl.limit
}

// Forget drops all recorded attempts for a connection.
func (rl *RateLimiter) Forget(connID string) {
	delete(rl.stamps, connID)
}
