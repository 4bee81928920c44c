package api

import (
	"sync"
	"time"
)

// SlidingLimiter enforces a per-user sliding-window request limit. It keeps
// the timestamps of each user's calls within the current window and prunes
// stale entries on every Allow, bounding memory to O(limit) per active user.
// Safe for concurrent use.
type SlidingLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  map[string][]time.Time
}

// NewSlidingLimiter allows at most limit calls per user within window.
func NewSlidingLimiter(limit int, window time.Duration) *SlidingLimiter {
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingLimiter{
		limit:  limit,
		window: window,
		calls:  make(map[string][]time.Time),
	}
}

// Allow records a call for userID and reports whether it fits the quota.
func (l *SlidingLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	existing := l.calls[userID]
	valid := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= l.limit {
		l.calls[userID] = valid
		return false
	}

	l.calls[userID] = append(valid, now)
	return true
}
