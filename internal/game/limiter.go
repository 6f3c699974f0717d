package game

import "time"

// limiter is a sliding-window command rate limiter, one per session.
type limiter struct {
	window time.Duration
	max    int
	times  []time.Time
}

func newLimiter(perSecond int) *limiter {
	if perSecond <= 0 {
		perSecond = 10
	}
	return &limiter{window: time.Second, max: perSecond}
}

// Allow records an attempt and reports whether it fits the window.
func (l *limiter) Allow(now time.Time) bool {
	cutoff := now.Add(-l.window)
	keep := l.times[:0]
	for _, t := range l.times {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	l.times = keep
	if len(l.times) >= l.max {
		return false
	}
	l.times = append(l.times, now)
	return true
}
