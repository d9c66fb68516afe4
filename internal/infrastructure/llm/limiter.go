package llm

import (
	"sync"
	"time"
)

// Limiter enforces a per-provider requests-per-minute budget over a
// rolling one-minute window.
type Limiter struct {
	mu    sync.Mutex
	calls map[string][]time.Time
	now   func() time.Time
}

// NewLimiter builds an empty limiter.
func NewLimiter() *Limiter {
	return &Limiter{calls: make(map[string][]time.Time), now: time.Now}
}

// Allow records a call for name if it fits the budget and reports whether
// it did. rpm <= 0 means unlimited.
func (l *Limiter) Allow(name string, rpm int) bool {
	if rpm <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-time.Minute)

	recent := l.calls[name][:0]
	for _, t := range l.calls[name] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rpm {
		l.calls[name] = recent
		return false
	}

	l.calls[name] = append(recent, now)
	return true
}
