package auth

import (
	"sync"
	"time"
)

// Login rate limiting: maxFailures within failureWindow locks the IP out
// for lockoutDuration. A successful login clears the ledger entry.
const (
	maxFailures     = 5
	failureWindow   = 10 * time.Minute
	lockoutDuration = 5 * time.Minute
)

type failureRecord struct {
	failures    []time.Time
	lockedUntil time.Time
}

// LoginLimiter tracks login failures per client IP.
type LoginLimiter struct {
	mu      sync.Mutex
	records map[string]*failureRecord
	now     func() time.Time
}

// NewLoginLimiter builds an empty limiter.
func NewLoginLimiter() *LoginLimiter {
	return &LoginLimiter{
		records: make(map[string]*failureRecord),
		now:     time.Now,
	}
}

// IsLocked reports whether the IP is locked out and for how much longer.
func (l *LoginLimiter) IsLocked(ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[ip]
	if !ok {
		return false, 0
	}
	now := l.now()
	if rec.lockedUntil.After(now) {
		return true, rec.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure notes a failed attempt, pruning timestamps outside the
// sliding window, and starts the lockout when the threshold is reached.
func (l *LoginLimiter) RecordFailure(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	rec, ok := l.records[ip]
	if !ok {
		rec = &failureRecord{}
		l.records[ip] = rec
	}

	cutoff := now.Add(-failureWindow)
	kept := rec.failures[:0]
	for _, t := range rec.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rec.failures = append(kept, now)

	if len(rec.failures) >= maxFailures {
		rec.lockedUntil = now.Add(lockoutDuration)
	}
}

// RecordSuccess clears the IP's ledger entry.
func (l *LoginLimiter) RecordSuccess(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, ip)
}
