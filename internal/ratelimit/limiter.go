package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/courseloop/authgate/pkg/apperrors"
)

// attemptRecord tracks failed login attempts for one identifier
type attemptRecord struct {
	failureCount    int
	windowStartedAt time.Time
}

// Limiter guards the issuance path against brute force with a per-identifier
// failure counter and a sliding lockout window.
//
// State is owned by the Limiter instance, in-memory and per-process: it
// resets on restart and does not coordinate across server instances. That is
// a documented limitation of this design, not an oversight.
type Limiter struct {
	mu              sync.Mutex
	records         map[string]*attemptRecord
	maxAttempts     int
	lockoutDuration time.Duration

	// now is swappable for tests
	now func() time.Time
}

// NewLimiter creates a new login attempt limiter
func NewLimiter(maxAttempts int, lockoutDuration time.Duration) *Limiter {
	return &Limiter{
		records:         make(map[string]*attemptRecord),
		maxAttempts:     maxAttempts,
		lockoutDuration: lockoutDuration,
		now:             time.Now,
	}
}

// Allow reports whether a login attempt for identifier may proceed. Expired
// records are deleted lazily here; there is no background sweep.
func (l *Limiter) Allow(identifier string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[identifier]
	if !ok {
		return nil
	}

	if l.now().Sub(rec.windowStartedAt) >= l.lockoutDuration {
		delete(l.records, identifier)
		return nil
	}

	if rec.failureCount >= l.maxAttempts {
		return fmt.Errorf("identifier locked out: %w", apperrors.ErrRateLimited)
	}

	return nil
}

// RecordFailure counts a failed attempt. A failure after the window has
// elapsed starts a new window at count 1.
func (l *Limiter) RecordFailure(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[identifier]
	if !ok || now.Sub(rec.windowStartedAt) >= l.lockoutDuration {
		l.records[identifier] = &attemptRecord{failureCount: 1, windowStartedAt: now}
		return
	}

	rec.failureCount++
}

// RecordSuccess deletes the record outright, not merely zeroes it.
func (l *Limiter) RecordSuccess(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.records, identifier)
}

// AttemptCount returns the current failure count for identifier
func (l *Limiter) AttemptCount(identifier string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[identifier]
	if !ok {
		return 0
	}
	return rec.failureCount
}
