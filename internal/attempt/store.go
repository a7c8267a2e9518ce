// Package attempt tracks verification attempts: consumed TOTP time-steps per
// secret (so a code accepted once cannot be replayed within its window) and a
// per-user sliding window of rejected attempts for rate limiting. State is
// ephemeral by design; a restart clears it, which only widens the replay
// window by at most one step.
package attempt

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Outcome of a verification attempt.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
)

// DefaultMaxFailures is the rejected-attempt threshold when settings provide none.
const DefaultMaxFailures = 5

// DefaultWindow is the trailing window for rate limiting when settings provide none.
const DefaultWindow = 5 * time.Minute

// Store is the in-memory attempt bookkeeper. All methods are safe for
// concurrent use; the single mutex is what makes the check-then-record
// sequences atomic across concurrent requests.
type Store struct {
	mu          sync.Mutex
	consumed    map[string]map[int64]time.Time // secret key -> step -> consumed at
	failures    map[string][]time.Time
	maxFailures int
	window      time.Duration
	nowF        func() time.Time
}

// NewStore returns a Store with the given rate-limit threshold and window.
// Non-positive values fall back to the defaults.
func NewStore(maxFailures int, window time.Duration) *Store {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Store{
		consumed:    make(map[string]map[int64]time.Time),
		failures:    make(map[string][]time.Time),
		maxFailures: maxFailures,
		window:      window,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// ConsumeStep marks step as used for the given secret. Returns false if that
// pair was already consumed, which callers must treat as a rejected code even
// though it is numerically valid. Keying by secret rather than user means a
// rotated secret starts with a clean slate: a fresh code minted from the new
// secret in the same step is not a replay. Steps older than the skew window
// are pruned.
func (s *Store) ConsumeStep(userID, secret string, step int64, stepWidth time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowF()
	key := secretKey(userID, secret)
	steps := s.consumed[key]
	if steps == nil {
		steps = make(map[int64]time.Time)
		s.consumed[key] = steps
	}
	// A step can only validate while within the skew window; two widths is enough history.
	cutoff := now.Add(-2 * stepWidth)
	for st, at := range steps {
		if at.Before(cutoff) {
			delete(steps, st)
		}
	}
	if _, used := steps[step]; used {
		return false
	}
	steps[step] = now
	return true
}

// RecordAttempt records the outcome of a verification attempt for userID.
// Accepted attempts clear the failure history so a recovered user is not
// still one mistake away from lockout.
func (s *Store) RecordAttempt(userID string, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if outcome == OutcomeAccepted {
		delete(s.failures, userID)
		return
	}
	now := s.nowF()
	s.failures[userID] = append(s.pruneLocked(userID, now), now)
}

// IsRateLimited reports whether userID has reached the failure threshold
// within the trailing window.
func (s *Store) IsRateLimited(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	valid := s.pruneLocked(userID, s.nowF())
	s.failures[userID] = valid
	return len(valid) >= s.maxFailures
}

// secretKey hides the raw secret from the map keys; the user prefix keeps two
// users who somehow share a secret independent.
func secretKey(userID, secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return userID + ":" + hex.EncodeToString(sum[:])
}

func (s *Store) pruneLocked(userID string, now time.Time) []time.Time {
	var valid []time.Time
	for _, at := range s.failures[userID] {
		if now.Sub(at) < s.window {
			valid = append(valid, at)
		}
	}
	return valid
}
