package domain

import "time"

// LockdownSettings holds the deployment-wide knobs the gate and enrollment
// flows consult (one row). Defaults preserve the behavior of the system this
// service replaces: resets need no re-verification, allow-list entries never
// expire and are unbounded.
type LockdownSettings struct {
	// ReverifyOnReset requires a valid current code before a confirmed
	// enrollment can be reset to pending.
	ReverifyOnReset bool
	// AutoAllowlistAfterChallenge appends the challenged IP to the allow-list
	// when the code verifies.
	AutoAllowlistAfterChallenge bool
	// AllowlistTTLDays expires allow-list entries after this many days; 0 means never.
	AllowlistTTLDays int
	// MaxAllowlistEntries caps a user's allow-list; 0 means unbounded.
	MaxAllowlistEntries int
	// RateLimitMaxFailures is the rejected-attempt threshold for rate limiting.
	RateLimitMaxFailures int
	// RateLimitWindowSeconds is the trailing window for the threshold.
	RateLimitWindowSeconds int
	UpdatedAt              time.Time
}

// Defaults returns the settings used when no row exists yet.
func Defaults() *LockdownSettings {
	return &LockdownSettings{
		ReverifyOnReset:             false,
		AutoAllowlistAfterChallenge: true,
		AllowlistTTLDays:            0,
		MaxAllowlistEntries:         0,
		RateLimitMaxFailures:        5,
		RateLimitWindowSeconds:      300,
	}
}
