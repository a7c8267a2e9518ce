package domain

import "time"

// Session represents an authenticated session created after the gate allowed a login.
type Session struct {
	ID               string
	UserID           string
	IPAddress        string
	ExpiresAt        time.Time
	RevokedAt        *time.Time // nil when not revoked
	LastSeenAt       *time.Time
	RefreshJti       string // current refresh token jti for rotation
	RefreshTokenHash string // SHA-256 hash of current refresh token
	CreatedAt        time.Time
}
