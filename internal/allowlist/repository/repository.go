package repository

import (
	"context"
	"time"

	"accessgate/internal/allowlist/domain"
)

// Repository defines persistence for per-user allow-listed IPs. The set has
// set semantics: adding an existing (user, ip) pair is a no-op, not a duplicate.
type Repository interface {
	// Contains reports whether ip is allow-listed for userID. Entries created
	// before notBefore are ignored; pass the zero time to disable expiry.
	Contains(ctx context.Context, userID, ip string, notBefore time.Time) (bool, error)
	// Add inserts (userID, ip); no-op if already present.
	Add(ctx context.Context, userID, ip string) error
	// Remove deletes (userID, ip); no-op if absent.
	Remove(ctx context.Context, userID, ip string) error
	// ListByUser returns the user's entries in insertion order.
	ListByUser(ctx context.Context, userID string) ([]*domain.Entry, error)
	// CountByUser returns the number of entries for userID.
	CountByUser(ctx context.Context, userID string) (int, error)
	// DeleteOlderThan removes entries created before the cutoff, across all users.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
