package repository

import (
	"context"

	"accessgate/internal/enrollment/domain"
)

// Repository defines persistence for TOTP enrollments.
type Repository interface {
	// GetByUser returns the enrollment for userID, or nil if none exists.
	GetByUser(ctx context.Context, userID string) (*domain.Enrollment, error)
	// Upsert stores a fresh unconfirmed secret for userID, replacing any
	// existing enrollment (begin and reset both land here).
	Upsert(ctx context.Context, userID, secret string) error
	// MarkConfirmed flips the enrollment to confirmed. Returns false if the
	// user has no unconfirmed enrollment (already confirmed or unset).
	MarkConfirmed(ctx context.Context, userID string) (bool, error)
}
