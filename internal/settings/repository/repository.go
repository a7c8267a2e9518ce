package repository

import (
	"context"

	"accessgate/internal/settings/domain"
)

// Repository defines persistence for the lockdown settings row.
type Repository interface {
	// Get returns the stored settings, or nil if none have been saved yet.
	Get(ctx context.Context) (*domain.LockdownSettings, error)
	// Save upserts the settings row.
	Save(ctx context.Context, s *domain.LockdownSettings) error
}
