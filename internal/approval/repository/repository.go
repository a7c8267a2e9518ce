package repository

import (
	"context"
	"time"

	"accessgate/internal/approval/domain"
)

// Repository defines persistence for approval requests.
type Repository interface {
	// GetByID returns the request for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	// UpsertPending creates a pending request for (userID, ip), or refreshes
	// the timestamp of the existing pending one. Returns the stored request.
	UpsertPending(ctx context.Context, id, userID, ip string, at time.Time) (*domain.Request, error)
	// ListPending returns all pending requests, oldest first.
	ListPending(ctx context.Context) ([]*domain.Request, error)
	// Resolve atomically moves the request from pending to status. Returns the
	// resolved request, or nil if it was not pending (lost race or unknown id).
	Resolve(ctx context.Context, id string, status domain.Status, resolvedBy string, at time.Time) (*domain.Request, error)
}
