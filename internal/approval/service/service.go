package service

import (
	"context"
	"errors"
	"time"

	"accessgate/internal/approval/domain"
	"accessgate/internal/approval/repository"
)

// ErrAlreadyResolved is returned when the request is unknown or was resolved
// by a concurrent call; exactly one resolver wins.
var ErrAlreadyResolved = errors.New("approval request already resolved")

// AllowlistWriter appends approved IPs to the allow-list.
type AllowlistWriter interface {
	Add(ctx context.Context, userID, ip string) error
}

// Service resolves pending approval requests.
type Service struct {
	repo      repository.Repository
	allowlist AllowlistWriter
	nowF      func() time.Time
}

// NewService returns an approval service.
func NewService(repo repository.Repository, allowlist AllowlistWriter) *Service {
	return &Service{
		repo:      repo,
		allowlist: allowlist,
		nowF:      func() time.Time { return time.Now().UTC() },
	}
}

// Approve resolves the request and appends its IP to the user's allow-list.
// The resolve is atomic in the store, so of two concurrent approvals only one
// appends; the other gets ErrAlreadyResolved.
func (s *Service) Approve(ctx context.Context, requestID, resolverID string) (*domain.Request, error) {
	req, err := s.repo.Resolve(ctx, requestID, domain.StatusApproved, resolverID, s.nowF())
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrAlreadyResolved
	}
	if err := s.allowlist.Add(ctx, req.UserID, req.RequestedIP); err != nil {
		return nil, err
	}
	return req, nil
}

// Deny resolves the request without touching the allow-list.
func (s *Service) Deny(ctx context.Context, requestID, resolverID string) (*domain.Request, error) {
	req, err := s.repo.Resolve(ctx, requestID, domain.StatusDenied, resolverID, s.nowF())
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrAlreadyResolved
	}
	return req, nil
}

// ListPending returns all pending requests, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]*domain.Request, error) {
	return s.repo.ListPending(ctx)
}

// Get returns the request, or nil when unknown.
func (s *Service) Get(ctx context.Context, requestID string) (*domain.Request, error) {
	return s.repo.GetByID(ctx, requestID)
}
