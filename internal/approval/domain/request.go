package domain

import "time"

// Status of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// Request asks an already-authorized party to allow-list a new IP for a user.
// At most one pending request exists per (user_id, requested_ip); re-requesting
// refreshes the pending row's timestamp instead of creating another.
type Request struct {
	ID          string
	UserID      string
	RequestedIP string
	Status      Status
	RequestedAt time.Time
	ResolvedAt  *time.Time // nil while pending
	ResolvedBy  string     // user who approved or denied; empty while pending
}
