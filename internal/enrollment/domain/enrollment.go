package domain

import "time"

// State of a user's TOTP enrollment.
type State string

const (
	// StateUnset means no secret exists for the user.
	StateUnset State = "unset"
	// StatePending means a secret was generated but possession was never proven.
	StatePending State = "pending"
	// StateConfirmed means the user verified a code against the secret at least once.
	StateConfirmed State = "confirmed"
)

// Enrollment is a user's TOTP enrollment record (one row per user).
// A missing row is StateUnset; Confirmed=false is StatePending.
type Enrollment struct {
	UserID    string
	Secret    string
	Confirmed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// State returns the enrollment state for e; a nil receiver is StateUnset.
func (e *Enrollment) State() State {
	switch {
	case e == nil:
		return StateUnset
	case e.Confirmed:
		return StateConfirmed
	default:
		return StatePending
	}
}
