package domain

import "time"

// Policy is an operator-authored Rego module that can override the default
// lockdown policy. Disabled policies are kept but not evaluated.
type Policy struct {
	ID        string
	Name      string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
