package engine

import (
	"context"

	settingsdomain "accessgate/internal/settings/domain"
)

// LockdownResult holds the effective lockdown knobs after policy evaluation.
type LockdownResult struct {
	ReverifyOnReset             bool
	AutoAllowlistAfterChallenge bool
	AllowlistTTLDays            int
	MaxAllowlistEntries         int
}

// RequestContext carries the per-request facts policies may branch on.
type RequestContext struct {
	UserID          string
	EnrollmentState string
	IPKnown         bool
}

// Evaluator evaluates lockdown policies using OPA or other engines.
type Evaluator interface {
	// EvaluateLockdown evaluates the stored settings and any operator policies
	// for the given request context and returns the effective knobs. The gate
	// decision itself is not delegated here; only the configurable knobs are.
	EvaluateLockdown(
		ctx context.Context,
		settings *settingsdomain.LockdownSettings,
		reqCtx RequestContext,
	) (LockdownResult, error)
}
