package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	approvaldomain "accessgate/internal/approval/domain"
	"accessgate/internal/attempt"
	enrollmentdomain "accessgate/internal/enrollment/domain"
	"accessgate/internal/gate/domain"
	"accessgate/internal/policy/engine"
	settingsdomain "accessgate/internal/settings/domain"
	"accessgate/internal/totp"
	userdomain "accessgate/internal/user/domain"
)

// Sentinel errors for the gate service; handler maps them to HTTP codes.
// ErrUnknownUser must be surfaced exactly like ErrInvalidCode so probing for
// accounts and probing for codes are indistinguishable.
var (
	ErrInvalidCode   = errors.New("invalid verification code")
	ErrRateLimited   = errors.New("too many failed attempts")
	ErrUnknownUser   = errors.New("unknown user")
	ErrNotEnrolled   = errors.New("no confirmed enrollment")
	ErrAllowlistFull = errors.New("allow-list is full")
)

// UserRepo is the minimal user repository needed by the gate.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// EnrollmentRepo is the minimal enrollment repository needed by the gate.
type EnrollmentRepo interface {
	GetByUser(ctx context.Context, userID string) (*enrollmentdomain.Enrollment, error)
}

// AllowlistRepo is the minimal allow-list repository needed by the gate.
type AllowlistRepo interface {
	Contains(ctx context.Context, userID, ip string, notBefore time.Time) (bool, error)
	Add(ctx context.Context, userID, ip string) error
	CountByUser(ctx context.Context, userID string) (int, error)
}

// ApprovalRepo is the minimal approval repository needed by the gate.
type ApprovalRepo interface {
	UpsertPending(ctx context.Context, id, userID, ip string, at time.Time) (*approvaldomain.Request, error)
}

// SettingsRepo is the minimal settings repository needed by the gate.
type SettingsRepo interface {
	Get(ctx context.Context) (*settingsdomain.LockdownSettings, error)
}

// Service decides access for (user, source IP) pairs and runs the challenge flow.
type Service struct {
	users       UserRepo
	enrollments EnrollmentRepo
	allowlist   AllowlistRepo
	approvals   ApprovalRepo
	settings    SettingsRepo
	policy      engine.Evaluator
	attempts    *attempt.Store
	nowF        func() time.Time
}

// NewService returns a gate service with the given dependencies.
func NewService(
	users UserRepo,
	enrollments EnrollmentRepo,
	allowlist AllowlistRepo,
	approvals ApprovalRepo,
	settings SettingsRepo,
	policy engine.Evaluator,
	attempts *attempt.Store,
) *Service {
	return &Service{
		users:       users,
		enrollments: enrollments,
		allowlist:   allowlist,
		approvals:   approvals,
		settings:    settings,
		policy:      policy,
		attempts:    attempts,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate returns the gate verdict for (userID, ip). Read-only: it never
// mutates enrollments, the allow-list, or attempt bookkeeping.
// Order is fixed: an allow-listed IP wins regardless of enrollment state.
func (s *Service) Evaluate(ctx context.Context, userID, ip string) (*domain.Evaluation, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnknownUser
	}
	enr, err := s.enrollments.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	state := enr.State()

	knobs, err := s.evaluatePolicy(ctx, userID, state, false)
	if err != nil {
		return nil, err
	}
	allowed, err := s.allowlist.Contains(ctx, userID, ip, s.ttlCutoff(knobs))
	if err != nil {
		return nil, err
	}

	out := &domain.Evaluation{IPAllowlisted: allowed, EnrollmentState: string(state)}
	switch {
	case allowed:
		out.Decision = domain.DecisionAllow
	case state == enrollmentdomain.StateConfirmed:
		out.Decision = domain.DecisionChallenge
	default:
		out.Decision = domain.DecisionBlockWithRequest
	}
	return out, nil
}

// SubmitChallenge verifies a code for a challenged login from ip. On success
// the IP is appended to the allow-list when policy says so. A replayed code is
// reported as invalid. The rate limit is checked before the code so a limited
// caller learns nothing about the code's validity.
func (s *Service) SubmitChallenge(ctx context.Context, userID, ip, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUnknownUser
	}
	enr, err := s.enrollments.GetByUser(ctx, userID)
	if err != nil {
		return err
	}
	if enr.State() != enrollmentdomain.StateConfirmed {
		return ErrNotEnrolled
	}

	if s.attempts.IsRateLimited(userID) {
		return ErrRateLimited
	}
	ok, step := totp.Verify(enr.Secret, code, s.nowF())
	if !ok {
		s.attempts.RecordAttempt(userID, attempt.OutcomeRejected)
		return ErrInvalidCode
	}
	if !s.attempts.ConsumeStep(userID, enr.Secret, step, totp.Period) {
		s.attempts.RecordAttempt(userID, attempt.OutcomeRejected)
		return ErrInvalidCode
	}
	s.attempts.RecordAttempt(userID, attempt.OutcomeAccepted)

	knobs, err := s.evaluatePolicy(ctx, userID, enr.State(), false)
	if err != nil {
		return err
	}
	if !knobs.AutoAllowlistAfterChallenge {
		return nil
	}
	return s.addToAllowlist(ctx, userID, ip, knobs)
}

// RequestApproval files (or refreshes) a pending approval request for (userID, ip).
func (s *Service) RequestApproval(ctx context.Context, userID, ip string) (*approvaldomain.Request, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnknownUser
	}
	return s.approvals.UpsertPending(ctx, uuid.New().String(), userID, ip, s.nowF())
}

// addToAllowlist appends ip for userID, honoring the max-entries knob.
// Adding an already-listed IP never counts against the cap.
func (s *Service) addToAllowlist(ctx context.Context, userID, ip string, knobs engine.LockdownResult) error {
	if knobs.MaxAllowlistEntries > 0 {
		listed, err := s.allowlist.Contains(ctx, userID, ip, time.Time{})
		if err != nil {
			return err
		}
		if !listed {
			n, err := s.allowlist.CountByUser(ctx, userID)
			if err != nil {
				return err
			}
			if n >= knobs.MaxAllowlistEntries {
				return ErrAllowlistFull
			}
		}
	}
	return s.allowlist.Add(ctx, userID, ip)
}

func (s *Service) evaluatePolicy(ctx context.Context, userID string, state enrollmentdomain.State, ipKnown bool) (engine.LockdownResult, error) {
	stored, err := s.settings.Get(ctx)
	if err != nil {
		return engine.LockdownResult{}, err
	}
	if stored == nil {
		stored = settingsdomain.Defaults()
	}
	return s.policy.EvaluateLockdown(ctx, stored, engine.RequestContext{
		UserID:          userID,
		EnrollmentState: string(state),
		IPKnown:         ipKnown,
	})
}

// ttlCutoff converts the TTL knob to the oldest acceptable entry time;
// zero TTL disables expiry.
func (s *Service) ttlCutoff(knobs engine.LockdownResult) time.Time {
	if knobs.AllowlistTTLDays <= 0 {
		return time.Time{}
	}
	return s.nowF().AddDate(0, 0, -knobs.AllowlistTTLDays)
}
