package service

import (
	"context"
	"errors"
	"time"

	"github.com/skip2/go-qrcode"

	"accessgate/internal/attempt"
	"accessgate/internal/enrollment/domain"
	"accessgate/internal/enrollment/repository"
	"accessgate/internal/policy/engine"
	settingsdomain "accessgate/internal/settings/domain"
	settingsrepo "accessgate/internal/settings/repository"
	"accessgate/internal/totp"
)

// Sentinel errors for the enrollment service; handler maps them to HTTP codes.
var (
	ErrInvalidCode      = errors.New("invalid verification code")
	ErrRateLimited      = errors.New("too many failed attempts")
	ErrNotPending       = errors.New("no enrollment pending confirmation")
	ErrAlreadyConfirmed = errors.New("enrollment already confirmed")
	ErrNotConfirmed     = errors.New("enrollment is not confirmed")
)

const qrSize = 256

// BeginResult holds the provisioning material returned by Begin and Reset.
// Secret is shown once; afterwards only the masked form is available.
type BeginResult struct {
	Secret string
	URL    string
	QRPNG  []byte
}

// StateResult is the read-only view of an enrollment.
type StateResult struct {
	State        domain.State
	MaskedSecret string
	UpdatedAt    time.Time
}

// Service drives the enrollment state machine: unset -> pending -> confirmed,
// with reset back to pending.
type Service struct {
	repo         repository.Repository
	settingsRepo settingsrepo.Repository
	policy       engine.Evaluator
	attempts     *attempt.Store
	issuer       string
	nowF         func() time.Time
}

// NewService returns an enrollment service. issuer labels provisioning URIs.
func NewService(
	repo repository.Repository,
	settingsRepo settingsrepo.Repository,
	policy engine.Evaluator,
	attempts *attempt.Store,
	issuer string,
) *Service {
	return &Service{
		repo:         repo,
		settingsRepo: settingsRepo,
		policy:       policy,
		attempts:     attempts,
		issuer:       issuer,
		nowF:         func() time.Time { return time.Now().UTC() },
	}
}

// Begin generates a fresh secret for the user and stores it unconfirmed.
// Allowed from unset or pending; a confirmed enrollment must go through Reset.
// accountLabel names the account in the otpauth URI (typically the email).
func (s *Service) Begin(ctx context.Context, userID, accountLabel string) (*BeginResult, error) {
	existing, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing.State() == domain.StateConfirmed {
		return nil, ErrAlreadyConfirmed
	}
	return s.provision(ctx, userID, accountLabel)
}

// Confirm proves possession of the pending secret with a current code and
// flips the enrollment to confirmed. A replayed code is reported as invalid.
func (s *Service) Confirm(ctx context.Context, userID, code string) error {
	enr, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return err
	}
	switch enr.State() {
	case domain.StateUnset:
		return ErrNotPending
	case domain.StateConfirmed:
		return ErrAlreadyConfirmed
	}
	if err := s.verifyCode(userID, enr.Secret, code); err != nil {
		return err
	}
	ok, err := s.repo.MarkConfirmed(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyConfirmed
	}
	return nil
}

// Reset moves a confirmed enrollment back to pending with a fresh secret.
// When policy requires re-verification, code must be a valid current code for
// the old secret; otherwise code is ignored.
func (s *Service) Reset(ctx context.Context, userID, accountLabel, code string) (*BeginResult, error) {
	enr, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if enr.State() != domain.StateConfirmed {
		return nil, ErrNotConfirmed
	}
	knobs, err := s.evaluate(ctx, enr.State())
	if err != nil {
		return nil, err
	}
	if knobs.ReverifyOnReset {
		if err := s.verifyCode(userID, enr.Secret, code); err != nil {
			return nil, err
		}
	}
	return s.provision(ctx, userID, accountLabel)
}

// State returns the enrollment state and the masked secret. The full secret is
// never returned after Begin/Reset.
func (s *Service) State(ctx context.Context, userID string) (*StateResult, error) {
	enr, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &StateResult{State: enr.State()}
	if enr != nil {
		out.MaskedSecret = totp.MaskSecret(enr.Secret)
		out.UpdatedAt = enr.UpdatedAt
	}
	return out, nil
}

func (s *Service) provision(ctx context.Context, userID, accountLabel string) (*BeginResult, error) {
	key, err := totp.GenerateKey(s.issuer, accountLabel)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, userID, key.Secret); err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(key.URL, qrcode.Medium, qrSize)
	if err != nil {
		return nil, err
	}
	return &BeginResult{Secret: key.Secret, URL: key.URL, QRPNG: png}, nil
}

// verifyCode applies the rate limit, checks the code against the skew window,
// and consumes the matched step so the same code cannot be used twice.
func (s *Service) verifyCode(userID, secret, code string) error {
	if s.attempts.IsRateLimited(userID) {
		return ErrRateLimited
	}
	ok, step := totp.Verify(secret, code, s.nowF())
	if !ok {
		s.attempts.RecordAttempt(userID, attempt.OutcomeRejected)
		return ErrInvalidCode
	}
	if !s.attempts.ConsumeStep(userID, secret, step, totp.Period) {
		s.attempts.RecordAttempt(userID, attempt.OutcomeRejected)
		return ErrInvalidCode
	}
	s.attempts.RecordAttempt(userID, attempt.OutcomeAccepted)
	return nil
}

func (s *Service) evaluate(ctx context.Context, state domain.State) (engine.LockdownResult, error) {
	var stored *settingsdomain.LockdownSettings
	if s.settingsRepo != nil {
		var err error
		stored, err = s.settingsRepo.Get(ctx)
		if err != nil {
			return engine.LockdownResult{}, err
		}
	}
	if stored == nil {
		stored = settingsdomain.Defaults()
	}
	return s.policy.EvaluateLockdown(ctx, stored, engine.RequestContext{EnrollmentState: string(state)})
}
