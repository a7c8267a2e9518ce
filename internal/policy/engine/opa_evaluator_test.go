package engine

import (
	"context"
	"testing"

	"accessgate/internal/policy/domain"
	"accessgate/internal/policy/repository"
	settingsdomain "accessgate/internal/settings/domain"
)

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	// HealthCheck does not use the policy repo.
	e := NewOPAEvaluator(nil)
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

// mockPolicyRepo implements repository.Repository for tests.
type mockPolicyRepo struct {
	enabled []*domain.Policy
	err     error
}

var _ repository.Repository = (*mockPolicyRepo)(nil)

func (m *mockPolicyRepo) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	return nil, nil
}

func (m *mockPolicyRepo) List(ctx context.Context) ([]*domain.Policy, error) {
	return nil, nil
}

func (m *mockPolicyRepo) ListEnabled(ctx context.Context) ([]*domain.Policy, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.enabled, nil
}

func (m *mockPolicyRepo) Create(ctx context.Context, p *domain.Policy) error { return nil }
func (m *mockPolicyRepo) Update(ctx context.Context, p *domain.Policy) error { return nil }
func (m *mockPolicyRepo) Delete(ctx context.Context, id string) error        { return nil }

func TestOPAEvaluator_EvaluateLockdown_DefaultPolicy(t *testing.T) {
	e := NewOPAEvaluator(&mockPolicyRepo{})
	ctx := context.Background()

	result, err := e.EvaluateLockdown(ctx, settingsdomain.Defaults(), RequestContext{})
	if err != nil {
		t.Fatalf("EvaluateLockdown: %v", err)
	}
	if result.ReverifyOnReset {
		t.Error("ReverifyOnReset should be false by default")
	}
	if !result.AutoAllowlistAfterChallenge {
		t.Error("AutoAllowlistAfterChallenge should be true by default")
	}
	if result.AllowlistTTLDays != 0 {
		t.Errorf("AllowlistTTLDays = %d, want 0", result.AllowlistTTLDays)
	}
	if result.MaxAllowlistEntries != 0 {
		t.Errorf("MaxAllowlistEntries = %d, want 0", result.MaxAllowlistEntries)
	}
}

func TestOPAEvaluator_EvaluateLockdown_SettingsFlowThrough(t *testing.T) {
	e := NewOPAEvaluator(&mockPolicyRepo{})
	ctx := context.Background()

	settings := &settingsdomain.LockdownSettings{
		ReverifyOnReset:             true,
		AutoAllowlistAfterChallenge: false,
		AllowlistTTLDays:            90,
		MaxAllowlistEntries:         10,
	}
	result, err := e.EvaluateLockdown(ctx, settings, RequestContext{UserID: "u1", EnrollmentState: "confirmed", IPKnown: false})
	if err != nil {
		t.Fatalf("EvaluateLockdown: %v", err)
	}
	if !result.ReverifyOnReset {
		t.Error("ReverifyOnReset should follow settings")
	}
	if result.AutoAllowlistAfterChallenge {
		t.Error("AutoAllowlistAfterChallenge should follow settings")
	}
	if result.AllowlistTTLDays != 90 {
		t.Errorf("AllowlistTTLDays = %d, want 90", result.AllowlistTTLDays)
	}
	if result.MaxAllowlistEntries != 10 {
		t.Errorf("MaxAllowlistEntries = %d, want 10", result.MaxAllowlistEntries)
	}
}

func TestOPAEvaluator_EvaluateLockdown_OperatorPolicy(t *testing.T) {
	// Operator policy forces re-verification on reset regardless of settings.
	repo := &mockPolicyRepo{enabled: []*domain.Policy{{
		ID:      "p1",
		Enabled: true,
		Rules: `package accessgate.lockdown

default auto_allowlist_after_challenge = true
default allowlist_ttl_days = 0
default max_allowlist_entries = 0

reverify_on_reset = true
`,
	}}}
	e := NewOPAEvaluator(repo)
	ctx := context.Background()

	result, err := e.EvaluateLockdown(ctx, settingsdomain.Defaults(), RequestContext{})
	if err != nil {
		t.Fatalf("EvaluateLockdown: %v", err)
	}
	if !result.ReverifyOnReset {
		t.Error("operator policy should force ReverifyOnReset")
	}
}

func TestOPAEvaluator_EvaluateLockdown_BadPolicyFallsBack(t *testing.T) {
	repo := &mockPolicyRepo{enabled: []*domain.Policy{{
		ID:      "p1",
		Enabled: true,
		Rules:   `package accessgate.lockdown this is not rego`,
	}}}
	e := NewOPAEvaluator(repo)
	ctx := context.Background()

	settings := settingsdomain.Defaults()
	settings.AllowlistTTLDays = 30
	result, err := e.EvaluateLockdown(ctx, settings, RequestContext{})
	if err != nil {
		t.Fatalf("EvaluateLockdown: %v", err)
	}
	// Compile failure falls back to the stored settings.
	if result.AllowlistTTLDays != 30 {
		t.Errorf("AllowlistTTLDays = %d, want 30", result.AllowlistTTLDays)
	}
}
