package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"accessgate/internal/policy/repository"
	settingsdomain "accessgate/internal/settings/domain"
)

const defaultPolicyPackage = "accessgate.lockdown"

// Default Rego policy that mirrors the stored settings unchanged.
const defaultRegoPolicy = `package accessgate.lockdown

default reverify_on_reset = false
default auto_allowlist_after_challenge = true
default allowlist_ttl_days = 0
default max_allowlist_entries = 0

reverify_on_reset if {
	input.settings.reverify_on_reset
}

auto_allowlist_after_challenge = input.settings.auto_allowlist_after_challenge if {
	input.settings.auto_allowlist_after_challenge != null
}

allowlist_ttl_days = input.settings.allowlist_ttl_days if {
	input.settings.allowlist_ttl_days > 0
}

max_allowlist_entries = input.settings.max_allowlist_entries if {
	input.settings.max_allowlist_entries > 0
}
`

// OPAEvaluator evaluates lockdown policies using OPA Rego.
type OPAEvaluator struct {
	policyRepo repository.Repository
}

// NewOPAEvaluator returns an OPA-based policy evaluator. policyRepo may be nil,
// in which case only the embedded default policy is evaluated.
func NewOPAEvaluator(policyRepo repository.Repository) *OPAEvaluator {
	return &OPAEvaluator{policyRepo: policyRepo}
}

// ValidateModule compiles a candidate Rego module and reports the first
// compile error, if any. Used before persisting operator-authored policies.
func ValidateModule(rules string) error {
	if strings.TrimSpace(rules) == "" {
		return fmt.Errorf("policy rules are empty")
	}
	if _, err := ast.CompileModules(map[string]string{"candidate.rego": rules}); err != nil {
		return fmt.Errorf("compile policy: %w", err)
	}
	return nil
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the default policy.
// Does not call the policy repo or database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	modules := map[string]string{"policy_0.rego": defaultRegoPolicy}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return fmt.Errorf("compile default policy: %w", err)
	}
	minimalInput := e.buildInput(settingsdomain.Defaults(), RequestContext{})
	q := rego.New(
		rego.Query("data."+defaultPolicyPackage+".reverify_on_reset"),
		rego.Compiler(compiler),
		rego.Input(minimalInput),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluateLockdown evaluates lockdown policy using OPA Rego policies.
func (e *OPAEvaluator) EvaluateLockdown(
	ctx context.Context,
	settings *settingsdomain.LockdownSettings,
	reqCtx RequestContext,
) (LockdownResult, error) {
	input := e.buildInput(settings, reqCtx)

	// Load enabled operator policies
	var policies []string
	if e.policyRepo != nil {
		enabled, err := e.policyRepo.ListEnabled(ctx)
		if err != nil {
			log.Printf("policy: failed to load policies: %v", err)
		} else {
			for _, p := range enabled {
				if p.Enabled && p.Rules != "" {
					policies = append(policies, p.Rules)
				}
			}
		}
	}

	// Use default policy if no operator policies exist
	if len(policies) == 0 {
		policies = []string{defaultRegoPolicy}
	}

	result, err := e.evaluatePolicies(ctx, policies, input)
	if err != nil {
		log.Printf("policy: evaluation failed: %v, using defaults", err)
		return e.defaultResult(settings), nil
	}

	return result, nil
}

func (e *OPAEvaluator) buildInput(settings *settingsdomain.LockdownSettings, reqCtx RequestContext) map[string]interface{} {
	if settings == nil {
		settings = settingsdomain.Defaults()
	}
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"reverify_on_reset":              settings.ReverifyOnReset,
			"auto_allowlist_after_challenge": settings.AutoAllowlistAfterChallenge,
			"allowlist_ttl_days":             settings.AllowlistTTLDays,
			"max_allowlist_entries":          settings.MaxAllowlistEntries,
		},
		"request": map[string]interface{}{
			"user_id":          reqCtx.UserID,
			"enrollment_state": reqCtx.EnrollmentState,
			"ip_known":         reqCtx.IPKnown,
		},
	}
}

func (e *OPAEvaluator) evaluatePolicies(ctx context.Context, policies []string, input map[string]interface{}) (LockdownResult, error) {
	// Compile all policies
	modules := make(map[string]string)
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}

	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return LockdownResult{}, fmt.Errorf("compile policies: %w", err)
	}

	out := LockdownResult{
		ReverifyOnReset:             false,
		AutoAllowlistAfterChallenge: true,
		AllowlistTTLDays:            0,
		MaxAllowlistEntries:         0,
	}

	out.ReverifyOnReset = e.queryBool(ctx, compiler, input, "reverify_on_reset", out.ReverifyOnReset)
	out.AutoAllowlistAfterChallenge = e.queryBool(ctx, compiler, input, "auto_allowlist_after_challenge", out.AutoAllowlistAfterChallenge)
	out.AllowlistTTLDays = e.queryInt(ctx, compiler, input, "allowlist_ttl_days", out.AllowlistTTLDays)
	out.MaxAllowlistEntries = e.queryInt(ctx, compiler, input, "max_allowlist_entries", out.MaxAllowlistEntries)

	return out, nil
}

func (e *OPAEvaluator) queryBool(ctx context.Context, compiler *ast.Compiler, input map[string]interface{}, rule string, fallback bool) bool {
	q := rego.New(
		rego.Query("data."+defaultPolicyPackage+"."+rule),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err == nil && len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if v, ok := rs[0].Expressions[0].Value.(bool); ok {
			return v
		}
	}
	return fallback
}

func (e *OPAEvaluator) queryInt(ctx context.Context, compiler *ast.Compiler, input map[string]interface{}, rule string, fallback int) int {
	q := rego.New(
		rego.Query("data."+defaultPolicyPackage+"."+rule),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fallback
	}
	switch v := rs[0].Expressions[0].Value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil && n >= 0 {
			return int(n)
		}
	case float64:
		if v >= 0 {
			return int(v)
		}
	case int64:
		if v >= 0 {
			return int(v)
		}
	}
	return fallback
}

func (e *OPAEvaluator) defaultResult(settings *settingsdomain.LockdownSettings) LockdownResult {
	if settings == nil {
		settings = settingsdomain.Defaults()
	}
	return LockdownResult{
		ReverifyOnReset:             settings.ReverifyOnReset,
		AutoAllowlistAfterChallenge: settings.AutoAllowlistAfterChallenge,
		AllowlistTTLDays:            settings.AllowlistTTLDays,
		MaxAllowlistEntries:         settings.MaxAllowlistEntries,
	}
}
