package rules

import (
	"testing"

	"github.com/opensource-insurance/heron/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func TestLoadAndEvaluateRule(t *testing.T) {
	engine := newTestEngine(t)

	rule := &domain.FlagRule{
		ID:         "high-auto",
		Name:       "high-amount-auto",
		Expression: `amount > 40000.0 && claim_type == "auto"`,
		Reason:     "large auto claim",
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	reasons := engine.Evaluate(domain.ClaimFeatures{
		ClaimAmount: 60000,
		ClaimType:   domain.ClaimTypeAuto,
		ClaimantAge: 40,
	}, 0.65, 0)
	if len(reasons) != 1 || reasons[0] != "large auto claim" {
		t.Errorf("expected trigger with reason, got %v", reasons)
	}

	reasons = engine.Evaluate(domain.ClaimFeatures{
		ClaimAmount: 5000,
		ClaimType:   domain.ClaimTypeAuto,
		ClaimantAge: 40,
	}, 0.0, 0)
	if len(reasons) != 0 {
		t.Errorf("expected no triggers for small claim, got %v", reasons)
	}
}

func TestEvaluateFraudScoreVariable(t *testing.T) {
	engine := newTestEngine(t)

	if err := engine.LoadRule(&domain.FlagRule{
		ID:         "borderline",
		Name:       "borderline",
		Expression: `fraud_score >= 0.4 && fraud_score <= 0.5`,
		Reason:     "near threshold",
		Enabled:    true,
	}); err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	f := domain.ClaimFeatures{ClaimAmount: 1000, ClaimType: domain.ClaimTypeLife, ClaimantAge: 40}

	if reasons := engine.Evaluate(f, 0.45, 0); len(reasons) != 1 {
		t.Errorf("expected trigger at 0.45, got %v", reasons)
	}
	if reasons := engine.Evaluate(f, 0.80, 0); len(reasons) != 0 {
		t.Errorf("expected no trigger at 0.80, got %v", reasons)
	}
}

func TestRecentClaimsVariable(t *testing.T) {
	engine := newTestEngine(t)

	if err := engine.LoadRule(&domain.FlagRule{
		ID:         "velocity",
		Name:       "velocity",
		Expression: `recent_claims >= 3`,
		Reason:     "filing velocity",
		Enabled:    true,
	}); err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	f := domain.ClaimFeatures{ClaimAmount: 1000, ClaimType: domain.ClaimTypeHome, ClaimantAge: 40}

	if reasons := engine.Evaluate(f, 0, 4); len(reasons) != 1 {
		t.Errorf("expected trigger at 4 recent claims, got %v", reasons)
	}
	if reasons := engine.Evaluate(f, 0, 1); len(reasons) != 0 {
		t.Errorf("expected no trigger at 1 recent claim, got %v", reasons)
	}
}

func TestCompileErrors(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name       string
		expression string
	}{
		{"syntax error", `amount >`},
		{"unknown variable", `debtor_id == "x"`},
		{"non-bool output", `amount * 2.0`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := engine.ValidateRule(&domain.FlagRule{ID: "bad", Expression: tc.expression})
			if err == nil {
				t.Error("expected compile error")
			}
		})
	}
}

func TestReloadReplacesRuleSet(t *testing.T) {
	engine := newTestEngine(t)

	if err := engine.LoadRules(BuiltinRules()); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	if engine.RulesCount() != 4 {
		t.Fatalf("expected 4 builtin rules, got %d", engine.RulesCount())
	}

	if err := engine.ReloadRules([]*domain.FlagRule{
		{ID: "only", Name: "only", Expression: `claimant_age > 90`, Enabled: true},
		{ID: "off", Name: "off", Expression: `true`, Enabled: false},
	}); err != nil {
		t.Fatalf("ReloadRules failed: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected only enabled rules loaded, got %d", engine.RulesCount())
	}

	// A bad reload leaves the previous set in place.
	if err := engine.ReloadRules([]*domain.FlagRule{
		{ID: "broken", Name: "broken", Expression: `nonsense(`, Enabled: true},
	}); err == nil {
		t.Fatal("expected reload error")
	}
	if engine.RulesCount() != 1 {
		t.Errorf("failed reload clobbered rules: %d loaded", engine.RulesCount())
	}
}

func TestBuiltinRulesCompile(t *testing.T) {
	engine := newTestEngine(t)
	for _, rule := range BuiltinRules() {
		if err := engine.ValidateRule(rule); err != nil {
			t.Errorf("builtin rule %s does not compile: %v", rule.ID, err)
		}
	}
}

func TestEmptyRuleFallsBackToName(t *testing.T) {
	engine := newTestEngine(t)
	if err := engine.LoadRule(&domain.FlagRule{
		ID:         "noname",
		Name:       "unnamed-reason",
		Expression: `true`,
		Enabled:    true,
	}); err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	reasons := engine.Evaluate(domain.ClaimFeatures{ClaimType: domain.ClaimTypeAuto}, 0, 0)
	if len(reasons) != 1 || reasons[0] != "unnamed-reason" {
		t.Errorf("expected name fallback, got %v", reasons)
	}
}
