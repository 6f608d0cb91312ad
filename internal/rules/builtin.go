package rules

import "github.com/opensource-insurance/heron/internal/domain"

// BuiltinRules returns the flag rules seeded into an empty database on
// first start. Admins can disable or replace them at runtime.
func BuiltinRules() []*domain.FlagRule {
	return []*domain.FlagRule{
		{
			ID:          "builtin-borderline-score",
			Name:        "borderline-fraud-score",
			Description: "Scores just under the fraud threshold deserve a second look.",
			Expression:  `fraud_score >= 0.4 && fraud_score <= 0.5`,
			Reason:      "fraud score near threshold",
			Enabled:     true,
		},
		{
			ID:          "builtin-rapid-filing",
			Name:        "rapid-filing",
			Description: "Claims filed the day of the incident on large amounts.",
			Expression:  `claim_length_days == 0 && amount > 20000.0`,
			Reason:      "large claim filed same day as incident",
			Enabled:     true,
		},
		{
			ID:          "builtin-repeat-filing",
			Name:        "repeat-filing",
			Description: "Owner has filed several claims inside the velocity window.",
			Expression:  `recent_claims >= 5`,
			Reason:      "high filing velocity for this account",
			Enabled:     true,
		},
		{
			ID:          "builtin-minor-claimant",
			Name:        "minor-claimant",
			Description: "Claimant below the age of majority.",
			Expression:  `claimant_age < 18`,
			Reason:      "claimant is a minor",
			Enabled:     true,
		},
	}
}
