package domain

import "time"

// FlagRule is an admin-configurable review rule evaluated against scored
// claims. A triggered rule attaches its reason to the prediction so the
// claim is routed for manual review; flag rules never change the fraud
// score or the fraudulent classification.
type FlagRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Expression is a CEL expression over amount, claim_type,
	// claimant_age, claim_length_days, fraud_score and recent_claims
	// returning bool.
	Expression string `json:"expression"`

	// Reason is attached to the prediction when the expression is true.
	Reason string `json:"reason"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
