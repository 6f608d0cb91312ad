// Package scoring provides the deterministic rule-based fraud scorer and
// reserve estimator. It needs no trained state and serves as the fallback
// for every prediction the model gateway cannot satisfy.
package scoring

import (
	"math/rand"
	"sync"
	"time"

	"github.com/opensource-insurance/heron/internal/domain"
)

// Additive fraud score weights. The maximum reachable sum is
// 0.3 + 0.15 + 0.15 + 0.2 = 0.80, so the score stays inside [0,1]
// by construction; no clamping is applied.
const (
	weightAmountHigh = 0.3  // claim amount > 50,000
	weightAmountMid  = 0.2  // claim amount > 30,000
	weightAmountLow  = 0.1  // claim amount > 10,000
	weightRiskyType  = 0.15 // auto or property claim
	weightAgeBand    = 0.15 // claimant younger than 25 or older than 70
	weightCombo      = 0.2  // amount > 40,000 on a risky type
)

// Reserve multipliers by claim type. Unknown types fall back to
// defaultReserveMultiplier.
var reserveMultipliers = map[domain.ClaimType]float64{
	domain.ClaimTypeAuto:     0.75,
	domain.ClaimTypeHealth:   0.85,
	domain.ClaimTypeProperty: 0.70,
	domain.ClaimTypeHome:     0.70,
	domain.ClaimTypeLife:     0.90,
}

const defaultReserveMultiplier = 0.70

// fraudReserveFactor suppresses the reserve for suspected fraud: only 30%
// of the normal reserve is set aside pending investigation.
const fraudReserveFactor = 0.3

// Result is the outcome of rule-based scoring.
type Result struct {
	FraudScore   float64  `json:"fraudScore"`
	IsFraudulent bool     `json:"isFraudulent"`
	Reasons      []string `json:"reasons,omitempty"`
}

// Engine scores claims with fixed rules. Scoring itself is pure; reserve
// estimation draws its variance from the injected random source, which is
// the single point of non-determinism in the engine. Pass a seeded source
// for reproducible estimates.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates a scoring engine. A nil source seeds from the clock.
func NewEngine(src rand.Source) *Engine {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Engine{rng: rand.New(src)}
}

// Score computes the rule-based fraud score for a feature record.
// It never fails: out-of-domain values simply fall through the default
// branches and contribute nothing.
func (e *Engine) Score(f domain.ClaimFeatures) Result {
	var score float64
	var reasons []string

	switch {
	case f.ClaimAmount > 50000:
		score += weightAmountHigh
		reasons = append(reasons, "claim amount above 50k")
	case f.ClaimAmount > 30000:
		score += weightAmountMid
		reasons = append(reasons, "claim amount above 30k")
	case f.ClaimAmount > 10000:
		score += weightAmountLow
		reasons = append(reasons, "claim amount above 10k")
	}

	risky := highRiskType(f.ClaimType)
	if risky {
		score += weightRiskyType
		reasons = append(reasons, "high-risk claim type")
	}

	if f.ClaimantAge < 25 || f.ClaimantAge > 70 {
		score += weightAgeBand
		reasons = append(reasons, "claimant age outside 25-70")
	}

	if f.ClaimAmount > 40000 && risky {
		score += weightCombo
		reasons = append(reasons, "high amount on high-risk type")
	}

	return Result{
		FraudScore:   score,
		IsFraudulent: score > domain.FraudThreshold,
		Reasons:      reasons,
	}
}

// EstimateReserve projects the amount to set aside against a claim's
// eventual payout: claim_amount x type multiplier x uniform variance in
// [0.9, 1.1]. Suspected fraud suppresses the multiplier to 30%.
func (e *Engine) EstimateReserve(f domain.ClaimFeatures, isFraudulent bool) float64 {
	multiplier, ok := reserveMultipliers[f.ClaimType]
	if !ok {
		multiplier = defaultReserveMultiplier
	}

	if isFraudulent {
		multiplier *= fraudReserveFactor
	}

	e.mu.Lock()
	variance := 0.9 + e.rng.Float64()*0.2
	e.mu.Unlock()

	return f.ClaimAmount * multiplier * variance
}

func highRiskType(t domain.ClaimType) bool {
	return t == domain.ClaimTypeAuto || t == domain.ClaimTypeProperty
}
