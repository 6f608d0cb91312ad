// Package extraction turns claim documents into structured field maps and
// normalizes those maps into scoring features. Real OCR/NLP lives outside
// this service; when no usable document text is supplied the extractor
// generates plausible synthetic fields so the pipeline stays exercisable.
package extraction

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/opensource-insurance/heron/internal/domain"
)

// Feature defaults applied when a field map is missing values, matching
// the scoring engine's tolerance for partial extractions.
const (
	defaultClaimType   = domain.ClaimTypeAuto
	defaultClaimantAge = 35
)

// minTextLength below this, document text is treated as a filename or
// fragment and mock fields are generated instead.
const minTextLength = 100

var (
	claimTypeRe = regexp.MustCompile(`(?i)\b(auto|health|home|life|property)\b`)
	amountRe    = regexp.MustCompile(`\$\s?([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	ageRe       = regexp.MustCompile(`(?i)\bage[:\s]+([0-9]{1,3})\b`)
)

var amountRanges = map[domain.ClaimType][2]float64{
	domain.ClaimTypeAuto:     {1000, 50000},
	domain.ClaimTypeHealth:   {500, 100000},
	domain.ClaimTypeProperty: {5000, 200000},
	domain.ClaimTypeHome:     {2000, 150000},
}

var firstNames = []string{"John", "Jane", "Michael", "Sarah", "David", "Emily", "Robert", "Lisa"}
var lastNames = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis"}

var descriptions = map[domain.ClaimType][]string{
	domain.ClaimTypeAuto: {
		"Vehicle collision on highway",
		"Rear-end accident at intersection",
		"Single vehicle accident - hit guardrail",
		"Vehicle theft and recovery damage",
	},
	domain.ClaimTypeHealth: {
		"Emergency room visit",
		"Surgical procedure",
		"Hospital admission",
		"Outpatient treatment",
	},
	domain.ClaimTypeProperty: {
		"Fire damage to commercial building",
		"Water damage from burst pipe",
		"Storm damage to roof",
		"Vandalism and theft",
	},
	domain.ClaimTypeHome: {
		"Residential fire damage",
		"Flood damage",
		"Burglary and theft",
		"Tree fell on house",
	},
}

// Extractor produces structured claim fields. It draws mock values from
// an injected random source so tests can pin the output.
type Extractor struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// New creates an extractor. A nil source seeds from the clock.
func New(src rand.Source) *Extractor {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Extractor{rng: rand.New(src), now: time.Now}
}

// Extract returns a structured field map for a claim document. Text long
// enough to be a real document body goes through the pattern pass; the
// pattern pass falling short of usable fields, or short text, yields
// generated mock fields.
func (e *Extractor) Extract(documentName, documentText string) map[string]any {
	if len(documentText) >= minTextLength {
		if fields := extractFromText(documentText); fields != nil {
			return fields
		}
	}
	return e.generate()
}

// extractFromText pulls claim fields out of raw document text with the
// patterns the upstream NLP pipeline would match. Returns nil when
// neither a claim type nor an amount is found.
func extractFromText(text string) map[string]any {
	fields := make(map[string]any)

	if m := claimTypeRe.FindStringSubmatch(text); m != nil {
		fields["claim_type"] = strings.ToLower(m[1])
	}
	if m := amountRe.FindStringSubmatch(text); m != nil {
		raw := strings.ReplaceAll(m[1], ",", "")
		if amount, err := strconv.ParseFloat(raw, 64); err == nil {
			fields["claim_amount"] = amount
		}
	}
	if m := ageRe.FindStringSubmatch(text); m != nil {
		if age, err := strconv.Atoi(m[1]); err == nil {
			fields["claimant_age"] = age
		}
	}

	if fields["claim_type"] == nil && fields["claim_amount"] == nil {
		return nil
	}
	return fields
}

// generate fabricates a realistic field map for testing without OCR.
func (e *Extractor) generate() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()

	types := []domain.ClaimType{
		domain.ClaimTypeAuto, domain.ClaimTypeHealth,
		domain.ClaimTypeProperty, domain.ClaimTypeHome,
	}
	claimType := types[e.rng.Intn(len(types))]
	bounds := amountRanges[claimType]
	amount := bounds[0] + e.rng.Float64()*(bounds[1]-bounds[0])

	now := e.now()
	incident := now.AddDate(0, 0, -(1 + e.rng.Intn(90)))
	filed := now.AddDate(0, 0, -e.rng.Intn(30))

	descs := descriptions[claimType]

	return map[string]any{
		"claim_type":    string(claimType),
		"claim_amount":  float64(int(amount*100)) / 100,
		"claimant_name": firstNames[e.rng.Intn(len(firstNames))] + " " + lastNames[e.rng.Intn(len(lastNames))],
		"claimant_age":  25 + e.rng.Intn(46),
		"incident_date": incident.Format("2006-01-02"),
		"claim_date":    filed.Format("2006-01-02"),
		"description":   descs[e.rng.Intn(len(descs))],
		"policy_number": fmt.Sprintf("POL-%06d", 100000+e.rng.Intn(900000)),
	}
}

// FeaturesFrom normalizes a structured field map into scoring features.
// Missing fields take the documented defaults; claim_amount falls back to
// the amount_claimed alias.
func FeaturesFrom(fields map[string]any) domain.ClaimFeatures {
	f := domain.ClaimFeatures{
		ClaimType:   defaultClaimType,
		ClaimantAge: defaultClaimantAge,
	}

	if amount, ok := asFloat(fields["claim_amount"]); ok {
		f.ClaimAmount = amount
	} else if amount, ok := asFloat(fields["amount_claimed"]); ok {
		f.ClaimAmount = amount
	}

	if raw, ok := fields["claim_type"].(string); ok && raw != "" {
		f.ClaimType = domain.ClaimType(strings.ToLower(raw))
	}

	if age, ok := asFloat(fields["claimant_age"]); ok {
		f.ClaimantAge = int(age)
	}

	if days, ok := asFloat(fields["claim_length_days"]); ok {
		f.ClaimLengthDays = int(days)
	} else if incident, filed, ok := parseDates(fields); ok {
		f.ClaimLengthDays = int(filed.Sub(incident).Hours() / 24)
	}

	return f
}

func parseDates(fields map[string]any) (incident, filed time.Time, ok bool) {
	incidentRaw, _ := fields["incident_date"].(string)
	filedRaw, _ := fields["claim_date"].(string)
	if incidentRaw == "" || filedRaw == "" {
		return time.Time{}, time.Time{}, false
	}
	incident, err := time.Parse("2006-01-02", incidentRaw)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	filed, err = time.Parse("2006-01-02", filedRaw)
	if err != nil || filed.Before(incident) {
		return time.Time{}, time.Time{}, false
	}
	return incident, filed, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimPrefix(n, "$"), ",", ""), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
