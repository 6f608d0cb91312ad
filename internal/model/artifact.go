package model

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/opensource-insurance/heron/internal/domain"
)

// featureCount is the width of the encoded feature vector:
// amount, age, length plus one-hot claim type (auto is the baseline).
const featureCount = 7

// linearModel is the serialized form of a trained predictor: a linear
// combination over standardized features, with sigmoid activation for the
// fraud classifier and target de-normalization for the reserve regressor.
type linearModel struct {
	Kind         domain.ModelKind `json:"kind"`
	Bias         float64          `json:"bias"`
	Weights      []float64        `json:"weights"`
	FeatureMeans []float64        `json:"featureMeans"`
	FeatureStds  []float64        `json:"featureStds"`

	// Regressor only: the target is standardized during fitting.
	TargetMean float64 `json:"targetMean,omitempty"`
	TargetStd  float64 `json:"targetStd,omitempty"`
}

// numericFeatures is how many leading vector entries are standardized;
// the one-hot type indicators are left as-is.
const numericFeatures = 3

// featureVector encodes a claim feature record for model input.
func featureVector(f domain.ClaimFeatures) []float64 {
	v := make([]float64, featureCount)
	v[0] = f.ClaimAmount
	v[1] = float64(f.ClaimantAge)
	v[2] = float64(f.ClaimLengthDays)
	switch f.ClaimType {
	case domain.ClaimTypeHealth:
		v[3] = 1
	case domain.ClaimTypeProperty:
		v[4] = 1
	case domain.ClaimTypeHome:
		v[5] = 1
	case domain.ClaimTypeLife:
		v[6] = 1
	}
	return v
}

// decodeModel parses and validates an artifact payload. A payload that
// does not match the expected shape is unusable; callers treat the error
// as "artifact unavailable" and fall back to rules.
func decodeModel(payload []byte) (*linearModel, error) {
	var m linearModel
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model payload: %w", err)
	}
	if len(m.Weights) != featureCount {
		return nil, fmt.Errorf("model payload has %d weights, want %d", len(m.Weights), featureCount)
	}
	if len(m.FeatureMeans) != numericFeatures || len(m.FeatureStds) != numericFeatures {
		return nil, fmt.Errorf("model payload has malformed feature scaling")
	}
	return &m, nil
}

func (m *linearModel) encode() ([]byte, error) {
	return json.Marshal(m)
}

// standardize applies the stored feature scaling to a raw vector.
func (m *linearModel) standardize(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	for i := 0; i < numericFeatures; i++ {
		if m.FeatureStds[i] > 0 {
			out[i] = (v[i] - m.FeatureMeans[i]) / m.FeatureStds[i]
		} else {
			out[i] = 0
		}
	}
	return out
}

func (m *linearModel) linear(v []float64) float64 {
	sum := m.Bias
	for i, x := range m.standardize(v) {
		sum += x * m.Weights[i]
	}
	return sum
}

// predictProbability returns the fraud-class probability for a claim.
func (m *linearModel) predictProbability(f domain.ClaimFeatures) float64 {
	return sigmoid(m.linear(featureVector(f)))
}

// predictValue returns the de-normalized reserve prediction for a claim.
func (m *linearModel) predictValue(f domain.ClaimFeatures) float64 {
	return m.linear(featureVector(f))*m.TargetStd + m.TargetMean
}

func sigmoid(x float64) float64 {
	if x > 30 {
		return 1
	}
	if x < -30 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

// artifact pairs decoded model weights with their persisted metadata.
// Instances are immutable once published to a gateway slot.
type artifact struct {
	meta  *domain.ModelArtifact
	model *linearModel
}
