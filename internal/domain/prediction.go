package domain

import "time"

// ModelVersionRuleBased tags predictions produced by the deterministic
// rule-based scoring path rather than a trained artifact.
const ModelVersionRuleBased = "rule-based"

// FraudThreshold is the system-wide classification threshold: a claim is
// fraudulent iff its fraud score exceeds this value, regardless of whether
// the score came from rules or a trained model.
const FraudThreshold = 0.5

// Prediction is the scoring outcome stored 1:1 against a claim.
// Immutable once written; re-scoring appends a new row.
type Prediction struct {
	ID              string    `json:"id"`
	ClaimID         string    `json:"claimId"`
	FraudScore      float64   `json:"fraudScore"`
	IsFraudulent    bool      `json:"isFraudulent"`
	ReserveEstimate float64   `json:"reserveEstimate"`
	ModelVersion    string    `json:"modelVersion"`
	Reasons         []string  `json:"reasons,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ModelKind identifies which predictor an artifact holds.
type ModelKind string

const (
	ModelFraud   ModelKind = "fraud"
	ModelReserve ModelKind = "reserve"
)

// ModelStatus is the lifecycle state of a trained artifact.
// Only active artifacts are ever used for inference.
type ModelStatus string

const (
	ModelTraining ModelStatus = "training"
	ModelActive   ModelStatus = "active"
	ModelInactive ModelStatus = "inactive"
)

// ModelStats holds held-out evaluation metrics recorded at training time.
// Classifier artifacts fill Accuracy/Precision/Recall/F1; regressor
// artifacts fill MSE/MAE/R2.
type ModelStats struct {
	Accuracy     float64 `json:"accuracy,omitempty"`
	Precision    float64 `json:"precision,omitempty"`
	Recall       float64 `json:"recall,omitempty"`
	F1           float64 `json:"f1,omitempty"`
	MSE          float64 `json:"mse,omitempty"`
	MAE          float64 `json:"mae,omitempty"`
	R2           float64 `json:"r2,omitempty"`
	SampleCount  int     `json:"sampleCount"`
	HoldoutCount int     `json:"holdoutCount"`
}

// ModelArtifact is a persisted trained predictor plus its metadata.
// Superseded artifacts are marked inactive, never deleted.
type ModelArtifact struct {
	ID        string      `json:"id"`
	Kind      ModelKind   `json:"kind"`
	Version   string      `json:"version"`
	Status    ModelStatus `json:"status"`
	Payload   []byte      `json:"-"`
	Stats     ModelStats  `json:"stats"`
	TrainedAt time.Time   `json:"trainedAt"`
}

// TrainingRow is a single labeled example for model training.
// Fraud is the classifier label; Reserve is the regressor label.
type TrainingRow struct {
	Features ClaimFeatures `json:"features"`
	Fraud    bool          `json:"fraud"`
	Reserve  float64       `json:"reserve"`
}
