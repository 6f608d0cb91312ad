package model

import (
	"math"

	"github.com/opensource-insurance/heron/internal/domain"
)

// Gradient descent settings. The feature space is tiny, so a fixed budget
// converges comfortably without early stopping.
const (
	learningRate = 0.1
	epochs       = 500
	l2Lambda     = 0.001
	holdoutRatio = 0.2
)

// splitRows carves a held-out evaluation set off the tail of the dataset.
// Callers shuffle before splitting if ordering matters; the training API
// receives rows in caller order and keeps the split reproducible.
func splitRows(rows []domain.TrainingRow) (train, holdout []domain.TrainingRow) {
	n := len(rows)
	cut := n - int(math.Round(float64(n)*holdoutRatio))
	if cut <= 0 {
		cut = 1
	}
	if cut >= n {
		cut = n - 1
	}
	return rows[:cut], rows[cut:]
}

// fitScaling computes per-feature mean and standard deviation over the
// numeric features of the training split.
func fitScaling(rows []domain.TrainingRow) (means, stds []float64) {
	means = make([]float64, numericFeatures)
	stds = make([]float64, numericFeatures)

	for _, r := range rows {
		v := featureVector(r.Features)
		for i := 0; i < numericFeatures; i++ {
			means[i] += v[i]
		}
	}
	n := float64(len(rows))
	for i := range means {
		means[i] /= n
	}
	for _, r := range rows {
		v := featureVector(r.Features)
		for i := 0; i < numericFeatures; i++ {
			d := v[i] - means[i]
			stds[i] += d * d
		}
	}
	for i := range stds {
		stds[i] = math.Sqrt(stds[i] / n)
	}
	return means, stds
}

// fitClassifier trains a logistic regression fraud classifier by batch
// gradient descent over standardized features.
func fitClassifier(rows []domain.TrainingRow) *linearModel {
	means, stds := fitScaling(rows)
	m := &linearModel{
		Kind:         domain.ModelFraud,
		Weights:      make([]float64, featureCount),
		FeatureMeans: means,
		FeatureStds:  stds,
	}

	vectors := make([][]float64, len(rows))
	labels := make([]float64, len(rows))
	for i, r := range rows {
		vectors[i] = m.standardize(featureVector(r.Features))
		if r.Fraud {
			labels[i] = 1
		}
	}

	n := float64(len(rows))
	for epoch := 0; epoch < epochs; epoch++ {
		gradBias := 0.0
		grad := make([]float64, featureCount)

		for i, v := range vectors {
			sum := m.Bias
			for j, x := range v {
				sum += x * m.Weights[j]
			}
			err := sigmoid(sum) - labels[i]
			gradBias += err
			for j, x := range v {
				grad[j] += err * x
			}
		}

		m.Bias -= learningRate * gradBias / n
		for j := range m.Weights {
			m.Weights[j] -= learningRate * (grad[j]/n + l2Lambda*m.Weights[j])
		}
	}

	return m
}

// fitRegressor trains a least-squares linear reserve regressor by batch
// gradient descent. The target is standardized for stable step sizes and
// de-normalized at prediction time.
func fitRegressor(rows []domain.TrainingRow) *linearModel {
	means, stds := fitScaling(rows)
	m := &linearModel{
		Kind:         domain.ModelReserve,
		Weights:      make([]float64, featureCount),
		FeatureMeans: means,
		FeatureStds:  stds,
	}

	n := float64(len(rows))
	for _, r := range rows {
		m.TargetMean += r.Reserve
	}
	m.TargetMean /= n
	for _, r := range rows {
		d := r.Reserve - m.TargetMean
		m.TargetStd += d * d
	}
	m.TargetStd = math.Sqrt(m.TargetStd / n)
	if m.TargetStd == 0 {
		m.TargetStd = 1
	}

	vectors := make([][]float64, len(rows))
	targets := make([]float64, len(rows))
	for i, r := range rows {
		vectors[i] = m.standardize(featureVector(r.Features))
		targets[i] = (r.Reserve - m.TargetMean) / m.TargetStd
	}

	for epoch := 0; epoch < epochs; epoch++ {
		gradBias := 0.0
		grad := make([]float64, featureCount)

		for i, v := range vectors {
			sum := m.Bias
			for j, x := range v {
				sum += x * m.Weights[j]
			}
			err := sum - targets[i]
			gradBias += err
			for j, x := range v {
				grad[j] += err * x
			}
		}

		m.Bias -= learningRate * gradBias / n
		for j := range m.Weights {
			m.Weights[j] -= learningRate * (grad[j]/n + l2Lambda*m.Weights[j])
		}
	}

	return m
}

// classifierStats evaluates a fraud classifier on held-out rows.
func classifierStats(m *linearModel, holdout []domain.TrainingRow) domain.ModelStats {
	var tp, tn, fp, fn float64

	for _, r := range holdout {
		predicted := m.predictProbability(r.Features) > domain.FraudThreshold
		switch {
		case predicted && r.Fraud:
			tp++
		case predicted && !r.Fraud:
			fp++
		case !predicted && r.Fraud:
			fn++
		default:
			tn++
		}
	}

	stats := domain.ModelStats{HoldoutCount: len(holdout)}
	total := tp + tn + fp + fn
	if total > 0 {
		stats.Accuracy = (tp + tn) / total
	}
	if tp+fp > 0 {
		stats.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		stats.Recall = tp / (tp + fn)
	}
	if stats.Precision+stats.Recall > 0 {
		stats.F1 = 2 * stats.Precision * stats.Recall / (stats.Precision + stats.Recall)
	}
	return stats
}

// regressorStats evaluates a reserve regressor on held-out rows.
func regressorStats(m *linearModel, holdout []domain.TrainingRow) domain.ModelStats {
	stats := domain.ModelStats{HoldoutCount: len(holdout)}
	if len(holdout) == 0 {
		return stats
	}

	var mean float64
	for _, r := range holdout {
		mean += r.Reserve
	}
	mean /= float64(len(holdout))

	var sse, sae, sst float64
	for _, r := range holdout {
		err := m.predictValue(r.Features) - r.Reserve
		sse += err * err
		sae += math.Abs(err)
		d := r.Reserve - mean
		sst += d * d
	}

	n := float64(len(holdout))
	stats.MSE = sse / n
	stats.MAE = sae / n
	if sst > 0 {
		stats.R2 = 1 - sse/sst
	}
	return stats
}
