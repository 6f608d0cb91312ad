// Package model prefers trained predictors over the rule-based scorer when
// an active artifact is available, and degrades gracefully when it is not.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/repository"
	"github.com/opensource-insurance/heron/internal/scoring"
)

var (
	// ErrInvalidTrainingData rejects an empty or structurally invalid
	// dataset. Nothing is persisted for a rejected training request.
	ErrInvalidTrainingData = errors.New("invalid training data")

	// ErrTrainingInProgress signals a concurrent training collision for
	// the same model kind. The caller should retry later.
	ErrTrainingInProgress = errors.New("training already in progress")

	// ErrUnknownKind rejects a model kind outside {fraud, reserve}.
	ErrUnknownKind = errors.New("unknown model kind")
)

// minTrainingRows is the smallest dataset that still leaves a usable
// held-out split.
const minTrainingRows = 10

// Gateway routes predictions through the active trained artifacts and
// falls back to the rule-based scoring engine for any sub-decision a
// trained model cannot serve. Each kind has one slot holding an immutable
// artifact; readers dereference the slot without locking and writers swap
// it only after a successful fit, so inference never observes a
// half-written model.
type Gateway struct {
	rules *scoring.Engine
	repo  domain.Repository

	fraud   atomic.Pointer[artifact]
	reserve atomic.Pointer[artifact]

	fraudTrainMu   sync.Mutex
	reserveTrainMu sync.Mutex
}

// NewGateway creates a gateway over the given rule engine. The repository
// may be nil, in which case artifacts live only in memory.
func NewGateway(rules *scoring.Engine, repo domain.Repository) *Gateway {
	return &Gateway{rules: rules, repo: repo}
}

// LoadActive restores the active artifacts from the repository into the
// gateway slots. An artifact that fails to decode is skipped with a
// warning; the gateway then serves rule-based predictions for that kind.
func (g *Gateway) LoadActive(ctx context.Context) error {
	if g.repo == nil {
		return nil
	}

	for _, kind := range []domain.ModelKind{domain.ModelFraud, domain.ModelReserve} {
		meta, err := g.repo.ActiveArtifact(ctx, kind)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load %s artifact: %w", kind, err)
		}

		m, err := decodeModel(meta.Payload)
		if err != nil {
			slog.Warn("skipping corrupt model artifact",
				"kind", kind,
				"version", meta.Version,
				"error", err,
			)
			continue
		}

		g.slot(kind).Store(&artifact{meta: meta, model: m})
		slog.Info("model artifact loaded", "kind", kind, "version", meta.Version)
	}

	return nil
}

// Predict produces the fraud score and reserve estimate for a claim.
// The classification threshold is applied after the score source is
// chosen: it is a property of the system, not of any one model. Predict
// never fails; a broken artifact degrades that sub-decision to rules.
func (g *Gateway) Predict(ctx context.Context, f domain.ClaimFeatures) domain.Prediction {
	fraudSource := domain.ModelVersionRuleBased
	var fraudScore float64
	var reasons []string

	if art := g.fraud.Load(); art != nil {
		fraudScore = art.model.predictProbability(f)
		fraudSource = art.meta.Version
	} else {
		result := g.rules.Score(f)
		fraudScore = result.FraudScore
		reasons = result.Reasons
	}

	isFraudulent := fraudScore > domain.FraudThreshold

	reserveSource := domain.ModelVersionRuleBased
	var reserveEstimate float64

	if art := g.reserve.Load(); art != nil {
		reserveEstimate = art.model.predictValue(f)
		reserveSource = art.meta.Version
		if reserveEstimate < 0 {
			// A regressor extrapolating below zero is useless as a
			// reserve; the invariant wins.
			reserveEstimate = 0
		}
	} else {
		reserveEstimate = g.rules.EstimateReserve(f, isFraudulent)
	}

	return domain.Prediction{
		FraudScore:      fraudScore,
		IsFraudulent:    isFraudulent,
		ReserveEstimate: reserveEstimate,
		ModelVersion:    composeVersion(fraudSource, reserveSource),
		Reasons:         reasons,
		CreatedAt:       time.Now().UTC(),
	}
}

// composeVersion records which source produced each sub-decision. A mixed
// prediction never silently claims to be fully model-backed.
func composeVersion(fraudSource, reserveSource string) string {
	if fraudSource == reserveSource {
		return fraudSource
	}
	return fraudSource + "+" + reserveSource
}

// Train fits a new artifact of the given kind over the labeled dataset,
// evaluates it on a held-out split, persists it as the active artifact
// (superseding, not deleting, the previous one) and swaps it into the
// inference slot. Concurrent training of the same kind fails fast with
// ErrTrainingInProgress rather than interleaving writes to the slot.
func (g *Gateway) Train(ctx context.Context, kind domain.ModelKind, rows []domain.TrainingRow) (domain.ModelStats, error) {
	mu, err := g.trainMu(kind)
	if err != nil {
		return domain.ModelStats{}, err
	}
	if !mu.TryLock() {
		return domain.ModelStats{}, fmt.Errorf("%w: kind %s", ErrTrainingInProgress, kind)
	}
	defer mu.Unlock()

	if err := validateRows(kind, rows); err != nil {
		return domain.ModelStats{}, err
	}

	trainRows, holdout := splitRows(rows)

	var m *linearModel
	var stats domain.ModelStats
	switch kind {
	case domain.ModelFraud:
		m = fitClassifier(trainRows)
		stats = classifierStats(m, holdout)
	case domain.ModelReserve:
		m = fitRegressor(trainRows)
		stats = regressorStats(m, holdout)
	}
	stats.SampleCount = len(rows)

	payload, err := m.encode()
	if err != nil {
		return domain.ModelStats{}, fmt.Errorf("failed to encode model: %w", err)
	}

	now := time.Now().UTC()
	meta := &domain.ModelArtifact{
		ID:        uuid.New().String(),
		Kind:      kind,
		Version:   fmt.Sprintf("%s-%s", kind, now.Format("20060102150405")),
		Status:    domain.ModelActive,
		Payload:   payload,
		Stats:     stats,
		TrainedAt: now,
	}

	if g.repo != nil {
		if err := g.repo.SaveArtifact(ctx, meta); err != nil {
			return domain.ModelStats{}, fmt.Errorf("failed to persist artifact: %w", err)
		}
	}

	g.slot(kind).Store(&artifact{meta: meta, model: m})
	slog.Info("model trained",
		"kind", kind,
		"version", meta.Version,
		"samples", stats.SampleCount,
		"holdout", stats.HoldoutCount,
	)

	return stats, nil
}

// ActiveVersion returns the version of the active artifact for a kind,
// or the rule-based tag when no artifact is loaded.
func (g *Gateway) ActiveVersion(kind domain.ModelKind) string {
	slot, err := g.slotChecked(kind)
	if err != nil {
		return domain.ModelVersionRuleBased
	}
	if art := slot.Load(); art != nil {
		return art.meta.Version
	}
	return domain.ModelVersionRuleBased
}

// Unload drops the in-memory artifact for a kind, forcing rule-based
// predictions until the next train or load.
func (g *Gateway) Unload(kind domain.ModelKind) {
	if slot, err := g.slotChecked(kind); err == nil {
		slot.Store(nil)
	}
}

func (g *Gateway) slot(kind domain.ModelKind) *atomic.Pointer[artifact] {
	if kind == domain.ModelReserve {
		return &g.reserve
	}
	return &g.fraud
}

func (g *Gateway) slotChecked(kind domain.ModelKind) (*atomic.Pointer[artifact], error) {
	switch kind {
	case domain.ModelFraud:
		return &g.fraud, nil
	case domain.ModelReserve:
		return &g.reserve, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

func (g *Gateway) trainMu(kind domain.ModelKind) (*sync.Mutex, error) {
	switch kind {
	case domain.ModelFraud:
		return &g.fraudTrainMu, nil
	case domain.ModelReserve:
		return &g.reserveTrainMu, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// validateRows rejects the whole batch when any row is structurally
// invalid; there is no partial-row tolerance.
func validateRows(kind domain.ModelKind, rows []domain.TrainingRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: dataset is empty", ErrInvalidTrainingData)
	}
	if len(rows) < minTrainingRows {
		return fmt.Errorf("%w: need at least %d rows, got %d", ErrInvalidTrainingData, minTrainingRows, len(rows))
	}
	for i, r := range rows {
		if r.Features.ClaimAmount <= 0 {
			return fmt.Errorf("%w: row %d has non-positive claim amount", ErrInvalidTrainingData, i)
		}
		if r.Features.ClaimType == "" {
			return fmt.Errorf("%w: row %d is missing claim type", ErrInvalidTrainingData, i)
		}
		if r.Features.ClaimantAge <= 0 {
			return fmt.Errorf("%w: row %d has invalid claimant age", ErrInvalidTrainingData, i)
		}
		if kind == domain.ModelReserve && r.Reserve < 0 {
			return fmt.Errorf("%w: row %d has negative reserve label", ErrInvalidTrainingData, i)
		}
	}
	return nil
}
