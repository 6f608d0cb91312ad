package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/model"
)

// TrainRequest is the payload for POST /models/train.
type TrainRequest struct {
	Kind domain.ModelKind     `json:"kind"`
	Rows []domain.TrainingRow `json:"rows"`
}

// TrainResponse reports the outcome of a training run.
type TrainResponse struct {
	Kind    domain.ModelKind `json:"kind"`
	Version string           `json:"version"`
	Stats   domain.ModelStats `json:"stats"`
}

// TrainModel handles POST /models/train. Admin only. Training is
// synchronous; a concurrent run for the same kind gets 409.
func (h *Handler) TrainModel(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	stats, err := h.gateway.Train(r.Context(), req.Kind, req.Rows)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrUnknownKind),
			errors.Is(err, model.ErrInvalidTrainingData):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		case errors.Is(err, model.ErrTrainingInProgress):
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": err.Error(),
			})
		default:
			slog.Error("training failed", "kind", req.Kind, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "training failed",
			})
		}
		return
	}

	version := h.gateway.ActiveVersion(req.Kind)

	if h.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"kind":    req.Kind,
			"version": version,
			"stats":   stats,
		})
		if err := h.bus.Publish(r.Context(), domain.TopicModelTrained, payload); err != nil {
			slog.Error("failed to publish trained event", "kind", req.Kind, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, TrainResponse{
		Kind:    req.Kind,
		Version: version,
		Stats:   stats,
	})
}

// ListModels handles GET /models. Admin only. Payloads are omitted;
// only metadata and evaluation stats are returned.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	artifacts, err := h.repo.ListArtifacts(r.Context())
	if err != nil {
		slog.Error("failed to list artifacts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list models",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"models": artifacts,
		"active": map[string]string{
			string(domain.ModelFraud):   h.gateway.ActiveVersion(domain.ModelFraud),
			string(domain.ModelReserve): h.gateway.ActiveVersion(domain.ModelReserve),
		},
	})
}

// ListFlagRules handles GET /rules. Admin only. Returns all rules
// including disabled ones; only enabled rules are evaluated.
func (h *Handler) ListFlagRules(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	ruleList, err := h.repo.ListFlagRules(r.Context())
	if err != nil {
		slog.Error("failed to list flag rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  ruleList,
		"loaded": h.flags.RulesCount(),
	})
}

// SaveFlagRule handles POST /rules. Admin only. The expression is
// compiled before anything is persisted; a rule that does not compile
// is rejected outright.
func (h *Handler) SaveFlagRule(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var rule domain.FlagRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if rule.Name == "" || rule.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name and expression are required",
		})
		return
	}

	if err := h.flags.ValidateRule(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	if err := h.repo.SaveFlagRule(r.Context(), &rule); err != nil {
		slog.Error("failed to save flag rule", "rule", rule.Name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	if err := h.reloadFlagRules(r); err != nil {
		slog.Error("failed to reload flag rules", "error", err)
	}

	writeJSON(w, http.StatusCreated, &rule)
}

// ReloadFlagRules handles POST /rules/reload. Admin only. Recompiles
// the stored rule set; on compile failure the previous set stays live.
func (h *Handler) ReloadFlagRules(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := h.reloadFlagRules(r); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded",
		"loaded":  h.flags.RulesCount(),
	})
}

func (h *Handler) reloadFlagRules(r *http.Request) error {
	stored, err := h.repo.ListFlagRules(r.Context())
	if err != nil {
		return err
	}
	return h.flags.ReloadRules(stored)
}

// requireAdmin enforces admin-only endpoints with the uniform denial.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if GetPrincipal(r.Context()).Role != domain.RoleAdmin {
		writeDenied(w)
		return false
	}
	return true
}
