package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-insurance/heron/internal/access"
	"github.com/opensource-insurance/heron/internal/auth"
	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/extraction"
	"github.com/opensource-insurance/heron/internal/model"
	"github.com/opensource-insurance/heron/internal/repository"
	"github.com/opensource-insurance/heron/internal/rules"
	"github.com/opensource-insurance/heron/internal/velocity"
)

// predictionTTL is how long a claim's latest prediction stays cached.
const predictionTTL = 10 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	auth      *auth.Service
	gateway   *model.Gateway
	flags     *rules.Engine
	filing    *velocity.Service
	extractor *extraction.Extractor
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, authSvc *auth.Service, gateway *model.Gateway, flags *rules.Engine, filing *velocity.Service, extractor *extraction.Extractor, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		auth:      authSvc,
		gateway:   gateway,
		flags:     flags,
		filing:    filing,
		extractor: extractor,
		version:   version,
	}
}

// ClaimResponse pairs a claim with its latest prediction.
type ClaimResponse struct {
	Claim      *domain.Claim      `json:"claim"`
	Prediction *domain.Prediction `json:"prediction,omitempty"`
}

// IngestClaim handles POST /claims. It extracts fields from the
// document, scores the claim, sets the claim status from the fraud
// verdict and persists both records.
func (h *Handler) IngestClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := GetPrincipal(ctx)

	var req domain.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.DocumentName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "documentName is required",
		})
		return
	}

	// Pre-extracted fields take precedence over document text.
	fields := req.Fields
	if len(fields) == 0 {
		fields = h.extractor.Extract(req.DocumentName, req.DocumentText)
	}

	now := time.Now().UTC()
	claim := &domain.Claim{
		ID:            uuid.New().String(),
		OwnerID:       principal.ID,
		Status:        domain.ClaimPending,
		DocumentName:  req.DocumentName,
		ExtractedData: fields,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	prediction := h.score(r, claim)
	claim.Status = statusFor(prediction)

	if err := h.repo.SaveClaim(ctx, claim); err != nil {
		slog.Error("failed to save claim", "claim_id", claim.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save claim",
		})
		return
	}
	if h.filing != nil {
		h.filing.Invalidate(ctx, claim.OwnerID)
	}
	h.persistPrediction(r, claim, prediction)

	writeJSON(w, http.StatusCreated, ClaimResponse{Claim: claim, Prediction: prediction})
}

// score runs the claim's extracted fields through the gateway and the
// flag rules.
func (h *Handler) score(r *http.Request, claim *domain.Claim) *domain.Prediction {
	features := extraction.FeaturesFrom(claim.ExtractedData)
	p := h.gateway.Predict(r.Context(), features)

	if h.flags != nil {
		var recent int64
		if h.filing != nil {
			n, err := h.filing.RecentClaims(r.Context(), claim.OwnerID)
			if err != nil {
				slog.Warn("filing velocity lookup failed", "owner_id", claim.OwnerID, "error", err)
			} else {
				recent = n
			}
		}
		p.Reasons = append(p.Reasons, h.flags.Evaluate(features, p.FraudScore, recent)...)
	}

	p.ID = uuid.New().String()
	p.ClaimID = claim.ID
	p.CreatedAt = time.Now().UTC()
	return &p
}

// statusFor maps the fraud verdict to the claim status set at ingest.
func statusFor(p *domain.Prediction) domain.ClaimStatus {
	if p.IsFraudulent {
		return domain.ClaimRejected
	}
	return domain.ClaimApproved
}

// persistPrediction saves, caches and publishes a scoring result.
// Failures here are logged, not surfaced; the claim itself is already
// durable.
func (h *Handler) persistPrediction(r *http.Request, claim *domain.Claim, p *domain.Prediction) {
	ctx := r.Context()

	if err := h.repo.SavePrediction(ctx, p); err != nil {
		slog.Error("failed to save prediction", "claim_id", claim.ID, "error", err)
	}

	if h.cache != nil {
		if err := h.cache.SetPrediction(ctx, claim.ID, p, predictionTTL); err != nil {
			slog.Error("failed to cache prediction", "claim_id", claim.ID, "error", err)
		}
	}

	if h.bus != nil {
		event := domain.ClaimScoredEvent{
			ClaimID:         claim.ID,
			OwnerID:         claim.OwnerID,
			FraudScore:      p.FraudScore,
			IsFraudulent:    p.IsFraudulent,
			ReserveEstimate: p.ReserveEstimate,
			ModelVersion:    p.ModelVersion,
		}
		payload, _ := json.Marshal(event)
		if err := h.bus.Publish(ctx, domain.TopicClaimScored, payload); err != nil {
			slog.Error("failed to publish scored event", "claim_id", claim.ID, "error", err)
		}
	}
}

// ListClaims handles GET /claims. The listing is restricted to the
// principal's scope inside the query.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := GetPrincipal(ctx)

	filter := domain.ClaimFilter{
		Status: domain.ClaimStatus(r.URL.Query().Get("status")),
	}
	if filter.Status != "" && !domain.ValidStatus(filter.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown status filter",
		})
		return
	}
	filter.Page = intQuery(r, "page")
	filter.Limit = intQuery(r, "limit")

	page, err := h.repo.ListClaims(ctx, access.Scope(principal), filter)
	if err != nil {
		slog.Error("failed to list claims", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list claims",
		})
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// GetClaim handles GET /claims/{id}.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claim, ok := h.loadClaim(w, r, domain.ActionRead)
	if !ok {
		return
	}

	resp := ClaimResponse{Claim: claim}
	if p, err := h.latestPrediction(r, claim.ID); err == nil {
		resp.Prediction = p
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateClaimStatus handles PATCH /claims/{id}.
func (h *Handler) UpdateClaimStatus(w http.ResponseWriter, r *http.Request) {
	claim, ok := h.loadClaim(w, r, domain.ActionUpdate)
	if !ok {
		return
	}

	var req struct {
		Status domain.ClaimStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if !domain.ValidStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "status must be pending, approved or rejected",
		})
		return
	}

	if err := h.repo.UpdateClaimStatus(r.Context(), claim.ID, req.Status); err != nil {
		h.writeRepoError(w, err, "claim")
		return
	}

	claim.Status = req.Status
	writeJSON(w, http.StatusOK, ClaimResponse{Claim: claim})
}

// DeleteClaim handles DELETE /claims/{id}. Admin only.
func (h *Handler) DeleteClaim(w http.ResponseWriter, r *http.Request) {
	claim, ok := h.loadClaim(w, r, domain.ActionDelete)
	if !ok {
		return
	}

	if err := h.repo.DeleteClaim(r.Context(), claim.ID); err != nil {
		h.writeRepoError(w, err, "claim")
		return
	}

	if h.cache != nil {
		_ = h.cache.Delete(r.Context(), "prediction:"+claim.ID)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "claim deleted",
	})
}

// RescoreClaim handles POST /claims/{id}/rescore. It re-runs scoring
// over the stored extracted fields, appends a new prediction and
// refreshes the claim status.
func (h *Handler) RescoreClaim(w http.ResponseWriter, r *http.Request) {
	claim, ok := h.loadClaim(w, r, domain.ActionUpdate)
	if !ok {
		return
	}

	prediction := h.score(r, claim)
	status := statusFor(prediction)

	if err := h.repo.UpdateClaimStatus(r.Context(), claim.ID, status); err != nil {
		h.writeRepoError(w, err, "claim")
		return
	}
	claim.Status = status
	claim.UpdatedAt = time.Now().UTC()

	h.persistPrediction(r, claim, prediction)

	writeJSON(w, http.StatusOK, ClaimResponse{Claim: claim, Prediction: prediction})
}

// GetPrediction handles GET /predictions/{claimID}.
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := GetPrincipal(ctx)
	claimID := chi.URLParam(r, "claimID")

	claim, err := h.repo.GetClaim(ctx, claimID)
	if err != nil {
		h.writeRepoError(w, err, "claim")
		return
	}
	if !access.CanAccess(principal, claim.OwnerID, domain.ActionRead) {
		writeDenied(w)
		return
	}

	p, err := h.latestPrediction(r, claimID)
	if err != nil {
		h.writeRepoError(w, err, "prediction")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// latestPrediction reads through the cache to the repository.
func (h *Handler) latestPrediction(r *http.Request, claimID string) (*domain.Prediction, error) {
	ctx := r.Context()

	if h.cache != nil {
		if p, err := h.cache.GetPrediction(ctx, claimID); err == nil && p != nil {
			return p, nil
		}
	}

	p, err := h.repo.LatestPrediction(ctx, claimID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		_ = h.cache.SetPrediction(ctx, claimID, p, predictionTTL)
	}
	return p, nil
}

// Report handles GET /report with scope-filtered aggregates.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := GetPrincipal(ctx)

	summary, err := h.repo.Report(ctx, access.Scope(principal))
	if err != nil {
		slog.Error("failed to build report", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to build report",
		})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// loadClaim fetches the claim from the path and checks access for the
// action. Existence is checked before access so a caller who may not
// touch an existing claim sees 403, not 404.
func (h *Handler) loadClaim(w http.ResponseWriter, r *http.Request, action domain.Action) (*domain.Claim, bool) {
	ctx := r.Context()
	principal := GetPrincipal(ctx)
	claimID := chi.URLParam(r, "id")

	claim, err := h.repo.GetClaim(ctx, claimID)
	if err != nil {
		h.writeRepoError(w, err, "claim")
		return nil, false
	}

	if !access.CanAccess(principal, claim.OwnerID, action) {
		writeDenied(w)
		return nil, false
	}

	return claim, true
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func (h *Handler) writeRepoError(w http.ResponseWriter, err error, noun string) {
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": noun + " not found",
		})
		return
	}
	if errors.Is(err, repository.ErrInvalidInput) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	slog.Error("repository error", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal error",
	})
}

// writeDenied emits the uniform denial body. Every denial looks the
// same regardless of role or resource.
func writeDenied(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, map[string]string{
		"error": "access denied",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func intQuery(r *http.Request, key string) int {
	var n int
	for _, ch := range r.URL.Query().Get(key) {
		if ch < '0' || ch > '9' {
			return 0
		}
		n = n*10 + int(ch-'0')
	}
	return n
}
