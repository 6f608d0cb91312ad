package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-insurance/heron/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "heron-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func testClaim(id, ownerID string) *domain.Claim {
	now := time.Now().UTC()
	return &domain.Claim{
		ID:           id,
		OwnerID:      ownerID,
		Status:       domain.ClaimPending,
		DocumentName: "claim.pdf",
		ExtractedData: map[string]any{
			"claim_type":   "auto",
			"claim_amount": 12000.0,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("CreateAndGetUser", func(t *testing.T) {
		user := &domain.User{
			ID:           "user-001",
			Email:        "analyst@example.com",
			FirstName:    "Ana",
			LastName:     "Lyst",
			PasswordHash: "$2a$10$hash",
			Role:         domain.RoleInsurer,
			CreatedAt:    time.Now().UTC(),
		}

		if err := repo.CreateUser(ctx, user); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}

		byID, err := repo.GetUser(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if byID.Email != user.Email || byID.Role != domain.RoleInsurer {
			t.Errorf("unexpected user: %+v", byID)
		}

		byEmail, err := repo.GetUserByEmail(ctx, user.Email)
		if err != nil {
			t.Fatalf("GetUserByEmail failed: %v", err)
		}
		if byEmail.ID != user.ID {
			t.Errorf("expected ID %s, got %s", user.ID, byEmail.ID)
		}
	})

	t.Run("DuplicateEmailRejected", func(t *testing.T) {
		dup := &domain.User{
			ID:           "user-002",
			Email:        "analyst@example.com",
			PasswordHash: "x",
			Role:         domain.RoleInsurer,
			CreatedAt:    time.Now().UTC(),
		}
		if err := repo.CreateUser(ctx, dup); err == nil {
			t.Error("expected unique email violation")
		}
	})

	t.Run("SaveAndGetClaim", func(t *testing.T) {
		claim := testClaim("claim-001", "insurer-001")

		if err := repo.SaveClaim(ctx, claim); err != nil {
			t.Fatalf("SaveClaim failed: %v", err)
		}

		retrieved, err := repo.GetClaim(ctx, claim.ID)
		if err != nil {
			t.Fatalf("GetClaim failed: %v", err)
		}
		if retrieved.OwnerID != claim.OwnerID {
			t.Errorf("expected owner %s, got %s", claim.OwnerID, retrieved.OwnerID)
		}
		if retrieved.Status != domain.ClaimPending {
			t.Errorf("expected pending status, got %s", retrieved.Status)
		}
		if retrieved.ExtractedData["claim_type"] != "auto" {
			t.Errorf("extracted data lost: %v", retrieved.ExtractedData)
		}
	})

	t.Run("SaveClaimUpsertsStatus", func(t *testing.T) {
		claim := testClaim("claim-001", "insurer-001")
		claim.Status = domain.ClaimApproved
		claim.UpdatedAt = time.Now().UTC()

		if err := repo.SaveClaim(ctx, claim); err != nil {
			t.Fatalf("SaveClaim upsert failed: %v", err)
		}

		retrieved, err := repo.GetClaim(ctx, claim.ID)
		if err != nil {
			t.Fatalf("GetClaim failed: %v", err)
		}
		if retrieved.Status != domain.ClaimApproved {
			t.Errorf("expected approved after upsert, got %s", retrieved.Status)
		}
	})

	t.Run("UpdateClaimStatus", func(t *testing.T) {
		if err := repo.UpdateClaimStatus(ctx, "claim-001", domain.ClaimRejected); err != nil {
			t.Fatalf("UpdateClaimStatus failed: %v", err)
		}

		retrieved, err := repo.GetClaim(ctx, "claim-001")
		if err != nil {
			t.Fatalf("GetClaim failed: %v", err)
		}
		if retrieved.Status != domain.ClaimRejected {
			t.Errorf("expected rejected, got %s", retrieved.Status)
		}

		if err := repo.UpdateClaimStatus(ctx, "claim-001", "escalated"); err == nil {
			t.Error("expected error for unknown status")
		}
		if err := repo.UpdateClaimStatus(ctx, "nonexistent", domain.ClaimApproved); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("SaveAndGetPrediction", func(t *testing.T) {
		p := &domain.Prediction{
			ID:              "pred-001",
			ClaimID:         "claim-001",
			FraudScore:      0.45,
			IsFraudulent:    false,
			ReserveEstimate: 9000,
			ModelVersion:    domain.ModelVersionRuleBased,
			Reasons:         []string{"claim amount above 10k"},
			CreatedAt:       time.Now().UTC().Add(-time.Minute),
		}
		if err := repo.SavePrediction(ctx, p); err != nil {
			t.Fatalf("SavePrediction failed: %v", err)
		}

		// A newer prediction supersedes the first in LatestPrediction.
		p2 := &domain.Prediction{
			ID:              "pred-002",
			ClaimID:         "claim-001",
			FraudScore:      0.80,
			IsFraudulent:    true,
			ReserveEstimate: 2700,
			ModelVersion:    domain.ModelVersionRuleBased,
			Reasons:         []string{"claim amount above 50k"},
			CreatedAt:       time.Now().UTC(),
		}
		if err := repo.SavePrediction(ctx, p2); err != nil {
			t.Fatalf("SavePrediction failed: %v", err)
		}

		latest, err := repo.LatestPrediction(ctx, "claim-001")
		if err != nil {
			t.Fatalf("LatestPrediction failed: %v", err)
		}
		if latest.ID != "pred-002" {
			t.Errorf("expected latest pred-002, got %s", latest.ID)
		}
		if !latest.IsFraudulent {
			t.Error("fraudulent flag lost in round trip")
		}
		if len(latest.Reasons) != 1 || latest.Reasons[0] != "claim amount above 50k" {
			t.Errorf("reasons lost: %v", latest.Reasons)
		}
	})

	t.Run("ScopedListing", func(t *testing.T) {
		if err := repo.SaveClaim(ctx, testClaim("claim-002", "insurer-001")); err != nil {
			t.Fatalf("SaveClaim failed: %v", err)
		}
		if err := repo.SaveClaim(ctx, testClaim("claim-003", "insurer-002")); err != nil {
			t.Fatalf("SaveClaim failed: %v", err)
		}

		all, err := repo.ListClaims(ctx, domain.ClaimScope{All: true}, domain.ClaimFilter{})
		if err != nil {
			t.Fatalf("ListClaims failed: %v", err)
		}
		if all.Total != 3 {
			t.Errorf("expected 3 claims for admin scope, got %d", all.Total)
		}

		own, err := repo.ListClaims(ctx, domain.ClaimScope{OwnerID: "insurer-002"}, domain.ClaimFilter{})
		if err != nil {
			t.Fatalf("ListClaims failed: %v", err)
		}
		if own.Total != 1 || own.Claims[0].ID != "claim-003" {
			t.Errorf("owner scope leaked rows: %+v", own)
		}

		// The zero scope matches nothing.
		none, err := repo.ListClaims(ctx, domain.ClaimScope{}, domain.ClaimFilter{})
		if err != nil {
			t.Fatalf("ListClaims failed: %v", err)
		}
		if none.Total != 0 || len(none.Claims) != 0 {
			t.Errorf("zero scope returned rows: %+v", none)
		}
	})

	t.Run("StatusFilterAndPaging", func(t *testing.T) {
		filtered, err := repo.ListClaims(ctx, domain.ClaimScope{All: true}, domain.ClaimFilter{
			Status: domain.ClaimPending,
		})
		if err != nil {
			t.Fatalf("ListClaims failed: %v", err)
		}
		for _, c := range filtered.Claims {
			if c.Status != domain.ClaimPending {
				t.Errorf("status filter leaked claim %s with status %s", c.ID, c.Status)
			}
		}

		paged, err := repo.ListClaims(ctx, domain.ClaimScope{All: true}, domain.ClaimFilter{
			Page: 1, Limit: 2,
		})
		if err != nil {
			t.Fatalf("ListClaims failed: %v", err)
		}
		if len(paged.Claims) != 2 || paged.Total != 3 {
			t.Errorf("expected page of 2 with total 3, got %d of %d", len(paged.Claims), paged.Total)
		}
	})

	t.Run("CountClaimsSince", func(t *testing.T) {
		since := time.Now().UTC().Add(-time.Hour)

		count, err := repo.CountClaimsSince(ctx, "insurer-001", since)
		if err != nil {
			t.Fatalf("CountClaimsSince failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 recent claims for insurer-001, got %d", count)
		}

		count, err = repo.CountClaimsSince(ctx, "insurer-001", time.Now().UTC().Add(time.Hour))
		if err != nil {
			t.Fatalf("CountClaimsSince failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0 claims inside a future window, got %d", count)
		}

		if _, err := repo.CountClaimsSince(ctx, "", since); err == nil {
			t.Error("expected error for empty owner id")
		}
	})

	t.Run("ScopedReport", func(t *testing.T) {
		report, err := repo.Report(ctx, domain.ClaimScope{All: true})
		if err != nil {
			t.Fatalf("Report failed: %v", err)
		}
		if report.TotalClaims != 3 {
			t.Errorf("expected 3 total claims, got %d", report.TotalClaims)
		}
		if report.FraudulentCount != 1 {
			t.Errorf("expected 1 fraudulent claim, got %d", report.FraudulentCount)
		}
		// Only the latest prediction per claim counts.
		if report.AvgFraudScore != 0.80 {
			t.Errorf("expected avg fraud score 0.80 from latest prediction, got %.2f", report.AvgFraudScore)
		}
		if report.StatusBreakdown[string(domain.ClaimPending)] != 2 {
			t.Errorf("unexpected status breakdown: %v", report.StatusBreakdown)
		}

		scoped, err := repo.Report(ctx, domain.ClaimScope{OwnerID: "insurer-002"})
		if err != nil {
			t.Fatalf("Report failed: %v", err)
		}
		if scoped.TotalClaims != 1 || scoped.FraudulentCount != 0 {
			t.Errorf("owner report leaked rows: %+v", scoped)
		}
	})

	t.Run("DeleteClaimCascades", func(t *testing.T) {
		if err := repo.DeleteClaim(ctx, "claim-001"); err != nil {
			t.Fatalf("DeleteClaim failed: %v", err)
		}
		if _, err := repo.GetClaim(ctx, "claim-001"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound after delete, got: %v", err)
		}
		if _, err := repo.LatestPrediction(ctx, "claim-001"); err != ErrNotFound {
			t.Errorf("expected predictions removed with claim, got: %v", err)
		}
		if err := repo.DeleteClaim(ctx, "claim-001"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound for second delete, got: %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetClaim(ctx, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if _, err := repo.GetUser(ctx, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if _, err := repo.LatestPrediction(ctx, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestModelArtifacts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := &domain.ModelArtifact{
		ID:      "artifact-001",
		Kind:    domain.ModelFraud,
		Version: "fraud-20260801120000",
		Status:  domain.ModelActive,
		Payload: []byte(`{"kind":"fraud"}`),
		Stats: domain.ModelStats{
			Accuracy: 0.91, SampleCount: 200, HoldoutCount: 40,
		},
		TrainedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := repo.SaveArtifact(ctx, first); err != nil {
		t.Fatalf("SaveArtifact failed: %v", err)
	}

	active, err := repo.ActiveArtifact(ctx, domain.ModelFraud)
	if err != nil {
		t.Fatalf("ActiveArtifact failed: %v", err)
	}
	if active.ID != first.ID || active.Stats.Accuracy != 0.91 {
		t.Errorf("unexpected active artifact: %+v", active)
	}
	if string(active.Payload) != `{"kind":"fraud"}` {
		t.Errorf("payload lost in round trip: %s", active.Payload)
	}

	// A newer artifact supersedes the first; the old one stays inactive.
	second := &domain.ModelArtifact{
		ID:        "artifact-002",
		Kind:      domain.ModelFraud,
		Version:   "fraud-20260801130000",
		Status:    domain.ModelActive,
		Payload:   []byte(`{"kind":"fraud","v":2}`),
		TrainedAt: time.Now().UTC(),
	}
	if err := repo.SaveArtifact(ctx, second); err != nil {
		t.Fatalf("SaveArtifact failed: %v", err)
	}

	active, err = repo.ActiveArtifact(ctx, domain.ModelFraud)
	if err != nil {
		t.Fatalf("ActiveArtifact failed: %v", err)
	}
	if active.ID != second.ID {
		t.Errorf("expected artifact-002 active, got %s", active.ID)
	}

	artifacts, err := repo.ListArtifacts(ctx)
	if err != nil {
		t.Fatalf("ListArtifacts failed: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("expected both artifacts retained, got %d", len(artifacts))
	}
	inactive := 0
	for _, a := range artifacts {
		if a.Status == domain.ModelInactive {
			inactive++
		}
	}
	if inactive != 1 {
		t.Errorf("expected exactly one superseded artifact, got %d", inactive)
	}

	if _, err := repo.ActiveArtifact(ctx, domain.ModelReserve); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for untrained kind, got: %v", err)
	}
}

func TestFlagRules(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := &domain.FlagRule{
		ID:         "rule-001",
		Name:       "high-amount-auto",
		Expression: `amount > 40000.0 && claim_type == "auto"`,
		Reason:     "large auto claim",
		Enabled:    true,
	}
	if err := repo.SaveFlagRule(ctx, rule); err != nil {
		t.Fatalf("SaveFlagRule failed: %v", err)
	}

	rule.Enabled = false
	if err := repo.SaveFlagRule(ctx, rule); err != nil {
		t.Fatalf("SaveFlagRule upsert failed: %v", err)
	}

	rules, err := repo.ListFlagRules(ctx)
	if err != nil {
		t.Fatalf("ListFlagRules failed: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule after upsert, got %d", len(rules))
	}
	if rules[0].Enabled {
		t.Error("enabled flag not updated by upsert")
	}
	if rules[0].Reason != "large auto claim" {
		t.Errorf("reason lost: %q", rules[0].Reason)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
