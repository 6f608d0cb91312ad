package velocity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-insurance/heron/internal/cache"
	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/repository"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "velocity-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func saveClaim(t *testing.T, repo domain.Repository, id, ownerID string, createdAt time.Time) {
	t.Helper()
	err := repo.SaveClaim(context.Background(), &domain.Claim{
		ID:           id,
		OwnerID:      ownerID,
		Status:       domain.ClaimPending,
		DocumentName: "claim.pdf",
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	})
	if err != nil {
		t.Fatalf("SaveClaim failed: %v", err)
	}
}

func TestRecentClaims(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	saveClaim(t, repo, "claim-001", "owner-a", now.Add(-time.Hour))
	saveClaim(t, repo, "claim-002", "owner-a", now.Add(-48*time.Hour))
	saveClaim(t, repo, "claim-003", "owner-a", now.Add(-60*24*time.Hour)) // outside window
	saveClaim(t, repo, "claim-004", "owner-b", now.Add(-time.Hour))

	count, err := svc.RecentClaims(ctx, "owner-a")
	if err != nil {
		t.Fatalf("RecentClaims failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 recent claims inside window, got %d", count)
	}

	count, err = svc.RecentClaims(ctx, "owner-b")
	if err != nil {
		t.Fatalf("RecentClaims failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 recent claim for owner-b, got %d", count)
	}

	if _, err := svc.RecentClaims(ctx, ""); err == nil {
		t.Error("expected error for empty owner id")
	}
}

func TestRecentClaimsCaching(t *testing.T) {
	repo := newTestRepo(t)
	c := cache.NewLRUCache(10)
	svc := NewService(repo, c)
	ctx := context.Background()
	now := time.Now().UTC()

	saveClaim(t, repo, "claim-001", "owner-a", now.Add(-time.Hour))

	count, err := svc.RecentClaims(ctx, "owner-a")
	if err != nil {
		t.Fatalf("RecentClaims failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}

	// A new claim is invisible until the cached count is invalidated.
	saveClaim(t, repo, "claim-002", "owner-a", now)

	count, _ = svc.RecentClaims(ctx, "owner-a")
	if count != 1 {
		t.Errorf("expected cached count 1, got %d", count)
	}

	svc.Invalidate(ctx, "owner-a")

	count, _ = svc.RecentClaims(ctx, "owner-a")
	if count != 2 {
		t.Errorf("expected 2 after invalidation, got %d", count)
	}
}
