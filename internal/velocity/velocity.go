// Package velocity provides claim filing velocity calculation.
package velocity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/opensource-insurance/heron/internal/domain"
)

// DefaultWindow is the filing window flag rules reason about via the
// recent_claims variable.
const DefaultWindow = 30 * 24 * time.Hour

// cacheTTL keeps counts hot without letting them drift far behind the
// claims table.
const cacheTTL = time.Minute

// Service counts recent claim filings per owner. Counts feed the flag
// rule engine; a velocity lookup failure degrades to zero rather than
// blocking ingestion.
type Service struct {
	repo   domain.Repository
	cache  domain.Cache
	window time.Duration
}

// NewService creates a filing velocity service. The cache may be nil,
// in which case every lookup hits the repository.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		window: DefaultWindow,
	}
}

// RecentClaims returns the number of claims the owner filed inside the
// service window, including the one currently being ingested if it has
// already been saved.
func (s *Service) RecentClaims(ctx context.Context, ownerID string) (int64, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("owner id is required")
	}

	key := "velocity:" + ownerID

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil && raw != nil {
			if count, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
				return count, nil
			}
		}
	}

	since := time.Now().UTC().Add(-s.window)
	count, err := s.repo.CountClaimsSince(ctx, ownerID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent claims: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, []byte(strconv.FormatInt(count, 10)), cacheTTL)
	}
	return count, nil
}

// Invalidate drops the cached count for an owner. Called after a new
// claim is saved so the next lookup sees it.
func (s *Service) Invalidate(ctx context.Context, ownerID string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "velocity:"+ownerID)
	}
}
