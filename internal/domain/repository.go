// Package domain defines the core interfaces and types for Heron.
package domain

import (
	"context"
	"time"
)

// ClaimFilter narrows a scoped claim listing.
type ClaimFilter struct {
	// Status filters to a single claim status when non-empty.
	Status ClaimStatus

	// Page is 1-based; Limit caps page size.
	Page  int
	Limit int
}

// ClaimPage is one page of a scoped claim listing.
type ClaimPage struct {
	Claims []*Claim `json:"claims"`
	Total  int      `json:"total"`
	Page   int      `json:"page"`
	Limit  int      `json:"limit"`
}

// ReportSummary holds scope-filtered claim aggregates.
type ReportSummary struct {
	TotalClaims     int            `json:"totalClaims"`
	FraudulentCount int            `json:"fraudulentCount"`
	AvgFraudScore   float64        `json:"avgFraudScore"`
	AvgReserve      float64        `json:"avgReserve"`
	StatusBreakdown map[string]int `json:"statusBreakdown"`
}

// Repository defines the interface for data persistence.
// Listing and report methods take a ClaimScope so row restriction happens
// in the query itself, never as a post-filter over fetched rows.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// Claim operations
	SaveClaim(ctx context.Context, claim *Claim) error
	GetClaim(ctx context.Context, claimID string) (*Claim, error)
	UpdateClaimStatus(ctx context.Context, claimID string, status ClaimStatus) error
	DeleteClaim(ctx context.Context, claimID string) error
	ListClaims(ctx context.Context, scope ClaimScope, filter ClaimFilter) (*ClaimPage, error)
	CountClaimsSince(ctx context.Context, ownerID string, since time.Time) (int64, error)

	// Prediction operations
	SavePrediction(ctx context.Context, p *Prediction) error
	LatestPrediction(ctx context.Context, claimID string) (*Prediction, error)

	// Model artifact operations. SaveArtifact atomically marks the
	// previous active artifact of the same kind inactive.
	SaveArtifact(ctx context.Context, artifact *ModelArtifact) error
	ActiveArtifact(ctx context.Context, kind ModelKind) (*ModelArtifact, error)
	ListArtifacts(ctx context.Context) ([]*ModelArtifact, error)

	// Flag rule operations
	SaveFlagRule(ctx context.Context, rule *FlagRule) error
	ListFlagRules(ctx context.Context) ([]*FlagRule, error)

	// Reporting
	Report(ctx context.Context, scope ClaimScope) (*ReportSummary, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
