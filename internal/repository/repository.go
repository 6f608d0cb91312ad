// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-insurance/heron/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser stores a new user account.
func (r *SQLRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if user.ID == "" || user.Email == "" {
		return fmt.Errorf("%w: user id and email are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO users (id, email, first_name, last_name, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		user.ID, user.Email, user.FirstName, user.LastName,
		user.PasswordHash, user.Role, user.CreatedAt,
	)
	return err
}

// GetUser retrieves a user by ID.
func (r *SQLRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, first_name, last_name, password_hash, role, created_at
		FROM users
		WHERE id = ?
	`
	return r.scanUser(r.db.QueryRowContext(ctx, r.rebind(query), id))
}

// GetUserByEmail retrieves a user by email.
func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, first_name, last_name, password_hash, role, created_at
		FROM users
		WHERE email = ?
	`
	return r.scanUser(r.db.QueryRowContext(ctx, r.rebind(query), email))
}

func (r *SQLRepository) scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName,
		&u.PasswordHash, &u.Role, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveClaim stores a claim, updating status, extracted data and the
// update timestamp on conflict.
func (r *SQLRepository) SaveClaim(ctx context.Context, claim *domain.Claim) error {
	if claim.ID == "" || claim.OwnerID == "" {
		return fmt.Errorf("%w: claim id and owner are required", ErrInvalidInput)
	}

	extracted, _ := json.Marshal(claim.ExtractedData)

	query := `
		INSERT INTO claims (
			id, owner_id, status, document_name, extracted_data, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			extracted_data = excluded.extracted_data,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		claim.ID, claim.OwnerID, claim.Status, claim.DocumentName,
		string(extracted), claim.CreatedAt, claim.UpdatedAt,
	)
	return err
}

// GetClaim retrieves a claim by ID.
func (r *SQLRepository) GetClaim(ctx context.Context, claimID string) (*domain.Claim, error) {
	query := `
		SELECT id, owner_id, status, document_name, extracted_data, created_at, updated_at
		FROM claims
		WHERE id = ?
	`

	var c domain.Claim
	var extracted string

	err := r.db.QueryRowContext(ctx, r.rebind(query), claimID).Scan(
		&c.ID, &c.OwnerID, &c.Status, &c.DocumentName,
		&extracted, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if extracted != "" {
		json.Unmarshal([]byte(extracted), &c.ExtractedData)
	}
	return &c, nil
}

// UpdateClaimStatus sets a claim's status.
func (r *SQLRepository) UpdateClaimStatus(ctx context.Context, claimID string, status domain.ClaimStatus) error {
	if !domain.ValidStatus(status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	query := `UPDATE claims SET status = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), status, time.Now().UTC(), claimID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteClaim removes a claim and its predictions.
func (r *SQLRepository) DeleteClaim(ctx context.Context, claimID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM predictions WHERE claim_id = ?`), claimID); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM claims WHERE id = ?`), claimID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// ListClaims returns one page of claims visible to the scope, newest
// first. The scope restriction is part of the query; a zero scope
// matches nothing.
func (r *SQLRepository) ListClaims(ctx context.Context, scope domain.ClaimScope, filter domain.ClaimFilter) (*domain.ClaimPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	where, args := scopeWhere(scope)
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM claims ` + where
	if err := r.db.QueryRowContext(ctx, r.rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, err
	}

	query := `
		SELECT id, owner_id, status, document_name, extracted_data, created_at, updated_at
		FROM claims ` + where + `
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claims := make([]*domain.Claim, 0, limit)
	for rows.Next() {
		var c domain.Claim
		var extracted string
		if err := rows.Scan(
			&c.ID, &c.OwnerID, &c.Status, &c.DocumentName,
			&extracted, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if extracted != "" {
			json.Unmarshal([]byte(extracted), &c.ExtractedData)
		}
		claims = append(claims, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.ClaimPage{Claims: claims, Total: total, Page: page, Limit: limit}, nil
}

// CountClaimsSince returns the number of claims an owner has filed at or
// after the given instant. Used by the filing velocity service.
func (r *SQLRepository) CountClaimsSince(ctx context.Context, ownerID string, since time.Time) (int64, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}

	query := `SELECT COUNT(*) FROM claims WHERE owner_id = ? AND created_at >= ?`

	var count int64
	if err := r.db.QueryRowContext(ctx, r.rebind(query), ownerID, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// SavePrediction stores a scoring result for a claim.
func (r *SQLRepository) SavePrediction(ctx context.Context, p *domain.Prediction) error {
	if p.ID == "" || p.ClaimID == "" {
		return fmt.Errorf("%w: prediction id and claim id are required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(p.Reasons)

	fraudulent := 0
	if p.IsFraudulent {
		fraudulent = 1
	}

	query := `
		INSERT INTO predictions (
			id, claim_id, fraud_score, is_fraudulent, reserve_estimate,
			model_version, reasons, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, p.ClaimID, p.FraudScore, fraudulent, p.ReserveEstimate,
		p.ModelVersion, string(reasons), p.CreatedAt,
	)
	return err
}

// LatestPrediction retrieves the most recent prediction for a claim.
func (r *SQLRepository) LatestPrediction(ctx context.Context, claimID string) (*domain.Prediction, error) {
	query := `
		SELECT id, claim_id, fraud_score, is_fraudulent, reserve_estimate,
			   model_version, reasons, created_at
		FROM predictions
		WHERE claim_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var p domain.Prediction
	var reasons string
	var fraudulent int

	err := r.db.QueryRowContext(ctx, r.rebind(query), claimID).Scan(
		&p.ID, &p.ClaimID, &p.FraudScore, &fraudulent, &p.ReserveEstimate,
		&p.ModelVersion, &reasons, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.IsFraudulent = fraudulent == 1
	json.Unmarshal([]byte(reasons), &p.Reasons)
	return &p, nil
}

// SaveArtifact stores a trained model and, in the same transaction,
// marks the previously active artifact of that kind inactive. Old
// artifacts are superseded, never deleted.
func (r *SQLRepository) SaveArtifact(ctx context.Context, artifact *domain.ModelArtifact) error {
	if artifact.ID == "" || artifact.Kind == "" {
		return fmt.Errorf("%w: artifact id and kind are required", ErrInvalidInput)
	}

	stats, _ := json.Marshal(artifact.Stats)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	demote := `UPDATE model_artifacts SET status = ? WHERE kind = ? AND status = ?`
	if _, err := tx.ExecContext(ctx, r.rebind(demote),
		domain.ModelInactive, artifact.Kind, domain.ModelActive); err != nil {
		return err
	}

	insert := `
		INSERT INTO model_artifacts (id, kind, version, status, payload, stats, trained_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, r.rebind(insert),
		artifact.ID, artifact.Kind, artifact.Version, artifact.Status,
		artifact.Payload, string(stats), artifact.TrainedAt); err != nil {
		return err
	}

	return tx.Commit()
}

// ActiveArtifact retrieves the active artifact for a model kind.
func (r *SQLRepository) ActiveArtifact(ctx context.Context, kind domain.ModelKind) (*domain.ModelArtifact, error) {
	query := `
		SELECT id, kind, version, status, payload, stats, trained_at
		FROM model_artifacts
		WHERE kind = ? AND status = ?
		ORDER BY trained_at DESC
		LIMIT 1
	`

	var a domain.ModelArtifact
	var stats string

	err := r.db.QueryRowContext(ctx, r.rebind(query), kind, domain.ModelActive).Scan(
		&a.ID, &a.Kind, &a.Version, &a.Status, &a.Payload, &stats, &a.TrainedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(stats), &a.Stats)
	return &a, nil
}

// ListArtifacts retrieves all model artifacts, newest first. Payloads
// are omitted; callers listing models only need metadata and stats.
func (r *SQLRepository) ListArtifacts(ctx context.Context) ([]*domain.ModelArtifact, error) {
	query := `
		SELECT id, kind, version, status, stats, trained_at
		FROM model_artifacts
		ORDER BY trained_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*domain.ModelArtifact
	for rows.Next() {
		var a domain.ModelArtifact
		var stats string
		if err := rows.Scan(&a.ID, &a.Kind, &a.Version, &a.Status, &stats, &a.TrainedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(stats), &a.Stats)
		artifacts = append(artifacts, &a)
	}

	return artifacts, rows.Err()
}

// SaveFlagRule stores a flag rule, replacing an existing rule with the
// same ID.
func (r *SQLRepository) SaveFlagRule(ctx context.Context, rule *domain.FlagRule) error {
	if rule.ID == "" || rule.Expression == "" {
		return fmt.Errorf("%w: rule id and expression are required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO flag_rules (
			id, name, description, expression, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression, rule.Reason,
		enabled, now, now,
	)
	return err
}

// ListFlagRules retrieves all flag rules ordered by name.
func (r *SQLRepository) ListFlagRules(ctx context.Context) ([]*domain.FlagRule, error) {
	query := `
		SELECT id, name, description, expression, reason, enabled, created_at, updated_at
		FROM flag_rules
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.FlagRule
	for rows.Next() {
		var rule domain.FlagRule
		var enabled int
		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description, &rule.Expression,
			&rule.Reason, &enabled, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// Report aggregates claims visible to the scope. Fraud and reserve
// figures come from each claim's latest prediction.
func (r *SQLRepository) Report(ctx context.Context, scope domain.ClaimScope) (*domain.ReportSummary, error) {
	summary := &domain.ReportSummary{StatusBreakdown: make(map[string]int)}

	where, args := scopeWhere(scope)

	statusQuery := `SELECT status, COUNT(*) FROM claims ` + where + ` GROUP BY status`
	rows, err := r.db.QueryContext(ctx, r.rebind(statusQuery), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		summary.StatusBreakdown[status] = count
		summary.TotalClaims += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	predCond, predArgs := scopeCond(scope, "c.owner_id")
	predQuery := `
		SELECT COALESCE(SUM(CASE WHEN p.is_fraudulent = 1 THEN 1 ELSE 0 END), 0),
			   COALESCE(AVG(p.fraud_score), 0),
			   COALESCE(AVG(p.reserve_estimate), 0)
		FROM predictions p
		JOIN claims c ON c.id = p.claim_id
		WHERE ` + predCond + `
		  AND p.created_at = (
			SELECT MAX(created_at) FROM predictions WHERE claim_id = p.claim_id
		  )
	`
	err = r.db.QueryRowContext(ctx, r.rebind(predQuery), predArgs...).Scan(
		&summary.FraudulentCount, &summary.AvgFraudScore, &summary.AvgReserve,
	)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

// scopeWhere renders a ClaimScope as a WHERE clause over the claims
// table. The zero scope matches no rows, so an unresolved principal can
// never widen a listing.
func scopeWhere(scope domain.ClaimScope) (string, []any) {
	cond, args := scopeCond(scope, "owner_id")
	return "WHERE " + cond, args
}

func scopeCond(scope domain.ClaimScope, column string) (string, []any) {
	if scope.All {
		return "1 = 1", nil
	}
	if scope.OwnerID != "" {
		return column + " = ?", []any{scope.OwnerID}
	}
	return "1 = 0", nil
}
