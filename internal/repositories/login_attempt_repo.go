package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/bastion/internal/database"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/jackc/pgx/v5"
)

// LoginAttemptRepository is the append-only attempt ledger. Rows are inserted
// for every authentication attempt and removed only by ClearFailures or the
// retention purge.
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

func scanAttemptRow(row rowScanner) (*models.LoginAttempt, error) {
	var attempt models.LoginAttempt

	err := row.Scan(
		&attempt.ID, &attempt.Identity, &attempt.OriginIP, &attempt.UserAgent,
		&attempt.Succeeded, &attempt.FailureReason, &attempt.AttemptedAt, &attempt.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &attempt, nil
}

func scanAttemptRows(rows pgx.Rows) ([]*models.LoginAttempt, error) {
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0)

	for rows.Next() {
		attempt, err := scanAttemptRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating login attempt rows: %w", err)
	}

	return attempts, nil
}

// RecordAttempt appends a ledger row and returns it with the assigned ID
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
	attemptedAt := attempt.AttemptedAt
	if attemptedAt.IsZero() {
		attemptedAt = time.Now()
	}

	query := `
		INSERT INTO login_attempts (identity, origin_ip, user_agent, succeeded, failure_reason, attempted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, identity, origin_ip, user_agent, succeeded, failure_reason, attempted_at, expires_at
	`

	result, err := scanAttemptRow(r.db.Pool.QueryRow(ctx, query,
		attempt.Identity,
		attempt.OriginIP,
		attempt.UserAgent,
		attempt.Succeeded,
		attempt.FailureReason,
		attemptedAt,
		attempt.ExpiresAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to record login attempt: %w", err)
	}

	return result, nil
}

// CountFailures returns the number of failed attempts for an (identity, origin IP)
// pair since the given time. Pushed down as a single indexed range query.
func (r *LoginAttemptRepository) CountFailures(ctx context.Context, identity, originIP string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE identity = $1 AND origin_ip = $2 AND succeeded = false AND attempted_at >= $3
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, identity, originIP, since).Scan(&count)
	return count, err
}

// CountFailuresByIdentity returns the number of failed attempts for an
// identity across all origin IPs since the given time
func (r *LoginAttemptRepository) CountFailuresByIdentity(ctx context.Context, identity string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE identity = $1 AND succeeded = false AND attempted_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, identity, since).Scan(&count)
	return count, err
}

// ClearFailures deletes failed rows for an (identity, origin IP) pair,
// resetting the failure window after a successful login
func (r *LoginAttemptRepository) ClearFailures(ctx context.Context, identity, originIP string) error {
	query := `
		DELETE FROM login_attempts
		WHERE identity = $1 AND origin_ip = $2 AND succeeded = false
	`

	_, err := r.db.Pool.Exec(ctx, query, identity, originIP)
	return err
}

// History returns the most recent attempts for an identity, newest first
func (r *LoginAttemptRepository) History(ctx context.Context, identity string, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, identity, origin_ip, user_agent, succeeded, failure_reason, attempted_at, expires_at
		FROM login_attempts
		WHERE identity = $1
		ORDER BY attempted_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login history: %w", err)
	}

	return scanAttemptRows(rows)
}

// CountDistinctIdentitiesByIP returns how many distinct identities have failed
// attempts from a single origin IP since the given time
func (r *LoginAttemptRepository) CountDistinctIdentitiesByIP(ctx context.Context, originIP string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(DISTINCT identity) FROM login_attempts
		WHERE origin_ip = $1 AND succeeded = false AND attempted_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, originIP, since).Scan(&count)
	return count, err
}

// DeleteExpired removes attempts past their retention deadline
func (r *LoginAttemptRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_attempts WHERE expires_at <= CURRENT_TIMESTAMP`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired login attempts: %w", err)
	}

	return result.RowsAffected(), nil
}

// DeleteByIdentity removes all attempts for an identity (GDPR erasure)
func (r *LoginAttemptRepository) DeleteByIdentity(ctx context.Context, identity string) (int64, error) {
	query := `DELETE FROM login_attempts WHERE identity = $1`

	result, err := r.db.Pool.Exec(ctx, query, identity)
	if err != nil {
		return 0, fmt.Errorf("failed to delete login attempts for identity: %w", err)
	}

	return result.RowsAffected(), nil
}
