package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/bastion/internal/database"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SecurityEventRepository handles the append-only security audit trail
type SecurityEventRepository struct {
	pool *pgxpool.Pool
}

// NewSecurityEventRepository creates a new SecurityEventRepository
func NewSecurityEventRepository(db *database.DB) *SecurityEventRepository {
	return &SecurityEventRepository{pool: db.Pool}
}

func scanEventRow(row rowScanner) (*models.SecurityEvent, error) {
	var event models.SecurityEvent
	var rawMetadata []byte

	err := row.Scan(
		&event.ID, &event.SubjectID, &event.EventType, &rawMetadata,
		&event.OriginIP, &event.UserAgent, &event.OccurredAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	event.Metadata = models.DecodeMetadata(event.EventType, rawMetadata)
	return &event, nil
}

func scanEventRows(rows pgx.Rows) ([]*models.SecurityEvent, error) {
	defer rows.Close()

	events := make([]*models.SecurityEvent, 0)

	for rows.Next() {
		event, err := scanEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security event rows: %w", err)
	}

	return events, nil
}

// Create appends a security event
func (r *SecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
	rawMetadata, err := models.EncodeMetadata(event.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event metadata: %w", err)
	}

	query := `
		INSERT INTO security_events (subject_id, event_type, metadata, origin_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, subject_id, event_type, metadata, origin_ip, user_agent, occurred_at
	`

	result, err := scanEventRow(r.pool.QueryRow(ctx, query,
		event.SubjectID, event.EventType, rawMetadata, event.OriginIP, event.UserAgent,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create security event: %w", err)
	}

	return result, nil
}

// GetBySubjectID retrieves events for a subject, newest first
func (r *SecurityEventRepository) GetBySubjectID(ctx context.Context, subjectID uuid.UUID, limit int) ([]*models.SecurityEvent, error) {
	query := `
		SELECT id, subject_id, event_type, metadata, origin_ip, user_agent, occurred_at
		FROM security_events
		WHERE subject_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}

	return scanEventRows(rows)
}

// CountDistinctIPsBySubject counts distinct origin IPs across a subject's events
// since the given time
func (r *SecurityEventRepository) CountDistinctIPsBySubject(ctx context.Context, subjectID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COUNT(DISTINCT origin_ip) FROM security_events
		WHERE subject_id = $1 AND occurred_at >= $2 AND origin_ip <> ''
	`

	var count int
	err := r.pool.QueryRow(ctx, query, subjectID, since).Scan(&count)
	return count, err
}

// AnonymizeBySubject detaches a subject's events from the subject while keeping
// the audit rows (GDPR erasure without destroying the trail)
func (r *SecurityEventRepository) AnonymizeBySubject(ctx context.Context, subjectID uuid.UUID) (int64, error) {
	query := `
		UPDATE security_events
		SET subject_id = NULL, user_agent = '', origin_ip = ''
		WHERE subject_id = $1
	`

	result, err := r.pool.Exec(ctx, query, subjectID)
	if err != nil {
		return 0, fmt.Errorf("failed to anonymize security events: %w", err)
	}

	return result.RowsAffected(), nil
}

// Cleanup removes events older than the retention horizon
func (r *SecurityEventRepository) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM security_events WHERE occurred_at < $1`

	result, err := r.pool.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup security events: %w", err)
	}

	return result.RowsAffected(), nil
}
