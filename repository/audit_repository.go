package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"claimaudit-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAuditExists is returned when a write would overwrite an existing audit
// record. Audit records are write-once; amendments are new records.
var ErrAuditExists = errors.New("audit record already exists")

// AuditRepository handles database operations for audit records
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// SaveAudit persists an audit record. An existing record with the same id is
// never touched; the caller gets ErrAuditExists instead.
func (r *AuditRepository) SaveAudit(ctx context.Context, audit *models.AuditOutput) error {
	if audit.AuditID == "" {
		audit.AuditID = uuid.NewString()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}

	rulesApplied, err := json.Marshal(audit.RulesApplied)
	if err != nil {
		return fmt.Errorf("failed to encode rules applied: %w", err)
	}
	citations, err := json.Marshal(audit.Citations)
	if err != nil {
		return fmt.Errorf("failed to encode citations: %w", err)
	}

	query := `
		INSERT INTO audits (
			id, claim_id, decision, confidence, rules_applied, citations,
			explanation, missing_info, prompt_version, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (id) DO NOTHING`

	tag, err := r.db.Exec(
		ctx, query,
		audit.AuditID,
		audit.ClaimID,
		audit.Decision,
		audit.Confidence,
		rulesApplied,
		citations,
		audit.Explanation,
		audit.MissingInfo,
		audit.PromptVersion,
		audit.CreatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAuditExists
	}
	return nil
}

// GetAudit retrieves an audit record by ID
func (r *AuditRepository) GetAudit(ctx context.Context, auditID string) (*models.AuditOutput, error) {
	audit := &models.AuditOutput{}
	var rulesApplied, citations []byte

	query := `
		SELECT id, claim_id, decision, confidence, rules_applied, citations,
			explanation, missing_info, prompt_version, created_at
		FROM audits
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, auditID).Scan(
		&audit.AuditID,
		&audit.ClaimID,
		&audit.Decision,
		&audit.Confidence,
		&rulesApplied,
		&citations,
		&audit.Explanation,
		&audit.MissingInfo,
		&audit.PromptVersion,
		&audit.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(rulesApplied, &audit.RulesApplied); err != nil {
		return nil, fmt.Errorf("failed to decode rules applied: %w", err)
	}
	if err := json.Unmarshal(citations, &audit.Citations); err != nil {
		return nil, fmt.Errorf("failed to decode citations: %w", err)
	}

	return audit, nil
}

// ListAuditsByClaim returns every audit recorded for a claim, newest first.
// A re-adjudicated claim accumulates records instead of rewriting history.
func (r *AuditRepository) ListAuditsByClaim(ctx context.Context, claimID string) ([]*models.AuditOutput, error) {
	query := `
		SELECT id, claim_id, decision, confidence, rules_applied, citations,
			explanation, missing_info, prompt_version, created_at
		FROM audits
		WHERE claim_id = $1
		ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, query, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audits: %w", err)
	}
	defer rows.Close()

	var audits []*models.AuditOutput
	for rows.Next() {
		audit := &models.AuditOutput{}
		var rulesApplied, citations []byte
		err := rows.Scan(
			&audit.AuditID,
			&audit.ClaimID,
			&audit.Decision,
			&audit.Confidence,
			&rulesApplied,
			&citations,
			&audit.Explanation,
			&audit.MissingInfo,
			&audit.PromptVersion,
			&audit.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit: %w", err)
		}
		if err := json.Unmarshal(rulesApplied, &audit.RulesApplied); err != nil {
			return nil, fmt.Errorf("failed to decode rules applied: %w", err)
		}
		if err := json.Unmarshal(citations, &audit.Citations); err != nil {
			return nil, fmt.Errorf("failed to decode citations: %w", err)
		}
		audits = append(audits, audit)
	}

	return audits, rows.Err()
}
