package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"claimaudit-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// PolicyRepository handles database operations for policy metadata
type PolicyRepository struct {
	db *pgxpool.Pool
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// SavePolicy inserts or replaces a policy's metadata and text
func (r *PolicyRepository) SavePolicy(ctx context.Context, doc *models.PolicyDocument) error {
	query := `
		INSERT INTO policies (
			id, name, payer, effective_date, expiration_date, status, policy_text, page_offsets
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			payer = EXCLUDED.payer,
			effective_date = EXCLUDED.effective_date,
			expiration_date = EXCLUDED.expiration_date,
			status = EXCLUDED.status,
			policy_text = EXCLUDED.policy_text,
			page_offsets = EXCLUDED.page_offsets
		RETURNING created_at`

	err := r.db.QueryRow(
		ctx, query,
		doc.ID,
		doc.Name,
		doc.Payer,
		doc.EffectiveDate,
		doc.ExpirationDate,
		doc.Status,
		doc.Text,
		doc.PageOffsets,
	).Scan(&doc.CreatedAt)

	return err
}

// GetPolicy retrieves a policy by ID, including its text
func (r *PolicyRepository) GetPolicy(ctx context.Context, policyID string) (*models.PolicyDocument, error) {
	doc := &models.PolicyDocument{}
	query := `
		SELECT id, name, payer, effective_date, expiration_date, status, policy_text, page_offsets, created_at
		FROM policies
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, policyID).Scan(
		&doc.ID,
		&doc.Name,
		&doc.Payer,
		&doc.EffectiveDate,
		&doc.ExpirationDate,
		&doc.Status,
		&doc.Text,
		&doc.PageOffsets,
		&doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return doc, nil
}

// ListActivePolicies returns the metadata of every policy of a payer that was
// active on the given date. Policy text is not loaded.
func (r *PolicyRepository) ListActivePolicies(ctx context.Context, payer string, asOf time.Time) ([]*models.PolicyDocument, error) {
	query := `
		SELECT id, name, payer, effective_date, expiration_date, status, created_at
		FROM policies
		WHERE payer = $1
			AND status = 'active'
			AND effective_date <= $2
			AND (expiration_date IS NULL OR expiration_date >= $2)
		ORDER BY effective_date DESC, id`

	rows, err := r.db.Query(ctx, query, payer, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var docs []*models.PolicyDocument
	for rows.Next() {
		doc := &models.PolicyDocument{}
		err := rows.Scan(
			&doc.ID,
			&doc.Name,
			&doc.Payer,
			&doc.EffectiveDate,
			&doc.ExpirationDate,
			&doc.Status,
			&doc.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}
