package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"claimaudit-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ClaimRepository handles database operations for submitted claims
type ClaimRepository struct {
	db *pgxpool.Pool
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *pgxpool.Pool) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// SaveClaim inserts or replaces the normalized form of a claim
func (r *ClaimRepository) SaveClaim(ctx context.Context, facts models.ClaimFacts) error {
	observations, err := json.Marshal(facts.Observations)
	if err != nil {
		return fmt.Errorf("failed to encode observations: %w", err)
	}

	query := `
		INSERT INTO claims (
			id, patient_id, cpt_codes, icd_codes, service_date, payer,
			provider_npi, billed_amount, notes, policy_id, observations
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		ON CONFLICT (id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			cpt_codes = EXCLUDED.cpt_codes,
			icd_codes = EXCLUDED.icd_codes,
			service_date = EXCLUDED.service_date,
			payer = EXCLUDED.payer,
			provider_npi = EXCLUDED.provider_npi,
			billed_amount = EXCLUDED.billed_amount,
			notes = EXCLUDED.notes,
			policy_id = EXCLUDED.policy_id,
			observations = EXCLUDED.observations`

	_, err = r.db.Exec(
		ctx, query,
		facts.ClaimID,
		facts.PatientID,
		facts.CPTCodes,
		facts.ICDCodes,
		facts.ServiceDate,
		facts.Payer,
		facts.ProviderNPI,
		facts.BilledAmount,
		facts.Notes,
		nullable(facts.PolicyID),
		observations,
	)
	return err
}

// GetClaim retrieves a claim by ID
func (r *ClaimRepository) GetClaim(ctx context.Context, claimID string) (*models.ClaimFacts, error) {
	facts := &models.ClaimFacts{}
	var policyID *string
	var observations []byte

	query := `
		SELECT id, patient_id, cpt_codes, icd_codes, service_date, payer,
			provider_npi, billed_amount, notes, policy_id, observations
		FROM claims
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, claimID).Scan(
		&facts.ClaimID,
		&facts.PatientID,
		&facts.CPTCodes,
		&facts.ICDCodes,
		&facts.ServiceDate,
		&facts.Payer,
		&facts.ProviderNPI,
		&facts.BilledAmount,
		&facts.Notes,
		&policyID,
		&observations,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if policyID != nil {
		facts.PolicyID = *policyID
	}
	if len(observations) > 0 {
		if err := json.Unmarshal(observations, &facts.Observations); err != nil {
			return nil, fmt.Errorf("failed to decode observations: %w", err)
		}
	}

	return facts, nil
}

// nullable maps an empty string to SQL NULL
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
