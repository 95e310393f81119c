package service

import (
	"context"
	"time"

	"claimaudit-backend/models"
)

// Embedder produces query and document vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
}

// ChunkIndex is the searchable store of policy chunks. Replace swaps the
// whole set of chunks for a policy atomically so searches never see a
// half-indexed policy.
type ChunkIndex interface {
	Replace(ctx context.Context, policyID string, chunks []models.Chunk, vectors [][]float64) error
	Delete(ctx context.Context, policyID string) error
	Search(ctx context.Context, query models.SearchQuery) ([]models.ScoredChunk, error)
}

// RuleSource turns retrieved chunks into validated, citation-anchored rules.
type RuleSource interface {
	ExtractRules(ctx context.Context, hits []models.ScoredChunk) ([]models.Rule, error)
}

// PolicyStore persists policy metadata and answers the applicability query:
// which of a payer's policies were active on a given service date.
type PolicyStore interface {
	SavePolicy(ctx context.Context, doc *models.PolicyDocument) error
	GetPolicy(ctx context.Context, policyID string) (*models.PolicyDocument, error)
	ListActivePolicies(ctx context.Context, payer string, asOf time.Time) ([]*models.PolicyDocument, error)
}

// ClaimStore persists submitted claims for traceability.
type ClaimStore interface {
	SaveClaim(ctx context.Context, facts models.ClaimFacts) error
	GetClaim(ctx context.Context, claimID string) (*models.ClaimFacts, error)
}

// AuditStore persists audit records. Records are write-once: SaveAudit must
// refuse to overwrite an existing audit id.
type AuditStore interface {
	SaveAudit(ctx context.Context, audit *models.AuditOutput) error
	GetAudit(ctx context.Context, auditID string) (*models.AuditOutput, error)
}
