package repository

import (
	"context"
	"sync"
	"time"

	"claimaudit-backend/models"
)

// In-memory stores used in mock mode and in tests. They honor the same
// contracts as the Postgres repositories, including write-once audits.

// MemoryPolicyStore keeps policy documents in memory
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]models.PolicyDocument
}

// NewMemoryPolicyStore creates an empty in-memory policy store
func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{policies: make(map[string]models.PolicyDocument)}
}

// SavePolicy inserts or replaces a policy
func (s *MemoryPolicyStore) SavePolicy(ctx context.Context, doc *models.PolicyDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	s.policies[doc.ID] = *doc
	return nil
}

// GetPolicy retrieves a policy by ID
func (s *MemoryPolicyStore) GetPolicy(ctx context.Context, policyID string) (*models.PolicyDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.policies[policyID]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

// ListActivePolicies returns the payer's policies active on the given date
func (s *MemoryPolicyStore) ListActivePolicies(ctx context.Context, payer string, asOf time.Time) ([]*models.PolicyDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []*models.PolicyDocument
	for _, doc := range s.policies {
		if doc.Payer != payer || !doc.ActiveOn(asOf) {
			continue
		}
		doc := doc
		doc.Text = ""
		docs = append(docs, &doc)
	}
	return docs, nil
}

// MemoryClaimStore keeps normalized claims in memory
type MemoryClaimStore struct {
	mu     sync.RWMutex
	claims map[string]models.ClaimFacts
}

// NewMemoryClaimStore creates an empty in-memory claim store
func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{claims: make(map[string]models.ClaimFacts)}
}

// SaveClaim inserts or replaces a claim
func (s *MemoryClaimStore) SaveClaim(ctx context.Context, facts models.ClaimFacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[facts.ClaimID] = facts
	return nil
}

// GetClaim retrieves a claim by ID
func (s *MemoryClaimStore) GetClaim(ctx context.Context, claimID string) (*models.ClaimFacts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	facts, ok := s.claims[claimID]
	if !ok {
		return nil, ErrNotFound
	}
	return &facts, nil
}

// MemoryAuditStore keeps audit records in memory, write-once per id
type MemoryAuditStore struct {
	mu     sync.RWMutex
	audits map[string]models.AuditOutput
}

// NewMemoryAuditStore creates an empty in-memory audit store
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{audits: make(map[string]models.AuditOutput)}
}

// SaveAudit persists a record, refusing to overwrite an existing id
func (s *MemoryAuditStore) SaveAudit(ctx context.Context, audit *models.AuditOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.audits[audit.AuditID]; exists {
		return ErrAuditExists
	}
	s.audits[audit.AuditID] = *audit
	return nil
}

// GetAudit retrieves an audit record by ID
func (s *MemoryAuditStore) GetAudit(ctx context.Context, auditID string) (*models.AuditOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	audit, ok := s.audits[auditID]
	if !ok {
		return nil, ErrNotFound
	}
	return &audit, nil
}

// ListAuditsByClaim returns every audit recorded for a claim
func (s *MemoryAuditStore) ListAuditsByClaim(ctx context.Context, claimID string) ([]*models.AuditOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var audits []*models.AuditOutput
	for _, audit := range s.audits {
		if audit.ClaimID == claimID {
			audit := audit
			audits = append(audits, &audit)
		}
	}
	return audits, nil
}
