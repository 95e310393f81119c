package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"claimaudit-backend/models"
)

// ErrNoApplicablePolicy reports that no ingested policy was active for the
// claim's payer on the service date. It is a decision signal, not a transient
// failure, and is never retried.
var ErrNoApplicablePolicy = errors.New("no applicable policy")

// Retriever selects the policy chunks relevant to one claim. Retrieval is
// always scoped to policies that were active for the claim's payer on the
// service date; an expired or draft policy can never contribute evidence.
type Retriever struct {
	embedder Embedder
	index    ChunkIndex
	policies PolicyStore
	topK     int
}

// NewRetriever creates a retriever returning at most topK chunks per claim.
func NewRetriever(embedder Embedder, index ChunkIndex, policies PolicyStore, topK int) *Retriever {
	if topK <= 0 {
		topK = 6
	}
	return &Retriever{embedder: embedder, index: index, policies: policies, topK: topK}
}

// Retrieve returns the chunks to adjudicate against. ErrNoApplicablePolicy
// means no policy was active for the claim; an empty result with a nil error
// means applicable policies exist but nothing in their indexed text matched.
func (r *Retriever) Retrieve(ctx context.Context, facts models.ClaimFacts) ([]models.ScoredChunk, error) {
	policyIDs, err := r.applicablePolicies(ctx, facts)
	if err != nil {
		return nil, err
	}
	if len(policyIDs) == 0 {
		return nil, ErrNoApplicablePolicy
	}

	queryText := buildQueryText(facts)
	vector, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed retrieval query: %w", err)
	}

	hits, err := r.index.Search(ctx, models.SearchQuery{
		Vector:    vector,
		Text:      queryText,
		PolicyIDs: policyIDs,
		K:         r.topK,
	})
	if err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}
	return hits, nil
}

// applicablePolicies resolves the policy scope. An explicit policy_id on the
// claim pins the scope to that policy but it still must be active on the
// service date.
func (r *Retriever) applicablePolicies(ctx context.Context, facts models.ClaimFacts) ([]string, error) {
	if facts.PolicyID != "" {
		doc, err := r.policies.GetPolicy(ctx, facts.PolicyID)
		if err != nil {
			log.Printf("Warning: requested policy %s not found: %v", facts.PolicyID, err)
			return nil, nil
		}
		if !doc.ActiveOn(facts.ServiceDate) {
			log.Printf("Warning: requested policy %s not active on %s", facts.PolicyID, facts.ServiceDate.Format("2006-01-02"))
			return nil, nil
		}
		return []string{doc.ID}, nil
	}

	docs, err := r.policies.ListActivePolicies(ctx, facts.Payer, facts.ServiceDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies for payer %s: %w", facts.Payer, err)
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

// buildQueryText composes the hybrid retrieval query from the claim's codes,
// payer and clinical notes.
func buildQueryText(facts models.ClaimFacts) string {
	var sb strings.Builder
	sb.WriteString("coverage criteria for ")
	sb.WriteString(strings.Join(facts.CPTCodes, " "))
	if len(facts.ICDCodes) > 0 {
		sb.WriteString(" with diagnosis ")
		sb.WriteString(strings.Join(facts.ICDCodes, " "))
	}
	if facts.Payer != "" {
		sb.WriteString(" under ")
		sb.WriteString(facts.Payer)
	}
	if notes := strings.TrimSpace(facts.Notes); notes != "" {
		sb.WriteString(" ")
		sb.WriteString(notes)
	}
	return sb.String()
}
