package models

import (
	"fmt"
	"time"
)

// AuditDecision is the outcome of one adjudication run
type AuditDecision string

const (
	DecisionApprove    AuditDecision = "APPROVE"
	DecisionDeny       AuditDecision = "DENY"
	DecisionPendInfo   AuditDecision = "PEND_INFO"
	DecisionNeedsHuman AuditDecision = "NEEDS_HUMAN"
)

// Citation links a decision back to the exact ingested source text that
// justifies it. It must always reference real ingested content.
type Citation struct {
	PolicyID    string `json:"policy_id"`
	PolicyName  string `json:"policy_name,omitempty"`
	Page        int    `json:"page"`
	SectionPath string `json:"section_path"`
	ChunkID     string `json:"chunk_id"`
	TextExcerpt string `json:"text_excerpt"`
	StartChar   int    `json:"start_char,omitempty"`
	EndChar     int    `json:"end_char,omitempty"`
}

// Valid reports whether the citation can serve as evidentiary basis: it must
// anchor to a real chunk and quote actual text.
func (c Citation) Valid() bool {
	return c.PolicyID != "" && c.ChunkID != "" && c.TextExcerpt != ""
}

// RuleApplied records the evaluation of one extracted rule against the claim.
// Immutable once attached to an AuditOutput.
type RuleApplied struct {
	RuleID      string    `json:"rule_id"`
	RuleText    string    `json:"rule_text"`
	Satisfied   bool      `json:"satisfied"`
	Citation    *Citation `json:"citation,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
}

// AuditOutput is the complete, immutable record of one adjudication run.
// Amendments require a new AuditOutput referencing the same claim.
type AuditOutput struct {
	AuditID       string        `json:"audit_id"`
	ClaimID       string        `json:"claim_id"`
	Decision      AuditDecision `json:"decision"`
	Confidence    float64       `json:"confidence"`
	RulesApplied  []RuleApplied `json:"rules_applied"`
	Citations     []Citation    `json:"citations"`
	Explanation   string        `json:"explanation"`
	MissingInfo   []string      `json:"missing_info"`
	PromptVersion string        `json:"prompt_version"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Validate enforces the output invariants: confidence bounds and the
// citation-gating rule that APPROVE/DENY is invalid without citations.
func (a AuditOutput) Validate() error {
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", a.Confidence)
	}
	switch a.Decision {
	case DecisionApprove, DecisionDeny:
		hasValid := false
		for _, c := range a.Citations {
			if c.Valid() {
				hasValid = true
				break
			}
		}
		if !hasValid {
			return fmt.Errorf("decision %s is invalid without at least one valid citation", a.Decision)
		}
	case DecisionPendInfo, DecisionNeedsHuman:
	default:
		return fmt.Errorf("unknown decision %q", a.Decision)
	}
	return nil
}
