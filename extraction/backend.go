// Package extraction turns retrieved policy chunks into discrete, evaluable
// coverage rules, each anchored to the chunk it came from.
package extraction

import (
	"context"
)

// CandidateRule is a raw rule proposed by an extraction backend before
// validation. Kind and the operand fields mirror the closed predicate set;
// Excerpt must be a verbatim quote from the chunk text.
type CandidateRule struct {
	RuleText   string  `json:"rule_text"`
	Kind       string  `json:"kind"`
	Metric     string  `json:"metric,omitempty"`
	Op         string  `json:"op,omitempty"`
	Value      float64 `json:"value,omitempty"`
	CodeSystem string  `json:"code_system,omitempty"`
	Codes      []string `json:"codes,omitempty"`
	Symptom    string  `json:"symptom,omitempty"`
	Operands   []CandidateRule `json:"operands,omitempty"`
	Mandatory  bool    `json:"mandatory"`
	Confidence float64 `json:"confidence"`
	Excerpt    string  `json:"excerpt"`
}

// Backend proposes candidate rules for one chunk of policy text.
//
// Implementations backed by a language model are not guaranteed to be
// deterministic for identical inputs; everything downstream of the extractor
// is. Implementations must honor ctx cancellation.
type Backend interface {
	ExtractRules(ctx context.Context, chunkText string) ([]CandidateRule, error)
}
