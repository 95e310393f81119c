package extraction

import (
	"context"
	"regexp"
)

var (
	ahiPrimary   = regexp.MustCompile(`AHI or RDI >= 15[^\n]*`)
	ahiSecondary = regexp.MustCompile(`AHI or RDI >= 5 and <= 14[^\n]*`)
)

// MockBackend is a deterministic extraction backend for mock mode and tests.
// When RulesFor is set it fully controls the output; otherwise the backend
// recognizes the CPAP AHI criteria of the seeded Medicare NCD 240.4 policy so
// the demo scenarios work without any external service.
type MockBackend struct {
	RulesFor func(chunkText string) []CandidateRule
	Err      error
}

// ExtractRules returns canned rules for the chunk text.
func (b *MockBackend) ExtractRules(ctx context.Context, chunkText string) ([]CandidateRule, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.RulesFor != nil {
		return b.RulesFor(chunkText), nil
	}
	return defaultRules(chunkText), nil
}

func defaultRules(chunkText string) []CandidateRule {
	excerpt := ahiPrimary.FindString(chunkText)
	if excerpt == "" {
		return nil
	}

	symptomAlternative := CandidateRule{
		RuleText:   "AHI or RDI between 5 and 14 with documented symptoms",
		Kind:       "all_of",
		Confidence: 0.88,
		Operands: []CandidateRule{
			{Kind: "threshold", Metric: "AHI", Op: "gte", Value: 5},
			{Kind: "threshold", Metric: "AHI", Op: "lte", Value: 14},
			{Kind: "any_of", Operands: []CandidateRule{
				{Kind: "symptom", Symptom: "excessive daytime sleepiness"},
				{Kind: "symptom", Symptom: "impaired cognition"},
				{Kind: "symptom", Symptom: "mood disorder"},
				{Kind: "symptom", Symptom: "insomnia"},
				{Kind: "symptom", Symptom: "hypertension"},
			}},
		},
	}
	if alt := ahiSecondary.FindString(chunkText); alt == "" {
		// Secondary clause not visible in this chunk: only the primary
		// threshold applies.
		return []CandidateRule{{
			RuleText:   "AHI or RDI >= 15 events per hour",
			Kind:       "threshold",
			Metric:     "AHI",
			Op:         "gte",
			Value:      15,
			Mandatory:  true,
			Confidence: 0.92,
			Excerpt:    excerpt,
		}}
	}

	return []CandidateRule{{
		RuleText:   "Initial CPAP coverage requires AHI/RDI >= 15, or 5-14 with documented symptoms",
		Kind:       "any_of",
		Mandatory:  true,
		Confidence: 0.92,
		Excerpt:    excerpt,
		Operands: []CandidateRule{
			{Kind: "threshold", Metric: "AHI", Op: "gte", Value: 15},
			symptomAlternative,
		},
	}}
}
