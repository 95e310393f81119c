package service

import (
	"testing"

	"claimaudit-backend/config"
	"claimaudit-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cpapFacts(observations map[string]float64, notes string) models.ClaimFacts {
	return models.ClaimFacts{
		ClaimID:      "clm-42",
		CPTCodes:     []string{"E0601"},
		ICDCodes:     []string{"G47.33"},
		Payer:        "Medicare",
		Notes:        notes,
		Observations: observations,
	}
}

// cpapRule mirrors the coverage criterion of the seeded Medicare CPAP policy.
func cpapRule(confidence float64, mandatory bool) models.Rule {
	return models.Rule{
		ID:       "medicare-ncd-240-4-cpap:0000#r00",
		ChunkID:  "medicare-ncd-240-4-cpap:0000",
		RuleText: "Initial CPAP coverage requires AHI/RDI >= 15, or 5-14 with documented symptoms",
		Predicate: models.Predicate{
			Kind: models.PredicateAnyOf,
			Operands: []models.Predicate{
				{Kind: models.PredicateThreshold, Metric: "AHI", Op: models.OpGTE, Value: 15},
				{Kind: models.PredicateAllOf, Operands: []models.Predicate{
					{Kind: models.PredicateThreshold, Metric: "AHI", Op: models.OpGTE, Value: 5},
					{Kind: models.PredicateThreshold, Metric: "AHI", Op: models.OpLTE, Value: 14},
					{Kind: models.PredicateSymptom, Symptom: "excessive daytime sleepiness"},
				}},
			},
		},
		Mandatory:  mandatory,
		Confidence: confidence,
		Citation: models.Citation{
			PolicyID:    "medicare-ncd-240-4-cpap",
			PolicyName:  "Medicare NCD 240.4 - CPAP for OSA",
			Page:        1,
			SectionPath: "General",
			ChunkID:     "medicare-ncd-240-4-cpap:0000",
			TextExcerpt: "AHI or RDI >= 15 events per hour, or",
		},
	}
}

func TestAdjudicateApprovesQualifyingClaim(t *testing.T) {
	cfg := config.DefaultPipeline()
	facts := cpapFacts(map[string]float64{"AHI": 18}, "AHI 18 documented by attended PSG")

	out := Adjudicate(facts, []models.Rule{cpapRule(0.92, true)}, cfg)

	assert.Equal(t, models.DecisionApprove, out.Decision)
	assert.InDelta(t, 0.952, out.Confidence, 1e-9)
	require.Len(t, out.RulesApplied, 1)
	assert.True(t, out.RulesApplied[0].Satisfied)
	require.Len(t, out.Citations, 1)
	assert.NoError(t, out.Validate())
}

func TestAdjudicateDeniesMandatoryShortfall(t *testing.T) {
	cfg := config.DefaultPipeline()
	facts := cpapFacts(map[string]float64{"AHI": 3}, "AHI 3, no reported symptoms")

	out := Adjudicate(facts, []models.Rule{cpapRule(0.92, true)}, cfg)

	assert.Equal(t, models.DecisionDeny, out.Decision)
	assert.Contains(t, out.Explanation, "mandatory coverage requirements are not met")
	require.Len(t, out.Citations, 1, "a denial must cite the violated requirement")
	assert.NoError(t, out.Validate())
}

func TestAdjudicatePendsOnUndocumentedFacts(t *testing.T) {
	cfg := config.DefaultPipeline()
	facts := cpapFacts(nil, "patient referred for sleep study")

	out := Adjudicate(facts, []models.Rule{cpapRule(0.92, true)}, cfg)

	assert.Equal(t, models.DecisionPendInfo, out.Decision)
	assert.Equal(t, []string{"documented AHI value"}, out.MissingInfo)
	assert.Contains(t, out.Explanation, "documented AHI value")
}

func TestAdjudicateNoRulesNeedsHuman(t *testing.T) {
	out := Adjudicate(cpapFacts(nil, ""), nil, config.DefaultPipeline())

	assert.Equal(t, models.DecisionNeedsHuman, out.Decision)
	assert.Empty(t, out.Citations)
	assert.Zero(t, out.Confidence)
}

func TestAdjudicateExcludesUncitedRules(t *testing.T) {
	uncited := cpapRule(0.95, true)
	uncited.Citation = models.Citation{}

	out := Adjudicate(cpapFacts(map[string]float64{"AHI": 18}, ""), []models.Rule{uncited}, config.DefaultPipeline())

	assert.Equal(t, models.DecisionNeedsHuman, out.Decision)
	assert.Empty(t, out.Citations)
	assert.Contains(t, out.Explanation, "lacked citations")
	require.Len(t, out.MissingInfo, 1)
	assert.Contains(t, out.MissingInfo[0], uncited.ID)
	assert.Contains(t, out.MissingInfo[0], "no valid citation")
}

func TestAdjudicateReportsExcludedRulesAlongsideDecision(t *testing.T) {
	cfg := config.DefaultPipeline()
	facts := cpapFacts(map[string]float64{"AHI": 18}, "")

	uncited := cpapRule(0.95, true)
	uncited.ID = "medicare-ncd-240-4-cpap:0000#r01"
	uncited.Citation = models.Citation{}

	out := Adjudicate(facts, []models.Rule{cpapRule(0.92, true), uncited}, cfg)

	// The cited rule alone decides, but the exclusion is on the record.
	assert.Equal(t, models.DecisionApprove, out.Decision)
	require.Len(t, out.RulesApplied, 1)
	require.Len(t, out.MissingInfo, 1)
	assert.Contains(t, out.MissingInfo[0], uncited.ID)
	assert.Contains(t, out.MissingInfo[0], "no valid citation")
	assert.NoError(t, out.Validate())
}

func TestAdjudicateLowConfidenceBlocksAutoApprove(t *testing.T) {
	cfg := config.DefaultPipeline()
	facts := cpapFacts(map[string]float64{"AHI": 18}, "")

	// Satisfied, but the extractor was barely confident in the rule:
	// 0.6*0.5 + 0.4*1.0 = 0.70, below the 0.80 approve threshold.
	out := Adjudicate(facts, []models.Rule{cpapRule(0.5, true)}, cfg)

	assert.Equal(t, models.DecisionNeedsHuman, out.Decision)
	assert.InDelta(t, 0.70, out.Confidence, 1e-9)
	assert.Contains(t, out.Explanation, "below the auto-approve threshold")
}

func TestAdjudicateReviewFloorExplainsWeakEvidence(t *testing.T) {
	cfg := config.DefaultPipeline()

	// Non-mandatory shortfall with a barely-trusted rule:
	// 0.6*0.1 + 0.4*0.0 = 0.06, under the 0.45 review floor.
	out := Adjudicate(cpapFacts(map[string]float64{"AHI": 3}, "no symptoms"), []models.Rule{cpapRule(0.1, false)}, cfg)

	assert.Equal(t, models.DecisionNeedsHuman, out.Decision)
	assert.InDelta(t, 0.06, out.Confidence, 1e-9)
	assert.Contains(t, out.Explanation, "below the review floor")
}

func TestAdjudicateNonMandatoryShortfallNeedsReview(t *testing.T) {
	cfg := config.DefaultPipeline()
	optional := cpapRule(0.9, false)

	out := Adjudicate(cpapFacts(map[string]float64{"AHI": 3}, "no symptoms"), []models.Rule{optional}, cfg)

	assert.Equal(t, models.DecisionNeedsHuman, out.Decision)
	assert.Contains(t, out.Explanation, "needs review")
}

func TestAdjudicateIsDeterministic(t *testing.T) {
	cfg := config.DefaultPipeline()
	facts := cpapFacts(map[string]float64{"AHI": 8}, "excessive daytime sleepiness reported")
	rules := []models.Rule{cpapRule(0.92, true)}

	first := Adjudicate(facts, rules, cfg)
	second := Adjudicate(facts, rules, cfg)

	assert.Equal(t, first, second)
	assert.Equal(t, models.DecisionApprove, first.Decision)
}

func TestAdjudicateConfidenceStaysInBounds(t *testing.T) {
	cfg := config.DefaultPipeline()
	for _, confidence := range []float64{0, 0.5, 1} {
		for _, obs := range []map[string]float64{nil, {"AHI": 3}, {"AHI": 18}} {
			out := Adjudicate(cpapFacts(obs, ""), []models.Rule{cpapRule(confidence, true)}, cfg)
			assert.GreaterOrEqual(t, out.Confidence, 0.0)
			assert.LessOrEqual(t, out.Confidence, 1.0)
		}
	}
}
