package extraction

import (
	"context"
	"errors"
	"testing"

	"claimaudit-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func policyChunk() models.ScoredChunk {
	return models.ScoredChunk{
		Chunk: models.Chunk{
			ID:          "pol-1:0003",
			PolicyID:    "pol-1",
			PolicyName:  "Medicare NCD 240.4 - CPAP for OSA",
			Page:        2,
			SectionPath: "Indications and Limitations of Coverage",
			StartChar:   1000,
			EndChar:     1100,
			Text:        "An initial 12-week period of CPAP is covered if AHI or RDI >= 15 events per hour.",
		},
		Score: 0.91,
	}
}

func TestExtractorAnchorsCitationToChunk(t *testing.T) {
	backend := &MockBackend{RulesFor: func(string) []CandidateRule {
		return []CandidateRule{{
			RuleText:   "AHI or RDI must be at least 15",
			Kind:       "threshold",
			Metric:     "AHI",
			Op:         "gte",
			Value:      15,
			Mandatory:  true,
			Confidence: 0.9,
			Excerpt:    "AHI or RDI >= 15 events per hour",
		}}
	}}

	rules, err := NewExtractor(backend, 0.5, 2).ExtractRules(context.Background(), []models.ScoredChunk{policyChunk()})
	require.NoError(t, err)
	require.Len(t, rules, 1)

	rule := rules[0]
	assert.Equal(t, "pol-1:0003#r00", rule.ID)
	assert.Equal(t, "pol-1:0003", rule.ChunkID)
	require.True(t, rule.Citation.Valid())
	assert.Equal(t, "pol-1", rule.Citation.PolicyID)
	assert.Equal(t, 2, rule.Citation.Page)
	assert.Equal(t, "AHI or RDI >= 15 events per hour", rule.Citation.TextExcerpt)
	// Offsets are absolute into the source document.
	assert.Equal(t, 1048, rule.Citation.StartChar)
	assert.Equal(t, 1048+len(rule.Citation.TextExcerpt), rule.Citation.EndChar)
}

func TestExtractorDropsNonLiteralExcerpt(t *testing.T) {
	backend := &MockBackend{RulesFor: func(string) []CandidateRule {
		return []CandidateRule{{
			RuleText:   "paraphrased rule",
			Kind:       "threshold",
			Metric:     "AHI",
			Op:         "gte",
			Value:      15,
			Confidence: 0.95,
			Excerpt:    "the apnea index must reach fifteen",
		}}
	}}

	rules, err := NewExtractor(backend, 0.5, 2).ExtractRules(context.Background(), []models.ScoredChunk{policyChunk()})
	require.NoError(t, err)
	assert.Empty(t, rules, "a quote that does not exist in the chunk must not become a citation")
}

func TestExtractorDropsLowConfidenceAndInvalidShapes(t *testing.T) {
	backend := &MockBackend{RulesFor: func(string) []CandidateRule {
		return []CandidateRule{
			{
				RuleText:   "unsure rule",
				Kind:       "threshold",
				Metric:     "AHI",
				Op:         "gte",
				Value:      15,
				Confidence: 0.2,
				Excerpt:    "AHI or RDI >= 15",
			},
			{
				RuleText:   "free-form rule",
				Kind:       "narrative_judgment",
				Confidence: 0.9,
				Excerpt:    "AHI or RDI >= 15",
			},
			{
				RuleText:   "no excerpt",
				Kind:       "threshold",
				Metric:     "AHI",
				Op:         "gte",
				Value:      15,
				Confidence: 0.9,
			},
		}
	}}

	rules, err := NewExtractor(backend, 0.5, 2).ExtractRules(context.Background(), []models.ScoredChunk{policyChunk()})
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestExtractorPreservesChunkOrder(t *testing.T) {
	first := policyChunk()
	second := policyChunk()
	second.Chunk.ID = "pol-1:0004"
	second.Chunk.Text = "Coverage also requires AHI or RDI >= 5 documented."

	backend := &MockBackend{RulesFor: func(text string) []CandidateRule {
		value := 15.0
		excerpt := "AHI or RDI >= 15"
		if text == second.Chunk.Text {
			value = 5
			excerpt = "AHI or RDI >= 5"
		}
		return []CandidateRule{{
			RuleText:   excerpt,
			Kind:       "threshold",
			Metric:     "AHI",
			Op:         "gte",
			Value:      value,
			Confidence: 0.9,
			Excerpt:    excerpt,
		}}
	}}

	rules, err := NewExtractor(backend, 0.5, 4).ExtractRules(context.Background(), []models.ScoredChunk{first, second})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "pol-1:0003#r00", rules[0].ID)
	assert.Equal(t, "pol-1:0004#r00", rules[1].ID)
}

func TestExtractorPropagatesBackendError(t *testing.T) {
	backend := &MockBackend{Err: errors.New("model unavailable")}
	_, err := NewExtractor(backend, 0.5, 2).ExtractRules(context.Background(), []models.ScoredChunk{policyChunk()})
	assert.Error(t, err)
}

func TestMockBackendRecognizesSeedPolicyText(t *testing.T) {
	text := "a. AHI or RDI >= 15 events per hour, or\nb. AHI or RDI >= 5 and <= 14 events per hour with documented symptoms"
	rules, err := (&MockBackend{}).ExtractRules(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "any_of", rules[0].Kind)
	assert.True(t, rules[0].Mandatory)
}
