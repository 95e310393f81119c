package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

const extractionPrompt = `You are the rule extractor for a claims-auditing engine. Your task is to read one excerpt of a payer coverage policy and extract the discrete coverage conditions it states.

POLICY TEXT:
%s

INSTRUCTIONS:
1. Extract only conditions explicitly stated in the text above. Do NOT use external medical knowledge.
2. Each condition must be expressed as one of these predicate kinds:
   - "threshold": a numeric comparison. Set "metric" (e.g. "AHI"), "op" (one of "gte", "gt", "lte", "lt", "eq") and "value".
   - "code_in_set": membership of a claim code in a listed set. Set "code_system" ("CPT" or "ICD10") and "codes".
   - "symptom": a documented symptom or finding required in the clinical notes. Set "symptom".
   - "all_of" / "any_of": a combination of the above. Set "operands".
3. Set "mandatory" to true when failing the condition disqualifies coverage.
4. Set "excerpt" to the EXACT contiguous quote from the policy text that states the condition. Do not paraphrase the excerpt.
5. Set "confidence" between 0.0 and 1.0 for how certain you are the condition is stated by the text.
6. Skip headers, boilerplate and text that states no evaluable condition. If nothing is evaluable, return an empty list.

OUTPUT FORMAT:
Respond with JSON only: {"rules": [ ... ]} where each rule has the fields rule_text, kind, mandatory, confidence, excerpt and the operand fields for its kind.`

// GeminiBackend extracts rules with a Gemini model via the genai client.
type GeminiBackend struct {
	client    *genai.Client
	modelName string
}

// NewGeminiBackend wraps a genai client. modelName falls back to
// gemini-2.0-flash when empty.
func NewGeminiBackend(client *genai.Client, modelName string) *GeminiBackend {
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	return &GeminiBackend{client: client, modelName: modelName}
}

// ExtractRules asks the model for candidate rules in the closed predicate
// schema. The response is parsed strictly; malformed output is an error so
// the pipeline can retry or degrade.
func (b *GeminiBackend) ExtractRules(ctx context.Context, chunkText string) ([]CandidateRule, error) {
	if b.client == nil {
		return nil, fmt.Errorf("gemini client not set")
	}

	model := b.client.GenerativeModel(b.modelName)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(fmt.Sprintf(extractionPrompt, chunkText)))
	if err != nil {
		return nil, fmt.Errorf("rule extraction call failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("rule extraction returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	var parsed struct {
		Rules []CandidateRule `json:"rules"`
	}
	if err := json.Unmarshal([]byte(sb.String()), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}
	return parsed.Rules, nil
}
